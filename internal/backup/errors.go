package backup

import "github.com/pkg/errors"

var ErrDestinationNotEmpty = errors.New("destination folder is not empty")
