package store

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNestedTransaction = errors.New("nested transactions are not supported")
	ErrNoTransaction     = errors.New("no transaction in progress")
	ErrUIDValidityUnset  = errors.New("uid validity is not set")
	ErrUIDNotFound       = errors.New("uid not found in index")
	ErrUIDConflict       = errors.New("uid already present in index")
	ErrBadFraming        = errors.New("message is not framed as an mbox entry")
)

// Integrity failures, in the order CheckIntegrity looks for them.
var (
	ErrMissingIndex               = errors.New("index file is missing")
	ErrMissingLog                 = errors.New("message log is missing")
	ErrEmptyIndexNonEmptyLog      = errors.New("index is empty but message log is not")
	ErrOffsetsOutOfOrder          = errors.New("index offsets are out of order")
	ErrLogShorterThanExpected     = errors.New("message log is shorter than the index expects")
	ErrLogLongerThanExpected      = errors.New("message log is longer than the index expects")
	ErrMessageNotAtExpectedOffset = errors.New("message not found at expected offset")
)

// MessageOffsetError reports a record whose offset does not point at a
// message sentinel.
type MessageOffsetError struct {
	Folder string
	Path   string
	UID    uint32
	Offset int64
}

func (e *MessageOffsetError) Error() string {
	return fmt.Sprintf("folder %q: uid %d: %s at offset %d in %s",
		e.Folder, e.UID, ErrMessageNotAtExpectedOffset, e.Offset, e.Path)
}

func (e *MessageOffsetError) Unwrap() error {
	return ErrMessageNotAtExpectedOffset
}
