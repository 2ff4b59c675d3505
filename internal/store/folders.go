package store

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// numericSuffix matches the "-{validity}" and "-{n}" parts ApplyUIDValidity
// appends to old backups.
var numericSuffix = regexp.MustCompile(`-\d+$`)

// LocalFolders lists the folder names that have an index under dir, using
// "/" as the hierarchy separator.
func LocalFolders(dir string) ([]string, error) {
	var folders []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), IndexExt) || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		folders = append(folders, filepath.ToSlash(strings.TrimSuffix(rel, IndexExt)))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list folders in %s", dir)
	}
	sort.Strings(folders)
	return folders, nil
}

// LiveFolders lists the local folders that mirror a server folder. Backups
// moved aside after a UID validity change and the scratch copies left by
// an interrupted Filter are not included.
func LiveFolders(dir string) ([]string, error) {
	folders, err := LocalFolders(dir)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(folders))
	for _, folder := range folders {
		present[folder] = true
	}
	live := make([]string, 0, len(folders))
	for _, folder := range folders {
		if isScratchCopy(folder, present) || isMovedAside(folder, present) {
			continue
		}
		live = append(live, folder)
	}
	return live, nil
}

func isMovedAside(folder string, present map[string]bool) bool {
	name := folder
	for i := 0; i < 2; i++ {
		trimmed := numericSuffix.ReplaceAllString(name, "")
		if trimmed == name {
			return false
		}
		if present[trimmed] {
			return true
		}
		name = trimmed
	}
	return false
}

func isScratchCopy(folder string, present map[string]bool) bool {
	const idLen = 36
	if len(folder) <= idLen+1 || folder[len(folder)-idLen-1] != '-' {
		return false
	}
	if _, err := uuid.Parse(folder[len(folder)-idLen:]); err != nil {
		return false
	}
	return present[folder[:len(folder)-idLen-1]]
}
