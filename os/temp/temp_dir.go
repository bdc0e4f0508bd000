// Package temp writes files atomically. Everything that writes a file another
// goroutine or process may be polling for should go through WriteFile, so
// readers never observe a partial file.
package temp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	uuid "github.com/nu7hatch/gouuid"
)

// WriteFile writes data to a uniquely named sibling of path and renames it into place.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("temp.WriteFile: couldn't create temp name for %v: %v", path, err)
	}
	tmpPath := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+id.String())
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// IsTempName reports whether a file name was produced by WriteFile and not yet renamed.
func IsTempName(name string) bool {
	return strings.HasPrefix(filepath.Base(name), ".")
}
