//go:build windows

package preflight

import (
	"os"
	"path/filepath"
)

// Windows has no faccessat; probe by creating and removing a marker file.
func accessReadWrite(path string) error {
	probe := filepath.Join(path, ".governor-access")
	file, err := os.Create(probe)
	if err != nil {
		return err
	}
	file.Close()
	return os.Remove(probe)
}
