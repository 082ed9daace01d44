//go:build !linux && !freebsd && !darwin

package journal

import "os"

// fdatasync falls back to a full fsync on platforms without a cheaper
// data-only sync.
func fdatasync(f *os.File) error {
	return f.Sync()
}
