// Package lockedfile appends to files shared by concurrent writers. Each
// append holds an exclusive whole-file advisory lock, so the block written
// by one call is never interleaved with another writer's block.
package lockedfile

import (
	"fmt"
	"io"
	"os"
)

// Append appends p to the file at path, creating it with mode 0666 (before
// umask) if needed. The lock is taken after opening and released before the
// descriptor is closed. An empty p touches nothing.
func Append(path string, p []byte) (err error) {
	if len(p) == 0 {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := lock(f); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer func() {
		if uerr := unlock(f); uerr != nil && err == nil {
			err = fmt.Errorf("unlock %s: %w", path, uerr)
		}
	}()

	n, err := f.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("write %s: %w", path, io.ErrShortWrite)
	}
	return nil
}

// Appender binds Append to one path.
type Appender struct {
	Path string
}

// AppendLocked appends p to a.Path under an exclusive lock.
func (a Appender) AppendLocked(p []byte) error {
	return Append(a.Path, p)
}
