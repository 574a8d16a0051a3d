//go:build unix

package lockedfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// flock locks are owned by the open file description, so two descriptors
// of the same file in one process exclude each other just like two
// processes do.
func lock(f *os.File) error {
	return flock(f, unix.LOCK_EX)
}

func unlock(f *os.File) error {
	return flock(f, unix.LOCK_UN)
}

func flock(f *os.File, how int) error {
	for {
		err := unix.Flock(int(f.Fd()), how)
		if err != unix.EINTR {
			return err
		}
	}
}
