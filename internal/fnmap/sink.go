package fnmap

import (
	"path/filepath"

	"github.com/DeusData/ctu-fnmap/internal/lockedfile"
)

// Sink appends a block of bytes while holding an exclusive lock on the
// underlying file, so concurrent writers never interleave blocks.
type Sink interface {
	AppendLocked(p []byte) error
}

// Sinks are the destinations of one flush.
type Sinks struct {
	Defined  Sink
	External Sink
}

// FileSinks returns sinks for the output files in ctuDir.
func FileSinks(ctuDir string) Sinks {
	return Sinks{
		Defined:  lockedfile.Appender{Path: filepath.Join(ctuDir, DefinedFile)},
		External: lockedfile.Appender{Path: filepath.Join(ctuDir, ExternalFile)},
	}
}
