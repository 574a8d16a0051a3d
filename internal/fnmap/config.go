package fnmap

import (
	"errors"
	"fmt"
)

// ErrCTUDirCount is returned when the CTU dir is not given exactly once.
var ErrCTUDirCount = errors.New("exactly one CTU dir should be provided")

// Config is the immutable per-run configuration of the mapper.
type Config struct {
	// CTUDir is the directory holding definedFns.txt and externalFns.txt.
	CTUDir string
}

// Validate reports configuration errors before any file is touched.
func (c Config) Validate() error {
	if c.CTUDir == "" {
		return ErrCTUDirCount
	}
	return nil
}

// CTUDirFlag is a pflag.Value that remembers how often it was set, so
// "--ctu-dir a --ctu-dir b" can be rejected instead of silently keeping b.
type CTUDirFlag struct {
	dir   string
	count int
}

func (f *CTUDirFlag) String() string { return f.dir }
func (f *CTUDirFlag) Type() string   { return "dir" }

func (f *CTUDirFlag) Set(s string) error {
	f.dir = s
	f.count++
	return nil
}

// Count returns the number of times the flag was given.
func (f *CTUDirFlag) Count() int { return f.count }

// Config returns the configuration, or ErrCTUDirCount unless the flag was
// given exactly once with a non-empty value.
func (f *CTUDirFlag) Config() (Config, error) {
	if f.count != 1 {
		return Config{}, fmt.Errorf("%w (got %d)", ErrCTUDirCount, f.count)
	}
	cfg := Config{CTUDir: f.dir}
	return cfg, cfg.Validate()
}
