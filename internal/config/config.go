// Package config loads the optional .ctuconfig project file.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/DeusData/ctu-fnmap/internal/store"
)

// FileName is the project file read from the working directory.
const FileName = ".ctuconfig"

// DefaultCTUDir is used when neither the flag nor the file names one.
const DefaultCTUDir = ".ctu"

// Config holds user-overridable build settings. Command-line flags take
// precedence over every field.
type Config struct {
	// CTUDir receives the map files, artifacts and the index database.
	CTUDir string `yaml:"ctu_dir"`

	// CompileDB is the JSON compilation database. When empty the build
	// discovers sources under the project root instead.
	CompileDB string `yaml:"compile_db"`

	// Threads bounds the number of TUs processed in parallel.
	// Default: 1.5 times the CPU count.
	Threads *int `yaml:"threads"`

	// Triple overrides the target of every TU.
	Triple string `yaml:"triple"`

	// IncludeDirs are appended as -I options to every compile command.
	IncludeDirs []string `yaml:"include_dirs"`

	// NoBuiltin disables library builtin recognition (-fno-builtin).
	NoBuiltin *bool `yaml:"no_builtin"`

	// DBPath is the SQLite index. Default: <ctu_dir>/fnmap.db.
	DBPath string `yaml:"db_path"`

	// SkipDirs are extra directory names ignored by source discovery.
	SkipDirs []string `yaml:"skip_dirs"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{}
}

// Load reads .ctuconfig from dir.
// Returns the default config if the file is missing or invalid.
func Load(dir string) *Config {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return cfg
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return Default()
	}
	return cfg
}

// EffectiveCTUDir returns the configured CTU directory or DefaultCTUDir.
func (c *Config) EffectiveCTUDir() string {
	if c.CTUDir != "" {
		return c.CTUDir
	}
	return DefaultCTUDir
}

// EffectiveThreads returns the configured parallelism or the default.
func (c *Config) EffectiveThreads() int {
	if c.Threads != nil && *c.Threads > 0 {
		return *c.Threads
	}
	return max(1, runtime.NumCPU()*3/2)
}

// EffectiveNoBuiltin returns the configured -fno-builtin setting (default false).
func (c *Config) EffectiveNoBuiltin() bool {
	return c.NoBuiltin != nil && *c.NoBuiltin
}

// EffectiveDBPath returns the index database path.
func (c *Config) EffectiveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.EffectiveCTUDir(), store.DefaultName)
}

// ExtraArgs renders the settings that apply to every compile command.
func (c *Config) ExtraArgs() []string {
	var args []string
	if c.Triple != "" {
		args = append(args, "--target="+c.Triple)
	}
	for _, dir := range c.IncludeDirs {
		args = append(args, "-I"+dir)
	}
	if c.EffectiveNoBuiltin() {
		args = append(args, "-fno-builtin")
	}
	return args
}
