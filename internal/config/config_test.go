package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadDefault(t *testing.T) {
	cfg := Load("/nonexistent/path")
	if cfg.EffectiveCTUDir() != DefaultCTUDir {
		t.Errorf("expected default ctu dir, got %q", cfg.EffectiveCTUDir())
	}
	if cfg.EffectiveThreads() < 1 {
		t.Errorf("expected positive threads, got %d", cfg.EffectiveThreads())
	}
	if cfg.EffectiveNoBuiltin() {
		t.Error("expected builtins enabled by default")
	}
	if got := cfg.EffectiveDBPath(); got != filepath.Join(DefaultCTUDir, "fnmap.db") {
		t.Errorf("unexpected db path %q", got)
	}
	if len(cfg.ExtraArgs()) != 0 {
		t.Errorf("expected no extra args, got %v", cfg.ExtraArgs())
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
ctu_dir: out/ctu
threads: 3
triple: aarch64-linux-gnu
include_dirs:
  - /opt/include
  - vendor
no_builtin: true
db_path: /tmp/index.db
skip_dirs: [third_party]
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := Load(dir)
	if cfg.EffectiveCTUDir() != "out/ctu" {
		t.Errorf("expected out/ctu, got %q", cfg.EffectiveCTUDir())
	}
	if cfg.EffectiveThreads() != 3 {
		t.Errorf("expected 3 threads, got %d", cfg.EffectiveThreads())
	}
	if cfg.EffectiveDBPath() != "/tmp/index.db" {
		t.Errorf("unexpected db path %q", cfg.EffectiveDBPath())
	}
	if !reflect.DeepEqual(cfg.SkipDirs, []string{"third_party"}) {
		t.Errorf("unexpected skip dirs %v", cfg.SkipDirs)
	}
	want := []string{"--target=aarch64-linux-gnu", "-I/opt/include", "-Ivendor", "-fno-builtin"}
	if got := cfg.ExtraArgs(); !reflect.DeepEqual(got, want) {
		t.Errorf("ExtraArgs = %v, want %v", got, want)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("threads: [valid: yaml"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := Load(dir)
	if cfg.Threads != nil || cfg.CTUDir != "" {
		t.Errorf("expected defaults on invalid yaml, got %+v", cfg)
	}
}

func TestZeroThreadsFallsBack(t *testing.T) {
	zero := 0
	cfg := &Config{Threads: &zero}
	if cfg.EffectiveThreads() < 1 {
		t.Errorf("expected fallback, got %d", cfg.EffectiveThreads())
	}
}
