package discover

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/DeusData/ctu-fnmap/internal/frontend"
	"github.com/DeusData/ctu-fnmap/internal/lang"
)

// CompileCommand is one entry of a JSON compilation database.
type CompileCommand struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Arguments []string `json:"arguments,omitempty"`
	Command   string   `json:"command,omitempty"`
	Output    string   `json:"output,omitempty"`
}

// LoadCompileDB reads a compilation database and returns one job per
// source file. A file compiled several times keeps its first command.
// Entries for non-source files are ignored.
func LoadCompileDB(path string) ([]frontend.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []CompileCommand
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	seen := map[string]bool{}
	var jobs []frontend.Job
	for i, e := range entries {
		if !lang.IsSource(e.File) {
			continue
		}
		file := e.File
		if !filepath.IsAbs(file) {
			file = filepath.Join(e.Directory, file)
		}
		if seen[file] {
			continue
		}
		args, err := e.compilerArgs()
		if err != nil {
			return nil, fmt.Errorf("%s: entry %d: %w", path, i, err)
		}
		seen[file] = true
		jobs = append(jobs, frontend.Job{File: file, Directory: e.Directory, Args: args})
	}
	return jobs, nil
}

// compilerArgs returns the arguments after the compiler, without leading
// environment assignments, source file operands or the output option.
func (c CompileCommand) compilerArgs() ([]string, error) {
	argv := c.Arguments
	if len(argv) == 0 {
		if strings.TrimSpace(c.Command) == "" {
			return nil, errors.New("neither arguments nor command")
		}
		p := shellwords.NewParser()
		p.ParseEnv = false
		p.ParseBacktick = false
		var err error
		if argv, err = p.Parse(c.Command); err != nil {
			return nil, fmt.Errorf("split command: %w", err)
		}
	}
	for len(argv) > 0 && isEnvAssignment(argv[0]) {
		argv = argv[1:]
	}
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}

	var args []string
	for i := 1; i < len(argv); i++ {
		a := argv[i]
		switch {
		case a == "-o":
			i++
		case strings.HasPrefix(a, "-o") && len(a) > 2:
		case a == "-c":
		case !strings.HasPrefix(a, "-") && lang.IsSource(a):
		default:
			args = append(args, a)
		}
	}
	return args, nil
}

func isEnvAssignment(s string) bool {
	name, _, ok := strings.Cut(s, "=")
	return ok && name != "" && !strings.HasPrefix(name, "-")
}
