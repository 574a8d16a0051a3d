package frontend

import (
	"path/filepath"
	"strings"

	"github.com/DeusData/ctu-fnmap/internal/lang"
	"github.com/DeusData/ctu-fnmap/internal/target"
)

// settings are the compile options the frontend honours. Everything else on
// the command line is ignored.
type settings struct {
	quoteDirs   []string
	includeDirs []string
	systemDirs  []string
	triple      target.Triple
	noBuiltin   bool
	language    lang.Language
	args        []string
}

// takesValue lists options whose value may be the next argument.
var takesValue = map[string]bool{
	"-I": true, "-iquote": true, "-isystem": true, "-idirafter": true,
	"-target": true, "-x": true, "-o": true, "-D": true, "-U": true,
	"-include": true, "-MF": true, "-MT": true, "-MQ": true, "-arch": true,
}

func parseSettings(job Job) settings {
	s := settings{triple: target.Host(), language: job.Language, args: job.Args}
	dir := func(d string) string {
		if filepath.IsAbs(d) || job.Directory == "" {
			return filepath.Clean(d)
		}
		return filepath.Join(job.Directory, d)
	}

	var m32, m64 bool
	args := job.Args
	for i := 0; i < len(args); i++ {
		arg := args[i]
		opt, val, joined := splitOption(arg)
		if !joined && takesValue[opt] && i+1 < len(args) {
			i++
			val = args[i]
		}
		switch opt {
		case "-I":
			s.includeDirs = append(s.includeDirs, dir(val))
		case "-iquote":
			s.quoteDirs = append(s.quoteDirs, dir(val))
		case "-isystem", "-idirafter":
			s.systemDirs = append(s.systemDirs, dir(val))
		case "-target", "--target":
			s.triple = target.ParseTriple(val)
		case "-m32":
			m32, m64 = true, false
		case "-m64":
			m32, m64 = false, true
		case "-fno-builtin":
			s.noBuiltin = true
		case "-x":
			if l, ok := lang.FromFlag(val); ok && s.language == "" {
				s.language = l
			}
		}
	}
	switch {
	case m32:
		s.triple = s.triple.Variant32()
	case m64:
		s.triple = s.triple.Variant64()
	}
	if s.language == "" {
		if l, ok := lang.LanguageForExtension(filepath.Ext(job.File)); ok {
			s.language = l
		} else {
			s.language = lang.C
		}
	}
	return s
}

// splitOption separates an option from a value written in the same
// argument ("-Iinc", "--target=x86_64-linux-gnu").
func splitOption(arg string) (opt, val string, joined bool) {
	if o, v, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(o, "--") {
		return o, v, true
	}
	for _, p := range []string{"-iquote", "-isystem", "-idirafter", "-I", "-D", "-U", "-x"} {
		if strings.HasPrefix(arg, p) && len(arg) > len(p) {
			return p, arg[len(p):], true
		}
	}
	return arg, "", false
}
