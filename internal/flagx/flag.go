// Package flagx helps several loaders share one command line: each loader
// picks out only the flags it owns and parses them on a private FlagSet.
package flagx

import (
	"flag"
	"io"
	"os"
	"strings"
)

// FilterArgs keeps the flags listed in allowed, together with their values,
// and drops everything else. Both "-name value" and "-name=value" forms are
// recognised. A following argument that starts with "-" is never taken as a
// value.
func FilterArgs(args []string, allowed []string) []string {
	known := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		known[f] = true
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if known[name] {
				out = append(out, arg)
			}
			continue
		}

		if !known[arg] {
			continue
		}
		out = append(out, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, args[i+1])
			i++
		}
	}
	return out
}

// LookupString returns the value of the last occurrence of any of names
// (given without dashes) in args, or "" when none is present.
func LookupString(args []string, names ...string) string {
	allowed := make([]string, 0, len(names)*2)
	for _, n := range names {
		allowed = append(allowed, "-"+n, "--"+n)
	}

	var value string
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	for _, n := range names {
		fs.StringVar(&value, n, "", "")
	}
	_ = fs.Parse(FilterArgs(args, allowed))
	return value
}

// ConfigFile returns the JSON config path passed with -c or -config.
func ConfigFile() string {
	return LookupString(os.Args[1:], "c", "config")
}

// EnvFile returns the dotenv path passed with -env-file.
func EnvFile() string {
	return LookupString(os.Args[1:], "env-file")
}
