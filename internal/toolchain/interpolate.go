package toolchain

import (
	"regexp"
	"strings"
)

// varPattern matches ${name} references.
var varPattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// escapePlaceholder temporarily replaces escaped variable syntax ($${var}).
// NUL bytes cannot appear in process arguments.
const escapePlaceholder = "\x00ESCAPED_VAR\x00"

// Interpolate replaces ${var} with values from vars.
// Escaping: $${var} becomes ${var} (literal). Unknown variables are kept as-is.
func Interpolate(arg string, vars map[string]string) string {
	result := strings.ReplaceAll(arg, "$${", escapePlaceholder)

	result = varPattern.ReplaceAllStringFunc(result, func(match string) string {
		name := match[2 : len(match)-1]
		if val, ok := vars[name]; ok {
			return val
		}
		return match
	})

	return strings.ReplaceAll(result, escapePlaceholder, "${")
}

// InterpolateArgv interpolates every argument of argv. An install target
// with no extras (".[]") collapses to ".".
func InterpolateArgv(argv []string, vars map[string]string) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		s := Interpolate(arg, vars)
		if strings.HasSuffix(arg, "[${extras}]") {
			s = strings.TrimSuffix(s, "[]")
		}
		out[i] = s
	}
	return out
}

// Join renders argv as a single display string, quoting arguments with spaces.
func Join(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t\"'$") {
			parts[i] = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		} else {
			parts[i] = a
		}
	}
	return strings.Join(parts, " ")
}
