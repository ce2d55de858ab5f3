package config

import (
	"os"
	"regexp"
	"strings"
)

// envVarPatterns implements three-tier expansion over every string value:
// ${VAR:-default}, ${VAR}, then bare $VAR, in that order. A default fires
// whenever VAR is unset or empty; the two forms without a default expand
// such a variable to the empty string.
var envVarPatterns = struct {
	withDefault *regexp.Regexp
	braced      *regexp.Regexp
	simple      *regexp.Regexp
}{
	withDefault: regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`),
	braced:      regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`),
	simple:      regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`),
}

// expandEnvVars substitutes environment variable references in s. Absent
// variables with no default expand to the empty string rather than
// erroring.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}

	s = envVarPatterns.withDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.withDefault.FindStringSubmatch(match)
		if len(parts) != 3 {
			return match
		}
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})

	s = envVarPatterns.braced.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.braced.FindStringSubmatch(match)
		if len(parts) != 2 {
			return match
		}
		return os.Getenv(parts[1])
	})

	s = envVarPatterns.simple.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.simple.FindStringSubmatch(match)
		if len(parts) != 2 {
			return match
		}
		return os.Getenv(parts[1])
	})

	return s
}

// expandStrings walks a freshly YAML-unmarshaled document in place,
// expanding every string value found in maps and slices.
func expandStrings(v any) any {
	switch val := v.(type) {
	case string:
		return expandEnvVars(val)
	case map[string]any:
		for k, inner := range val {
			val[k] = expandStrings(inner)
		}
		return val
	case []any:
		for i, inner := range val {
			val[i] = expandStrings(inner)
		}
		return val
	default:
		return v
	}
}
