package cliutil

import (
	"fmt"
	"strings"
)

// ParseOptions reads -o arguments. One argument may carry several
// space-separated name=value pairs; a bare name means name=true.
func ParseOptions(raw []string) (map[string]string, error) {
	out := map[string]string{}
	for _, arg := range raw {
		for _, field := range strings.Fields(arg) {
			name, value, ok := strings.Cut(field, "=")
			if name == "" {
				return nil, fmt.Errorf("bad option %q", field)
			}
			if !ok {
				value = "true"
			}
			out[name] = value
		}
	}
	return out, nil
}
