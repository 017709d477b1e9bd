package cliutil

import (
	"strconv"
	"strings"
)

// ParseJobID accepts "123" and "office-123".
func ParseJobID(arg string) (int, bool) {
	if i := strings.LastIndexByte(arg, '-'); i >= 0 {
		arg = arg[i+1:]
	}
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
