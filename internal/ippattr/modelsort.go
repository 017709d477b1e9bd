package ippattr

import (
	"strconv"
	"strings"
)

// ModelCompare orders make-and-model strings so that embedded numbers sort
// numerically ("LaserJet 4" before "LaserJet 40"). It returns -1, 0 or 1.
func ModelCompare(a, b string) int {
	for a != "" && b != "" {
		if a[0] != b[0] && !isDigit(a[0]) && !isDigit(b[0]) {
			return compareByte(a[0], b[0])
		}
		runA, digitA := leadingRun(a)
		runB, digitB := leadingRun(b)
		switch {
		case digitA && !digitB:
			return -1
		case !digitA && digitB:
			return 1
		}

		var cmp int
		if digitA {
			na, _ := strconv.Atoi(runA)
			nb, _ := strconv.Atoi(runB)
			cmp = compareInt(na, nb)
		} else {
			n := min(len(runA), len(runB))
			cmp = strings.Compare(runA[:n], runB[:n])
		}
		if cmp != 0 {
			return cmp
		}
		if len(runA) != len(runB) {
			return compareInt(len(runA), len(runB))
		}
		a, b = a[len(runA):], b[len(runB):]
	}
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	default:
		return 1
	}
}

func leadingRun(s string) (string, bool) {
	digit := isDigit(s[0])
	end := 1
	for end < len(s) && isDigit(s[end]) == digit {
		end++
	}
	return s[:end], digit
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func compareByte(a, b byte) int {
	if a < b {
		return -1
	}
	return 1
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
