package domain

import (
	"fmt"
	"strings"
)

// ValidatePattern checks that pattern uses only the supported glob syntax:
// '*', '?' and literal characters. Character classes and escapes are not part
// of the pattern language and are rejected rather than silently mismatched.
func ValidatePattern(pattern string) error {
	if strings.ContainsAny(pattern, `[]\`) {
		return fmt.Errorf("%w: %q (only '*', '?' and literal characters are supported)", ErrInvalidPattern, pattern)
	}
	return nil
}

// matchGlob reports whether name matches pattern, where '*' matches any run
// of characters (including none) and '?' matches exactly one character.
// Iterative matcher with single-star backtracking, over runes so '?' consumes
// a whole character rather than a single byte.
func matchGlob(pattern, name string) bool {
	p := []rune(pattern)
	n := []rune(name)
	pi, ni := 0, 0
	starIdx, backtrack := -1, 0
	for ni < len(n) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == n[ni]):
			pi++
			ni++
		case pi < len(p) && p[pi] == '*':
			starIdx, backtrack = pi, ni
			pi++
		case starIdx >= 0:
			pi = starIdx + 1
			backtrack++
			ni = backtrack
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
