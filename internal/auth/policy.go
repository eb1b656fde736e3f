package auth

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minNameLength     = 2
	minPasswordLength = 8
	minPlaceLength    = 3
)

var emailPattern = regexp.MustCompile(`(?i)^[A-Z0-9a-z]([A-Z0-9a-z._%+-]{0,30}[A-Z0-9a-z])?@([A-Z0-9a-z]([A-Z0-9a-z-]{0,30}[A-Z0-9a-z])?\.){1,5}[A-Za-z]{2,8}$`)

const (
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	digitChars  = "1234567890"
	symbolChars = "-=!@#$%^&*()_+<>/\\;:'\"[]{}~`"
)

// ValidEmail reports whether s looks like a deliverable address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// ValidName reports whether a first or last name is long enough.
func ValidName(s string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s)) >= minNameLength
}

// ValidPassword enforces the password policy: at least eight characters from the
// allowed set, covering three of upper case, lower case, digits and symbols.
func ValidPassword(s string) bool {
	if len(s) < minPasswordLength {
		return false
	}
	var upper, lower, digit, symbol bool
	for _, r := range s {
		switch {
		case strings.ContainsRune(upperChars, r):
			upper = true
		case strings.ContainsRune(lowerChars, r):
			lower = true
		case strings.ContainsRune(digitChars, r):
			digit = true
		case strings.ContainsRune(symbolChars, r):
			symbol = true
		default:
			return false
		}
	}
	score := 0
	for _, ok := range []bool{upper, lower, digit, symbol} {
		if ok {
			score++
		}
	}
	return score >= 3
}
