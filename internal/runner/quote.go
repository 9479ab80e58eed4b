package runner

import "strings"

// QuotePOSIX single-quotes s for sh when it contains anything but safe
// characters.
func QuotePOSIX(s string) string {
	if s == "" {
		return "''"
	}
	if isBare(s, "-_./:=@%+,") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// QuoteCmd double-quotes s for a cmd.exe line. Embedded quotes are
// backslash-escaped the way the MSVC argument parser expects.
func QuoteCmd(s string) string {
	if s == "" {
		return `""`
	}
	if isBare(s, `-_./:=@+,\`) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func isBare(s, safe string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return false
		}
		return !strings.ContainsRune(safe, r)
	}) < 0
}
