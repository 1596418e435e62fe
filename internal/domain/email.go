package domain

import "regexp"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like local@domain.tld. The check is
// deliberately shallow and exact: no trimming, no case folding — the address
// is stored and compared byte-for-byte as submitted.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}
