package customer

import "regexp"

var rfcPattern = regexp.MustCompile(`^[A-ZÑ&]{3,4}[0-9]{6}[A-Z0-9]{3}$`)

// IsValidRFC checks a Mexican tax id: 12 characters for companies, 13 for people.
func IsValidRFC(s string) bool {
	return rfcPattern.MatchString(s)
}
