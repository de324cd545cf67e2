package util

import (
	"crypto/subtle"
)

// ConstantTimeEqual compares two strings without leaking length-of-match
// timing. Used for webhook secret and admin token checks.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
