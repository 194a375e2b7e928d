// Package isbn normalises book identifiers and converts ISBN-10 to ISBN-13.
package isbn

import (
	"strings"
)

// bookland is the EAN prefix prepended to every converted ISBN-10.
const bookland = "978"

// Normalize strips hyphens and spaces from an ISBN
func Normalize(isbn string) string {
	normalized := strings.ReplaceAll(isbn, "-", "")
	normalized = strings.ReplaceAll(normalized, " ", "")
	return normalized
}

// TenToThirteen converts an ISBN-10 into its ISBN-13 form.
// The second return value is false when the input is not exactly 10 characters
// or its first nine characters are not digits. The ISBN-10 check character is
// discarded, so a trailing X is accepted.
func TenToThirteen(isbn10 string) (string, bool) {
	if len(isbn10) != 10 {
		return "", false
	}
	if !digitsOnly(isbn10[:9]) {
		return "", false
	}

	core := bookland + isbn10[:9]
	return core + string(rune('0'+CheckDigit13(core))), true
}

// CheckDigit13 computes the ISBN-13 check digit for a 12-digit core.
// Digits at even indexes weigh 1, digits at odd indexes weigh 3.
func CheckDigit13(core string) int {
	sum := 0
	for i := 0; i < len(core); i++ {
		d := int(core[i] - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return (10 - sum%10) % 10
}

// IsISBN13 reports whether s is exactly 13 digits.
func IsISBN13(s string) bool {
	return len(s) == 13 && digitsOnly(s)
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
