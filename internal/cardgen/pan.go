package cardgen

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// GeneratePAN returns a Luhn-valid PAN of totalLen digits (13..19) starting with prefix.
// The sandbox uses it to mint throwaway cards that are not in its test-card table.
func GeneratePAN(prefix string, totalLen int) (string, error) {
	if prefix == "" || !IsDigits(prefix) {
		return "", fmt.Errorf("prefix must be digits only")
	}
	if totalLen < 13 || totalLen > 19 {
		return "", fmt.Errorf("total length must be 13..19")
	}
	fill := totalLen - 1 - len(prefix)
	if fill < 0 {
		return "", fmt.Errorf("prefix too long: %s", prefix)
	}

	digits, err := randomDigits(fill)
	if err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}

	body := prefix + digits
	return body + luhnCheckDigit(body), nil
}

// randomDigits uses rejection sampling so every digit is equally likely.
func randomDigits(count int) (string, error) {
	if count <= 0 {
		return "", nil
	}
	const threshold = 250 // 256 - (256 % 10)
	var sb strings.Builder
	sb.Grow(count)
	buf := make([]byte, 64)
	for sb.Len() < count {
		n, err := rand.Read(buf)
		if err != nil {
			return "", err
		}
		for i := 0; i < n && sb.Len() < count; i++ {
			if b := buf[i]; b < threshold {
				sb.WriteByte('0' + (b % 10))
			}
		}
	}
	return sb.String(), nil
}

func luhnCheckDigit(body string) string {
	sum, dbl := 0, true
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		if dbl {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		dbl = !dbl
	}
	cd := (10 - (sum % 10)) % 10
	return string('0' + byte(cd))
}

// ValidatePAN checks that pan is 13..19 digits with a correct Luhn check digit.
func ValidatePAN(pan string) error {
	if pan == "" {
		return fmt.Errorf("pan is required")
	}
	if !IsDigits(pan) {
		return fmt.Errorf("pan must contain digits only")
	}
	if l := len(pan); l < 13 || l > 19 {
		return fmt.Errorf("pan length must be 13..19 digits (got %d)", l)
	}

	body := pan[:len(pan)-1]
	if pan[len(pan)-1] != luhnCheckDigit(body)[0] {
		return fmt.Errorf("invalid luhn check digit")
	}
	return nil
}

func IsDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// LastN returns the last n bytes of s, or s itself when it is shorter.
func LastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// MaskPAN keeps the first six and last four digits. Anything logged by the bridge goes through it.
func MaskPAN(pan string) string {
	cleaned := NormalizePAN(pan)
	n := len(cleaned)
	if n == 0 {
		return ""
	}
	if n <= 4 {
		return strings.Repeat("*", n)
	}
	if n < 10 {
		return strings.Repeat("*", n-4) + cleaned[n-4:]
	}
	return cleaned[:6] + strings.Repeat("*", n-10) + cleaned[n-4:]
}

// NormalizePAN strips spaces, tabs and dashes that customers type into card fields.
func NormalizePAN(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-':
			return -1
		default:
			return r
		}
	}, s)
}
