package expiry

import (
	"fmt"
	"strconv"
	"time"
)

var defaultLoc = time.UTC

// SetDefaultExpiryLocation sets the default time location for expiry calculations (fallback UTC).
func SetDefaultExpiryLocation(loc *time.Location) {
	if loc != nil {
		defaultLoc = loc
	}
}

// DefaultLocation returns the location used when callers pass a nil one.
func DefaultLocation() *time.Location {
	return defaultLoc
}

// NormalizeYear accepts a two-digit (25) or four-digit (2025) year and returns the four-digit form.
func NormalizeYear(year uint) (uint, error) {
	switch {
	case year < 100:
		return 2000 + year, nil
	case year >= 2000 && year <= 2099:
		return year, nil
	default:
		return 0, fmt.Errorf("expiry year must be YY or 20YY (got %d)", year)
	}
}

// YYMMFromParts converts a card entry month/year into YYMM.
func YYMMFromParts(month, year uint) (string, error) {
	if month < 1 || month > 12 {
		return "", fmt.Errorf("expiry month must be 01..12")
	}
	full, err := NormalizeYear(year)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d%02d", full%100, month), nil
}

// CardFace returns expiry as MM/YY, the way it is printed on the card.
func CardFace(month, year uint) string {
	return fmt.Sprintf("%02d/%02d", month, year%100)
}

// ParseYYMMEndOfMonth parses YYMM into the last instant of that month in loc.
func ParseYYMMEndOfMonth(yymm string, loc *time.Location) (time.Time, error) {
	if err := ValidateYYMM(yymm); err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = defaultLoc
	}
	yy, _ := strconv.Atoi(yymm[:2])
	mm, _ := strconv.Atoi(yymm[2:])
	firstNext := time.Date(2000+yy, time.Month(mm), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
	return firstNext.Add(-time.Nanosecond), nil
}

// IsExpired reports whether time 'at' is strictly after the end of YYMM month in loc.
func IsExpired(yymm string, at time.Time, loc *time.Location) (bool, error) {
	end, err := ParseYYMMEndOfMonth(yymm, loc)
	if err != nil {
		return false, err
	}
	return at.In(end.Location()).After(end), nil
}

// ValidateYYMM checks the expiry is four digits with a month in 01..12.
func ValidateYYMM(yymm string) error {
	if len(yymm) != 4 {
		return fmt.Errorf("expiry must be YYMM (4 digits)")
	}
	for i := 0; i < 4; i++ {
		if yymm[i] < '0' || yymm[i] > '9' {
			return fmt.Errorf("expiry must be digits: YYMM")
		}
	}
	mm := int(yymm[2]-'0')*10 + int(yymm[3]-'0')
	if mm < 1 || mm > 12 {
		return fmt.Errorf("expiry month must be 01..12")
	}
	return nil
}
