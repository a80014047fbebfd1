package expiry

import (
	"testing"
	"time"
)

func TestNormalizeYear(t *testing.T) {
	cases := []struct {
		in   uint
		want uint
		ok   bool
	}{
		{25, 2025, true}, {0, 2000, true}, {2031, 2031, true},
		{1999, 0, false}, {250, 0, false},
	}
	for _, c := range cases {
		got, err := NormalizeYear(c.in)
		if (err == nil) != c.ok || got != c.want {
			t.Fatalf("NormalizeYear(%d) = %d err=%v want %d ok=%v", c.in, got, err, c.want, c.ok)
		}
	}
}

func TestYYMMFromParts(t *testing.T) {
	if got, err := YYMMFromParts(12, 25); err != nil || got != "2512" {
		t.Fatalf("YYMMFromParts(12, 25) got %s err=%v", got, err)
	}
	if got, err := YYMMFromParts(3, 2030); err != nil || got != "3003" {
		t.Fatalf("YYMMFromParts(3, 2030) got %s err=%v", got, err)
	}
	if _, err := YYMMFromParts(13, 25); err == nil {
		t.Fatalf("expected error for month 13")
	}
	if _, err := YYMMFromParts(0, 25); err == nil {
		t.Fatalf("expected error for month 0")
	}
}

func TestCardFace(t *testing.T) {
	if got := CardFace(4, 2030); got != "04/30" {
		t.Fatalf("CardFace got %s", got)
	}
}

func TestParseYYMMEndOfMonth(t *testing.T) {
	// 2030-02 (non-leap): expect 28th 23:59:59.999999999
	ts, err := ParseYYMMEndOfMonth("3002", time.UTC)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	want := time.Date(2030, time.February, 28, 23, 59, 59, 999999999, time.UTC)
	if !ts.Equal(want) {
		t.Fatalf("got %v want %v", ts, want)
	}

	ts, err = ParseYYMMEndOfMonth("2812", time.UTC)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	want = time.Date(2028, time.December, 31, 23, 59, 59, 999999999, time.UTC)
	if !ts.Equal(want) {
		t.Fatalf("got %v want %v", ts, want)
	}
}

func TestValidateYYMM(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"3002", true}, {"9912", true}, {"0001", true},
		{"123", false}, {"12a4", false}, {"3013", false}, {"0000", false},
	}
	for _, c := range cases {
		err := ValidateYYMM(c.in)
		if (err == nil) != c.ok {
			t.Fatalf("ValidateYYMM(%s) ok=%v got err=%v", c.in, c.ok, err)
		}
	}
}

func TestIsExpired(t *testing.T) {
	yymm := "2512"
	end, _ := ParseYYMMEndOfMonth(yymm, time.UTC)

	expired, err := IsExpired(yymm, end, time.UTC)
	if err != nil || expired {
		t.Fatalf("expected not expired at end, got expired=%v err=%v", expired, err)
	}
	expired, err = IsExpired(yymm, end.Add(time.Nanosecond), time.UTC)
	if err != nil || !expired {
		t.Fatalf("expected expired after %v, got expired=%v err=%v", end, expired, err)
	}
}
