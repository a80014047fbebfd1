package main

import "testing"

func TestSplitExpiry(t *testing.T) {
	cases := []struct {
		in          string
		month, year string
		ok          bool
	}{
		{"12/25", "12", "25", true},
		{"01/2030", "01", "2030", true},
		{"1225", "12", "25", true},
		{" 12/25 ", "12", "25", true},
		{"12/", "", "", false},
		{"122", "", "", false},
	}
	for _, c := range cases {
		month, year, err := splitExpiry(c.in)
		if (err == nil) != c.ok {
			t.Fatalf("splitExpiry(%q) err = %v, want ok=%t", c.in, err, c.ok)
		}
		if month != c.month || year != c.year {
			t.Fatalf("splitExpiry(%q) = %q, %q want %q, %q", c.in, month, year, c.month, c.year)
		}
	}
}

func TestParseKV(t *testing.T) {
	got, err := parseKV("order_id=42, plan = gold")
	if err != nil {
		t.Fatalf("parseKV: %v", err)
	}
	if got["order_id"] != "42" || got["plan"] != "gold" || len(got) != 2 {
		t.Fatalf("parseKV = %v", got)
	}

	if _, err := parseKV("novalue"); err == nil {
		t.Fatalf("parseKV(novalue) should fail")
	}
}

func TestFieldList(t *testing.T) {
	var f fieldList
	for _, s := range []string{"Invoice=INV-1", "Cart=3 items", "Invoice=INV-2"} {
		if err := f.Set(s); err != nil {
			t.Fatalf("Set(%q): %v", s, err)
		}
	}
	if got := f.String(); got != "Invoice=INV-1,Cart=3 items,Invoice=INV-2" {
		t.Fatalf("String() = %q", got)
	}
	if err := f.Set("=x"); err == nil {
		t.Fatalf("Set(=x) should fail")
	}
}
