package cardgen

import (
	"strings"
	"testing"
)

func TestValidatePAN(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"4084084084084081", true},
		{"5060666666666666666", true},
		{"4084084084084082", false},
		{"4084 0840", false},
		{"123456789012", false},
		{"", false},
	}
	for _, c := range cases {
		err := ValidatePAN(c.in)
		if (err == nil) != c.ok {
			t.Fatalf("ValidatePAN(%q) ok=%v got err=%v", c.in, c.ok, err)
		}
	}
}

func TestGeneratePAN(t *testing.T) {
	for _, l := range []int{13, 16, 19} {
		pan, err := GeneratePAN("408408", l)
		if err != nil {
			t.Fatalf("GeneratePAN len=%d: %v", l, err)
		}
		if len(pan) != l || !strings.HasPrefix(pan, "408408") {
			t.Fatalf("GeneratePAN len=%d got %s", l, pan)
		}
		if err := ValidatePAN(pan); err != nil {
			t.Fatalf("generated PAN %s is not valid: %v", pan, err)
		}
	}
	if _, err := GeneratePAN("40a", 16); err == nil {
		t.Fatalf("expected error for non-digit prefix")
	}
	if _, err := GeneratePAN("4", 12); err == nil {
		t.Fatalf("expected error for short length")
	}
}

func TestMaskPAN(t *testing.T) {
	if got := MaskPAN("4084 0840 8408 4081"); got != "408408******4081" {
		t.Fatalf("MaskPAN got %s", got)
	}
	if got := MaskPAN("1234567"); got != "***4567" {
		t.Fatalf("MaskPAN short got %s", got)
	}
	if got := MaskPAN(""); got != "" {
		t.Fatalf("MaskPAN empty got %s", got)
	}
}

func TestLastN(t *testing.T) {
	if got := LastN("4084084084084081", 4); got != "4081" {
		t.Fatalf("LastN got %s", got)
	}
	if got := LastN("408", 4); got != "408" {
		t.Fatalf("LastN short got %s", got)
	}
}

func TestDetectBrand(t *testing.T) {
	cases := map[string]string{
		"4084084084084081":    BrandVisa,
		"5399838383838381":    BrandMastercard,
		"2221000000000009":    BrandMastercard,
		"5060666666666666666": BrandVerve,
		"6500000000000002":    BrandVerve,
		"378282246310005":     BrandAmex,
		"6011111111111117":    BrandDiscover,
		"30569309025904":      BrandDiners,
		"3530111333300000":    BrandJCB,
		"9999999999999995":    BrandUnknown,
		"":                    BrandUnknown,
		"abcd":                BrandUnknown,
	}
	for pan, want := range cases {
		if got := DetectBrand(pan); got != want {
			t.Fatalf("DetectBrand(%q) = %s want %s", pan, got, want)
		}
	}
}

func TestSignature(t *testing.T) {
	a := Signature("4084084084084081", []byte("pk_test_1"))
	b := Signature("4084 0840 8408 4081", []byte("pk_test_1"))
	c := Signature("4084084084084081", []byte("pk_test_2"))

	if a != b {
		t.Fatalf("formatting changed the signature: %s != %s", a, b)
	}
	if a == c {
		t.Fatalf("signature must depend on the key")
	}
	if len(a) != len("SIG_")+20 {
		t.Fatalf("unexpected signature %q", a)
	}
}
