package cardgen

import "strconv"

const (
	BrandVisa       = "Visa"
	BrandMastercard = "Mastercard"
	BrandVerve      = "Verve"
	BrandAmex       = "American Express"
	BrandDiscover   = "Discover"
	BrandDiners     = "Diners Club"
	BrandJCB        = "JCB"
	BrandUnknown    = "Unknown"
)

type binRange struct {
	digits    int // prefix length compared
	low, high int
	brand     string
}

// Order matters: Verve's 6500 must be checked before Discover's 65.
var binRanges = []binRange{
	{4, 5060, 5061, BrandVerve},
	{4, 5078, 5079, BrandVerve},
	{4, 6500, 6500, BrandVerve},
	{2, 34, 34, BrandAmex},
	{2, 37, 37, BrandAmex},
	{2, 51, 55, BrandMastercard},
	{4, 2221, 2720, BrandMastercard},
	{4, 6011, 6011, BrandDiscover},
	{2, 65, 65, BrandDiscover},
	{3, 644, 649, BrandDiscover},
	{3, 300, 305, BrandDiners},
	{2, 36, 36, BrandDiners},
	{2, 38, 39, BrandDiners},
	{4, 3528, 3589, BrandJCB},
	{1, 4, 4, BrandVisa},
}

// DetectBrand derives the card network from the leading digits of a PAN.
// It only looks at the prefix, so partially typed numbers are recognized too.
func DetectBrand(pan string) string {
	pan = NormalizePAN(pan)
	if pan == "" || !IsDigits(pan) {
		return BrandUnknown
	}
	for _, r := range binRanges {
		if len(pan) < r.digits {
			continue
		}
		prefix, err := strconv.Atoi(pan[:r.digits])
		if err != nil {
			continue
		}
		if prefix >= r.low && prefix <= r.high {
			return r.brand
		}
	}
	return BrandUnknown
}
