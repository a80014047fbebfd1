package models

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is applied to every charge unless the bridge is configured otherwise.
const DefaultCurrency = "NGN"

// ReservedMetadataKey holds the custom fields inside the metadata payload the processor receives.
const ReservedMetadataKey = "custom_fields"

var ErrReservedKey = errors.New("reserved key")

// Bearer decides who pays the processor fee on a split payment.
type Bearer string

const (
	BearerAccount    Bearer = "account"
	BearerSubaccount Bearer = "subaccount"
)

func (b Bearer) Valid() bool {
	return b == BearerAccount || b == BearerSubaccount
}

type AuthorizationPath string

const (
	AuthorizationPathNone        AuthorizationPath = "none"
	AuthorizationPathAccessCode  AuthorizationPath = "access_code"
	AuthorizationPathEmailAmount AuthorizationPath = "email_amount"
)

type CustomField struct {
	Label string `json:"display_name"`
	Value string `json:"value"`
}

// Charge carries the transaction parameters staged for the next authorization.
type Charge struct {
	// Amount is in the smallest currency unit (kobo for NGN).
	Amount       uint64
	HasAmount    bool
	Currency     string
	Email        string
	AccessCode   string
	Metadata     map[string]string
	CustomFields []CustomField
	Subaccount   string
	Bearer       Bearer
}

func NewCharge() *Charge {
	return &Charge{
		Currency: DefaultCurrency,
		Metadata: make(map[string]string),
	}
}

// SetMetadataValue puts a single metadata key. Re-putting a key overwrites it.
func (c *Charge) SetMetadataValue(key, value string) error {
	if key == "" {
		return fmt.Errorf("metadata key is empty")
	}
	if key == ReservedMetadataKey {
		return fmt.Errorf("metadata key %q: %w", key, ErrReservedKey)
	}
	if c.Metadata == nil {
		c.Metadata = make(map[string]string)
	}
	c.Metadata[key] = value
	return nil
}

// SetCustomFieldValue appends a custom field. Duplicate labels are kept in order.
func (c *Charge) SetCustomFieldValue(value, displayedAs string) error {
	if displayedAs == "" {
		return fmt.Errorf("custom field label is empty")
	}
	c.CustomFields = append(c.CustomFields, CustomField{Label: displayedAs, Value: value})
	return nil
}

func (c *Charge) SetAmount(amount uint64) {
	c.Amount = amount
	c.HasAmount = true
}

// AuthorizationPath reports how the processor will authorize this charge.
// An access code wins over email and amount.
func (c *Charge) AuthorizationPath() AuthorizationPath {
	if c.AccessCode != "" {
		return AuthorizationPathAccessCode
	}
	if c.Email != "" && c.HasAmount {
		return AuthorizationPathEmailAmount
	}
	return AuthorizationPathNone
}

// MajorUnits renders the amount in major currency units, e.g. 10000 kobo -> 100.00.
func (c *Charge) MajorUnits() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(c.Amount), -2)
}

// Clone returns a deep copy.
func (c *Charge) Clone() Charge {
	out := *c
	out.Metadata = make(map[string]string, len(c.Metadata))
	for k, v := range c.Metadata {
		out.Metadata[k] = v
	}
	out.CustomFields = append([]CustomField(nil), c.CustomFields...)
	return out
}
