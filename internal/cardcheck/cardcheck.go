// Package cardcheck is the field-level card validator shared by the processors.
package cardcheck

import (
	"time"

	"github.com/alovak/cardflow-bridge/bridge/models"
	"github.com/alovak/cardflow-bridge/internal/cardgen"
	"github.com/alovak/cardflow-bridge/internal/expiry"
)

const minPANLength = 13

// State classifies a staged card the way a card form does while the customer types:
// missing or too short fields are incomplete, anything that can never become valid
// (bad Luhn digit, month 13, expired) is invalid.
//
// loc is the timezone the expiry month ends in; nil means expiry.DefaultLocation.
func State(card models.Card, now time.Time, loc *time.Location) models.ValidationState {
	pan := cardgen.NormalizePAN(card.Number)

	if pan != "" && !cardgen.IsDigits(pan) {
		return models.ValidationStateInvalid
	}
	if card.CVV != "" && (!cardgen.IsDigits(card.CVV) || len(card.CVV) > 4) {
		return models.ValidationStateInvalid
	}
	if card.ExpiryMonth > 12 {
		return models.ValidationStateInvalid
	}

	if len(pan) < minPANLength || len(card.CVV) < 3 || card.ExpiryMonth == 0 || card.ExpiryYear == 0 {
		return models.ValidationStateIncomplete
	}

	if err := cardgen.ValidatePAN(pan); err != nil {
		return models.ValidationStateInvalid
	}
	if Brand(pan) == cardgen.BrandAmex && len(card.CVV) != 4 {
		return models.ValidationStateInvalid
	}

	yymm, err := expiry.YYMMFromParts(card.ExpiryMonth, card.ExpiryYear)
	if err != nil {
		return models.ValidationStateInvalid
	}
	expired, err := expiry.IsExpired(yymm, now, loc)
	if err != nil || expired {
		return models.ValidationStateInvalid
	}

	return models.ValidationStateValid
}

// Brand returns the card network name for number.
func Brand(number string) string {
	return cardgen.DetectBrand(number)
}
