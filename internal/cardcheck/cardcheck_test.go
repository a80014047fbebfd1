package cardcheck

import (
	"testing"
	"time"

	"github.com/alovak/cardflow-bridge/bridge/models"
	"github.com/stretchr/testify/require"
)

func TestState(t *testing.T) {
	now := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		card models.Card
		want models.ValidationState
	}{
		{"valid visa", models.Card{Number: "4084084084084081", ExpiryMonth: 12, ExpiryYear: 25, CVV: "408"}, models.ValidationStateValid},
		{"four digit year", models.Card{Number: "4084084084084081", ExpiryMonth: 12, ExpiryYear: 2025, CVV: "408"}, models.ValidationStateValid},
		{"spaces in number", models.Card{Number: "4084 0840 8408 4081", ExpiryMonth: 1, ExpiryYear: 25, CVV: "408"}, models.ValidationStateValid},
		{"valid verve", models.Card{Number: "5060666666666666666", ExpiryMonth: 9, ExpiryYear: 26, CVV: "123"}, models.ValidationStateValid},
		{"amex needs four digit cvv", models.Card{Number: "378282246310005", ExpiryMonth: 9, ExpiryYear: 26, CVV: "123"}, models.ValidationStateInvalid},
		{"amex with four digit cvv", models.Card{Number: "378282246310005", ExpiryMonth: 9, ExpiryYear: 26, CVV: "1234"}, models.ValidationStateValid},
		{"bad luhn", models.Card{Number: "4084084084084082", ExpiryMonth: 12, ExpiryYear: 25, CVV: "408"}, models.ValidationStateInvalid},
		{"expired", models.Card{Number: "4084084084084081", ExpiryMonth: 12, ExpiryYear: 24, CVV: "408"}, models.ValidationStateInvalid},
		{"month 13", models.Card{Number: "4084084084084081", ExpiryMonth: 13, ExpiryYear: 25, CVV: "408"}, models.ValidationStateInvalid},
		{"letters in number", models.Card{Number: "4084abcd84084081", ExpiryMonth: 12, ExpiryYear: 25, CVV: "408"}, models.ValidationStateInvalid},
		{"letters in cvv", models.Card{Number: "4084084084084081", ExpiryMonth: 12, ExpiryYear: 25, CVV: "4x8"}, models.ValidationStateInvalid},
		{"month parsed to zero", models.Card{Number: "4084084084084081", ExpiryMonth: 0, ExpiryYear: 25, CVV: "408"}, models.ValidationStateIncomplete},
		{"short number", models.Card{Number: "408408", ExpiryMonth: 12, ExpiryYear: 25, CVV: "408"}, models.ValidationStateIncomplete},
		{"short cvv", models.Card{Number: "4084084084084081", ExpiryMonth: 12, ExpiryYear: 25, CVV: "40"}, models.ValidationStateIncomplete},
		{"empty", models.Card{}, models.ValidationStateIncomplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, State(tt.card, now, time.UTC))
		})
	}
}

func TestState_ExpiryMonthEndsInLocation(t *testing.T) {
	lagos, err := time.LoadLocation("Africa/Lagos")
	require.NoError(t, err)

	card := models.Card{Number: "4084084084084081", ExpiryMonth: 12, ExpiryYear: 25, CVV: "408"}

	// 2025-12-31 23:30 UTC is already January in Lagos (UTC+1)
	at := time.Date(2025, time.December, 31, 23, 30, 0, 0, time.UTC)
	require.Equal(t, models.ValidationStateValid, State(card, at, time.UTC))
	require.Equal(t, models.ValidationStateInvalid, State(card, at, lagos))
}

func TestBrand(t *testing.T) {
	require.Equal(t, "Visa", Brand("4084084084084081"))
	require.Equal(t, "Verve", Brand("5060666666666666666"))
	require.Equal(t, "Mastercard", Brand("5399838383838381"))
	require.Equal(t, "Unknown", Brand(""))
}
