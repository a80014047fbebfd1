package models

// CardDetails is the raw card entry as typed by the customer.
type CardDetails struct {
	CardNumber  string `json:"cardNumber" validate:"required"`
	ExpiryMonth string `json:"expiryMonth" validate:"required"`
	ExpiryYear  string `json:"expiryYear" validate:"required"`
	CVV         string `json:"cvv" validate:"required"`
}

// Card is the card staged in the session. Nothing here has been validated yet;
// month and year are whatever the lenient parse produced (0 when unparseable).
type Card struct {
	Number      string
	ExpiryMonth uint
	ExpiryYear  uint
	CVV         string
}

type ValidationState int

const (
	ValidationStateValid ValidationState = iota
	ValidationStateInvalid
	ValidationStateIncomplete
)

func (s ValidationState) String() string {
	switch s {
	case ValidationStateValid:
		return "valid"
	case ValidationStateInvalid:
		return "invalid"
	case ValidationStateIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

type InitializeResult struct {
	Initialized bool `json:"initialized"`
}

type CardValidationResult struct {
	IsValid bool `json:"is_valid"`
}

type CardTypeResult struct {
	CardType string `json:"card_type"`
}
