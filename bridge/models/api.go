package models

// Request and response bodies of the bridge HTTP API.

type InitializeRequest struct {
	PublicKey string `json:"publicKey"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

// AmountRequest carries the amount as a string: it is parsed with the bridge's numeric
// policy, not by the JSON decoder.
type AmountRequest struct {
	Amount string `json:"amount"`
}

type AccessCodeRequest struct {
	AccessCode string `json:"accessCode"`
}

type SplitRequest struct {
	Subaccount string `json:"subaccount"`
	Bearer     Bearer `json:"bearer,omitempty"`
}

type ChallengeAnswer struct {
	Reference string `json:"reference,omitempty"`
	Response  string `json:"response"`
}

type BatchResponse struct {
	Applied []string          `json:"applied"`
	Failed  map[string]string `json:"failed,omitempty"`
}

type ChargeStatus string

const (
	ChargeStatusSucceeded          ChargeStatus = "succeeded"
	ChargeStatusAwaitingValidation ChargeStatus = "awaiting_validation"
)

type ChargeResponse struct {
	Status    ChargeStatus `json:"status"`
	Reference string       `json:"reference"`
}

type ErrorResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Reference string         `json:"reference,omitempty"`
	Batch     *BatchResponse `json:"batch,omitempty"`
}

// SessionView is the session as reported over the API. The card number is masked and
// the CVV and access code are never included.
type SessionView struct {
	State       string      `json:"state"`
	Initialized bool        `json:"initialized"`
	Card        *CardView   `json:"card,omitempty"`
	Charge      *ChargeView `json:"charge,omitempty"`
	Attempts    int         `json:"attempts"`
}

type CardView struct {
	Number string `json:"number"`
	Last4  string `json:"last4"`
	Expiry string `json:"expiry"`
	Brand  string `json:"brand"`
}

type ChargeView struct {
	Amount        *uint64           `json:"amount,omitempty"`
	Display       string            `json:"display,omitempty"`
	Currency      string            `json:"currency"`
	Email         string            `json:"email,omitempty"`
	HasAccessCode bool              `json:"hasAccessCode"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CustomFields  []CustomField     `json:"customFields,omitempty"`
	Subaccount    string            `json:"subaccount,omitempty"`
	Bearer        Bearer            `json:"bearer,omitempty"`
	Path          AuthorizationPath `json:"authorizationPath"`
}
