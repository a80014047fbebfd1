package models

// Transaction is what a successful charge hands back. The reference still has to be
// verified against the processor by the caller's backend.
type Transaction struct {
	Reference string `json:"reference"`
}

type ChallengeKind string

const (
	ChallengeOTP     ChallengeKind = "otp"
	ChallengeThreeDS ChallengeKind = "3ds"
)

// Challenge is an interactive step (OTP or 3-D Secure) the processor asks for mid-authorization.
type Challenge struct {
	Reference string        `json:"reference"`
	Kind      ChallengeKind `json:"kind"`
	Message   string        `json:"message,omitempty"`
	URL       string        `json:"url,omitempty"`
}
