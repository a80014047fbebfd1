package bridge

import (
	"context"

	"github.com/alovak/cardflow-bridge/bridge/models"
)

// Processor is what the bridge needs from the payment processor's SDK.
// Tokenization, network authorization and fraud checks all live behind it.
type Processor interface {
	// Name labels logs and metrics.
	Name() string
	// SetCredential configures the default public key for later calls.
	SetCredential(publicKey string)
	// Validate runs the field-level card validator.
	Validate(card models.Card) models.ValidationState
	// DetectCardType derives the card brand from the number.
	DetectCardType(card models.Card) string
	// Authorize makes a single authorization attempt. It must eventually call exactly one of
	// Success or Failure, and may call ValidationRequested before that.
	Authorize(ctx context.Context, req AuthorizationRequest, cb AuthorizationCallbacks)
}

type AuthorizationRequest struct {
	Card    models.Card
	Charge  models.Charge
	Surface Surface
}

type AuthorizationCallbacks struct {
	// ValidationRequested: an OTP or 3-D Secure step was requested. Not a success, not a failure.
	ValidationRequested func(reference string)
	// Success: the processor issued a reference. The payment may still need backend verification.
	Success func(reference string)
	// Failure carries the processor's rejection. reference is empty when none was issued.
	Failure func(err error, reference string)
}

// Surface presents an interactive challenge to the customer and returns their response.
type Surface interface {
	Present(ctx context.Context, challenge models.Challenge) (string, error)
}
