// Package sandbox is an in-process processor that behaves like the processor's test
// environment: a handful of well-known test cards approve, decline or ask for OTP / 3-D Secure.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alovak/cardflow-bridge/bridge"
	"github.com/alovak/cardflow-bridge/bridge/models"
	"github.com/alovak/cardflow-bridge/internal/cardcheck"
	"github.com/alovak/cardflow-bridge/internal/cardgen"
	"github.com/google/uuid"
)

const (
	CardApproved    = "4084084084084081"
	CardDeclined    = "4084080000000409"
	CardOTP         = "5060666666666666666"
	CardThreeDS     = "5399838383838381"
	DefaultOTP      = "123456"
	ThreeDSApproved = "approved"
)

var (
	ErrNoCredential = errors.New("no public key set")
	ErrInvalidCard  = errors.New("invalid card details")
	ErrDeclined     = errors.New("Declined")
	ErrInvalidOTP   = errors.New("invalid OTP")
	ErrThreeDS      = errors.New("3DS authentication failed")
)

type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeDeclined Outcome = "declined"
)

// Authorization is what the sandbox received for one Authorize call.
type Authorization struct {
	Reference  string
	MaskedPAN  string
	Signature  string
	PublicKey  string
	Charge     models.Charge
	Challenged bool
	Outcome    Outcome
	Reason     string
}

type Processor struct {
	mu             sync.Mutex
	publicKey      string
	otp            string
	now            func() time.Time
	loc            *time.Location
	authorizations []Authorization
}

type Option func(*Processor)

// WithOTP sets the code accepted for OTP challenges.
func WithOTP(code string) Option {
	return func(p *Processor) {
		p.otp = code
	}
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

// WithLocation sets the timezone card expiry months end in.
func WithLocation(loc *time.Location) Option {
	return func(p *Processor) {
		p.loc = loc
	}
}

func New(opts ...Option) *Processor {
	p := &Processor{
		otp: DefaultOTP,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ bridge.Processor = (*Processor)(nil)

func (p *Processor) Name() string {
	return "sandbox"
}

func (p *Processor) SetCredential(publicKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.publicKey = publicKey
}

func (p *Processor) Validate(card models.Card) models.ValidationState {
	return cardcheck.State(card, p.now(), p.loc)
}

func (p *Processor) DetectCardType(card models.Card) string {
	return cardcheck.Brand(card.Number)
}

func (p *Processor) Authorize(ctx context.Context, req bridge.AuthorizationRequest, cb bridge.AuthorizationCallbacks) {
	p.mu.Lock()
	publicKey := p.publicKey
	p.mu.Unlock()

	auth := Authorization{
		Reference: uuid.New().String(),
		MaskedPAN: cardgen.MaskPAN(req.Card.Number),
		Signature: cardgen.Signature(req.Card.Number, []byte(publicKey)),
		PublicKey: publicKey,
		Charge:    req.Charge.Clone(),
	}

	err := p.authorize(ctx, req, cb, &auth)
	if err != nil {
		auth.Outcome = OutcomeDeclined
		auth.Reason = err.Error()
	} else {
		auth.Outcome = OutcomeApproved
	}
	p.record(auth)

	if err != nil {
		cb.Failure(err, auth.Reference)
		return
	}
	cb.Success(auth.Reference)
}

func (p *Processor) authorize(ctx context.Context, req bridge.AuthorizationRequest, cb bridge.AuthorizationCallbacks, auth *Authorization) error {
	if auth.PublicKey == "" {
		return ErrNoCredential
	}
	if p.Validate(req.Card) != models.ValidationStateValid {
		return ErrInvalidCard
	}

	switch cardgen.NormalizePAN(req.Card.Number) {
	case CardDeclined:
		return ErrDeclined

	case CardOTP:
		auth.Challenged = true
		cb.ValidationRequested(auth.Reference)
		otp, err := req.Surface.Present(ctx, models.Challenge{
			Reference: auth.Reference,
			Kind:      models.ChallengeOTP,
			Message:   "Please enter the OTP sent to your phone",
		})
		if err != nil {
			return fmt.Errorf("presenting otp challenge: %w", err)
		}
		if otp != p.otp {
			return ErrInvalidOTP
		}

	case CardThreeDS:
		auth.Challenged = true
		cb.ValidationRequested(auth.Reference)
		result, err := req.Surface.Present(ctx, models.Challenge{
			Reference: auth.Reference,
			Kind:      models.ChallengeThreeDS,
			Message:   "Confirm the payment with your bank",
			URL:       "https://sandbox.invalid/3ds/" + auth.Reference,
		})
		if err != nil {
			return fmt.Errorf("presenting 3ds challenge: %w", err)
		}
		if result != ThreeDSApproved {
			return ErrThreeDS
		}
	}

	return nil
}

func (p *Processor) record(auth Authorization) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authorizations = append(p.authorizations, auth)
}

// Authorizations returns every authorization received so far, oldest first.
func (p *Processor) Authorizations() []Authorization {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Authorization, len(p.authorizations))
	copy(out, p.authorizations)
	return out
}
