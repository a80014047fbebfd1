package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/alovak/cardflow-bridge/bridge/models"
	"github.com/alovak/cardflow-bridge/internal/cardgen"
	"github.com/alovak/cardflow-bridge/internal/metrics"
	"github.com/google/uuid"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

// Orchestrator sequences the charge flow: it checks that each operation's prerequisites
// have been staged, mutates the Session and, for the final charge, hands everything to the
// Processor and translates the outcome.
//
// Callers are expected to invoke operations one after another. Staging calls are atomic,
// but interleaving two flows on one Orchestrator gives last-writer-wins results.
type Orchestrator struct {
	session   *Session
	processor Processor
	cfg       *Config
	logger    *slog.Logger
	metrics   metrics.Recorder

	surfaceMu sync.RWMutex
	surface   Surface
}

type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		o.metrics = r
	}
}

func WithSurface(s Surface) Option {
	return func(o *Orchestrator) {
		o.surface = s
	}
}

func NewOrchestrator(processor Processor, cfg *Config, opts ...Option) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	o := &Orchestrator{
		session:   NewSession(),
		processor: processor,
		cfg:       cfg,
		logger:    slog.Default(),
		metrics:   metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(slog.String("processor", processor.Name()))
	return o
}

// BatchResult lists which keys of a metadata or custom-field batch were applied and which
// were rejected. Applied writes stay applied even when others fail. Rejected custom fields
// are keyed "<position>:<label>" since labels may repeat.
type BatchResult struct {
	Applied []string
	Failed  map[string]error
}

func (b BatchResult) OK() bool {
	return len(b.Failed) == 0
}

// Initialize sets the processor credential and starts a clean session.
func (o *Orchestrator) Initialize(publicKey string) (models.InitializeResult, error) {
	const op = "initialize"
	if publicKey == "" {
		return models.InitializeResult{}, invalidArgument(op, "public key is required")
	}

	o.processor.SetCredential(publicKey)
	o.session.setInitialized(publicKey)

	o.logger.Info("bridge initialized")
	return models.InitializeResult{Initialized: true}, nil
}

// AddCard stages a card, replacing any previous one, and resets the charge.
func (o *Orchestrator) AddCard(details models.CardDetails) error {
	const op = "add card"
	if err := o.requireInitialized(op); err != nil {
		return err
	}
	if err := validate.Struct(details); err != nil {
		return invalidArgument(op, "missing required card parameters: %v", err)
	}

	month, err := o.parseUint(op, "expiry month", details.ExpiryMonth)
	if err != nil {
		return err
	}
	year, err := o.parseUint(op, "expiry year", details.ExpiryYear)
	if err != nil {
		return err
	}

	card := models.Card{
		Number:      details.CardNumber,
		ExpiryMonth: uint(month),
		ExpiryYear:  uint(year),
		CVV:         details.CVV,
	}
	o.session.setCard(card)

	o.logger.Debug("card staged", slog.String("pan", cardgen.MaskPAN(card.Number)))
	return nil
}

// ValidateCard runs the processor's field validator. Only "valid" counts as valid;
// "invalid" and "incomplete" both report false.
func (o *Orchestrator) ValidateCard() (models.CardValidationResult, error) {
	const op = "validate card"
	card, err := o.requireCard(op)
	if err != nil {
		return models.CardValidationResult{}, err
	}

	state := o.processor.Validate(card)
	o.logger.Debug("card validated",
		slog.String("pan", cardgen.MaskPAN(card.Number)),
		slog.String("state", state.String()),
	)
	return models.CardValidationResult{IsValid: state == models.ValidationStateValid}, nil
}

func (o *Orchestrator) GetCardType() (models.CardTypeResult, error) {
	const op = "get card type"
	card, err := o.requireCard(op)
	if err != nil {
		return models.CardTypeResult{}, err
	}
	return models.CardTypeResult{CardType: o.processor.DetectCardType(card)}, nil
}

// PutChargeMetadata merges metadata into the charge, last write wins per key.
// Keys are applied in sorted order and independently of each other: a rejected key does
// not stop the rest, and keys applied before a rejection are not rolled back. The first
// rejection is returned as an InternalError next to the full BatchResult.
func (o *Orchestrator) PutChargeMetadata(metadata map[string]string) (BatchResult, error) {
	return o.putMetadata("put charge metadata", metadata)
}

// AddChargeParameters is the bulk form of PutChargeMetadata.
func (o *Orchestrator) AddChargeParameters(params map[string]string) (BatchResult, error) {
	return o.putMetadata("add charge parameters", params)
}

func (o *Orchestrator) putMetadata(op string, metadata map[string]string) (BatchResult, error) {
	if err := o.requireInitialized(op); err != nil {
		return BatchResult{}, err
	}

	keys := maps.Keys(metadata)
	slices.Sort(keys)

	var (
		result   = BatchResult{Failed: map[string]error{}}
		firstErr error
	)
	ok := o.session.withCharge(func(c *models.Charge) {
		for _, k := range keys {
			if err := c.SetMetadataValue(k, metadata[k]); err != nil {
				result.Failed[k] = err
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			result.Applied = append(result.Applied, k)
		}
	})
	if !ok {
		return BatchResult{}, preconditionFailed(op, "charge not initialized. Call AddCard first.")
	}
	if firstErr != nil {
		o.logger.Warn("metadata batch partially applied",
			slog.Int("applied", len(result.Applied)),
			slog.Int("failed", len(result.Failed)),
		)
		return result, internal(op, firstErr)
	}
	return result, nil
}

// PutChargeCustomFields appends custom fields in the given order. Duplicate labels are kept.
// Partial failure is reported the same way as PutChargeMetadata.
func (o *Orchestrator) PutChargeCustomFields(fields []models.CustomField) (BatchResult, error) {
	const op = "put charge custom fields"
	if err := o.requireInitialized(op); err != nil {
		return BatchResult{}, err
	}

	var (
		result   = BatchResult{Failed: map[string]error{}}
		firstErr error
	)
	ok := o.session.withCharge(func(c *models.Charge) {
		for i, f := range fields {
			if err := c.SetCustomFieldValue(f.Value, f.Label); err != nil {
				result.Failed[fmt.Sprintf("%d:%s", i, f.Label)] = err
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			result.Applied = append(result.Applied, f.Label)
		}
	})
	if !ok {
		return BatchResult{}, preconditionFailed(op, "charge not initialized. Call AddCard first.")
	}
	if firstErr != nil {
		return result, internal(op, firstErr)
	}
	return result, nil
}

// SetChargeEmail stores the customer email. An empty email is accepted.
func (o *Orchestrator) SetChargeEmail(email string) error {
	const op = "set charge email"
	if err := o.requireInitialized(op); err != nil {
		return err
	}
	if !o.session.withCharge(func(c *models.Charge) { c.Email = email }) {
		return preconditionFailed(op, "charge not initialized. Call AddCard first.")
	}
	return nil
}

// SetChargeAmount stores the amount in the smallest currency unit.
func (o *Orchestrator) SetChargeAmount(amount string) error {
	const op = "set charge amount"
	if err := o.requireInitialized(op); err != nil {
		return err
	}
	if amount == "" {
		return invalidArgument(op, "amount is required")
	}
	v, err := o.parseUint(op, "amount", amount)
	if err != nil {
		return err
	}
	if !o.session.withCharge(func(c *models.Charge) { c.SetAmount(v) }) {
		return preconditionFailed(op, "charge not initialized. Call AddCard first.")
	}
	return nil
}

// SetAccessCode stages a backend-issued access code as the authorization path.
func (o *Orchestrator) SetAccessCode(code string) error {
	const op = "set access code"
	if err := o.requireInitialized(op); err != nil {
		return err
	}
	if code == "" {
		return invalidArgument(op, "access code is required")
	}
	if !o.session.withCharge(func(c *models.Charge) { c.AccessCode = code }) {
		return preconditionFailed(op, "charge not initialized. Call AddCard first.")
	}
	return nil
}

// SetChargeSplit routes the charge to a subaccount. bearer defaults to the main account.
func (o *Orchestrator) SetChargeSplit(subaccount string, bearer models.Bearer) error {
	const op = "set charge split"
	if err := o.requireInitialized(op); err != nil {
		return err
	}
	if subaccount == "" {
		return invalidArgument(op, "subaccount is required")
	}
	if bearer == "" {
		bearer = models.BearerAccount
	}
	if !bearer.Valid() {
		return invalidArgument(op, "unknown bearer %q", bearer)
	}
	if !o.session.withCharge(func(c *models.Charge) {
		c.Subaccount = subaccount
		c.Bearer = bearer
	}) {
		return preconditionFailed(op, "charge not initialized. Call AddCard first.")
	}
	return nil
}

// AttachSurface sets the surface the processor presents OTP / 3-D Secure steps on.
func (o *Orchestrator) AttachSurface(s Surface) {
	o.surfaceMu.Lock()
	defer o.surfaceMu.Unlock()
	o.surface = s
}

func (o *Orchestrator) currentSurface() Surface {
	o.surfaceMu.RLock()
	defer o.surfaceMu.RUnlock()
	return o.surface
}

// Charge starts an authorization for the staged card and charge. Precondition failures are
// returned immediately; processor outcomes arrive through the PendingCharge.
//
// The authorization runs on a context detached from ctx: once started it cannot be
// cancelled, and nothing is retried.
func (o *Orchestrator) Charge(ctx context.Context) (*PendingCharge, error) {
	const op = "charge card"
	if err := o.requireInitialized(op); err != nil {
		return nil, err
	}
	surface := o.currentSurface()

	card, charge, attempt, ticket, err := o.session.beginCharge(func(card *models.Card, charge *models.Charge, charging bool) error {
		switch {
		case card == nil:
			return preconditionFailed(op, "card not initialized. Call AddCard first.")
		case charge == nil:
			return preconditionFailed(op, "charge not initialized.")
		case surface == nil:
			return preconditionFailed(op, "presentation surface not available")
		case charge.AuthorizationPath() == models.AuthorizationPathNone:
			return preconditionFailed(op, "no authorization path: set an access code, or an email and amount")
		case charging:
			return preconditionFailed(op, "a charge is already in flight")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	charge.Currency = o.cfg.Currency

	logger := o.logger.With(
		slog.String("attempt_id", uuid.New().String()),
		slog.String("pan", cardgen.MaskPAN(card.Number)),
		slog.String("path", string(charge.AuthorizationPath())),
	)
	if attempt > 1 {
		logger.Warn("charging previously charged staging again", slog.Int("attempt", attempt))
	}
	logger.Info("charge started",
		slog.String("amount", charge.MajorUnits().StringFixed(2)),
		slog.String("currency", charge.Currency),
	)

	labels := map[string]string{"processor": o.processor.Name()}
	o.metrics.IncCounter("charge_started", labels)

	pending := newPendingCharge()
	started := time.Now()
	var once sync.Once
	// the session and metrics are updated before waiters are released
	finish := func(tx models.Transaction, err error) {
		first := false
		once.Do(func() { first = true })
		if !first {
			logger.Error("processor settled a charge twice; ignoring", slog.Any("err", err))
			return
		}
		o.session.finishCharge(ticket, err == nil)
		o.metrics.ObserveLatency("charge", time.Since(started), labels)
		if err != nil {
			o.metrics.IncCounter("charge_failed", labels)
			logger.Info("charge failed", slog.String("reference", tx.Reference), slog.Any("err", err))
		} else {
			o.metrics.IncCounter("charge_succeeded", labels)
			logger.Info("charge succeeded", slog.String("reference", tx.Reference))
		}
		pending.settle(tx, err)
	}

	if o.cfg.ChallengeTimeout > 0 {
		surface = timeoutSurface{Surface: surface, timeout: o.cfg.ChallengeTimeout}
	}
	req := AuthorizationRequest{Card: card, Charge: charge, Surface: surface}
	cb := AuthorizationCallbacks{
		ValidationRequested: func(reference string) {
			logger.Info("processor requested validation", slog.String("reference", reference))
			o.metrics.IncCounter("charge_validation_requested", labels)
			pending.requestValidation(reference)
		},
		Success: func(reference string) {
			finish(models.Transaction{Reference: reference}, nil)
		},
		Failure: func(err error, reference string) {
			if err == nil {
				err = errors.New("processor reported failure without a reason")
			}
			finish(models.Transaction{Reference: reference}, upstream(op, err))
		},
	}

	go o.processor.Authorize(context.WithoutCancel(ctx), req, cb)

	return pending, nil
}

// ChargeCard charges and waits for the outcome. ctx bounds the wait only.
func (o *Orchestrator) ChargeCard(ctx context.Context) (models.Transaction, error) {
	pending, err := o.Charge(ctx)
	if err != nil {
		return models.Transaction{}, err
	}
	return pending.Wait(ctx)
}

func (o *Orchestrator) Snapshot() SessionSnapshot {
	return o.session.Snapshot()
}

func (o *Orchestrator) State() State {
	return o.session.State()
}

func (o *Orchestrator) requireInitialized(op string) error {
	if !o.session.Initialized() {
		return preconditionFailed(op, "bridge not initialized. Call Initialize first.")
	}
	return nil
}

func (o *Orchestrator) requireCard(op string) (models.Card, error) {
	if err := o.requireInitialized(op); err != nil {
		return models.Card{}, err
	}
	card, ok := o.session.stagedCard()
	if !ok {
		return models.Card{}, preconditionFailed(op, "card not initialized. Call AddCard first.")
	}
	return card, nil
}

// parseUint applies the numeric parse policy: unparseable input becomes 0 unless strict
// parsing is configured, in which case it is an InvalidArgument.
func (o *Orchestrator) parseUint(op, field, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err == nil {
		return v, nil
	}
	if o.cfg.StrictNumericParsing {
		return 0, invalidArgument(op, "%s must be a non-negative integer, got %q", field, s)
	}
	o.logger.Debug(fmt.Sprintf("non-numeric %s defaulted to 0", field))
	return 0, nil
}
