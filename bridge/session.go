package bridge

import (
	"sync"

	"github.com/alovak/cardflow-bridge/bridge/models"
)

// State is where the session sits in a single charge attempt.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateCardStaged
	StateChargeStaged
	StateCharging
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateCardStaged:
		return "card_staged"
	case StateChargeStaged:
		return "charge_staged"
	case StateCharging:
		return "charging"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session holds what has been staged so far. It does not validate anything; the
// Orchestrator does. Every method holds the lock for its whole mutation, so readers
// never see half of a staging call.
type Session struct {
	mu          sync.RWMutex
	publicKey   string
	initialized bool
	card        *models.Card
	charge      *models.Charge

	charging bool
	outcome  State // StateSucceeded / StateFailed since the last staging change, else 0
	attempts int   // authorizations sent for the current staging

	epoch      uint64 // bumped by every Initialize
	generation uint64 // bumped by every staging change, Initialize included
}

// chargeTicket identifies the staging an authorization was started against.
type chargeTicket struct {
	epoch      uint64
	generation uint64
}

func NewSession() *Session {
	return &Session{}
}

// SessionSnapshot is a deep copy of the session at one instant.
type SessionSnapshot struct {
	State       State
	Initialized bool
	PublicKey   string
	Card        *models.Card
	Charge      *models.Charge
	Attempts    int
}

func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := SessionSnapshot{
		State:       s.stateLocked(),
		Initialized: s.initialized,
		PublicKey:   s.publicKey,
		Attempts:    s.attempts,
	}
	if s.card != nil {
		card := *s.card
		snap.Card = &card
	}
	if s.charge != nil {
		charge := s.charge.Clone()
		snap.Charge = &charge
	}
	return snap
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	switch {
	case !s.initialized:
		return StateUninitialized
	case s.charging:
		return StateCharging
	case s.outcome != 0:
		return s.outcome
	case s.card == nil:
		return StateInitialized
	case s.charge != nil && s.charge.AuthorizationPath() != models.AuthorizationPathNone:
		return StateChargeStaged
	default:
		return StateCardStaged
	}
}

func (s *Session) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// stagedLocked clears the outcome of the previous charge: the staging it ran against has changed.
func (s *Session) stagedLocked() {
	s.outcome = 0
	s.attempts = 0
	s.generation++
}

// setInitialized starts a new session. An authorization still in flight from the previous
// session no longer blocks charging and its outcome is discarded when it settles.
func (s *Session) setInitialized(publicKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publicKey = publicKey
	s.initialized = true
	s.card = nil
	s.charge = nil
	s.charging = false
	s.epoch++
	s.stagedLocked()
}

// setCard replaces the card and starts a fresh charge record.
func (s *Session) setCard(card models.Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.card = &card
	s.charge = models.NewCharge()
	s.stagedLocked()
}

func (s *Session) stagedCard() (models.Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.card == nil {
		return models.Card{}, false
	}
	return *s.card, true
}

// withCharge runs fn on the staged charge under the write lock.
// It returns false without calling fn when no charge is staged.
func (s *Session) withCharge(fn func(c *models.Charge)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.charge == nil {
		return false
	}
	fn(s.charge)
	s.stagedLocked()
	return true
}

// beginCharge runs check against the staged card and charge and, when it passes, moves the
// session to Charging. Both happen under one lock so a concurrent staging call cannot slip
// between them. The returned copies are what the processor will see.
func (s *Session) beginCharge(check func(card *models.Card, charge *models.Charge, charging bool) error) (models.Card, models.Charge, int, chargeTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := check(s.card, s.charge, s.charging); err != nil {
		return models.Card{}, models.Charge{}, 0, chargeTicket{}, err
	}

	s.charging = true
	s.outcome = 0
	s.attempts++
	ticket := chargeTicket{epoch: s.epoch, generation: s.generation}
	return *s.card, s.charge.Clone(), s.attempts, ticket, nil
}

// finishCharge records the outcome of the authorization started with ticket. Within the same
// session the in-flight guard is always released, but the outcome is only recorded when
// nothing was re-staged since the charge started. Authorizations from an earlier session
// leave the current one untouched.
func (s *Session) finishCharge(ticket chargeTicket, succeeded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.epoch != s.epoch {
		return
	}
	s.charging = false
	if ticket.generation != s.generation {
		return
	}
	if succeeded {
		s.outcome = StateSucceeded
	} else {
		s.outcome = StateFailed
	}
}
