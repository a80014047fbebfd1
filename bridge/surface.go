package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alovak/cardflow-bridge/bridge/models"
)

var (
	ErrNoPendingChallenge = errors.New("no pending challenge")
	ErrChallengeMismatch  = errors.New("challenge reference mismatch")
)

// QueueSurface is an in-process Surface. Present parks the challenge until someone
// answers it through Answer, which is how the HTTP API relays OTPs from the client.
type QueueSurface struct {
	mu      sync.Mutex
	pending *parkedChallenge
	notify  chan models.Challenge
}

type parkedChallenge struct {
	challenge models.Challenge
	reply     chan string
}

func NewQueueSurface() *QueueSurface {
	return &QueueSurface{
		notify: make(chan models.Challenge, 1),
	}
}

func (q *QueueSurface) Present(ctx context.Context, challenge models.Challenge) (string, error) {
	parked := &parkedChallenge{challenge: challenge, reply: make(chan string, 1)}

	q.mu.Lock()
	if q.pending != nil {
		q.mu.Unlock()
		return "", fmt.Errorf("challenge %s is already pending", q.pending.challenge.Reference)
	}
	q.pending = parked
	q.mu.Unlock()

	// drop a stale notification nobody read
	select {
	case <-q.notify:
	default:
	}
	q.notify <- challenge

	defer func() {
		q.mu.Lock()
		if q.pending == parked {
			q.pending = nil
		}
		q.mu.Unlock()
	}()

	select {
	case resp := <-parked.reply:
		return resp, nil
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for challenge response: %w", ctx.Err())
	}
}

// Pending returns the challenge currently waiting for an answer.
func (q *QueueSurface) Pending() (models.Challenge, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		return models.Challenge{}, false
	}
	return q.pending.challenge, true
}

// Challenges delivers each challenge as it is presented.
func (q *QueueSurface) Challenges() <-chan models.Challenge {
	return q.notify
}

// Answer resolves the pending challenge. An empty reference answers whatever is pending.
func (q *QueueSurface) Answer(reference, response string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		return ErrNoPendingChallenge
	}
	if reference != "" && reference != q.pending.challenge.Reference {
		return fmt.Errorf("answering %s: %w", reference, ErrChallengeMismatch)
	}
	q.pending.reply <- response
	q.pending = nil
	return nil
}

// timeoutSurface bounds how long a single challenge may wait for the customer.
type timeoutSurface struct {
	Surface
	timeout time.Duration
}

func (t timeoutSurface) Present(ctx context.Context, challenge models.Challenge) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Surface.Present(ctx, challenge)
}
