package bridge

import (
	"context"
	"sync"

	"github.com/alovak/cardflow-bridge/bridge/models"
)

// PendingCharge is an in-flight authorization. Its result is delivered exactly once;
// an OTP / 3-D Secure request shows up on ValidationRequested without settling it.
type PendingCharge struct {
	validation     chan string
	validationOnce sync.Once

	done    chan struct{}
	settled sync.Once
	tx      models.Transaction
	err     error
}

func newPendingCharge() *PendingCharge {
	return &PendingCharge{
		validation: make(chan string, 1),
		done:       make(chan struct{}),
	}
}

// ValidationRequested receives the transaction reference if the processor asks for
// an interactive validation step. It fires at most once and is never closed.
func (p *PendingCharge) ValidationRequested() <-chan string {
	return p.validation
}

// Done is closed once the charge has succeeded or failed.
func (p *PendingCharge) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the charge settles or ctx is done. Giving up on the wait does not
// stop the authorization, which runs to completion regardless.
func (p *PendingCharge) Wait(ctx context.Context) (models.Transaction, error) {
	select {
	case <-p.done:
		return p.tx, p.err
	case <-ctx.Done():
		return models.Transaction{}, ctx.Err()
	}
}

func (p *PendingCharge) requestValidation(reference string) {
	p.validationOnce.Do(func() {
		p.validation <- reference
	})
}

// settle reports whether this call was the one that settled the charge.
func (p *PendingCharge) settle(tx models.Transaction, err error) bool {
	first := false
	p.settled.Do(func() {
		first = true
		p.tx, p.err = tx, err
		close(p.done)
	})
	return first
}

// result blocks until the charge settles.
func (p *PendingCharge) result() (models.Transaction, error) {
	<-p.done
	return p.tx, p.err
}
