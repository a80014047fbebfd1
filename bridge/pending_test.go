package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alovak/cardflow-bridge/bridge/models"
	"github.com/stretchr/testify/require"
)

func TestPendingCharge_SettlesOnce(t *testing.T) {
	p := newPendingCharge()

	require.True(t, p.settle(models.Transaction{Reference: "ref_1"}, nil))
	require.False(t, p.settle(models.Transaction{}, errors.New("late failure")))

	tx, err := p.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ref_1", tx.Reference)
}

func TestPendingCharge_ValidationSignalFiresOnce(t *testing.T) {
	p := newPendingCharge()

	p.requestValidation("ref_1")
	p.requestValidation("ref_2")

	require.Equal(t, "ref_1", <-p.ValidationRequested())
	select {
	case ref := <-p.ValidationRequested():
		t.Fatalf("unexpected second validation signal %q", ref)
	default:
	}

	select {
	case <-p.Done():
		t.Fatal("validation request settled the charge")
	default:
	}
}

func TestPendingCharge_WaitTimesOut(t *testing.T) {
	p := newPendingCharge()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
