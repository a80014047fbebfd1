package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/alovak/cardflow-bridge/bridge/models"
	"github.com/stretchr/testify/require"
)

func TestQueueSurface_PresentAndAnswer(t *testing.T) {
	q := NewQueueSurface()

	_, ok := q.Pending()
	require.False(t, ok)
	require.ErrorIs(t, q.Answer("", "123456"), ErrNoPendingChallenge)

	type reply struct {
		resp string
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		resp, err := q.Present(context.Background(), models.Challenge{Reference: "ref_1", Kind: models.ChallengeOTP})
		done <- reply{resp, err}
	}()

	challenge := <-q.Challenges()
	require.Equal(t, "ref_1", challenge.Reference)

	pending, ok := q.Pending()
	require.True(t, ok)
	require.Equal(t, "ref_1", pending.Reference)

	require.ErrorIs(t, q.Answer("ref_2", "123456"), ErrChallengeMismatch)
	require.NoError(t, q.Answer("ref_1", "123456"))

	r := <-done
	require.NoError(t, r.err)
	require.Equal(t, "123456", r.resp)

	_, ok = q.Pending()
	require.False(t, ok)
}

func TestQueueSurface_PresentHonorsContext(t *testing.T) {
	q := NewQueueSurface()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Present(ctx, models.Challenge{Reference: "ref_1"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, ok := q.Pending()
	require.False(t, ok)
}

func TestTimeoutSurface(t *testing.T) {
	s := timeoutSurface{Surface: NewQueueSurface(), timeout: 10 * time.Millisecond}

	_, err := s.Present(context.Background(), models.Challenge{Reference: "ref_1"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
