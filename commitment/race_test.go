package commitment_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Raguls333/noolix-sub001/apperr"
	"github.com/Raguls333/noolix-sub001/audit"
)

func TestConsumeApproval_ConcurrentAttemptsHaveOneWinner(t *testing.T) {
	h := newHarness(t)
	c := h.create()
	token := h.sendApproval(c.ID, false)

	const attempts = 16
	var wins, invalid atomic.Int32

	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, err := h.approve(token)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, apperr.ErrLinkInvalid):
				invalid.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(attempts-1), invalid.Load())

	approvals := 0
	for _, ev := range h.history(c.ID) {
		if ev.Type == audit.EventClientApproved {
			approvals++
		}
	}
	assert.Equal(t, 1, approvals)
	assert.NotNil(t, h.linksFor(c.ID)[0].UsedAt)
}
