package securelink_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Raguls333/noolix-sub001/apperr"
	"github.com/Raguls333/noolix-sub001/memstore"
	"github.com/Raguls333/noolix-sub001/securelink"
)

func newService(now *time.Time) *securelink.Service {
	return securelink.NewService(memstore.New().Links(), "https://app.test/public/").
		WithClock(func() time.Time { return *now }).
		WithIDGenerator(func() string { return "link-1" })
}

func params(purpose securelink.Purpose) securelink.IssueParams {
	return securelink.IssueParams{OrgID: "org-1", CommitmentID: "c-1", CommitmentVersion: 2, Purpose: purpose}
}

func TestNewToken(t *testing.T) {
	raw, hash, err := securelink.NewToken()
	require.NoError(t, err)
	assert.Len(t, raw, 64)
	assert.Len(t, hash, 64)
	assert.Equal(t, securelink.HashToken(raw), hash)
	assert.NotEqual(t, raw, hash)

	other, _, err := securelink.NewToken()
	require.NoError(t, err)
	assert.NotEqual(t, raw, other)
}

func TestIssue(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newService(&now)

	issued, err := svc.Issue(context.Background(), params(securelink.PurposeApproval))
	require.NoError(t, err)
	assert.Equal(t, "https://app.test/public/approve/"+issued.RawToken, issued.URL)
	assert.Equal(t, securelink.HashToken(issued.RawToken), issued.Link.TokenHash)
	assert.Equal(t, now.Add(securelink.DefaultTTL), issued.Link.ExpiresAt)
	assert.Equal(t, 2, issued.Link.CommitmentVersion)
	assert.Nil(t, issued.Link.UsedAt)

	assert.Equal(t, "https://app.test/public/accept/abc", svc.URL(securelink.PurposeAcceptance, "abc"))

	_, err = svc.Issue(context.Background(), securelink.IssueParams{OrgID: "org-1", CommitmentID: "c-1", Purpose: securelink.PurposeApproval})
	assert.Error(t, err)
}

func TestConsume(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newService(&now).WithTTL(securelink.PurposeAcceptance, time.Hour)
	ctx := context.Background()

	approval, err := svc.Issue(ctx, params(securelink.PurposeApproval))
	require.NoError(t, err)
	acceptance, err := svc.Issue(ctx, params(securelink.PurposeAcceptance))
	require.NoError(t, err)

	_, err = svc.Consume(ctx, approval.RawToken, securelink.PurposeAcceptance)
	assert.ErrorIs(t, err, apperr.ErrLinkInvalid, "purpose mismatch")

	_, err = svc.Resolve(ctx, approval.RawToken, securelink.PurposeApproval)
	require.NoError(t, err)

	link, err := svc.Consume(ctx, approval.RawToken, securelink.PurposeApproval)
	require.NoError(t, err)
	require.NotNil(t, link.UsedAt)
	assert.Equal(t, now, *link.UsedAt)

	_, err = svc.Consume(ctx, approval.RawToken, securelink.PurposeApproval)
	assert.ErrorIs(t, err, apperr.ErrLinkInvalid, "already used")
	_, err = svc.Resolve(ctx, approval.RawToken, securelink.PurposeApproval)
	assert.ErrorIs(t, err, apperr.ErrLinkInvalid)

	now = now.Add(2 * time.Hour)
	_, err = svc.Consume(ctx, acceptance.RawToken, securelink.PurposeAcceptance)
	assert.ErrorIs(t, err, apperr.ErrLinkInvalid, "expired")

	_, err = svc.Consume(ctx, "  ", securelink.PurposeApproval)
	assert.ErrorIs(t, err, apperr.ErrLinkInvalid)
}

func TestConsume_ConcurrentSingleWinner(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newService(&now)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, params(securelink.PurposeApproval))
	require.NoError(t, err)

	var wins atomic.Int32
	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			_, err := svc.Consume(ctx, issued.RawToken, securelink.PurposeApproval)
			switch {
			case err == nil:
				wins.Add(1)
				return nil
			case errors.Is(err, apperr.ErrLinkInvalid):
				return nil
			default:
				return err
			}
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), wins.Load())
}

func TestListForCommitment_OldestFirst(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newService(&now)
	ctx := context.Background()

	var issued []securelink.Issued
	for i := 0; i < 3; i++ {
		iss, err := svc.Issue(ctx, params(securelink.PurposeApproval))
		require.NoError(t, err)
		issued = append(issued, iss)
		now = now.Add(time.Minute)
	}
	_, err := svc.Issue(ctx, securelink.IssueParams{OrgID: "org-1", CommitmentID: "c-2", CommitmentVersion: 1, Purpose: securelink.PurposeApproval})
	require.NoError(t, err)

	links, err := svc.ListForCommitment(ctx, "org-1", "c-1")
	require.NoError(t, err)
	require.Len(t, links, 3)
	for i, l := range links {
		assert.Equal(t, issued[i].Link.TokenHash, l.TokenHash)
	}
}
