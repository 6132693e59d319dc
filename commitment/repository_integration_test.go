package commitment_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Raguls333/noolix-sub001/apperr"
	"github.com/Raguls333/noolix-sub001/audit"
	"github.com/Raguls333/noolix-sub001/auth"
	"github.com/Raguls333/noolix-sub001/client"
	"github.com/Raguls333/noolix-sub001/commitment"
	"github.com/Raguls333/noolix-sub001/db"
	"github.com/Raguls333/noolix-sub001/plan"
	"github.com/Raguls333/noolix-sub001/securelink"
)

// newPGHarness wires the service to a live PostgreSQL from DATABASE_URL and
// seeds a fresh organization on the PRO plan.
func newPGHarness(t *testing.T) (*harness, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)

	pool, err := db.NewPool(ctx, dsn, db.PoolOptions{MaxConns: 20})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool))

	var orgID string
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO organizations (name, plan) VALUES ($1, 'PRO') RETURNING id`,
		fmt.Sprintf("Agency %d", time.Now().UnixNano()),
	).Scan(&orgID))

	users := auth.NewService(auth.NewRepository(pool), "test-secret")
	principal := func(role auth.Role) auth.Principal {
		u, err := users.Register(ctx, auth.RegisterRequest{
			OrgID:    orgID,
			Email:    fmt.Sprintf("%s+%d@agency.test", role, time.Now().UnixNano()),
			Password: "correct-horse",
			FullName: string(role),
			Role:     role,
		})
		require.NoError(t, err)
		return auth.Principal{UserID: u.ID, OrgID: orgID, Role: u.Role}
	}

	clients := client.NewService(client.NewRepository(pool))
	cl, err := clients.Create(ctx, client.CreateParams{OrgID: orgID, Name: "Dana", Email: clientEmail})
	require.NoError(t, err)

	links := securelink.NewService(securelink.NewRepository(pool), publicBase)
	notifier := &recordingNotifier{}
	svc := commitment.NewService(commitment.Deps{
		Tx:             db.NewTransactor(pool),
		Commitments:    commitment.NewRepository(pool),
		ChangeRequests: commitment.NewChangeRequestRepository(pool),
		Links:          links,
		Audit:          audit.NewLog(audit.NewRepository(pool), nil),
		Clients:        clients,
		Users:          users,
		Plans:          plan.NewGate(plan.NewPGSource(pool), nil, 0, nil),
		Notifier:       notifier,
	})

	return &harness{
		t:        t,
		ctx:      ctx,
		svc:      svc,
		links:    links,
		notifier: notifier,
		founder:  principal(auth.RoleFounder),
		manager:  principal(auth.RoleManager),
		member:   principal(auth.RoleMember),
		clientID: cl.ID,
	}, pool
}

func (h *harness) pgLinks(id string) []securelink.Link {
	h.t.Helper()
	links, err := h.links.ListForCommitment(h.ctx, h.founder.OrgID, id)
	require.NoError(h.t, err)
	return links
}

func usedCount(links []securelink.Link) int {
	n := 0
	for _, l := range links {
		if l.UsedAt != nil {
			n++
		}
	}
	return n
}

func TestPG_ApprovalFlowAndHistory(t *testing.T) {
	h, _ := newPGHarness(t)

	c := h.create()
	approved, err := h.approve(h.sendApproval(c.ID, false))
	require.NoError(t, err)
	assert.Equal(t, commitment.StatusInProgress, approved.Status)

	got := h.get(c.ID)
	assert.Equal(t, commitment.StatusInProgress, got.Status)
	assert.Equal(t, "USD", got.Currency)
	assert.Len(t, got.PaymentTerms, 2)
	assert.Equal(t, c.ID, got.RootCommitmentID)

	assert.Equal(t, []audit.EventType{
		audit.EventCommitmentCreated,
		audit.EventApprovalLinkSent,
		audit.EventClientApproved,
	}, h.eventTypes(c.ID))
}

func TestPG_GuardFailureLeavesLinkUnused(t *testing.T) {
	h, _ := newPGHarness(t)

	c := h.create()
	first := h.sendApproval(c.ID, false)
	second := h.sendApproval(c.ID, true)
	_, err := h.approve(first)
	require.NoError(t, err)

	_, err = h.approve(second)
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	assert.Equal(t, 1, usedCount(h.pgLinks(c.ID)), "the refused link must stay unused")
}

func TestPG_StaleLinkStaysBurned(t *testing.T) {
	h, _ := newPGHarness(t)

	c := h.create()
	token := h.sendApproval(c.ID, false)
	spare := h.sendApproval(c.ID, true)
	_, err := h.approve(token)
	require.NoError(t, err)

	_, err = h.svc.Update(h.ctx, h.founder, c.ID, commitment.Patch{ScopeDescription: ptr("new text")})
	require.NoError(t, err)

	_, err = h.approve(spare)
	require.ErrorIs(t, err, apperr.ErrLinkOldVersion)
	assert.Equal(t, 2, usedCount(h.pgLinks(c.ID)))

	_, err = h.approve(spare)
	assert.ErrorIs(t, err, apperr.ErrLinkInvalid)
}

func TestPG_ConcurrentConsumeHasOneWinner(t *testing.T) {
	h, _ := newPGHarness(t)

	c := h.create()
	token := h.sendApproval(c.ID, false)

	var wins atomic.Int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := h.approve(token)
			if err == nil {
				wins.Add(1)
				return nil
			}
			if errors.Is(err, apperr.ErrLinkInvalid) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), wins.Load())
}

func TestPG_ChangeRequestForkAndConflict(t *testing.T) {
	h, pool := newPGHarness(t)

	orig := h.create()
	_, err := h.requestChange(h.sendApproval(orig.ID, false), "Raise the budget")
	require.NoError(t, err)

	crs, err := h.svc.ListChangeRequests(h.ctx, h.founder, orig.ID)
	require.NoError(t, err)
	require.Len(t, crs, 1)

	dup := crs[0]
	dup.ID = "00000000-0000-0000-0000-000000000001"
	err = commitment.NewChangeRequestRepository(pool).Insert(h.ctx, dup)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	next, err := h.svc.AcceptChangeRequest(h.ctx, h.founder, crs[0].ID, commitment.AcceptChangeParams{Note: "ok"})
	require.NoError(t, err)

	lineage, err := h.svc.Lineage(h.ctx, h.founder, next.ID)
	require.NoError(t, err)
	require.Len(t, lineage, 2)
	assert.Equal(t, orig.ID, lineage[0].ID)
	assert.Equal(t, 2, lineage[1].Version)
	assert.Equal(t, commitment.StatusChangeRequestCreated, h.get(orig.ID).Status)
}

func TestPG_EventsAreAppendOnly(t *testing.T) {
	h, pool := newPGHarness(t)

	c := h.create()
	_, err := pool.Exec(h.ctx, `UPDATE approval_events SET message = 'x' WHERE commitment_id = $1`, c.ID)
	assert.Error(t, err)
	_, err = pool.Exec(h.ctx, `DELETE FROM approval_events WHERE commitment_id = $1`, c.ID)
	assert.Error(t, err)
}
