package commitment_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Raguls333/noolix-sub001/audit"
	"github.com/Raguls333/noolix-sub001/auth"
	"github.com/Raguls333/noolix-sub001/client"
	"github.com/Raguls333/noolix-sub001/commitment"
	"github.com/Raguls333/noolix-sub001/db"
	"github.com/Raguls333/noolix-sub001/memstore"
	"github.com/Raguls333/noolix-sub001/notify"
	"github.com/Raguls333/noolix-sub001/plan"
	"github.com/Raguls333/noolix-sub001/securelink"
)

const (
	testOrg     = "org-1"
	publicBase  = "https://app.test/public"
	clientEmail = "dana@client.test"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

// Now advances by one second per call so every write gets a distinct time.
func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) last() notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	store    *memstore.Store
	svc      *commitment.Service
	links    *securelink.Service
	clock    *clock
	notifier *recordingNotifier

	founder  auth.Principal
	manager  auth.Principal
	member   auth.Principal
	clientID string
}

type harnessOption func(*commitment.Deps)

func withTransactor(tx db.Transactor) harnessOption {
	return func(d *commitment.Deps) { d.Tx = tx }
}

func withLogger(l *zap.Logger) harnessOption {
	return func(d *commitment.Deps) { d.Logger = l }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	ctx := context.Background()
	clk := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := memstore.New().WithClock(clk.Now)
	require.NoError(t, store.Plans().SetPlan(ctx, testOrg, plan.PlanPro))

	users := auth.NewService(store.Users(), "test-secret")
	principal := func(email string, role auth.Role) auth.Principal {
		u, err := users.Register(ctx, auth.RegisterRequest{
			OrgID:    testOrg,
			Email:    email,
			Password: "correct-horse",
			FullName: strings.Split(email, "@")[0],
			Role:     role,
		})
		require.NoError(t, err)
		return auth.Principal{UserID: u.ID, OrgID: testOrg, Role: u.Role}
	}

	clients := client.NewService(store.Clients())
	cl, err := clients.Create(ctx, client.CreateParams{OrgID: testOrg, Name: "Dana", Email: clientEmail, Company: "Acme"})
	require.NoError(t, err)

	links := securelink.NewService(store.Links(), publicBase).WithClock(clk.Now)
	notifier := &recordingNotifier{}

	deps := commitment.Deps{
		Tx:             store.Transactor(),
		Commitments:    store.Commitments(),
		ChangeRequests: store.ChangeRequests(),
		Links:          links,
		Audit:          audit.NewLog(store.Events(), nil).WithClock(clk.Now),
		Clients:        clients,
		Users:          users,
		Plans:          plan.NewGate(store.Plans(), nil, 0, nil),
		Notifier:       notifier,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &harness{
		t:        t,
		ctx:      ctx,
		store:    store,
		svc:      commitment.NewService(deps).WithClock(clk.Now),
		links:    links,
		clock:    clk,
		notifier: notifier,
		founder:  principal("founder@agency.test", auth.RoleFounder),
		manager:  principal("manager@agency.test", auth.RoleManager),
		member:   principal("member@agency.test", auth.RoleMember),
		clientID: cl.ID,
	}
}

func (h *harness) setPlan(p plan.Plan) {
	require.NoError(h.t, h.store.Plans().SetPlan(h.ctx, testOrg, p))
}

func (h *harness) params(mod ...func(*commitment.CreateParams)) commitment.CreateParams {
	p := commitment.CreateParams{
		ClientID:         h.clientID,
		Title:            "Website rebuild",
		ScopeTitle:       "Phase one",
		ScopeDescription: "Marketing site with CMS",
		Amount:           decimal.NewFromInt(50000),
		Currency:         "usd",
		PaymentTerms:     []commitment.PaymentTerm{{Text: "50% upfront"}, {Text: "50% on delivery"}},
		Milestones:       []commitment.Milestone{{Text: "Design sign-off"}},
		Deliverables:     []commitment.Deliverable{{Text: "Production deploy"}},
	}
	for _, m := range mod {
		m(&p)
	}
	return p
}

func (h *harness) create(mod ...func(*commitment.CreateParams)) commitment.Commitment {
	h.t.Helper()
	c, err := h.svc.Create(h.ctx, h.founder, h.params(mod...))
	require.NoError(h.t, err)
	return c
}

// sendApproval issues an approval link and returns its raw token.
func (h *harness) sendApproval(id string, resend bool) string {
	h.t.Helper()
	res, err := h.svc.SendApprovalLink(h.ctx, h.founder, id, resend)
	require.NoError(h.t, err)
	return tokenFrom(res.URL)
}

func (h *harness) approve(token string) (commitment.Commitment, error) {
	return h.svc.ConsumeApproval(h.ctx, token, commitment.ApprovalDecision{
		Action: commitment.ActionApprove,
		Client: commitment.ClientContext{IP: "203.0.113.7", UserAgent: "test-agent"},
	})
}

func (h *harness) requestChange(token, reason string) (commitment.Commitment, error) {
	return h.svc.ConsumeApproval(h.ctx, token, commitment.ApprovalDecision{
		Action: commitment.ActionRequestChange,
		Reason: reason,
	})
}

// inProgress creates a commitment and walks it through client approval.
func (h *harness) inProgress(mod ...func(*commitment.CreateParams)) commitment.Commitment {
	h.t.Helper()
	c := h.create(mod...)
	c, err := h.approve(h.sendApproval(c.ID, false))
	require.NoError(h.t, err)
	require.Equal(h.t, commitment.StatusInProgress, c.Status)
	return c
}

func (h *harness) deliverAll(id string) {
	h.t.Helper()
	ds := []commitment.Deliverable{{Text: "Production deploy", Status: commitment.DeliverableDelivered}}
	_, err := h.svc.Update(h.ctx, h.founder, id, commitment.Patch{Deliverables: &ds})
	require.NoError(h.t, err)
}

func (h *harness) history(id string) []audit.Event {
	h.t.Helper()
	events, err := h.svc.History(h.ctx, h.founder, id)
	require.NoError(h.t, err)
	return events
}

func (h *harness) eventTypes(id string) []audit.EventType {
	events := h.history(id)
	out := make([]audit.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func (h *harness) get(id string) commitment.Commitment {
	h.t.Helper()
	d, err := h.svc.Get(h.ctx, h.founder, id)
	require.NoError(h.t, err)
	return d.Commitment
}

func (h *harness) linksFor(id string) []securelink.Link {
	h.t.Helper()
	links, err := h.links.ListForCommitment(h.ctx, testOrg, id)
	require.NoError(h.t, err)
	return links
}

// linkFor returns the stored link issued for the raw token.
func (h *harness) linkFor(id, raw string) securelink.Link {
	h.t.Helper()
	hash := securelink.HashToken(raw)
	for _, l := range h.linksFor(id) {
		if l.TokenHash == hash {
			return l
		}
	}
	h.t.Fatalf("no link for token on commitment %s", id)
	return securelink.Link{}
}

func tokenFrom(url string) string {
	return url[strings.LastIndex(url, "/")+1:]
}

// recordingTx runs fn in place and counts calls, standing in for a store
// with real transactions.
type recordingTx struct {
	mu    sync.Mutex
	calls int
}

func (r *recordingTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return fn(ctx)
}

var errNotifierDown = errors.New("smtp unavailable")

func ptr[T any](v T) *T { return &v }
