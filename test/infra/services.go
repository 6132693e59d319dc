package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Raguls333/noolix-sub001/audit"
	"github.com/Raguls333/noolix-sub001/auth"
	"github.com/Raguls333/noolix-sub001/client"
	"github.com/Raguls333/noolix-sub001/commitment"
	"github.com/Raguls333/noolix-sub001/db"
	"github.com/Raguls333/noolix-sub001/notify"
	"github.com/Raguls333/noolix-sub001/plan"
	"github.com/Raguls333/noolix-sub001/securelink"
)

// Env is the service graph wired to a migrated PostgreSQL pool plus a
// seeded organization to act in.
type Env struct {
	Pool        *pgxpool.Pool
	Commitments *commitment.Service
	Auth        *auth.Service
	Clients     *client.Service

	Founder  auth.Principal
	ClientID string
}

// NewEnv wires the PostgreSQL repositories the same way the API does and
// seeds a PRO organization with a founder and one client.
func NewEnv(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (*Env, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	source := plan.NewPGSource(pool)
	authService := auth.NewService(auth.NewRepository(pool), "stress-secret-0123456789abcdef")
	clients := client.NewService(client.NewRepository(pool))

	svc := commitment.NewService(commitment.Deps{
		Tx:             db.NewTransactor(pool),
		Commitments:    commitment.NewRepository(pool),
		ChangeRequests: commitment.NewChangeRequestRepository(pool),
		Links:          securelink.NewService(securelink.NewRepository(pool), "https://stress.noolix.test/public"),
		Audit:          audit.NewLog(audit.NewRepository(pool), logger),
		Clients:        clients,
		Users:          authService,
		Plans:          plan.NewGate(source, nil, time.Minute, logger),
		Notifier:       notify.Nop{},
		Logger:         logger,
	})

	env := &Env{Pool: pool, Commitments: svc, Auth: authService, Clients: clients}

	orgID, err := source.CreateOrganization(ctx, "Stress Org", plan.PlanPro)
	if err != nil {
		return nil, fmt.Errorf("seed organization: %w", err)
	}
	u, err := authService.Register(ctx, auth.RegisterRequest{
		OrgID:    orgID,
		Email:    fmt.Sprintf("founder-%d@stress.test", time.Now().UnixNano()),
		Password: "stress-password",
		FullName: "Stress Founder",
		Role:     auth.RoleFounder,
	})
	if err != nil {
		return nil, fmt.Errorf("seed founder: %w", err)
	}
	env.Founder = auth.Principal{UserID: u.ID, OrgID: orgID, Role: u.Role}

	c, err := clients.Create(ctx, client.CreateParams{
		OrgID:   orgID,
		Name:    "Stress Client",
		Email:   "client@stress.test",
		Company: "Stress Co",
	})
	if err != nil {
		return nil, fmt.Errorf("seed client: %w", err)
	}
	env.ClientID = c.ID
	return env, nil
}

// NewCommitment creates a draft owned by the founder.
func (e *Env) NewCommitment(ctx context.Context, title string) (commitment.Commitment, error) {
	return e.Commitments.Create(ctx, e.Founder, commitment.CreateParams{
		ClientID: e.ClientID,
		Title:    title,
		Amount:   decimal.RequireFromString("1000.00"),
		Currency: "USD",
	})
}
