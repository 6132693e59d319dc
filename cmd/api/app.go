package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Raguls333/noolix-sub001/audit"
	"github.com/Raguls333/noolix-sub001/auth"
	"github.com/Raguls333/noolix-sub001/client"
	"github.com/Raguls333/noolix-sub001/commitment"
	"github.com/Raguls333/noolix-sub001/config"
	"github.com/Raguls333/noolix-sub001/db"
	"github.com/Raguls333/noolix-sub001/httpapi"
	"github.com/Raguls333/noolix-sub001/memstore"
	"github.com/Raguls333/noolix-sub001/notify"
	"github.com/Raguls333/noolix-sub001/plan"
	"github.com/Raguls333/noolix-sub001/securelink"
)

// organizations creates tenants. Both stores implement it.
type organizations interface {
	CreateOrganization(ctx context.Context, name string, p plan.Plan) (string, error)
}

// app is the wired object graph shared by the subcommands.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redis.Client

	orgs        organizations
	plans       *plan.Gate
	auth        *auth.Service
	clients     *client.Service
	commitments *commitment.Service
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	var cache plan.Cache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			// The gate falls back to the database on every cache error.
			logger.Warn("redis unreachable, plan cache degraded", zap.Error(err))
		}
		cancel()
		cache = plan.NewRedisCache(a.redis)
	}

	deps := commitment.Deps{
		Notifier: notify.NewLogNotifier(logger.Named("notify")),
		Logger:   logger.Named("commitment"),
	}
	var (
		linkRepo   securelink.Repository
		eventRepo  audit.Repository
		clientRepo client.Repository
		userRepo   auth.Repository
		planSource plan.Source
	)

	switch cfg.Store {
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.DBMaxConns})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.pool = pool

		deps.Tx = db.NewTransactor(pool)
		deps.Commitments = commitment.NewRepository(pool)
		deps.ChangeRequests = commitment.NewChangeRequestRepository(pool)
		linkRepo = securelink.NewRepository(pool)
		eventRepo = audit.NewRepository(pool)
		clientRepo = client.NewRepository(pool)
		userRepo = auth.NewRepository(pool)
		source := plan.NewPGSource(pool)
		planSource, a.orgs = source, source

	case config.StoreMemory:
		store := memstore.New()
		deps.Tx = store.Transactor()
		deps.Commitments = store.Commitments()
		deps.ChangeRequests = store.ChangeRequests()
		linkRepo = store.Links()
		eventRepo = store.Events()
		clientRepo = store.Clients()
		userRepo = store.Users()
		planSource, a.orgs = store.Plans(), store.Plans()
		logger.Warn("using the in-memory store; data is lost on exit and writes are not transactional")

	default:
		a.Close()
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	a.auth = auth.NewService(userRepo, cfg.JWTSecret)
	a.clients = client.NewService(clientRepo)
	a.plans = plan.NewGate(planSource, cache, cfg.PlanCacheTTL, logger.Named("plan"))

	deps.Links = securelink.NewService(linkRepo, cfg.PublicBaseURL).
		WithTTL(securelink.PurposeApproval, cfg.ApprovalLinkTTL).
		WithTTL(securelink.PurposeAcceptance, cfg.AcceptanceLinkTTL)
	deps.Audit = audit.NewLog(eventRepo, logger.Named("audit"))
	deps.Clients = a.clients
	deps.Users = a.auth
	deps.Plans = a.plans
	a.commitments = commitment.NewService(deps)

	return a, nil
}

func (a *app) handler() *httpapi.Server {
	return httpapi.NewServer(a.commitments, a.auth, a.clients, a.logger.Named("http"))
}

// bootstrap creates an organization with its founder and returns a token
// for the founder.
func (a *app) bootstrap(ctx context.Context, orgName string, p plan.Plan, email, password, fullName string) (auth.Principal, string, error) {
	orgID, err := a.orgs.CreateOrganization(ctx, orgName, p)
	if err != nil {
		return auth.Principal{}, "", err
	}
	u, err := a.auth.Register(ctx, auth.RegisterRequest{
		OrgID:    orgID,
		Email:    email,
		Password: password,
		FullName: fullName,
		Role:     auth.RoleFounder,
	})
	if err != nil {
		return auth.Principal{}, "", err
	}
	principal := auth.Principal{UserID: u.ID, OrgID: orgID, Role: u.Role}
	token, err := a.auth.IssueToken(principal)
	if err != nil {
		return auth.Principal{}, "", err
	}
	return principal, token, nil
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
}
