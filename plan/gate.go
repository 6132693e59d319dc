package plan

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Raguls333/noolix-sub001/apperr"
)

const defaultCacheTTL = 5 * time.Minute

// Gate resolves organization plans through an optional cache. Cache failures
// degrade to a source read and are never surfaced.
type Gate struct {
	source Source
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewGate(source Source, cache Cache, ttl time.Duration, logger *zap.Logger) *Gate {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{source: source, cache: cache, ttl: ttl, logger: logger}
}

// PlanFor returns the organization's plan.
func (g *Gate) PlanFor(ctx context.Context, orgID string) (Plan, error) {
	key := cacheKey(orgID)
	if g.cache != nil {
		v, err := g.cache.Get(ctx, key)
		switch {
		case err == nil && Plan(v).Valid():
			return Plan(v), nil
		case err != nil && !errors.Is(err, ErrCacheMiss):
			g.logger.Warn("plan cache read failed", zap.String("org_id", orgID), zap.Error(err))
		}
	}

	p, err := g.source.PlanFor(ctx, orgID)
	if err != nil {
		return "", err
	}

	if g.cache != nil {
		if err := g.cache.Set(ctx, key, string(p), g.ttl); err != nil {
			g.logger.Warn("plan cache write failed", zap.String("org_id", orgID), zap.Error(err))
		}
	}
	return p, nil
}

// IsFeatureAllowed reports whether the organization's plan includes f.
func (g *Gate) IsFeatureAllowed(ctx context.Context, orgID string, f Feature) (bool, error) {
	p, err := g.PlanFor(ctx, orgID)
	if err != nil {
		return false, err
	}
	return IsFeatureAllowed(p, f), nil
}

// ChangePlan moves the organization to p and drops the cached value.
func (g *Gate) ChangePlan(ctx context.Context, orgID string, p Plan) error {
	if !p.Valid() {
		return apperr.New(apperr.KindValidation, "unknown plan %q", p)
	}
	if err := g.source.SetPlan(ctx, orgID, p); err != nil {
		return err
	}
	if g.cache != nil {
		if err := g.cache.Del(ctx, cacheKey(orgID)); err != nil {
			g.logger.Warn("plan cache invalidation failed", zap.String("org_id", orgID), zap.Error(err))
		}
	}
	g.logger.Info("organization plan changed", zap.String("org_id", orgID), zap.String("plan", string(p)))
	return nil
}

func cacheKey(orgID string) string {
	return "plan:org:" + orgID
}
