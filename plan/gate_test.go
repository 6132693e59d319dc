package plan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raguls333/noolix-sub001/apperr"
)

type fakeSource struct {
	plans map[string]Plan
	reads int
}

func (f *fakeSource) PlanFor(_ context.Context, orgID string) (Plan, error) {
	f.reads++
	p, ok := f.plans[orgID]
	if !ok {
		return "", apperr.NotFound("organization %s not found", orgID)
	}
	return p, nil
}

func (f *fakeSource) SetPlan(_ context.Context, orgID string, p Plan) error {
	f.plans[orgID] = p
	return nil
}

type fakeCache struct {
	values map[string]string
	getErr error
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (f *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.values[key] = value
	return nil
}

func (f *fakeCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func TestIsFeatureAllowedMatrix(t *testing.T) {
	assert.False(t, IsFeatureAllowed(PlanFree, FeatureAssignment))
	assert.True(t, IsFeatureAllowed(PlanStarter, FeatureAssignment))
	assert.False(t, IsFeatureAllowed(PlanStarter, FeatureAcceptanceProof))
	assert.True(t, IsFeatureAllowed(PlanPro, FeatureAcceptanceProof))
	assert.False(t, IsFeatureAllowed("ENTERPRISE", FeatureAssignment))
}

func TestGate_CachesResolvedPlan(t *testing.T) {
	source := &fakeSource{plans: map[string]Plan{"org-1": PlanPro}}
	cache := &fakeCache{values: map[string]string{}}
	gate := NewGate(source, cache, time.Minute, nil)

	ok, err := gate.IsFeatureAllowed(context.Background(), "org-1", FeatureAssignment)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gate.IsFeatureAllowed(context.Background(), "org-1", FeatureAcceptanceProof)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 1, source.reads)
	assert.Equal(t, "PRO", cache.values["plan:org:org-1"])
}

func TestGate_CacheFailureFallsBackToSource(t *testing.T) {
	source := &fakeSource{plans: map[string]Plan{"org-1": PlanFree}}
	cache := &fakeCache{values: map[string]string{}, getErr: errors.New("connection refused")}
	gate := NewGate(source, cache, time.Minute, nil)

	ok, err := gate.IsFeatureAllowed(context.Background(), "org-1", FeatureAssignment)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, source.reads)
}

func TestGate_ChangePlanInvalidatesCache(t *testing.T) {
	source := &fakeSource{plans: map[string]Plan{"org-1": PlanFree}}
	cache := &fakeCache{values: map[string]string{}}
	gate := NewGate(source, cache, time.Minute, nil)

	_, err := gate.PlanFor(context.Background(), "org-1")
	require.NoError(t, err)

	require.NoError(t, gate.ChangePlan(context.Background(), "org-1", PlanStarter))

	p, err := gate.PlanFor(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, PlanStarter, p)

	err = gate.ChangePlan(context.Background(), "org-1", "GOLD")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestGate_UnknownOrganization(t *testing.T) {
	gate := NewGate(&fakeSource{plans: map[string]Plan{}}, nil, 0, nil)

	_, err := gate.IsFeatureAllowed(context.Background(), "missing", FeatureAssignment)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
