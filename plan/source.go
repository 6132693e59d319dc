package plan

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Raguls333/noolix-sub001/apperr"
	"github.com/Raguls333/noolix-sub001/db"
)

// Source resolves the current plan of an organization.
type Source interface {
	PlanFor(ctx context.Context, orgID string) (Plan, error)
	SetPlan(ctx context.Context, orgID string, p Plan) error
}

// PGSource reads plans from the organizations table.
type PGSource struct {
	pool db.Querier
}

func NewPGSource(pool db.Querier) *PGSource {
	return &PGSource{pool: pool}
}

func (s *PGSource) PlanFor(ctx context.Context, orgID string) (Plan, error) {
	const query = `SELECT plan FROM organizations WHERE id = $1`

	var p Plan
	if err := db.Conn(ctx, s.pool).QueryRow(ctx, query, orgID).Scan(&p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound("organization %s not found", orgID)
		}
		return "", fmt.Errorf("plan: query organization: %w", err)
	}
	return p, nil
}

func (s *PGSource) SetPlan(ctx context.Context, orgID string, p Plan) error {
	const updateSQL = `UPDATE organizations SET plan = $2, updated_at = now() WHERE id = $1`

	tag, err := db.Conn(ctx, s.pool).Exec(ctx, updateSQL, orgID, p)
	if err != nil {
		return fmt.Errorf("plan: update organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("organization %s not found", orgID)
	}
	return nil
}

// CreateOrganization inserts an organization on plan p and returns its id.
func (s *PGSource) CreateOrganization(ctx context.Context, name string, p Plan) (string, error) {
	const insertSQL = `INSERT INTO organizations (name, plan) VALUES ($1, $2) RETURNING id`

	if !p.Valid() {
		return "", apperr.New(apperr.KindValidation, "unknown plan %q", p)
	}
	var id string
	if err := db.Conn(ctx, s.pool).QueryRow(ctx, insertSQL, name, p).Scan(&id); err != nil {
		return "", fmt.Errorf("plan: insert organization: %w", err)
	}
	return id, nil
}
