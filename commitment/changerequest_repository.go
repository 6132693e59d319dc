package commitment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Raguls333/noolix-sub001/apperr"
	"github.com/Raguls333/noolix-sub001/audit"
	"github.com/Raguls333/noolix-sub001/db"
)

// openChangeRequestIndex enforces a single open change request per commitment.
const openChangeRequestIndex = "change_requests_one_open_idx"

// ChangeRequestRepository persists change requests.
type ChangeRequestRepository interface {
	// Insert stores cr. A second open request for the same commitment fails
	// with apperr.ErrConflict.
	Insert(ctx context.Context, cr ChangeRequest) error
	Get(ctx context.Context, orgID, id string) (ChangeRequest, error)
	FindOpen(ctx context.Context, orgID, commitmentID string) (ChangeRequest, bool, error)
	Update(ctx context.Context, cr ChangeRequest) error
	ListForCommitment(ctx context.Context, orgID, commitmentID string) ([]ChangeRequest, error)
}

// PGChangeRequestRepository implements ChangeRequestRepository backed by PostgreSQL.
type PGChangeRequestRepository struct {
	pool db.Querier
}

func NewChangeRequestRepository(pool db.Querier) *PGChangeRequestRepository {
	return &PGChangeRequestRepository{pool: pool}
}

const changeRequestColumns = `
    id, org_id, commitment_id, commitment_version, reason, status, previous_status,
    requested_by_type, requested_by_user_id, requested_by_name, requested_by_email,
    resolved_at, resolution_note, created_version_id, created_at, updated_at`

func (r *PGChangeRequestRepository) Insert(ctx context.Context, cr ChangeRequest) error {
	typ, userID, name, email, err := audit.ActorColumns(cr.RequestedBy)
	if err != nil {
		return err
	}

	const insertSQL = `
INSERT INTO change_requests (
    id, org_id, commitment_id, commitment_version, reason, status, previous_status,
    requested_by_type, requested_by_user_id, requested_by_name, requested_by_email,
    created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
`

	_, err = db.Conn(ctx, r.pool).Exec(ctx, insertSQL,
		cr.ID, cr.OrgID, cr.CommitmentID, cr.CommitmentVersion, cr.Reason, cr.Status, cr.PreviousStatus,
		typ, userID, name, email,
		cr.CreatedAt, cr.UpdatedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err, openChangeRequestIndex) {
			return apperr.Wrap(apperr.KindConflict, err, "commitment %s already has an open change request", cr.CommitmentID)
		}
		return fmt.Errorf("commitment: insert change request: %w", err)
	}
	return nil
}

func (r *PGChangeRequestRepository) Get(ctx context.Context, orgID, id string) (ChangeRequest, error) {
	query := `SELECT ` + changeRequestColumns + `
FROM change_requests
WHERE org_id = $1 AND id = $2`
	if _, inTx := db.TxFrom(ctx); inTx {
		query += ` FOR UPDATE`
	}

	cr, err := scanChangeRequest(db.Conn(ctx, r.pool).QueryRow(ctx, query, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChangeRequest{}, apperr.NotFound("change request %s not found", id)
		}
		return ChangeRequest{}, fmt.Errorf("commitment: get change request: %w", err)
	}
	return cr, nil
}

func (r *PGChangeRequestRepository) FindOpen(ctx context.Context, orgID, commitmentID string) (ChangeRequest, bool, error) {
	const query = `SELECT ` + changeRequestColumns + `
FROM change_requests
WHERE org_id = $1 AND commitment_id = $2 AND status = 'OPEN'`

	cr, err := scanChangeRequest(db.Conn(ctx, r.pool).QueryRow(ctx, query, orgID, commitmentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChangeRequest{}, false, nil
		}
		return ChangeRequest{}, false, fmt.Errorf("commitment: find open change request: %w", err)
	}
	return cr, true, nil
}

func (r *PGChangeRequestRepository) Update(ctx context.Context, cr ChangeRequest) error {
	const updateSQL = `
UPDATE change_requests
SET status = $3,
    resolved_at = $4,
    resolution_note = $5,
    created_version_id = $6,
    updated_at = $7
WHERE org_id = $1 AND id = $2
`

	tag, err := db.Conn(ctx, r.pool).Exec(ctx, updateSQL,
		cr.OrgID, cr.ID, cr.Status, cr.ResolvedAt, cr.ResolutionNote, cr.CreatedVersionID, cr.UpdatedAt)
	if err != nil {
		return fmt.Errorf("commitment: update change request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("change request %s not found", cr.ID)
	}
	return nil
}

func (r *PGChangeRequestRepository) ListForCommitment(ctx context.Context, orgID, commitmentID string) ([]ChangeRequest, error) {
	const query = `SELECT ` + changeRequestColumns + `
FROM change_requests
WHERE org_id = $1 AND commitment_id = $2
ORDER BY created_at DESC`

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, orgID, commitmentID)
	if err != nil {
		return nil, fmt.Errorf("commitment: list change requests: %w", err)
	}
	defer rows.Close()

	out := make([]ChangeRequest, 0, 4)
	for rows.Next() {
		cr, err := scanChangeRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("commitment: scan change request: %w", err)
		}
		out = append(out, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("commitment: iterate change requests: %w", err)
	}
	return out, nil
}

func scanChangeRequest(row pgx.Row) (ChangeRequest, error) {
	var (
		cr                  ChangeRequest
		typ                 audit.ActorType
		userID, name, email *string
	)
	err := row.Scan(
		&cr.ID, &cr.OrgID, &cr.CommitmentID, &cr.CommitmentVersion, &cr.Reason, &cr.Status, &cr.PreviousStatus,
		&typ, &userID, &name, &email,
		&cr.ResolvedAt, &cr.ResolutionNote, &cr.CreatedVersionID, &cr.CreatedAt, &cr.UpdatedAt,
	)
	if err != nil {
		return ChangeRequest{}, err
	}
	if cr.RequestedBy, err = audit.ActorFromColumns(typ, userID, name, email); err != nil {
		return ChangeRequest{}, err
	}
	return cr, nil
}
