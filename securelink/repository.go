package securelink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Raguls333/noolix-sub001/apperr"
	"github.com/Raguls333/noolix-sub001/db"
)

// Repository persists secure links.
type Repository interface {
	Create(ctx context.Context, link Link) error
	// Consume marks the usable link matching hash and purpose as used at now
	// in one conditional write. It returns apperr.ErrLinkInvalid when no such
	// link exists, including when a concurrent consumer won the race.
	Consume(ctx context.Context, hash string, purpose Purpose, now time.Time) (Link, error)
	// Lookup returns the usable link matching hash and purpose without
	// consuming it.
	Lookup(ctx context.Context, hash string, purpose Purpose, now time.Time) (Link, error)
	ListForCommitment(ctx context.Context, orgID, commitmentID string) ([]Link, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool db.Querier
}

func NewRepository(pool db.Querier) *PGRepository {
	return &PGRepository{pool: pool}
}

const linkColumns = `id, org_id, commitment_id, commitment_version, purpose, token_hash, expires_at, used_at, created_at`

func (r *PGRepository) Create(ctx context.Context, link Link) error {
	const insertSQL = `
INSERT INTO secure_links (id, org_id, commitment_id, commitment_version, purpose, token_hash, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, insertSQL,
		link.ID, link.OrgID, link.CommitmentID, link.CommitmentVersion,
		link.Purpose, link.TokenHash, link.ExpiresAt, link.CreatedAt,
	); err != nil {
		return fmt.Errorf("securelink: insert link: %w", err)
	}
	return nil
}

func (r *PGRepository) Consume(ctx context.Context, hash string, purpose Purpose, now time.Time) (Link, error) {
	const updateSQL = `
UPDATE secure_links
SET used_at = $3
WHERE token_hash = $1
  AND purpose = $2
  AND used_at IS NULL
  AND expires_at > $3
RETURNING ` + linkColumns

	link, err := scanLink(db.Conn(ctx, r.pool).QueryRow(ctx, updateSQL, hash, purpose, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Link{}, apperr.ErrLinkInvalid
		}
		return Link{}, fmt.Errorf("securelink: consume: %w", err)
	}
	return link, nil
}

func (r *PGRepository) Lookup(ctx context.Context, hash string, purpose Purpose, now time.Time) (Link, error) {
	const query = `
SELECT ` + linkColumns + `
FROM secure_links
WHERE token_hash = $1
  AND purpose = $2
  AND used_at IS NULL
  AND expires_at > $3
`

	link, err := scanLink(db.Conn(ctx, r.pool).QueryRow(ctx, query, hash, purpose, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Link{}, apperr.ErrLinkInvalid
		}
		return Link{}, fmt.Errorf("securelink: lookup: %w", err)
	}
	return link, nil
}

func (r *PGRepository) ListForCommitment(ctx context.Context, orgID, commitmentID string) ([]Link, error) {
	const query = `
SELECT ` + linkColumns + `
FROM secure_links
WHERE org_id = $1 AND commitment_id = $2
ORDER BY created_at ASC
`

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, orgID, commitmentID)
	if err != nil {
		return nil, fmt.Errorf("securelink: list: %w", err)
	}
	defer rows.Close()

	var out []Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("securelink: scan: %w", err)
		}
		out = append(out, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("securelink: iterate: %w", err)
	}
	return out, nil
}

func scanLink(row pgx.Row) (Link, error) {
	var link Link
	err := row.Scan(
		&link.ID,
		&link.OrgID,
		&link.CommitmentID,
		&link.CommitmentVersion,
		&link.Purpose,
		&link.TokenHash,
		&link.ExpiresAt,
		&link.UsedAt,
		&link.CreatedAt,
	)
	return link, err
}
