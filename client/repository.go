package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Raguls333/noolix-sub001/apperr"
	"github.com/Raguls333/noolix-sub001/db"
)

// Repository provides tenant-scoped access to clients.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Client, error)
	GetByID(ctx context.Context, orgID, id string) (Client, error)
	List(ctx context.Context, orgID string, limit int) ([]Client, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool db.Querier
}

// NewRepository wires a pgx-backed repository implementation.
func NewRepository(pool db.Querier) *PGRepository {
	return &PGRepository{pool: pool}
}

const clientColumns = `id, org_id, name, email, COALESCE(company, ''), deleted_at, created_at, updated_at`

func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Client, error) {
	const insertSQL = `
		INSERT INTO clients (org_id, name, email, company)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING ` + clientColumns

	c, err := scanClient(db.Conn(ctx, r.pool).QueryRow(ctx, insertSQL, params.OrgID, params.Name, params.Email, params.Company))
	if err != nil {
		return Client{}, fmt.Errorf("client: create: %w", err)
	}
	return c, nil
}

// GetByID fetches a live client. Soft-deleted rows are reported as not found.
func (r *PGRepository) GetByID(ctx context.Context, orgID, id string) (Client, error) {
	const query = `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE org_id = $1 AND id = $2 AND deleted_at IS NULL
	`

	c, err := scanClient(db.Conn(ctx, r.pool).QueryRow(ctx, query, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, apperr.NotFound("client %s not found", id)
		}
		return Client{}, fmt.Errorf("client: query by id: %w", err)
	}
	return c, nil
}

// List fetches up to limit live clients ordered by name.
func (r *PGRepository) List(ctx context.Context, orgID string, limit int) ([]Client, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE org_id = $1 AND deleted_at IS NULL
		ORDER BY name ASC
		LIMIT $2
	`

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("client: list: %w", err)
	}
	defer rows.Close()

	clients := make([]Client, 0, limit)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("client: scan: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("client: iterate: %w", err)
	}
	return clients, nil
}

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.OrgID, &c.Name, &c.Email, &c.Company, &c.DeletedAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
