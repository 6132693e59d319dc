package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Raguls333/noolix-sub001/db"
)

// Repository persists audit events. Implementations must never update or
// delete a stored event.
type Repository interface {
	Append(ctx context.Context, ev Event) error
	ListForCommitment(ctx context.Context, orgID, commitmentID string) ([]Event, error)
}

// PGRepository implements Repository backed by PostgreSQL. Writes join the
// transaction carried by ctx, if any.
type PGRepository struct {
	pool db.Querier
}

func NewRepository(pool db.Querier) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Append(ctx context.Context, ev Event) error {
	typ, userID, name, email, err := ActorColumns(ev.Actor)
	if err != nil {
		return err
	}

	meta := ev.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("audit: marshal metadata: %w", err)
	}

	const insertSQL = `
INSERT INTO approval_events (
    id, org_id, commitment_id, commitment_version,
    actor_type, actor_user_id, actor_name, actor_email,
    event_type, message, metadata, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
`

	if _, err := db.Conn(ctx, r.pool).Exec(ctx, insertSQL,
		ev.ID, ev.OrgID, ev.CommitmentID, ev.CommitmentVersion,
		typ, userID, name, email,
		ev.Type, ev.Message, metaBytes, ev.CreatedAt,
	); err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

func (r *PGRepository) ListForCommitment(ctx context.Context, orgID, commitmentID string) ([]Event, error) {
	const query = `
SELECT id, org_id, commitment_id, commitment_version,
       actor_type, actor_user_id, actor_name, actor_email,
       event_type, message, metadata, created_at
FROM approval_events
WHERE org_id = $1 AND commitment_id = $2
ORDER BY created_at ASC, seq ASC
`

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, orgID, commitmentID)
	if err != nil {
		return nil, fmt.Errorf("audit: list events: %w", err)
	}
	defer rows.Close()

	out := make([]Event, 0, 16)
	for rows.Next() {
		var (
			ev                  Event
			typ                 ActorType
			userID, name, email *string
			metaBytes           []byte
		)
		if err := rows.Scan(
			&ev.ID, &ev.OrgID, &ev.CommitmentID, &ev.CommitmentVersion,
			&typ, &userID, &name, &email,
			&ev.Type, &ev.Message, &metaBytes, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		if ev.Actor, err = ActorFromColumns(typ, userID, name, email); err != nil {
			return nil, err
		}
		if len(metaBytes) > 0 {
			if err := json.Unmarshal(metaBytes, &ev.Metadata); err != nil {
				return nil, fmt.Errorf("audit: decode metadata: %w", err)
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate events: %w", err)
	}
	return out, nil
}
