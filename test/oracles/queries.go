package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Oracle is a query that must return no rows while the system is healthy.
type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_one_open_change_request",
			SQL: `SELECT commitment_id, COUNT(*) FROM change_requests
                  WHERE status = 'OPEN'
                  GROUP BY commitment_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_single_approval_per_version",
			SQL: `SELECT commitment_id, commitment_version, COUNT(*) FROM approval_events
                  WHERE event_type = 'CLIENT_APPROVED'
                  GROUP BY commitment_id, commitment_version HAVING COUNT(*) > 1`,
		},
		{
			Name: "O3_lineage_chain",
			SQL: `SELECT c.id, c.version, p.version FROM commitments c
                  JOIN commitments p ON p.id = c.previous_commitment_id
                  WHERE c.version <> p.version + 1
                     OR c.root_commitment_id <> p.root_commitment_id
                     OR c.org_id <> p.org_id`,
		},
		{
			Name: "O4_unique_version_per_root",
			SQL: `SELECT root_commitment_id, version, COUNT(*) FROM commitments
                  GROUP BY root_commitment_id, version HAVING COUNT(*) > 1`,
		},
		{
			Name: "O5_change_request_forks_once",
			SQL: `SELECT previous_commitment_id, COUNT(*) FROM commitments
                  WHERE previous_commitment_id IS NOT NULL
                  GROUP BY previous_commitment_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O6_link_used_after_expiry",
			SQL:  `SELECT id, used_at, expires_at FROM secure_links WHERE used_at > expires_at`,
		},
		{
			Name: "O7_closed_without_timestamps",
			SQL: `SELECT id, status FROM commitments
                  WHERE (status = 'CLOSED' AND (delivered_at IS NULL OR accepted_at IS NULL))
                     OR (status IN ('DELIVERED', 'ACCEPTED') AND delivered_at IS NULL)`,
		},
		{
			Name: "O8_event_tenant_mismatch",
			SQL: `SELECT e.id FROM approval_events e
                  JOIN commitments c ON c.id = e.commitment_id
                  WHERE e.org_id <> c.org_id`,
		},
		{
			Name: "O9_append_only_guard",
			SQL: `SELECT 'missing_append_only_trigger' AS detail
                  WHERE NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'approval_events_append_only')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row
// text) or an empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
	}
	return "", "", nil
}
