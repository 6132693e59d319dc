package chaos

import (
	"context"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TerminateRandomBackend now and then kills one backend serving
// applicationName, leaving the caller's own connection alone.
func TerminateRandomBackend(ctx context.Context, pool *pgxpool.Pool, applicationName string, stop <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if rand.Intn(5) != 0 {
				continue
			}
			_, _ = pool.Exec(ctx, `SELECT pg_terminate_backend(pid) FROM pg_stat_activity
                                   WHERE datname = current_database()
                                     AND application_name = $1
                                     AND pid <> pg_backend_pid()
                                   ORDER BY random() LIMIT 1`, applicationName)
		}
	}
}
