package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Raguls333/noolix-sub001/test/actors"
	"github.com/Raguls333/noolix-sub001/test/chaos"
	"github.com/Raguls333/noolix-sub001/test/infra"
	"github.com/Raguls333/noolix-sub001/test/oracles"
)

var (
	flDuration    = flag.Duration("duration", 30*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 4, "number of concurrent racers per contested operation")
	flChaos       = flag.Bool("chaos", false, "terminate random database backends while running")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

func TestCommitmentConcurrency(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test skipped in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+90*time.Second)
	defer cancel()

	if *flDSN == "" && os.Getenv(infra.DSNEnv) == "" && !dockerAvailable(ctx) {
		t.Skipf("no docker and neither -dsn nor %s set", infra.DSNEnv)
	}

	pgC, dsn, err := infra.StartPostgres(ctx, *flDSN)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	defer pgC.Terminate(context.Background())

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, pgC.Shared(), int32(4*(*flConcurrency)+8))
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	env, err := infra.NewEnv(ctx, pool, zap.NewNop())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	draft, err := env.NewCommitment(ctx, "contested draft")
	if err != nil {
		t.Fatalf("seed draft: %v", err)
	}

	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	g.Go(func() error { return actors.ApprovalRacer(ctx2, env, *flConcurrency, *flChaos, stop) })
	g.Go(func() error { return actors.ChangeRequestRacer(ctx2, env, *flConcurrency, *flChaos, stop) })
	for i := 0; i < *flConcurrency; i++ {
		g.Go(func() error { return actors.Updater(ctx2, env, draft.ID, *flChaos, stop) })
	}
	g.Go(func() error { return actors.Tamperer(ctx2, env, stop) })
	if *flChaos {
		go chaos.TerminateRandomBackend(ctx2, pool, infra.ApplicationName, stop)
	}

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var failed bool
loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx2.Done():
			break loop
		case <-ticker.C:
			name, row, err := oracles.Run(ctx2, pool)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break loop
				}
				if *flChaos {
					t.Logf("oracle error under chaos: %v", err)
					continue
				}
				t.Fatalf("oracle error: %v", err)
			}
			if name != "" {
				failed = true
				dumpRecent(t, ctx2, pool)
				t.Fatalf("oracle %s failed. First row: %s", name, row)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !failed {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			dumpRecent(t, context.Background(), pool)
			t.Fatalf("actors errored: %v", err)
		}
	}

	name, row, err := oracles.Run(context.Background(), pool)
	if err != nil {
		t.Fatalf("final oracle run: %v", err)
	}
	if name != "" {
		t.Fatalf("oracle %s failed after run. First row: %s", name, row)
	}
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

func dumpRecent(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	type dump struct {
		name string
		sql  string
	}
	dumps := []dump{
		{"commitments", `SELECT id, root_commitment_id, version, status, updated_at FROM commitments ORDER BY updated_at DESC LIMIT 50`},
		{"change_requests", `SELECT id, commitment_id, status, created_version_id FROM change_requests ORDER BY updated_at DESC LIMIT 50`},
		{"secure_links", `SELECT id, commitment_id, commitment_version, purpose, used_at FROM secure_links ORDER BY created_at DESC LIMIT 50`},
		{"approval_events", `SELECT seq, commitment_id, commitment_version, event_type, created_at FROM approval_events ORDER BY seq DESC LIMIT 50`},
	}
	for _, d := range dumps {
		rows, err := pool.Query(ctx, d.sql)
		if err != nil {
			t.Logf("dump %s error: %v", d.name, err)
			continue
		}
		cols := rows.FieldDescriptions()
		t.Logf("-- %s --", d.name)
		for rows.Next() {
			vals, _ := rows.Values()
			buf := make([]any, 0, len(vals))
			for i := range vals {
				buf = append(buf, fmt.Sprintf("%s=%v", cols[i].Name, vals[i]))
			}
			t.Logf("%s", buf)
		}
		rows.Close()
	}
}
