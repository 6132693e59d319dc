package infra

import (
	"context"
	"os"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// DSNEnv names the variable that points the stress suite at an existing
// database instead of a container.
const DSNEnv = "STRESS_TEST_PG_DSN"

type PGContainer struct {
	C *postgres.PostgresContainer
}

// StartPostgres starts a Postgres 16 container and returns its DSN. A
// non-empty overrideDSN, or DSNEnv, is returned as is and nothing is started.
func StartPostgres(ctx context.Context, overrideDSN string) (*PGContainer, string, error) {
	if overrideDSN != "" {
		return &PGContainer{}, overrideDSN, nil
	}
	if dsn := os.Getenv(DSNEnv); dsn != "" {
		return &PGContainer{}, dsn, nil
	}

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("noolix"),
		postgres.WithUsername("noolix"),
		postgres.WithPassword("noolix"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, "", err
	}

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgC.Terminate(ctx)
		return nil, "", err
	}
	return &PGContainer{C: pgC}, dsn, nil
}

// Shared reports whether the DSN belongs to a database the suite did not
// start and therefore must not leave tables behind in.
func (p *PGContainer) Shared() bool {
	return p == nil || p.C == nil
}

func (p *PGContainer) Terminate(ctx context.Context) error {
	if p == nil || p.C == nil {
		return nil
	}
	return p.C.Terminate(ctx)
}
