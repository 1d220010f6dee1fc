// Package containers starts disposable infrastructure for integration tests.
package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/davidleathers/fraud-risk-engine/internal/infrastructure/database"
)

const (
	defaultPostgresImage = "postgres:16-alpine"
	fraudTestDatabase    = "fraud_test"
)

type postgresOptions struct {
	image   string
	migrate bool
}

// PostgresOption adjusts StartPostgres
type PostgresOption func(*postgresOptions)

// WithImage overrides the postgres image
func WithImage(image string) PostgresOption {
	return func(o *postgresOptions) { o.image = image }
}

// WithoutMigrations leaves the database empty
func WithoutMigrations() PostgresOption {
	return func(o *postgresOptions) { o.migrate = false }
}

// Postgres is a throwaway fraud database owned by one test
type Postgres struct {
	DSN string
}

// StartPostgres runs a postgres container for the life of tb and, unless
// WithoutMigrations is given, applies the embedded schema. The container is
// terminated by tb.Cleanup.
func StartPostgres(tb testing.TB, opts ...PostgresOption) *Postgres {
	tb.Helper()

	o := postgresOptions{image: defaultPostgresImage, migrate: true}
	for _, opt := range opts {
		opt(&o)
	}

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, o.image,
		postgres.WithDatabase(fraudTestDatabase),
		postgres.WithUsername("fraud"),
		postgres.WithPassword("fraud"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(tb, ctr)
	if err != nil {
		tb.Fatalf("start postgres: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		tb.Fatalf("postgres dsn: %v", err)
	}

	if o.migrate {
		db, err := database.OpenSQL(dsn)
		if err != nil {
			tb.Fatalf("open postgres: %v", err)
		}
		defer db.Close()
		if err := database.MigrateUp(db); err != nil {
			tb.Fatalf("migrate postgres: %v", err)
		}
	}

	return &Postgres{DSN: dsn}
}
