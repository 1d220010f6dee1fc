package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-risk-engine/internal/infrastructure/config"
	"github.com/davidleathers/fraud-risk-engine/internal/infrastructure/database"
	"github.com/davidleathers/fraud-risk-engine/internal/infrastructure/telemetry"
)

// migrator is the subset of *migrate.Migrate the CLI drives
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
}

func main() {
	var (
		configPath = flag.String("config", config.DefaultConfigFile, "Path to configuration file")
		action     = flag.String("action", "up", "Migration action: up, down, version, force")
		steps      = flag.Int("steps", 0, "Number of migrations to apply or roll back (0 = all)")
		version    = flag.Int("version", -1, "Target version for the force action")
	)
	flag.Parse()

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to setup logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.OpenSQL(cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	m, err := database.NewMigrator(db)
	if err != nil {
		logger.Fatal("failed to create migrator", zap.Error(err))
	}

	if err := runAction(m, *action, *steps, *version, logger); err != nil {
		logger.Error("migration failed", zap.String("action", *action), zap.Error(err))
		os.Exit(1)
	}
}

// runAction executes one migration action. Having nothing to apply is not
// an error.
func runAction(m migrator, action string, steps, target int, logger *zap.Logger) error {
	var err error
	switch action {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case "version":
	case "force":
		if target < 0 {
			return fmt.Errorf("force requires -version")
		}
		err = m.Force(target)
	default:
		return fmt.Errorf("unknown action %q", action)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migrations to apply", zap.String("action", action))
		err = nil
	}
	if err != nil {
		return err
	}

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("database has no applied migrations", zap.String("action", action))
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	logger.Info("schema version",
		zap.String("action", action),
		zap.Uint("version", v),
		zap.Bool("dirty", dirty))
	return nil
}
