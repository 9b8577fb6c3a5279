package app

import (
	"context"
	"database/sql"
	"fmt"

	"procline/internal/config"
	"procline/internal/db"
	"procline/internal/engine"
	"procline/internal/migrate"
)

// Setup opens the workspace database, runs migrations, loads the
// configuration and seeds the departments it declares. It is the shared
// entry point for the serve command and every CLI subcommand.
func Setup(ctx context.Context, workspace string) (engine.Engine, *config.Config, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return engine.Engine{}, nil, fmt.Errorf("load config: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return engine.Engine{}, nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("migrate: %w", err)
	}
	eng := engine.New(conn, cfg)
	if err := seedDepartments(ctx, conn, eng, cfg); err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("seed departments: %w", err)
	}
	return eng, cfg, nil
}

func seedDepartments(ctx context.Context, conn *sql.DB, eng engine.Engine, cfg *config.Config) error {
	if len(cfg.Departments) == 0 {
		return nil
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, d := range cfg.Departments {
		if err := eng.Repo.EnsureDepartment(ctx, tx, d.Code, d.Name); err != nil {
			return fmt.Errorf("department %s: %w", d.Code, err)
		}
	}
	return tx.Commit()
}
