package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bountyline/internal/config"
	"bountyline/internal/db"
	"bountyline/internal/migrate"
	"bountyline/internal/repo"
)

// ErrProtocolMismatch means the on-disk config disagrees with the protocol
// parameters the database was initialized with. Those parameters never
// change after init; fix the file, not the database.
var ErrProtocolMismatch = errors.New("protocol parameters differ from the initialized database")

// Open opens the workspace database, applies migrations and resolves the
// effective config. The protocol section is seeded into the database on
// first use and treated as immutable afterwards: a bountyline.yml whose
// protocol section no longer matches is rejected.
func Open(ctx context.Context, workspace string) (*sql.DB, *config.Config, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := ResolveConfig(ctx, workspace, repo.Repo{DB: conn})
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, cfg, nil
}

// ResolveConfig reconciles bountyline.yml with the protocol parameters
// stored in the database. The stored copy wins; the file may only add
// server, webhook and oracle settings on top of it.
func ResolveConfig(ctx context.Context, workspace string, r repo.Repo) (*config.Config, error) {
	fileCfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	stored, err := r.GetProtocolConfig(ctx)
	if errors.Is(err, repo.ErrNotFound) {
		if fileCfg == nil {
			fileCfg = config.Default("", "")
		}
		now := time.Now().UTC().Format(time.RFC3339)
		if err := r.InsertProtocolConfig(ctx, fileCfg, now); err != nil {
			return nil, fmt.Errorf("seed protocol config: %w", err)
		}
		return fileCfg, nil
	}
	if err != nil {
		return nil, err
	}
	if fileCfg == nil {
		return stored, nil
	}
	if !stored.SameProtocol(fileCfg) {
		return nil, fmt.Errorf("%w: remove the protocol changes from %s", ErrProtocolMismatch, config.Path(workspace))
	}
	// Mutable sections come from the file, protocol from the database.
	fileCfg.Protocol = stored.Protocol
	return fileCfg, nil
}
