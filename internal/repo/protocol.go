package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"bountyline/internal/config"
)

// GetProtocolConfig returns the protocol parameters stored at init.
func (r Repo) GetProtocolConfig(ctx context.Context) (*config.Config, error) {
	var raw string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM protocol_config WHERE id=1`).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("decode protocol config: %w", err)
	}
	return &cfg, nil
}

// InsertProtocolConfig stores the protocol parameters. The table holds a
// single row and the insert fails if one already exists; the parameters
// are immutable after init.
func (r Repo) InsertProtocolConfig(ctx context.Context, cfg *config.Config, now string) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode protocol config: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO protocol_config(id,config_json,created_at) VALUES (1,?,?)`,
		string(raw), now)
	return err
}
