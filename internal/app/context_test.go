package app

import (
	"context"
	"errors"
	"os"
	"testing"

	"bountyline/internal/config"

	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, workspace string, cfg *config.Config) {
	t.Helper()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(config.Path(workspace), data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestOpenSeedsProtocolFromFile(t *testing.T) {
	workspace := t.TempDir()
	cfg := config.Default("the-oracle", "the-operator")
	cfg.Protocol.FeeAmount = 25
	writeConfig(t, workspace, cfg)

	conn, resolved, err := Open(context.Background(), workspace)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if resolved.Protocol.FeeAmount != 25 || resolved.Protocol.OracleAccount != "the-oracle" {
		t.Fatalf("resolved protocol: %+v", resolved.Protocol)
	}
}

func TestOpenWithoutFileUsesStoredProtocol(t *testing.T) {
	workspace := t.TempDir()
	cfg := config.Default("the-oracle", "the-operator")
	writeConfig(t, workspace, cfg)

	conn, _, err := Open(context.Background(), workspace)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	conn.Close()

	// The file is gone but the database remembers the protocol.
	if err := os.Remove(config.Path(workspace)); err != nil {
		t.Fatalf("remove config: %v", err)
	}
	conn, resolved, err := Open(context.Background(), workspace)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer conn.Close()
	if resolved.Protocol.OracleAccount != "the-oracle" {
		t.Fatalf("stored oracle account = %s", resolved.Protocol.OracleAccount)
	}
}

func TestOpenRejectsChangedProtocol(t *testing.T) {
	workspace := t.TempDir()
	cfg := config.Default("the-oracle", "the-operator")
	writeConfig(t, workspace, cfg)

	conn, _, err := Open(context.Background(), workspace)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	conn.Close()

	cfg.Protocol.FeeAmount = 99
	writeConfig(t, workspace, cfg)
	if _, _, err := Open(context.Background(), workspace); !errors.Is(err, ErrProtocolMismatch) {
		t.Fatalf("expected ErrProtocolMismatch, got %v", err)
	}
}

func TestOpenAllowsMutableChanges(t *testing.T) {
	workspace := t.TempDir()
	cfg := config.Default("the-oracle", "the-operator")
	writeConfig(t, workspace, cfg)

	conn, _, err := Open(context.Background(), workspace)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	conn.Close()

	cfg.Server.AllowDevLogin = true
	cfg.Oracle.AnalyzerURL = "http://localhost:5000"
	writeConfig(t, workspace, cfg)
	conn, resolved, err := Open(context.Background(), workspace)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer conn.Close()
	if !resolved.Server.AllowDevLogin || resolved.Oracle.AnalyzerURL == "" {
		t.Fatalf("mutable sections not picked up: %+v", resolved)
	}
}
