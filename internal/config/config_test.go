package config

import "testing"

func TestValidate(t *testing.T) {
	base := func() *Config { return Default("oracle", "operator") }

	if err := base().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cfg := base()
	cfg.Protocol.FeeAmount = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero fee")
	}

	cfg = base()
	cfg.Protocol.StakeMinPct = 25
	cfg.Protocol.StakeMaxPct = 20
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for inverted stake bounds")
	}

	cfg = base()
	cfg.Protocol.Durations.Medium = 5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for decreasing durations")
	}

	cfg = base()
	cfg.Webhooks = []WebhookConfig{{URL: ""}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for webhook without url")
	}
}

func TestSameProtocol(t *testing.T) {
	a := Default("oracle", "operator")
	b := Default("oracle", "operator")
	if !a.SameProtocol(b) {
		t.Fatal("identical protocols should match")
	}
	// Mutable sections do not participate in the comparison.
	b.Server.JWTSecret = "s3cret"
	b.Oracle.AnalyzerURL = "http://localhost:5000"
	if !a.SameProtocol(b) {
		t.Fatal("server and oracle sections must not affect protocol equality")
	}
	b.Protocol.FeeAmount = 11
	if a.SameProtocol(b) {
		t.Fatal("changed fee should not match")
	}
	if a.SameProtocol(nil) {
		t.Fatal("nil config should not match")
	}
}

func TestFromYAML(t *testing.T) {
	cfg, err := FromYAML([]byte(`
protocol:
  fee_amount: 10
  fee_recipient: operator
  oracle_account: oracle
  stake_min_pct: 5
  stake_max_pct: 20
  durations:
    easy: 7
    medium: 30
    hard: 150
server:
  allow_dev_login: true
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Protocol.Durations.Hard != 150 {
		t.Fatalf("hard duration = %d, want 150", cfg.Protocol.Durations.Hard)
	}
	if !cfg.Server.AllowDevLogin {
		t.Fatal("allow_dev_login not parsed")
	}

	if _, err := FromYAML([]byte("protocol: {fee_amount: -1}")); err == nil {
		t.Fatal("expected validation error")
	}
}
