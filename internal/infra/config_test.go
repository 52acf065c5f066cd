package infra

import (
	"os"
	"path/filepath"
	"testing"
)

const validConfig = `
app:
  name: quant-go
feed:
  ws_url: wss://feed.example.com/market
  symbols: [rb2510@SHFE@FUTURES]
contracts:
  - unified_symbol: rb2510@SHFE@FUTURES
    symbol: rb2510
    exchange: SHFE
    product_class: FUTURES
    price_tick: 1
    multiplier: 10
indexes:
  - name: rb-index
    members: [rb2510@SHFE@FUTURES]
accounts:
  - id: sim-main
modules:
  - module_name: demo
    strategy: sma_cross
    init_balance: 100000
    bindings:
      - unified_symbol: rb2510@SHFE@FUTURES
        account_id: sim-main
storage:
  path: data/quant.db
logging:
  level: info
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigValid(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.App.Name != "quant-go" {
		t.Errorf("app name = %q", cfg.App.Name)
	}
	if len(cfg.Modules) != 1 || cfg.Modules[0].Strategy != "sma_cross" {
		t.Errorf("unexpected modules %+v", cfg.Modules)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("QUANT_FEED_TOKEN", "secret-token")
	t.Setenv("QUANT_STORAGE_PATH", "/tmp/override.db")

	cfg, err := LoadConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Feed.Token != "secret-token" {
		t.Errorf("token not overridden, got %q", cfg.Feed.Token)
	}
	if cfg.Storage.Path != "/tmp/override.db" {
		t.Errorf("storage path not overridden, got %q", cfg.Storage.Path)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad ws url", func(c *Config) { c.Feed.WSURL = "http://nope" }},
		{"no contracts", func(c *Config) { c.Contracts = nil }},
		{"index unknown member", func(c *Config) { c.Indexes[0].Members = []string{"missing@X@FUTURES"} }},
		{"module zero balance", func(c *Config) { c.Modules[0].InitBalance = 0 }},
		{"module no bindings", func(c *Config) { c.Modules[0].Bindings = nil }},
		{"binding unknown account", func(c *Config) { c.Modules[0].Bindings[0].AccountID = "ghost" }},
		{"empty storage path", func(c *Config) { c.Storage.Path = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, validConfig))
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
