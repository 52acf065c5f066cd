package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"quant_go/internal/domain"
)

// Config holds the whole application configuration. After LoadConfig
// parses the file, sensitive values may be overridden via environment
// variables.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Feed struct {
		WSURL             string   `yaml:"ws_url"`
		Token             string   `yaml:"token"`
		Symbols           []string `yaml:"symbols"` // unified symbols to subscribe
		ReconnectDelaySec int      `yaml:"reconnect_delay_sec"`
	} `yaml:"feed"`

	// Contracts preloads the registry; live gateways may register more.
	Contracts []domain.Contract `yaml:"contracts"`

	Indexes []IndexConfig `yaml:"indexes"`

	Accounts []AccountConfig `yaml:"accounts"`

	Modules []ModuleConfig `yaml:"modules"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// IndexConfig declares one synthetic index basket.
type IndexConfig struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"` // unified symbols of basket members
}

// AccountConfig declares one simulated venue account.
type AccountConfig struct {
	ID string `yaml:"id"`
}

// BindingConfig binds a module instrument to a venue account.
type BindingConfig struct {
	UnifiedSymbol string `yaml:"unified_symbol"`
	AccountID     string `yaml:"account_id"`
}

// ModuleConfig declares one strategy module runtime.
type ModuleConfig struct {
	ModuleName       string          `yaml:"module_name"`
	Strategy         string          `yaml:"strategy"`
	InitBalance      float64         `yaml:"init_balance"`
	CacheSize        int             `yaml:"cache_size"`
	DefaultVolume    int             `yaml:"default_volume"`
	NumOfMinPerBar   int             `yaml:"num_of_min_per_bar"`
	OrderPlusTick    int             `yaml:"order_plus_tick"`
	MarginRatio      float64         `yaml:"margin_ratio"`
	CommissionPerLot float64         `yaml:"commission_per_lot"`
	ClosingPolicy    string          `yaml:"closing_policy"`
	MaxOrdersPerDay  int             `yaml:"max_orders_per_day"`
	Enabled          bool            `yaml:"enabled"`
	Params           map[string]any  `yaml:"params"` // strategy-specific settings
	Bindings         []BindingConfig `yaml:"bindings"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Feed.WSURL != "" && !hasPrefix(c.Feed.WSURL, "ws://") && !hasPrefix(c.Feed.WSURL, "wss://") {
		return fmt.Errorf("invalid feed WS URL: %s", c.Feed.WSURL)
	}
	if len(c.Contracts) == 0 {
		return fmt.Errorf("at least one contract is required")
	}
	known := make(map[string]bool, len(c.Contracts))
	for _, contract := range c.Contracts {
		if contract.UnifiedSymbol == "" {
			return fmt.Errorf("contract %q missing unified symbol", contract.Symbol)
		}
		known[contract.UnifiedSymbol] = true
	}
	for _, idx := range c.Indexes {
		if len(idx.Members) == 0 {
			return fmt.Errorf("index %q has no members", idx.Name)
		}
		for _, member := range idx.Members {
			if !known[member] {
				return fmt.Errorf("index %q references unknown contract %s", idx.Name, member)
			}
		}
	}
	accounts := make(map[string]bool, len(c.Accounts))
	for _, account := range c.Accounts {
		if account.ID == "" {
			return fmt.Errorf("account with empty id")
		}
		accounts[account.ID] = true
	}
	for _, mod := range c.Modules {
		if mod.ModuleName == "" {
			return fmt.Errorf("module with empty name")
		}
		if mod.InitBalance <= 0 {
			return fmt.Errorf("module %q needs a positive init balance", mod.ModuleName)
		}
		if len(mod.Bindings) == 0 {
			return fmt.Errorf("module %q has no bindings", mod.ModuleName)
		}
		for _, b := range mod.Bindings {
			if !known[b.UnifiedSymbol] {
				return fmt.Errorf("module %q binds unknown contract %s", mod.ModuleName, b.UnifiedSymbol)
			}
			if !accounts[b.AccountID] {
				return fmt.Errorf("module %q binds unknown account %s", mod.ModuleName, b.AccountID)
			}
		}
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv replaces values from environment variables when present.
func overrideWithEnv(cfg *Config) {
	if token := os.Getenv("QUANT_FEED_TOKEN"); token != "" {
		cfg.Feed.Token = token
	}
	if url := os.Getenv("QUANT_FEED_WS_URL"); url != "" {
		cfg.Feed.WSURL = url
	}
	if path := os.Getenv("QUANT_STORAGE_PATH"); path != "" {
		cfg.Storage.Path = path
	}
}
