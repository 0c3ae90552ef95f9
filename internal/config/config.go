package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"coverline/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Product   ProductConfig   `mapstructure:"product"`
	Claims    ClaimsConfig    `mapstructure:"claims"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Pools     PoolsConfig     `mapstructure:"pools"`
	Farming   FarmingConfig   `mapstructure:"farming"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs the sweep cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// ChainConfig covers ledger-clock and on-chain data access.
type ChainConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	ChainID        int64         `mapstructure:"chain_id"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ProductConfig defines the deployed coverage product.
type ProductConfig struct {
	Name            string   `mapstructure:"name"`
	Address         string   `mapstructure:"address"`
	Governor        string   `mapstructure:"governor"`
	Appraiser       string   `mapstructure:"appraiser"`
	Price           uint64   `mapstructure:"price"`
	MinPeriodBlocks uint64   `mapstructure:"min_period_blocks"`
	MaxPeriodBlocks uint64   `mapstructure:"max_period_blocks"`
	Signers         []string `mapstructure:"signers"`
}

// ClaimsConfig tunes the escrow.
type ClaimsConfig struct {
	Cooldown time.Duration `mapstructure:"cooldown"`
}

// RiskConfig describes strategies and weights.
type RiskConfig struct {
	CoverDivisor uint32           `mapstructure:"cover_divisor"`
	Strategies   []StrategyConfig `mapstructure:"strategies"`
}

// StrategyConfig is one capital-allocation bucket.
type StrategyConfig struct {
	Name          string `mapstructure:"name"`
	Weight        uint32 `mapstructure:"weight"`
	ProductWeight uint32 `mapstructure:"product_weight"`
}

// PoolsConfig lists underwriting-pool balance endpoints.
type PoolsConfig struct {
	Feeds          []PoolFeedConfig `mapstructure:"feeds"`
	RequestTimeout time.Duration    `mapstructure:"request_timeout"`
}

// PoolFeedConfig is one pool endpoint.
type PoolFeedConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// FarmingConfig tunes the reward-options engine.
type FarmingConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	PoolAddress     string        `mapstructure:"pool_address"`
	SwapRateBps     uint32        `mapstructure:"swap_rate_bps"`
	TWAPInterval    time.Duration `mapstructure:"twap_interval"`
	MinObservations int           `mapstructure:"min_observations"`
	ExpiryDuration  time.Duration `mapstructure:"expiry_duration"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled                 bool           `mapstructure:"enabled"`
	UtilizationThresholdPct float64        `mapstructure:"utilization_threshold_pct"`
	Cooldown                time.Duration  `mapstructure:"cooldown"`
	Channels                []string       `mapstructure:"channels"`
	Telegram                TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram alert delivery.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("COVERLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "coverline")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x636f7665))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("chain.chain_id", int64(1))
	v.SetDefault("chain.request_timeout", "10s")

	v.SetDefault("product.name", "coverline-core")
	v.SetDefault("product.address", "0x0000000000000000000000000000000000000c07")
	v.SetDefault("product.governor", "0x0000000000000000000000000000000000000001")
	v.SetDefault("product.appraiser", "declared")
	v.SetDefault("product.price", uint64(10_000))
	v.SetDefault("product.min_period_blocks", uint64(6450))
	v.SetDefault("product.max_period_blocks", uint64(2_354_250))

	v.SetDefault("claims.cooldown", "1h")

	v.SetDefault("risk.cover_divisor", uint32(10))

	v.SetDefault("pools.request_timeout", "10s")

	v.SetDefault("farming.enabled", false)
	v.SetDefault("farming.swap_rate_bps", uint32(7500))
	v.SetDefault("farming.twap_interval", "1h")
	v.SetDefault("farming.min_observations", 4)
	v.SetDefault("farming.expiry_duration", "720h")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.utilization_threshold_pct", 90.0)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Product.Name == "" {
		return fmt.Errorf("product.name must not be empty")
	}
	if c.Product.Price == 0 {
		return fmt.Errorf("product.price must be greater than zero")
	}
	switch c.Product.Appraiser {
	case "declared", "erc20":
	default:
		return fmt.Errorf("product.appraiser must be either \"declared\" or \"erc20\"")
	}
	if c.Product.Appraiser == "erc20" && c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url must be configured for the erc20 appraiser")
	}
	if c.Product.MinPeriodBlocks == 0 || c.Product.MinPeriodBlocks > c.Product.MaxPeriodBlocks {
		return fmt.Errorf("product period bounds are invalid")
	}
	if c.Claims.Cooldown <= 0 {
		return fmt.Errorf("claims.cooldown must be greater than zero")
	}
	if c.Alerting.UtilizationThresholdPct < 0 {
		return fmt.Errorf("alerting.utilization_threshold_pct cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token must be configured")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id must be configured")
		}
	}
	for _, s := range c.Risk.Strategies {
		if s.Name == "" {
			return fmt.Errorf("risk strategy name must not be empty")
		}
		if s.Weight == 0 {
			return fmt.Errorf("risk strategy %q weight must be greater than zero", s.Name)
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
