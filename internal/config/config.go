package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Ledger     LedgerConfig     `yaml:"ledger" mapstructure:"ledger"`
	Gmail      GmailConfig      `yaml:"gmail" mapstructure:"gmail"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Engine     EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Outreach   OutreachConfig   `yaml:"outreach" mapstructure:"outreach"`
	Qualifier  QualifierConfig  `yaml:"qualifier" mapstructure:"qualifier"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the audit store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LedgerConfig identifies the spreadsheet acting as the lead ledger.
// CredentialsFile is a Google credential JSON with spreadsheet scope.
type LedgerConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id" mapstructure:"spreadsheet_id"`
	Worksheet       string `yaml:"worksheet" mapstructure:"worksheet"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
}

// GmailConfig configures mailbox access for all sender identities.
type GmailConfig struct {
	TokensDir   string `yaml:"tokens_dir" mapstructure:"tokens_dir"`
	UnreadQuery string `yaml:"unread_query" mapstructure:"unread_query"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key                 string `yaml:"key" mapstructure:"key"`
	HaikuModel          string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel         string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
	MaxBatchSize        int    `yaml:"max_batch_size" mapstructure:"max_batch_size"`
	NoBatch             bool   `yaml:"no_batch" mapstructure:"no_batch"`
	SmallBatchThreshold int    `yaml:"small_batch_threshold" mapstructure:"small_batch_threshold"`
}

// EngineConfig tunes the reply dispatch engine.
type EngineConfig struct {
	PauseMin            time.Duration `yaml:"pause_min" mapstructure:"pause_min"`
	PauseMax            time.Duration `yaml:"pause_max" mapstructure:"pause_max"`
	OptOutKeywords      []string      `yaml:"opt_out_keywords" mapstructure:"opt_out_keywords"`
	PaymentInstructions string        `yaml:"payment_instructions" mapstructure:"payment_instructions"`
}

// OutreachConfig configures the outbound phases.
type OutreachConfig struct {
	SenderName   string `yaml:"sender_name" mapstructure:"sender_name"`
	FollowUpDays int    `yaml:"follow_up_days" mapstructure:"follow_up_days"`
}

// QualifierConfig configures website scraping for lead qualification.
type QualifierConfig struct {
	RatePerSec  float64       `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxChars    int           `yaml:"max_chars" mapstructure:"max_chars"`
	Concurrency int           `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig tunes the background health checker run by serve.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	SendVolumeThreshold  int     `yaml:"send_volume_threshold" mapstructure:"send_volume_threshold"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "outreach.db")
	// Empty defaults register the key so AutomaticEnv can fill it during
	// Unmarshal even when config.yaml omits the section.
	v.SetDefault("ledger.spreadsheet_id", "")
	v.SetDefault("ledger.worksheet", "Sheet1")
	v.SetDefault("ledger.credentials_file", "credentials.json")
	v.SetDefault("gmail.tokens_dir", "tokens")
	v.SetDefault("gmail.unread_query", "-category:promotions -category:social")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_batch_size", 100)
	v.SetDefault("anthropic.small_batch_threshold", 3)
	v.SetDefault("engine.pause_min", 20*time.Second)
	v.SetDefault("engine.pause_max", 75*time.Second)
	v.SetDefault("engine.payment_instructions", "You can pay via the invoice link we shared earlier. Reply with a screenshot once done.")
	v.SetDefault("outreach.sender_name", "SA Innovation Lab")
	v.SetDefault("outreach.follow_up_days", 3)
	v.SetDefault("qualifier.rate_per_sec", 0.5)
	v.SetDefault("qualifier.timeout", 10*time.Second)
	v.SetDefault("qualifier.max_chars", 3000)
	v.SetDefault("qualifier.concurrency", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_rate_threshold", 0.3)
	v.SetDefault("monitoring.send_volume_threshold", 400)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
