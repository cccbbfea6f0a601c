package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/shopspring/decimal"
)

type AffiliateConfig struct {
	Env             string `yaml:"env" env-default:"local"`
	HTTPServer      `yaml:"http_server"`
	AffiliateDB     `yaml:"affiliate_db"`
	LogConfig       `yaml:"log_config"`
	KafkaService    `yaml:"kafka-service"`
	PaymentProvider `yaml:"payment-provider"`
	Commission      `yaml:"commission"`
	Payout          `yaml:"payout"`
}

type HTTPServer struct {
	Host string `yaml:"host" env-default:"0.0.0.0"`
	Port string `yaml:"port" env-default:"8080"`
	// AllowOrigins enables CORS for the partner dashboard when set.
	AllowOrigins    []string      `yaml:"allow_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
}

type AffiliateDB struct {
	Dsn            string `yaml:"dsn" env:"AFFILIATE_DB_DSN"`
	MigrationsPath string `yaml:"migrations_path" env-default:"migrations"`
}

type LogConfig struct {
	LogLevel  string `yaml:"log_level" env-default:"info"`
	LogFormat string `yaml:"log_format" env-default:"json"`
	LogOutput string `yaml:"log_output" env-default:"stdout"`
}

type KafkaService struct {
	Brokers          []string `yaml:"brokers"`
	ConversionsTopic string   `yaml:"conversions_topic" env-default:"booking-conversions"`
	CommissionTopic  string   `yaml:"commission_topic" env-default:"commission-events"`
	PayoutTopic      string   `yaml:"payout_topic" env-default:"payout-events"`
	GroupID          string   `yaml:"group_id" env-default:"affiliate-service"`
	Enabled          bool     `yaml:"enabled" env-default:"true"`
}

type PaymentProvider struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

type Commission struct {
	LevelRates          []string      `yaml:"level_rates"`
	MaxDepth            int           `yaml:"max_depth" env-default:"3"`
	MaxAggregateRate    string        `yaml:"max_aggregate_rate" env-default:"0.25"`
	AmountPrecision     int32         `yaml:"amount_precision" env-default:"2"`
	AttributionWindow   time.Duration `yaml:"attribution_window" env-default:"720h"`
	VelocityThreshold   int           `yaml:"velocity_threshold" env-default:"20"`
	VelocityWindow      time.Duration `yaml:"velocity_window" env-default:"1h"`
	ApprovalHoldPeriod  time.Duration `yaml:"approval_hold_period" env-default:"0s"`
	AutoActivate        bool          `yaml:"auto_activate" env-default:"true"`
	AutoApproveInterval time.Duration `yaml:"auto_approve_interval" env-default:"5m"`
}

type Payout struct {
	MinAmount         string        `yaml:"min_amount" env-default:"10"`
	MaxAttempts       int           `yaml:"max_attempts" env-default:"5"`
	BaseBackoff       time.Duration `yaml:"base_backoff" env-default:"30s"`
	MaxBackoff        time.Duration `yaml:"max_backoff" env-default:"30m"`
	DispatchTimeout   time.Duration `yaml:"dispatch_timeout" env-default:"15s"`
	ProcessingTimeout time.Duration `yaml:"processing_timeout" env-default:"10m"`
	RetryInterval     time.Duration `yaml:"retry_interval" env-default:"10s"`
	StuckInterval     time.Duration `yaml:"stuck_check_interval" env-default:"1m"`
	BatchSize         int           `yaml:"batch_size" env-default:"50"`
}

func (c Commission) ToSettings() (domain.CommissionSettings, error) {
	rates := make([]decimal.Decimal, 0, len(c.LevelRates))
	for i, raw := range c.LevelRates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.CommissionSettings{}, fmt.Errorf("level_rates[%d]: %w", i, err)
		}
		rates = append(rates, rate)
	}
	maxRate, err := decimal.NewFromString(c.MaxAggregateRate)
	if err != nil {
		return domain.CommissionSettings{}, fmt.Errorf("max_aggregate_rate: %w", err)
	}

	settings := domain.CommissionSettings{
		LevelRates:         rates,
		MaxDepth:           c.MaxDepth,
		MaxAggregateRate:   maxRate,
		AmountPrecision:    c.AmountPrecision,
		AttributionWindow:  c.AttributionWindow,
		VelocityThreshold:  c.VelocityThreshold,
		VelocityWindow:     c.VelocityWindow,
		ApprovalHoldPeriod: c.ApprovalHoldPeriod,
	}
	if err := settings.Validate(); err != nil {
		return domain.CommissionSettings{}, err
	}
	return settings, nil
}

func (p Payout) ToSettings() (domain.PayoutSettings, error) {
	minAmount, err := decimal.NewFromString(p.MinAmount)
	if err != nil {
		return domain.PayoutSettings{}, fmt.Errorf("min_amount: %w", err)
	}
	settings := domain.PayoutSettings{
		MinAmount:         minAmount,
		MaxAttempts:       p.MaxAttempts,
		BaseBackoff:       p.BaseBackoff,
		MaxBackoff:        p.MaxBackoff,
		DispatchTimeout:   p.DispatchTimeout,
		ProcessingTimeout: p.ProcessingTimeout,
	}
	if err := settings.Validate(); err != nil {
		return domain.PayoutSettings{}, err
	}
	return settings, nil
}

// Load reads and validates the config file at path.
func Load(path string) (*AffiliateConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	var cfg AffiliateConfig
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if _, err := cfg.Commission.ToSettings(); err != nil {
		return nil, fmt.Errorf("commission config: %w", err)
	}
	if _, err := cfg.Payout.ToSettings(); err != nil {
		return nil, fmt.Errorf("payout config: %w", err)
	}
	return &cfg, nil
}

func MustLoad() *AffiliateConfig {

	// Processing env config variable and file
	configPath := os.Getenv("AFFILIATE_CONFIG_PATH")

	if configPath == "" {
		log.Fatalf("AFFILIATE_CONFIG_PATH was not found\n")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("%v\n", err)
	}

	return cfg
}
