package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ndewijer/fund-ledger/internal/model"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Logging  LoggingConfig
	Auth     AuthConfig
	Feed     FeedConfig
	Schedule ScheduleConfig
	Ledger   LedgerConfig
	Fund     model.FundTerms
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// LoggingConfig selects the log level and encoder.
type LoggingConfig struct {
	Level  string
	Format string
}

// AuthConfig holds the API keys mapped to caller roles. An empty key
// disables that role over HTTP.
type AuthConfig struct {
	ManagerKey  string
	ExchangeKey string
	InvestorKey string
}

// FeedConfig describes the remote valuation service. The token is written
// to the database encrypted with FernetKey at startup.
type FeedConfig struct {
	URL       string
	Token     string
	FernetKey string
}

// ScheduleConfig holds six-field cron expressions. Empty disables the job.
type ScheduleConfig struct {
	Nav  string
	Feed string
}

// LedgerConfig holds ledger behaviour switches.
type LedgerConfig struct {
	VerifyInvariants bool
}

// fundFile is the layout of the FUND_CONFIG YAML file.
type fundFile struct {
	Name                        string           `yaml:"name"`
	Symbol                      string           `yaml:"symbol"`
	MinInitialSubscriptionCents int64            `yaml:"min_initial_subscription_cents"`
	MinSubscriptionCents        int64            `yaml:"min_subscription_cents"`
	MinRedemptionShares         int64            `yaml:"min_redemption_shares"`
	ShareClasses                []model.FeeTerms `yaml:"share_classes"`
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	verify, err := strconv.ParseBool(getEnv("VERIFY_INVARIANTS", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid VERIFY_INVARIANTS: %w", err)
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/fund_ledger.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost")),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			ManagerKey:  os.Getenv("MANAGER_API_KEY"),
			ExchangeKey: os.Getenv("EXCHANGE_API_KEY"),
			InvestorKey: os.Getenv("INVESTOR_API_KEY"),
		},
		Feed: FeedConfig{
			URL:       os.Getenv("FEED_URL"),
			Token:     os.Getenv("FEED_TOKEN"),
			FernetKey: os.Getenv("FERNET_KEY"),
		},
		Schedule: ScheduleConfig{
			Nav:  getEnv("NAV_SCHEDULE", "0 0 0 * * *"),
			Feed: getEnv("FEED_SCHEDULE", "0 */15 * * * *"),
		},
		Ledger: LedgerConfig{
			VerifyInvariants: verify,
		},
		Fund: defaultFundTerms(),
	}

	if path := os.Getenv("FUND_CONFIG"); path != "" {
		terms, err := loadFundTerms(path)
		if err != nil {
			return nil, err
		}
		config.Fund = terms
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// Validate checks the settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	var errs []error

	if _, err := strconv.ParseUint(c.Server.Port, 10, 16); err != nil {
		errs = append(errs, fmt.Errorf("SERVER_PORT %q is not a port number", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("DB_PATH is required"))
	}
	if c.Auth.ManagerKey == "" {
		errs = append(errs, errors.New("MANAGER_API_KEY is required"))
	}
	if c.Feed.Token != "" && c.Feed.FernetKey == "" {
		errs = append(errs, errors.New("FERNET_KEY is required to store FEED_TOKEN"))
	}
	if c.Fund.Name == "" || c.Fund.Symbol == "" {
		errs = append(errs, errors.New("fund name and symbol are required"))
	}
	for i, terms := range c.Fund.ShareClasses {
		for name, bps := range map[string]int{
			"admin_fee_bps":   terms.AdminFeeBps,
			"mgmt_fee_bps":    terms.MgmtFeeBps,
			"perform_fee_bps": terms.PerformFeeBps,
		} {
			if bps < 0 || bps > 10000 {
				errs = append(errs, fmt.Errorf("share_classes[%d].%s must be between 0 and 10000", i, name))
			}
		}
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for key, spec := range map[string]string{"NAV_SCHEDULE": c.Schedule.Nav, "FEED_SCHEDULE": c.Schedule.Feed} {
		if spec == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func defaultFundTerms() model.FundTerms {
	return model.FundTerms{
		Name:                        "Fund Ledger",
		Symbol:                      "FLD",
		MinInitialSubscriptionCents: decimal.NewFromInt(100000),
		MinSubscriptionCents:        decimal.NewFromInt(10000),
		MinRedemptionShares:         decimal.NewFromInt(10000),
	}
}

// loadFundTerms reads the inception terms from a YAML file. Missing fields
// keep their defaults.
func loadFundTerms(path string) (model.FundTerms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.FundTerms{}, fmt.Errorf("read fund config: %w", err)
	}

	var f fundFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return model.FundTerms{}, fmt.Errorf("parse fund config: %w", err)
	}

	terms := defaultFundTerms()
	if f.Name != "" {
		terms.Name = f.Name
	}
	if f.Symbol != "" {
		terms.Symbol = f.Symbol
	}
	if f.MinInitialSubscriptionCents > 0 {
		terms.MinInitialSubscriptionCents = decimal.NewFromInt(f.MinInitialSubscriptionCents)
	}
	if f.MinSubscriptionCents > 0 {
		terms.MinSubscriptionCents = decimal.NewFromInt(f.MinSubscriptionCents)
	}
	if f.MinRedemptionShares > 0 {
		terms.MinRedemptionShares = decimal.NewFromInt(f.MinRedemptionShares)
	}
	terms.ShareClasses = f.ShareClasses
	return terms, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
