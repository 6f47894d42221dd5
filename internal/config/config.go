// Package config loads the marketplace configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/apexlabs/nft-market/internal/domain/market"
)

// Config is the top-level marketplace configuration. Global admin and
// treasury state is constructed once here and handed to the services; nothing
// reads it ambiently.
type Config struct {
	Admin         string `yaml:"admin" env:"MARKET_ADMIN"`
	Treasury      string `yaml:"treasury" env:"MARKET_TREASURY"`
	TreasuryFee   uint8  `yaml:"treasury_fee" env:"MARKET_TREASURY_FEE"`
	MarketAddress string `yaml:"market_address" env:"MARKET_ADDRESS"`

	Listen        string `yaml:"listen" env:"MARKET_LISTEN"`
	JWTSecret     string `yaml:"jwt_secret" env:"MARKET_JWT_SECRET"`
	PostgresDSN   string `yaml:"postgres_dsn" env:"MARKET_POSTGRES_DSN"`
	RedisAddr     string `yaml:"redis_addr" env:"MARKET_REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"MARKET_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"MARKET_REDIS_DB"`
	RedisChannel  string `yaml:"redis_channel" env:"MARKET_REDIS_CHANNEL"`

	ContractsEndpoint string `yaml:"contracts_endpoint" env:"MARKET_CONTRACTS_ENDPOINT"`

	PollIntervalSeconds int `yaml:"poll_interval_seconds" env:"MARKET_POLL_INTERVAL_SECONDS"`

	Logging Logging `yaml:"logging"`
}

// Logging controls log output.
type Logging struct {
	Level  string `yaml:"level" env:"MARKET_LOG_LEVEL"`
	Format string `yaml:"format" env:"MARKET_LOG_FORMAT"`
}

// Load reads the optional YAML file at path, loads a .env file if present,
// then applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	_ = godotenv.Load()
	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = 15
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks the required settlement identities.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Admin) == "" {
		return fmt.Errorf("config: admin address is required")
	}
	if strings.TrimSpace(c.Treasury) == "" {
		return fmt.Errorf("config: treasury address is required")
	}
	if c.TreasuryFee > 100 {
		return fmt.Errorf("config: treasury fee %d exceeds 100 percent", c.TreasuryFee)
	}
	if strings.TrimSpace(c.MarketAddress) == "" {
		return fmt.Errorf("config: market address is required")
	}
	return nil
}

// AdminAddress returns the admin as a domain address.
func (c *Config) AdminAddress() market.Address { return market.Address(c.Admin) }

// TreasuryAddress returns the treasury as a domain address.
func (c *Config) TreasuryAddress() market.Address { return market.Address(c.Treasury) }

// EscrowAddress returns the marketplace's own address.
func (c *Config) EscrowAddress() market.Address { return market.Address(c.MarketAddress) }
