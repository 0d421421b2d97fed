package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultAdminPassword is the admin secret used when ADMIN_PASSWORD is unset.
const DefaultAdminPassword = "max"

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Landing  LandingConfig
	Campaign CampaignConfig
	Sweeper  SweeperConfig
}

type ServerConfig struct {
	Address    string
	Production bool
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type AuthConfig struct {
	AdminPassword     string
	AssistantPassword string
	MaxPassword       string
}

type LandingConfig struct {
	NumberE164 string
	Keyword    string
}

type CampaignConfig struct {
	DefaultCountry        string
	MessageSoftCap        int
	CostPerRecipientCents int
}

type SweeperConfig struct {
	Enabled  bool
	Interval time.Duration
}

func LoadAll() (*Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	postgresURL, err := requireEnv("POSTGRES_URL")
	collect(err)
	assistPassword, err := requireEnv("ASSIST_PASSWORD")
	collect(err)
	maxPassword, err := requireEnv("MAX_PASSWORD")
	collect(err)

	softCap, err := getEnvInt("MESSAGE_SOFT_CAP", 160)
	collect(err)
	cost, err := getEnvInt("COST_PER_RECIPIENT_CENTS", 10)
	collect(err)
	sweepSeconds, err := getEnvInt("SWEEP_INTERVAL_SECONDS", 300)
	collect(err)
	sweepEnabled, err := getEnvBool("SWEEP_ENABLED", false)
	collect(err)

	redisCfg, err := loadRedisConfig()
	collect(err)

	cfg := &Config{
		Server: ServerConfig{
			Address:    getEnv("SERVER_ADDRESS", ":8080"),
			Production: strings.EqualFold(os.Getenv("APP_ENV"), "production"),
		},
		Database: DatabaseConfig{
			PostgresURL: postgresURL,
		},
		Redis: redisCfg,
		Auth: AuthConfig{
			AdminPassword:     getEnv("ADMIN_PASSWORD", DefaultAdminPassword),
			AssistantPassword: assistPassword,
			MaxPassword:       maxPassword,
		},
		Landing: LandingConfig{
			NumberE164: getEnv("WA_NUMBER_E164", "+19095290130"),
			Keyword:    getEnv("WA_KEYWORD", "JOIN"),
		},
		Campaign: CampaignConfig{
			DefaultCountry:        strings.ToUpper(getEnv("DEFAULT_COUNTRY", "US")),
			MessageSoftCap:        softCap,
			CostPerRecipientCents: cost,
		},
		Sweeper: SweeperConfig{
			Enabled:  sweepEnabled,
			Interval: time.Duration(sweepSeconds) * time.Second,
		},
	}

	if len(errs) == 0 {
		errs = append(errs, validate(cfg)...)
	}
	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadStore reads only what offline tooling needs: the database URL and the
// campaign defaults used when normalizing imported numbers.
func LoadStore() (*Config, error) {
	postgresURL, err := requireEnv("POSTGRES_URL")
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Database: DatabaseConfig{PostgresURL: postgresURL},
		Campaign: CampaignConfig{
			DefaultCountry: strings.ToUpper(getEnv("DEFAULT_COUNTRY", "US")),
		},
	}
	if len(cfg.Campaign.DefaultCountry) != 2 {
		return nil, fmt.Errorf("DEFAULT_COUNTRY must be an ISO 3166-1 alpha-2 code, got %q", cfg.Campaign.DefaultCountry)
	}
	return cfg, nil
}

func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	db, dbErr := getEnvInt("REDIS_DB", 0)
	ttl, ttlErr := getEnvInt("REDIS_TTL_SECONDS", 86400)
	if err := joinErrors([]error{dbErr, ttlErr}); err != nil {
		return RedisConfig{}, err
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      time.Duration(ttl) * time.Second,
	}, nil
}

func validate(cfg *Config) []error {
	var errs []error
	if cfg.Campaign.MessageSoftCap <= 0 {
		errs = append(errs, errors.New("MESSAGE_SOFT_CAP must be > 0"))
	}
	if cfg.Campaign.CostPerRecipientCents <= 0 {
		errs = append(errs, errors.New("COST_PER_RECIPIENT_CENTS must be > 0"))
	}
	if cfg.Sweeper.Interval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL_SECONDS must be > 0"))
	}
	if cfg.Redis.Enabled && cfg.Redis.TTL <= 0 {
		errs = append(errs, errors.New("REDIS_TTL_SECONDS must be > 0"))
	}
	if len(cfg.Campaign.DefaultCountry) != 2 {
		errs = append(errs, fmt.Errorf("DEFAULT_COUNTRY must be an ISO 3166-1 alpha-2 code, got %q", cfg.Campaign.DefaultCountry))
	}
	return errs
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %q", key, v)
	}
	return i, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for env %s: %q", key, v)
	}
	return b, nil
}

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
