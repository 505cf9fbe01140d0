// Package config loads application configuration from environment variables
// and an optional YAML accounts file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/iniwap/AIWriteX/internal/domain/model"
)

// Environment variables read by Load.
const (
	envAccountsFile   = "WXPUB_ACCOUNTS_FILE"
	envDBPath         = "WXPUB_DB_PATH"
	envAPIBaseURL     = "WXPUB_API_BASE_URL"
	envHTTPTimeout    = "WXPUB_HTTP_TIMEOUT"
	envPollAttempts   = "WXPUB_POLL_ATTEMPTS"
	envPollInterval   = "WXPUB_POLL_INTERVAL"
	envImageGenerator = "WXPUB_IMAGE_GENERATOR"
	envConcurrency    = "WXPUB_CONCURRENCY"
	envListenAddr     = "WXPUB_LISTEN_ADDR"
	envLogLevel       = "LOG_LEVEL"
	envAppID          = "WECHAT_APP_ID"
	envAppSecret      = "WECHAT_APP_SECRET"
	envAuthor         = "WECHAT_AUTHOR"
)

// Config holds the application configuration.
type Config struct {
	Accounts       []model.Credential
	DBPath         string
	APIBaseURL     string
	HTTPTimeout    time.Duration
	PollAttempts   int
	PollInterval   time.Duration
	ImageGenerator string
	Concurrency    int
	LogLevel       string
	// ListenAddr is used by the serve command only.
	ListenAddr string
}

// accountsFile is the YAML layout of WXPUB_ACCOUNTS_FILE.
type accountsFile struct {
	Accounts []accountEntry `yaml:"accounts"`
}

type accountEntry struct {
	Name        string `yaml:"name"`
	AppID       string `yaml:"appid"`
	AppSecret   string `yaml:"appsecret"`
	Author      string `yaml:"author"`
	CallSendAll bool   `yaml:"call_sendall"`
	SendAll     bool   `yaml:"sendall"`
	TagID       int    `yaml:"tag_id"`
	CreateMenu  bool   `yaml:"create_menu"`
}

func (e accountEntry) credential() model.Credential {
	return model.Credential{
		Name:      strings.TrimSpace(e.Name),
		AppID:     strings.TrimSpace(e.AppID),
		AppSecret: strings.TrimSpace(e.AppSecret),
		Author:    strings.TrimSpace(e.Author),
		Broadcast: model.BroadcastSettings{
			Enabled: e.CallSendAll,
			ToAll:   e.SendAll,
			TagID:   e.TagID,
		},
		CreateMenu: e.CreateMenu,
	}
}

// Load reads configuration from a .env file (if present), environment
// variables and the accounts file named by WXPUB_ACCOUNTS_FILE. Variables
// already set in the environment take precedence over .env.
// Optional variables with defaults: WXPUB_DB_PATH (wxpublish.db),
// WXPUB_HTTP_TIMEOUT (30s), WXPUB_POLL_ATTEMPTS (10), WXPUB_POLL_INTERVAL (2s),
// WXPUB_IMAGE_GENERATOR (picsum), WXPUB_CONCURRENCY (4),
// WXPUB_LISTEN_ADDR (127.0.0.1:8080), LOG_LEVEL (info).
// WECHAT_APP_ID, WECHAT_APP_SECRET and WECHAT_AUTHOR append one more account.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:         "wxpublish.db",
		HTTPTimeout:    30 * time.Second,
		PollAttempts:   10,
		PollInterval:   2 * time.Second,
		ImageGenerator: "picsum",
		Concurrency:    4,
		LogLevel:       "info",
		ListenAddr:     "127.0.0.1:8080",
		Accounts:       []model.Credential{},
	}

	if v, ok := os.LookupEnv(envDBPath); ok && v != "" {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv(envAPIBaseURL); ok {
		cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(v), "/")
	}
	if v, ok := os.LookupEnv(envImageGenerator); ok && v != "" {
		cfg.ImageGenerator = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := os.LookupEnv(envListenAddr); ok && v != "" {
		cfg.ListenAddr = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(envLogLevel); ok && v != "" {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(v))
	}

	var err error
	if cfg.HTTPTimeout, err = durationEnv(envHTTPTimeout, cfg.HTTPTimeout); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = durationEnv(envPollInterval, cfg.PollInterval); err != nil {
		return nil, err
	}
	if cfg.PollAttempts, err = intEnv(envPollAttempts, cfg.PollAttempts); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = intEnv(envConcurrency, cfg.Concurrency); err != nil {
		return nil, err
	}

	if path := os.Getenv(envAccountsFile); path != "" {
		accounts, err := loadAccounts(path)
		if err != nil {
			return nil, err
		}
		cfg.Accounts = append(cfg.Accounts, accounts...)
	}

	if appID := strings.TrimSpace(os.Getenv(envAppID)); appID != "" {
		cfg.Accounts = append(cfg.Accounts, model.Credential{
			AppID:     appID,
			AppSecret: strings.TrimSpace(os.Getenv(envAppSecret)),
			Author:    strings.TrimSpace(os.Getenv(envAuthor)),
		})
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadAccounts(path string) ([]model.Credential, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", envAccountsFile, path, err)
	}

	var file accountsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("%s: parse %s: %w", envAccountsFile, path, err)
	}

	accounts := make([]model.Credential, 0, len(file.Accounts))
	for _, entry := range file.Accounts {
		accounts = append(accounts, entry.credential())
	}
	return accounts, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	return parsed, nil
}

func intEnv(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	return parsed, nil
}

// Validate checks settings that must hold for every command.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", envHTTPTimeout))
	}
	if c.PollAttempts <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", envPollAttempts))
	}
	if c.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", envPollInterval))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", envConcurrency))
	}
	switch c.ImageGenerator {
	case "picsum", "none", "off":
	default:
		errs = append(errs, fmt.Errorf("%s %q is not one of picsum, none", envImageGenerator, c.ImageGenerator))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", model.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// ValidateForPublishing checks that at least one account is configured and
// every account carries the fields a token exchange needs.
func (c *Config) ValidateForPublishing() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("%w: no accounts configured; set %s or %s/%s",
			model.ErrConfiguration, envAccountsFile, envAppID, envAppSecret)
	}

	var errs []error
	for i, acc := range c.Accounts {
		if acc.AppID == "" {
			errs = append(errs, fmt.Errorf("account %d: appid is required", i))
		}
		if acc.AppSecret == "" {
			errs = append(errs, fmt.Errorf("account %d: appsecret is required", i))
		}
		if acc.Author == "" {
			errs = append(errs, fmt.Errorf("account %d: author is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", model.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}
