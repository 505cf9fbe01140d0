package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iniwap/AIWriteX/internal/domain/model"
)

// allConfigKeys lists every env var that Load() reads.
var allConfigKeys = []string{
	envAccountsFile,
	envDBPath,
	envAPIBaseURL,
	envHTTPTimeout,
	envPollAttempts,
	envPollInterval,
	envImageGenerator,
	envConcurrency,
	envListenAddr,
	envLogLevel,
	envAppID,
	envAppSecret,
	envAuthor,
}

// isolateConfigEnv saves and unsets all config env vars so tests don't
// inherit values from the host environment.
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func writeAccounts(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "wxpublish.db", cfg.DBPath)
	assert.Equal(t, "", cfg.APIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 10, cfg.PollAttempts)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, "picsum", cfg.ImageGenerator)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.NotNil(t, cfg.Accounts)
	assert.Empty(t, cfg.Accounts)
}

func TestLoad_Overrides(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv(envDBPath, "/tmp/test.db")
	t.Setenv(envAPIBaseURL, "http://127.0.0.1:9000/cgi-bin/")
	t.Setenv(envHTTPTimeout, "5s")
	t.Setenv(envPollAttempts, "3")
	t.Setenv(envPollInterval, "500ms")
	t.Setenv(envImageGenerator, "NONE")
	t.Setenv(envConcurrency, "8")
	t.Setenv(envLogLevel, "DEBUG")
	t.Setenv(envListenAddr, ":9090")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, "http://127.0.0.1:9000/cgi-bin", cfg.APIBaseURL)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 3, cfg.PollAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "none", cfg.ImageGenerator)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.ListenAddr)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{envHTTPTimeout, "soon"},
		{envPollInterval, "2"},
		{envPollAttempts, "ten"},
		{envConcurrency, "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			isolateConfigEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_RejectsNonPositiveAndUnknownGenerator(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv(envPollAttempts, "0")
	t.Setenv(envImageGenerator, "dalle")

	_, err := Load()

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrConfiguration)
	assert.Contains(t, err.Error(), envPollAttempts)
	assert.Contains(t, err.Error(), envImageGenerator)
}

func TestLoad_AccountsFile(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv(envAccountsFile, writeAccounts(t, `
accounts:
  - name: main
    appid: " wx0123456789abcdef "
    appsecret: secret-1
    author: 作者甲
    call_sendall: true
    sendall: false
    tag_id: 100
    create_menu: true
  - appid: wxfedcba9876543210
    appsecret: secret-2
    author: 作者乙
`))

	cfg, err := Load()

	require.NoError(t, err)
	require.Len(t, cfg.Accounts, 2)

	first := cfg.Accounts[0]
	assert.Equal(t, "main", first.Name)
	assert.Equal(t, "wx0123456789abcdef", first.AppID)
	assert.Equal(t, "作者甲", first.Author)
	assert.Equal(t, model.BroadcastSettings{Enabled: true, ToAll: false, TagID: 100}, first.Broadcast)
	assert.True(t, first.CreateMenu)

	second := cfg.Accounts[1]
	assert.False(t, second.Broadcast.Enabled)
	assert.False(t, second.CreateMenu)
	require.NoError(t, cfg.ValidateForPublishing())
}

func TestLoad_AccountsFileErrors(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv(envAccountsFile, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), envAccountsFile)

	t.Setenv(envAccountsFile, writeAccounts(t, "accounts: [unclosed"))

	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoad_SingleAccountFromEnv(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv(envAppID, "wx0000000000001234")
	t.Setenv(envAppSecret, "secret")
	t.Setenv(envAuthor, "作者")

	cfg, err := Load()

	require.NoError(t, err)
	require.Len(t, cfg.Accounts, 1)
	assert.Equal(t, "1234", cfg.Accounts[0].MaskedAppID())
	assert.Equal(t, "作者", cfg.Accounts[0].Author)
}

func TestValidateForPublishing(t *testing.T) {
	empty := &Config{}
	assert.ErrorIs(t, empty.ValidateForPublishing(), model.ErrConfiguration)

	incomplete := &Config{Accounts: []model.Credential{{AppID: "wx1"}}}
	err := incomplete.ValidateForPublishing()
	require.ErrorIs(t, err, model.ErrConfiguration)
	assert.Contains(t, err.Error(), "appsecret is required")
	assert.Contains(t, err.Error(), "author is required")

	complete := &Config{Accounts: []model.Credential{{AppID: "wx1", AppSecret: "s", Author: "a"}}}
	assert.NoError(t, complete.ValidateForPublishing())
}
