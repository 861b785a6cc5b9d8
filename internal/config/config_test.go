package config

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	// A named config file that does not exist is an error; the default
	// search path tolerates absence.
	require.Error(t, err)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", cfg.Exchange.ProductID)
	assert.Equal(t, "https://api.exchange.coinbase.com", cfg.Exchange.BaseURL)
	assert.Equal(t, "auth.json", cfg.Auth.File)
	assert.Equal(t, "legacy", cfg.Auth.Type)
	assert.Equal(t, 1000, cfg.Watch.OrderPollIntervalMs)
	assert.Equal(t, 0, cfg.Watch.TickerPollIntervalMs)
}

func TestLoadCredentialsFromFile(t *testing.T) {
	dir := t.TempDir()
	authFile := filepath.Join(dir, "auth.json")
	require.NoError(t, os.WriteFile(authFile,
		[]byte(`{"API_KEY":"k","API_SECRET":"s","API_PASS":"p"}`), 0o600))

	cfg := &Config{Auth: AuthConfig{File: authFile}}
	creds, err := LoadCredentials(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "k", creds.APIKey)
	assert.Equal(t, "s", creds.APISecret)
	assert.Equal(t, "p", creds.Passphrase)
}

func TestLoadCredentialsMissingFileIsFatal(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{File: filepath.Join(t.TempDir(), "auth.json")}}
	_, err := LoadCredentials(context.Background(), cfg, discardLogger())
	require.Error(t, err)
}

func TestLoadCredentialsMalformedFileIsFatal(t *testing.T) {
	dir := t.TempDir()
	authFile := filepath.Join(dir, "auth.json")
	require.NoError(t, os.WriteFile(authFile, []byte(`{broken`), 0o600))

	cfg := &Config{Auth: AuthConfig{File: authFile}}
	_, err := LoadCredentials(context.Background(), cfg, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed auth file")
}

func TestLoadCredentialsIncompleteIsFatal(t *testing.T) {
	dir := t.TempDir()
	authFile := filepath.Join(dir, "auth.json")
	require.NoError(t, os.WriteFile(authFile, []byte(`{"API_KEY":"k"}`), 0o600))

	cfg := &Config{Auth: AuthConfig{File: authFile}}
	_, err := LoadCredentials(context.Background(), cfg, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete credentials")
}

func TestLoadCredentialsEnvOverride(t *testing.T) {
	dir := t.TempDir()
	authFile := filepath.Join(dir, "auth.json")
	require.NoError(t, os.WriteFile(authFile,
		[]byte(`{"API_KEY":"file-key","API_SECRET":"s","API_PASS":"p"}`), 0o600))
	t.Setenv("GDAX_API_KEY", "env-key")

	cfg := &Config{Auth: AuthConfig{File: authFile}}
	creds, err := LoadCredentials(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "env-key", creds.APIKey)
}
