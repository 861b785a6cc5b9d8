package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateECKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))
}

func withConfigFile(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	old := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = old })
}

func TestNewAppJWTModeNeedsNoLegacyCredentials(t *testing.T) {
	withConfigFile(t, "auth:\n  type: jwt\n  api_key_name: organizations/org/apiKeys/key\n")
	t.Setenv("GDAX_AUTH_PRIVATE_KEY_PEM", generateECKeyPEM(t))

	// No auth.json anywhere near the temp config: JWT mode must not
	// require the legacy credential triple.
	a, err := newApp(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, a.client)
	assert.Nil(t, a.legacyAuth)
}

func TestNewAppLegacyModeRequiresCredentials(t *testing.T) {
	withConfigFile(t, "auth:\n  file: "+filepath.Join(t.TempDir(), "auth.json")+"\n")

	_, err := newApp(context.Background())
	require.Error(t, err)
}

func TestNewAppLegacyModeFromAuthFile(t *testing.T) {
	dir := t.TempDir()
	authFile := filepath.Join(dir, "auth.json")
	require.NoError(t, os.WriteFile(authFile,
		[]byte(`{"API_KEY":"k","API_SECRET":"c2VjcmV0a2V5","API_PASS":"p"}`), 0o600))
	withConfigFile(t, "auth:\n  file: "+authFile+"\n")

	a, err := newApp(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, a.legacyAuth)
}
