package coinbase

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "c2VjcmV0a2V5" // base64 of "secretkey"

func newTestAuthenticator(t *testing.T) *LegacyAuthenticator {
	t.Helper()
	auth, err := NewLegacyAuthenticator("test-key", testSecret, "test-pass")
	require.NoError(t, err)
	return auth
}

func TestNewLegacyAuthenticatorRejectsBadSecret(t *testing.T) {
	_, err := NewLegacyAuthenticator("key", "not!!!base64%%%", "pass")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestSignIsDeterministic(t *testing.T) {
	auth := newTestAuthenticator(t)

	first := auth.Sign("POST", "/orders", `{"side":"buy"}`, "1700000000")
	second := auth.Sign("POST", "/orders", `{"side":"buy"}`, "1700000000")
	assert.Equal(t, first, second)
}

func TestSignChangesWithEveryInput(t *testing.T) {
	auth := newTestAuthenticator(t)
	base := auth.Sign("POST", "/orders", "body", "1700000000")

	variants := []struct {
		name                          string
		method, path, body, timestamp string
	}{
		{"method", "GET", "/orders", "body", "1700000000"},
		{"path", "POST", "/accounts", "body", "1700000000"},
		{"body", "POST", "/orders", "other", "1700000000"},
		{"timestamp", "POST", "/orders", "body", "1700000001"},
	}
	for _, tc := range variants {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotEqual(t, base, auth.Sign(tc.method, tc.path, tc.body, tc.timestamp))
		})
	}
}

func TestSignMatchesHMACConstruction(t *testing.T) {
	auth := newTestAuthenticator(t)

	got := auth.Sign("GET", "/accounts", "", "1700000000")

	key, err := base64.StdEncoding.DecodeString(testSecret)
	require.NoError(t, err)
	h := hmac.New(sha256.New, key)
	h.Write([]byte("1700000000GET/accounts"))
	want := base64.StdEncoding.EncodeToString(h.Sum(nil))

	assert.Equal(t, want, got)
}

func TestAddAuthHeaders(t *testing.T) {
	auth := newTestAuthenticator(t)
	fixed := time.Unix(1700000000, 0)
	auth.now = func() time.Time { return fixed }

	req, err := http.NewRequest(http.MethodGet, "https://example.com/accounts", nil)
	require.NoError(t, err)
	require.NoError(t, auth.AddAuthHeaders(req, "GET", "/accounts", ""))

	assert.Equal(t, "test-key", req.Header.Get("CB-ACCESS-KEY"))
	assert.Equal(t, "test-pass", req.Header.Get("CB-ACCESS-PASSPHRASE"))
	assert.Equal(t, "1700000000", req.Header.Get("CB-ACCESS-TIMESTAMP"))
	assert.Equal(t, auth.Sign("GET", "/accounts", "", "1700000000"), req.Header.Get("CB-ACCESS-SIGN"))
}

func TestAddAuthHeadersUsesFreshTimestamp(t *testing.T) {
	auth := newTestAuthenticator(t)
	stamps := []time.Time{time.Unix(1700000000, 0), time.Unix(1700000005, 0)}
	auth.now = func() time.Time {
		next := stamps[0]
		stamps = stamps[1:]
		return next
	}

	first, err := http.NewRequest(http.MethodGet, "https://example.com/accounts", nil)
	require.NoError(t, err)
	require.NoError(t, auth.AddAuthHeaders(first, "GET", "/accounts", ""))

	second, err := http.NewRequest(http.MethodGet, "https://example.com/accounts", nil)
	require.NoError(t, err)
	require.NoError(t, auth.AddAuthHeaders(second, "GET", "/accounts", ""))

	assert.NotEqual(t,
		first.Header.Get("CB-ACCESS-TIMESTAMP"),
		second.Header.Get("CB-ACCESS-TIMESTAMP"))
	assert.NotEqual(t,
		first.Header.Get("CB-ACCESS-SIGN"),
		second.Header.Get("CB-ACCESS-SIGN"))
}

func testECKeyPEM(t *testing.T, pkcs8 bool) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	var der []byte
	blockType := "EC PRIVATE KEY"
	if pkcs8 {
		der, err = x509.MarshalPKCS8PrivateKey(key)
		blockType = "PRIVATE KEY"
	} else {
		der, err = x509.MarshalECPrivateKey(key)
	}
	require.NoError(t, err)

	return string(pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}))
}

func TestNewJWTAuthenticator(t *testing.T) {
	t.Run("sec1 key", func(t *testing.T) {
		auth, err := NewJWTAuthenticator("organizations/org/apiKeys/key", testECKeyPEM(t, false))
		require.NoError(t, err)

		req, err := http.NewRequest(http.MethodGet, "https://example.com/accounts", nil)
		require.NoError(t, err)
		require.NoError(t, auth.AddAuthHeaders(req, "GET", "/accounts", ""))
		assert.True(t, strings.HasPrefix(req.Header.Get("Authorization"), "Bearer "))
	})

	t.Run("pkcs8 key", func(t *testing.T) {
		_, err := NewJWTAuthenticator("organizations/org/apiKeys/key", testECKeyPEM(t, true))
		assert.NoError(t, err)
	})

	t.Run("not pem", func(t *testing.T) {
		_, err := NewJWTAuthenticator("key-name", "definitely not a pem block")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("pem but not a key", func(t *testing.T) {
		garbage := string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: []byte("junk")}))
		_, err := NewJWTAuthenticator("key-name", garbage)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})

	t.Run("pkcs8 but not EC", func(t *testing.T) {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		der, err := x509.MarshalPKCS8PrivateKey(priv)
		require.NoError(t, err)
		notEC := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))

		_, err = NewJWTAuthenticator("key-name", notEC)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidCredential)
	})
}
