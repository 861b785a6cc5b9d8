package coinbase

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthType represents the authentication method
type AuthType string

const (
	AuthTypeLegacy AuthType = "legacy"
	AuthTypeJWT    AuthType = "jwt"
)

// ErrInvalidCredential indicates a credential that can never produce a
// valid signature, such as an API secret that is not base64.
var ErrInvalidCredential = errors.New("invalid credential")

// Authenticator interface for different auth methods
type Authenticator interface {
	AddAuthHeaders(req *http.Request, method, path, body string) error
}

// LegacyAuthenticator uses the traditional API Key/Secret/Passphrase.
// The secret is base64-encoded binary; it is decoded once at
// construction and each request is signed with
// HMAC-SHA256(key, timestamp + method + path + body), base64-encoded.
type LegacyAuthenticator struct {
	apiKey     string
	secretKey  []byte
	passphrase string
	now        func() time.Time
}

func NewLegacyAuthenticator(apiKey, apiSecret, passphrase string) (*LegacyAuthenticator, error) {
	secretKey, err := base64.StdEncoding.DecodeString(apiSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: api secret is not valid base64", ErrInvalidCredential)
	}
	return &LegacyAuthenticator{
		apiKey:     apiKey,
		secretKey:  secretKey,
		passphrase: passphrase,
		now:        time.Now,
	}, nil
}

func (l *LegacyAuthenticator) AddAuthHeaders(req *http.Request, method, path, body string) error {
	// Fresh coarse wall-clock timestamp per call; reusing one would make
	// signatures replayable.
	timestamp := fmt.Sprintf("%d", l.now().Unix())
	signature := l.Sign(method, path, body, timestamp)

	req.Header.Set("CB-ACCESS-KEY", l.apiKey)
	req.Header.Set("CB-ACCESS-SIGN", signature)
	req.Header.Set("CB-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("CB-ACCESS-PASSPHRASE", l.passphrase)

	return nil
}

func (l *LegacyAuthenticator) Sign(method, path, body, timestamp string) string {
	message := timestamp + method + path + body
	h := hmac.New(sha256.New, l.secretKey)
	h.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// JWTAuthenticator uses the newer JWT-based authentication
type JWTAuthenticator struct {
	apiKeyName string
	privateKey *ecdsa.PrivateKey
}

func NewJWTAuthenticator(apiKeyName, privateKeyPEM string) (*JWTAuthenticator, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("%w: failed to parse PEM block containing the private key", ErrInvalidCredential)
	}

	privateKey, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS8 format
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse EC private key", ErrInvalidCredential)
		}
		var ok bool
		privateKey, ok = key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an EC private key", ErrInvalidCredential)
		}
	}

	return &JWTAuthenticator{
		apiKeyName: apiKeyName,
		privateKey: privateKey,
	}, nil
}

func (j *JWTAuthenticator) AddAuthHeaders(req *http.Request, method, path, body string) error {
	token, err := j.generateJWT(method, req.Host, path)
	if err != nil {
		return fmt.Errorf("failed to generate JWT: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (j *JWTAuthenticator) generateJWT(method, host, path string) (string, error) {
	nonce, err := generateNonce()
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"sub":   j.apiKeyName,
		"iss":   "coinbase-cloud",
		"nbf":   time.Now().Unix(),
		"exp":   time.Now().Add(2 * time.Minute).Unix(),
		"uri":   method + " " + host + path,
		"nonce": nonce,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = j.apiKeyName
	token.Header["nonce"] = nonce

	tokenString, err := token.SignedString(j.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

func generateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
