package token

import (
	"crypto/rsa"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TTL is how long an issued token stays valid.
const TTL = 24 * time.Hour

// Claims are the claims of a Vonage application JWT.
type Claims struct {
	jwt.RegisteredClaims
	ApplicationID string `json:"application_id"`
	ACL           string `json:"acl"`
}

// Issuer signs Vonage application JWTs with the application's RSA key.
type Issuer struct {
	applicationID string
	key           *rsa.PrivateKey
}

// NewIssuer parses privateKeyPEM. Literal "\n" sequences, as stored by most
// CI secret stores, are turned back into newlines first.
func NewIssuer(applicationID, privateKeyPEM string) (*Issuer, error) {
	if applicationID == "" {
		return nil, fmt.Errorf("token: application ID is required")
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(NormalizePEM(privateKeyPEM)))
	if err != nil {
		return nil, fmt.Errorf("token: failed to parse private key: %w", err)
	}

	return &Issuer{applicationID: applicationID, key: key}, nil
}

// Issue creates a token valid from now for TTL.
func (i *Issuer) Issue(now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TTL)),
			ID:        uuid.New().String(),
		},
		ApplicationID: i.applicationID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("token: failed to sign: %w", err)
	}
	return signed, nil
}

// PublicKey returns the key that verifies issued tokens.
func (i *Issuer) PublicKey() *rsa.PublicKey {
	return &i.key.PublicKey
}

// WriteFile stores token at path, readable by the owner only.
func WriteFile(path, token string) error {
	if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("token: failed to write %s: %w", path, err)
	}
	return nil
}

// NormalizePEM replaces escaped newlines with real ones.
func NormalizePEM(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
