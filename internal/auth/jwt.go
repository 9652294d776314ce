package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the JWT payload. The subject is the username.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"typ,omitempty"`
}

const (
	tokenTypeAccess = "access"
	issuer          = "taskboard"
)

// ErrInvalidToken is returned for any credential that cannot be resolved to a
// user: malformed, badly signed, expired, missing subject or unknown user.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// SupportedAlgorithms lists the HMAC methods accepted for signing.
var SupportedAlgorithms = []string{"HS256", "HS384", "HS512"} //nolint:gochecknoglobals // read-only table

// Decoder turns a raw credential into validated claims.
type Decoder interface {
	Decode(token string) (*Claims, error)
}

// JWTDecoder validates HMAC-signed tokens with a shared secret.
type JWTDecoder struct {
	secret    []byte
	algorithm string
}

// NewJWTDecoder returns a decoder pinned to a single signing algorithm.
func NewJWTDecoder(secret, algorithm string) *JWTDecoder {
	return &JWTDecoder{secret: []byte(secret), algorithm: algorithm}
}

// Decode parses and validates a token string, including expiry.
func (d *JWTDecoder) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return d.secret, nil
	}, jwt.WithValidMethods([]string{d.algorithm}))
	if err != nil {
		return nil, fmt.Errorf("auth.JWTDecoder.Decode: %w", ErrInvalidToken)
	}

	if !token.Valid {
		return nil, fmt.Errorf("auth.JWTDecoder.Decode: %w", ErrInvalidToken)
	}

	return claims, nil
}

// IssueAccessToken signs an access token for username. Used by tooling and
// tests; interactive login lives in the credential service.
func IssueAccessToken(secret, algorithm, username string, ttl time.Duration) (string, error) {
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return "", fmt.Errorf("auth.IssueAccessToken: unknown algorithm %q", algorithm)
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
		TokenType: tokenTypeAccess,
	}

	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth.IssueAccessToken: %w", err)
	}

	return signed, nil
}
