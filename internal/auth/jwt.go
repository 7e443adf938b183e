package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "marksync"

// ErrInvalidToken is returned for tokens that fail parsing or validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims identify the account a snapshot belongs to and the device calling.
type Claims struct {
	Account string `json:"account"`
	Device  string `json:"device,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token for account. A zero expiration
// produces a token that never expires.
func GenerateToken(account, device string, expiration time.Duration, secret string) (string, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return "", errors.New("account is required")
	}
	if secret == "" {
		return "", errors.New("secret is required")
	}

	now := time.Now()
	claims := Claims{
		Account: account,
		Device:  device,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			Subject:  account,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if expiration != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(expiration))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks the signature and expiry and returns the claims.
func ValidateToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Account == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
