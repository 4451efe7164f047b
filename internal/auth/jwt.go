package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptyToken    = errors.New("auth: empty token")
	ErrEmptySecret   = errors.New("auth: empty secret")
	ErrInvalidToken  = errors.New("auth: invalid token")
	ErrMissingTenant = errors.New("auth: missing tenant_id")
	ErrInvalidRole   = errors.New("auth: invalid role")
)

// Claims are the JWT claims accepted by the API.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// ParseJWT validates an HS256 token and returns its claims.
func ParseJWT(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrEmptyToken
	}
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TenantID == "" {
		return nil, ErrMissingTenant
	}
	if _, ok := NormalizeRole(claims.Role); !ok {
		return nil, ErrInvalidRole
	}
	return claims, nil
}

// IssueJWT signs a token for subject. Used by the CLI and tests.
func IssueJWT(secret []byte, tenantID string, role Role, subject string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}
	if tenantID == "" {
		return "", ErrMissingTenant
	}
	if _, ok := NormalizeRole(string(role)); !ok {
		return "", ErrInvalidRole
	}
	now := time.Now()
	claims := Claims{
		TenantID: tenantID,
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
