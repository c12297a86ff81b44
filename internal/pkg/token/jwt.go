package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/V4T54L/customer-authz/internal/domain"
)

// Claims carries the caller identity issued by the auth service.
type Claims struct {
	Role        domain.Role          `json:"role"`
	Permissions domain.PermissionSet `json:"permissions"`
	jwt.RegisteredClaims
}

// Credentials returns the identity encoded in the claims.
func (c *Claims) Credentials() domain.Credentials {
	return domain.Credentials{Role: c.Role, Permissions: c.Permissions}
}

// Generate signs a token for creds. It is used by tooling and tests; the
// service itself only validates.
func Generate(creds domain.Credentials, subject, secretKey string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role:        creds.Role,
		Permissions: creds.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secretKey))
}

// Validate parses and validates an HS256 token string.
func Validate(tokenString, secretKey string) (*Claims, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if !t.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.Role == "" {
		return nil, errors.New("token carries no role")
	}

	return claims, nil
}
