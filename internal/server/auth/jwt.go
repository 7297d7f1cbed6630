// Package auth issues and verifies the HS256 bearer tokens the API trusts.
// A token carries the caller's id and party role; the core services perform
// the relationship checks, so the token is identification, not authorization.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ivmelnik/escrowd/internal/common"
)

// Claims are the registered claims plus the party role.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// GenerateToken signs an HS256 token for the given caller and role.
func GenerateToken(userID, role string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Role: role,
	})
	return token.SignedString(secretKey)
}

// ParseToken verifies the signature and expiry and returns the caller id and
// role. Any failure is reported as common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (userID, role string, err error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrInvalidToken
		}
		return secretKey, nil
	})
	if err != nil || !token.Valid {
		return "", "", common.ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", "", common.ErrInvalidToken
	}

	return claims.Subject, claims.Role, nil
}
