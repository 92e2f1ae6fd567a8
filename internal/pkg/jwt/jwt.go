// Package jwt issues and parses the HS256 tokens used for API access.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"voiceclone-backend/internal/domain/access"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

type Claims struct {
	UserID uint        `json:"user_id"`
	Email  string      `json:"email,omitempty"`
	Role   access.Role `json:"role,omitempty"`
	Kind   string      `json:"kind"`
	jwt.RegisteredClaims
}

// Principal validates the role claim and returns the caller it describes.
func (c *Claims) Principal() (access.Principal, error) {
	role, err := access.ParseRole(string(c.Role))
	if err != nil {
		return access.Principal{}, ErrInvalidToken
	}
	return access.Principal{UserID: c.UserID, Email: c.Email, Role: role}, nil
}

func GenerateAccessToken(p access.Principal, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: p.UserID,
		Email:  p.Email,
		Role:   p.Role,
		Kind:   KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// GenerateRefreshToken signs a refresh token carrying jti, the key its
// server-side record is stored under.
func GenerateRefreshToken(userID uint, jti, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Kind:   KindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies tokenString and checks it is of the expected kind.
func ParseToken(tokenString, secret, kind string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Kind != kind {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
