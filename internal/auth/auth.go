// Package auth guards the admin registration listing with an HMAC-signed
// JWT. There are no user accounts; anyone holding a token minted with
// ADMIN_SECRET is an admin.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenDuration = 24 * time.Hour
	CookieName    = "admin_token"
)

var (
	ErrNoSecret     = errors.New("admin secret is not configured")
	ErrInvalidToken = errors.New("invalid admin token")
)

type AdminAuth struct {
	secret []byte
	now    func() time.Time
}

func NewAdminAuth(secret string) *AdminAuth {
	return &AdminAuth{secret: []byte(secret), now: time.Now}
}

func (a *AdminAuth) GenerateToken(subject string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", ErrNoSecret
	}
	if ttl <= 0 {
		ttl = TokenDuration
	}
	claims := jwt.MapClaims{
		"sub":   subject,
		"admin": true,
		"exp":   a.now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify returns the token's subject and expiry.
func (a *AdminAuth) Verify(tokenString string) (string, time.Time, error) {
	if len(a.secret) == 0 {
		return "", time.Time{}, ErrNoSecret
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return "", time.Time{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", time.Time{}, ErrInvalidToken
	}
	if isAdmin, _ := claims["admin"].(bool); !isAdmin {
		return "", time.Time{}, fmt.Errorf("%w: missing admin claim", ErrInvalidToken)
	}
	subject, _ := claims.GetSubject()
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return "", time.Time{}, fmt.Errorf("%w: missing expiry", ErrInvalidToken)
	}
	return subject, exp.Time, nil
}
