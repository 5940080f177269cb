package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndVerify(t *testing.T) {
	a := NewAdminAuth("test-secret")

	t.Run("RoundTrip", func(t *testing.T) {
		token, err := a.GenerateToken("ops", time.Hour)
		if err != nil {
			t.Fatalf("GenerateToken returned error: %v", err)
		}
		subject, exp, err := a.Verify(token)
		if err != nil {
			t.Fatalf("Verify returned error: %v", err)
		}
		if subject != "ops" {
			t.Errorf("expected subject ops, got %s", subject)
		}
		if d := time.Until(exp); d <= 0 || d > time.Hour {
			t.Errorf("unexpected expiry in %v", d)
		}
	})

	t.Run("WrongSecret", func(t *testing.T) {
		token, _ := NewAdminAuth("other-secret").GenerateToken("ops", time.Hour)
		if _, _, err := a.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		claims := jwt.MapClaims{"sub": "ops", "admin": true, "exp": time.Now().Add(-time.Minute).Unix()}
		token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		if _, _, err := a.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("NotAdmin", func(t *testing.T) {
		claims := jwt.MapClaims{"sub": "someone", "exp": time.Now().Add(time.Hour).Unix()}
		token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		if _, _, err := a.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("NoSecret", func(t *testing.T) {
		empty := NewAdminAuth("")
		if _, err := empty.GenerateToken("ops", time.Hour); !errors.Is(err, ErrNoSecret) {
			t.Errorf("expected ErrNoSecret, got %v", err)
		}
		token, _ := a.GenerateToken("ops", time.Hour)
		if _, _, err := empty.Verify(token); !errors.Is(err, ErrNoSecret) {
			t.Errorf("expected ErrNoSecret, got %v", err)
		}
	})
}
