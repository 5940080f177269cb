package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const AdminSubjectKey contextKey = "admin_subject"

// Middleware accepts the token as a Bearer header or the admin_token cookie.
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, fromCookie := bearerToken(r), false
		if tokenString == "" {
			cookie, err := r.Cookie(CookieName)
			if err != nil {
				http.Error(w, "Unauthorized: No token found", http.StatusUnauthorized)
				return
			}
			tokenString, fromCookie = cookie.Value, true
		}

		subject, exp, err := a.Verify(tokenString)
		if err != nil {
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}

		// Sliding session for browsers: refresh the cookie past the halfway mark.
		if fromCookie && exp.Sub(a.now()) < TokenDuration/2 {
			if newToken, err := a.GenerateToken(subject, TokenDuration); err == nil {
				http.SetCookie(w, &http.Cookie{
					Name:     CookieName,
					Value:    newToken,
					Expires:  a.now().Add(TokenDuration),
					HttpOnly: true,
					Path:     "/",
				})
			}
		}

		ctx := context.WithValue(r.Context(), AdminSubjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// SubjectFrom returns the admin subject set by Middleware.
func SubjectFrom(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(AdminSubjectKey).(string)
	return s, ok
}
