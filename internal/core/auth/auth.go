// Package auth resolves bearer tokens to the signed-in user.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthenticated is returned when a token is missing, malformed, expired
// or rejected by the provider.
var ErrUnauthenticated = errors.New("unauthenticated")

// CookieName carries the token for browser requests.
const CookieName = "marksync_token"

// User is the current user as far as marksync cares.
type User struct {
	ID    string
	Email string
}

// Authenticator maps a token to a User.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (User, error)
}

// TokenFromRequest extracts a token from the Authorization header, the
// token query parameter (used by WebSocket clients) or the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

type ctxKey struct{}

// WithUser stores the user in ctx.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the user stored by WithUser.
func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok
}
