package middleware

import (
	"context"
	"net/http"
	"strings"

	goRBAC "github.com/MrEthical07/goRBAC"
)

// TokenParser turns a bearer token into the user it carries.
// *jwt.Manager satisfies it.
type TokenParser interface {
	ParseUser(token string) (goRBAC.User, error)
}

type userContextKey struct{}

// UserFromContext returns the user stored by [Authenticate].
func UserFromContext(ctx context.Context) (goRBAC.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(goRBAC.User)
	return u, ok
}

// WithUser stores user in ctx the way [Authenticate] does. It is useful when
// identity comes from somewhere other than a bearer token.
func WithUser(ctx context.Context, user goRBAC.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// Authenticate parses the Authorization header with tokens and injects the
// resulting user into the request context.
func Authenticate(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := tokens.ParseUser(token)
			if err != nil || user.ID == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// Guard authenticates the request and requires perm.
func Guard(engine *goRBAC.Engine, tokens TokenParser, perm string) func(http.Handler) http.Handler {
	auth := Authenticate(tokens)
	require := RequirePermission(engine, perm)
	return func(next http.Handler) http.Handler {
		return auth(require(next))
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func requestMetadata(r *http.Request) context.Context {
	return goRBAC.WithAuditMetadata(r.Context(), map[string]string{
		"method": r.Method,
		"path":   r.URL.Path,
		"remote": r.RemoteAddr,
	})
}
