package middleware

import (
	"net/http"

	goRBAC "github.com/MrEthical07/goRBAC"
)

// RequirePermission rejects requests whose user is not granted perm.
func RequirePermission(engine *goRBAC.Engine, perm string) func(http.Handler) http.Handler {
	return RequireAllPermissions(engine, perm)
}

// RequireAllPermissions rejects requests unless every permission is granted.
// Each permission is checked and audited on its own; the first denial stops.
func RequireAllPermissions(engine *goRBAC.Engine, perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userOrReject(w, r, engine)
			if !ok {
				return
			}
			ctx := requestMetadata(r)
			for _, perm := range perms {
				res := engine.AuthorizeWithContext(ctx, user, perm)
				if !writeDecision(w, res) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission admits requests granted at least one of perms.
func RequireAnyPermission(engine *goRBAC.Engine, perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userOrReject(w, r, engine)
			if !ok {
				return
			}
			ctx := requestMetadata(r)
			var last goRBAC.AuthorizationResult
			for _, perm := range perms {
				last = engine.AuthorizeWithContext(ctx, user, perm)
				if last.Allowed {
					next.ServeHTTP(w, r)
					return
				}
				if last.Err != nil {
					break
				}
			}
			writeDecision(w, last)
		})
	}
}

// RequireRole admits users assigned role, or any role whose hierarchy level
// lets it act as role when byLevel is set.
func RequireRole(engine *goRBAC.Engine, role string, byLevel bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userOrReject(w, r, engine)
			if !ok {
				return
			}
			allowed := engine.HasRole(user, role)
			if !allowed && byLevel {
				allowed = engine.UserCanActAs(user, role)
			}
			if !allowed {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func userOrReject(w http.ResponseWriter, r *http.Request, engine *goRBAC.Engine) (goRBAC.User, bool) {
	if engine == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return goRBAC.User{}, false
	}
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return goRBAC.User{}, false
	}
	return user, true
}

// writeDecision writes the rejection for res and reports whether the request may continue.
func writeDecision(w http.ResponseWriter, res goRBAC.AuthorizationResult) bool {
	switch {
	case res.Err != nil:
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return false
	case !res.Allowed:
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	default:
		return true
	}
}
