package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/roledash/roledash/internal/platform/httpx"
	"github.com/roledash/roledash/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// RequireAny ensures the current role has at least one of the required permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.require(perms, hasAnyPermission)
}

// RequireAll ensures the current role has all required permissions.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.require(perms, hasAllPermissions)
}

func (m Middleware) require(perms []string, check func(role string, required []string) bool) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			role, ok := CurrentRole(r)
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "select a role to continue")
				return
			}
			if check(role, normalized) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Info("rbac denied",
					slog.String("role", role),
					slog.String("path", r.URL.Path),
					slog.Any("required", normalized))
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "role "+role+" lacks permission")
		})
	}
}

// CurrentRole returns the role bound to the request session.
func CurrentRole(r *http.Request) (string, bool) {
	return shared.RoleFromContext(r.Context())
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if _, ok := unique[p]; ok {
			continue
		}
		unique[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}

func hasAnyPermission(role string, required []string) bool {
	for _, p := range required {
		if HasPermission(role, p) {
			return true
		}
	}
	return false
}

func hasAllPermissions(role string, required []string) bool {
	for _, p := range required {
		if !HasPermission(role, p) {
			return false
		}
	}
	return true
}
