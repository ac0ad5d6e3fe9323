package shared

import (
	"context"
	"strings"
)

// SystemActor attributes work done without a signed-in user.
const SystemActor = "system"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// RoleFromContext returns the role bound to the session in ctx, if any.
func RoleFromContext(ctx context.Context) (string, bool) {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return "", false
	}
	role := strings.TrimSpace(sess.Role())
	return role, role != ""
}

// ActorFromContext names who is acting in ctx: the signed-in account id,
// or SystemActor.
func ActorFromContext(ctx context.Context) string {
	if sess := SessionFromContext(ctx); sess != nil && sess.User() != "" {
		return sess.User()
	}
	return SystemActor
}
