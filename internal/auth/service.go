package auth

import (
	"context"
	"strings"

	"github.com/roledash/roledash/internal/rbac"
	"github.com/roledash/roledash/internal/shared"
)

// Service wraps the role-selection login rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Login resolves the demo account for role. Roles without permissions
// cannot be chosen.
func (s *Service) Login(ctx context.Context, role string) (*Account, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if !rbac.CanAccessUserManagement(role) {
		return nil, shared.ErrUnknownRole
	}
	return s.repo.FindByRole(ctx, role)
}

// Lookup returns the account bound to a session user id.
func (s *Service) Lookup(ctx context.Context, id string) (*Account, error) {
	if id == "" {
		return nil, shared.ErrNotFound
	}
	return s.repo.FindByID(ctx, id)
}
