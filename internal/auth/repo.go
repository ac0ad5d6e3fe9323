package auth

import (
	"context"

	"github.com/roledash/roledash/internal/shared"
)

// Repository defines lookup operations for auth module.
type Repository interface {
	FindByRole(ctx context.Context, role string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
}

// DemoRepository serves the fixed demo accounts from memory.
type DemoRepository struct {
	accounts []Account
}

// NewDemoRepository constructs a repository over DemoAccounts.
func NewDemoRepository() *DemoRepository {
	return &DemoRepository{accounts: DemoAccounts()}
}

// FindByRole returns the account bound to role.
func (r *DemoRepository) FindByRole(ctx context.Context, role string) (*Account, error) {
	for _, a := range r.accounts {
		if a.Role == role {
			account := a
			return &account, nil
		}
	}
	return nil, shared.ErrUnknownRole
}

// FindByID returns the account with id.
func (r *DemoRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	for _, a := range r.accounts {
		if a.ID == id {
			account := a
			return &account, nil
		}
	}
	return nil, shared.ErrNotFound
}
