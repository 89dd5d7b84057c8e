package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/sevensea/warehouse/internal/shared"
)

// ErrNotFound indicates that the requested account does not exist.
var ErrNotFound = errors.New("rbac: not found")

// ErrInactive is returned for suspended or inactive accounts.
var ErrInactive = shared.Kinded(shared.ErrForbidden, "rbac: account is not active")

// Service resolves the principal and permissions of a user.
type Service struct {
	accounts AccountSource
}

// NewService constructs a Service backed by accounts.
func NewService(accounts AccountSource) *Service {
	return &Service{accounts: accounts}
}

// Resolve loads the principal for userID.
func (s *Service) Resolve(ctx context.Context, userID string) (shared.Principal, error) {
	if userID == "" {
		return shared.Principal{}, ErrNotFound
	}
	acct, err := s.accounts.AccountByID(ctx, userID)
	if err != nil {
		return shared.Principal{}, fmt.Errorf("rbac: resolve %s: %w", userID, err)
	}
	if !acct.Active || acct.Suspended {
		return shared.Principal{}, ErrInactive
	}
	return shared.Principal{
		UserID:       acct.ID,
		Email:        acct.Email,
		Role:         acct.Role,
		VendorNumber: acct.VendorNumber,
	}, nil
}

// EffectivePermissions returns the permissions granted to userID.
func (s *Service) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	p, err := s.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return shared.RoleScopes(p.Role), nil
}
