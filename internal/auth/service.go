package auth

import (
	"context"
	"sort"
	"time"

	"github.com/sevensea/warehouse/internal/users"
)

// Accounts is the subset of the users service that auth relies on.
type Accounts interface {
	Authenticate(ctx context.Context, email, password string) (users.User, error)
	ActivateInvitation(ctx context.Context, token, password string) (users.User, error)
	GetUser(ctx context.Context, id string) (users.User, error)
}

// Service wraps authentication business rules.
type Service struct {
	accounts Accounts
	repo     Repository
}

// NewService constructs a new Service. repo may be nil, in which case
// sessions are not recorded.
func NewService(accounts Accounts, repo Repository) *Service {
	return &Service{accounts: accounts, repo: repo}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (users.User, error) {
	return s.accounts.Authenticate(ctx, email, password)
}

// ActivateInvitation redeems an invitation token.
func (s *Service) ActivateInvitation(ctx context.Context, token, password string) (users.User, error) {
	return s.accounts.ActivateInvitation(ctx, token, password)
}

// CurrentUser loads the signed-in account.
func (s *Service) CurrentUser(ctx context.Context, id string) (users.User, error) {
	return s.accounts.GetUser(ctx, id)
}

// RegisterSession records a new login session.
func (s *Service) RegisterSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error {
	if s.repo == nil {
		return nil
	}
	return s.repo.CreateSession(ctx, SessionRecord{
		ID:        id,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt.UTC(),
		IP:        ip,
		UserAgent: ua,
	})
}

// RemoveSession deletes a session record.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	if s.repo == nil {
		return nil
	}
	return s.repo.DeleteSession(ctx, id)
}

// Sessions lists a user's live sessions, newest first.
func (s *Service) Sessions(ctx context.Context, userID string) ([]SessionRecord, error) {
	if s.repo == nil {
		return nil, nil
	}
	records, err := s.repo.ListSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.After(records[j].CreatedAt) })
	return records, nil
}
