package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sevensea/warehouse/internal/rbac"
	"github.com/sevensea/warehouse/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	Update(ctx context.Context, fn func([]User) ([]User, bool, error)) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Logger *slog.Logger
	Now    func() time.Time
	// HashCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	HashCost int
}

// Service handles user business logic.
type Service struct {
	repo      RepositoryPort
	audit     AuditPort
	logger    *slog.Logger
	now       func() time.Time
	hashCost  int
	validator *validator.Validate

	mu sync.Mutex
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	s := &Service{repo: repo, audit: audit, logger: cfg.Logger, now: cfg.Now, hashCost: cfg.HashCost, validator: shared.NewValidator()}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.hashCost == 0 {
		s.hashCost = bcrypt.DefaultCost
	}
	return s
}

// ListUsers returns all users ordered by name.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(users, func(i, j int) bool {
		return strings.ToLower(users[i].Name) < strings.ToLower(users[j].Name)
	})
	return users, nil
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return User{}, err
	}
	i := indexOf(users, id)
	if i < 0 {
		return User{}, ErrUserNotFound
	}
	return users[i], nil
}

// IsEmailUnique reports whether no account other than excludeID uses email.
// Comparison ignores case.
func (s *Service) IsEmailUnique(ctx context.Context, email, excludeID string) (bool, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return false, err
	}
	return emailUnique(users, email, excludeID), nil
}

// AddUser creates an account. Without a password the account stays inactive
// until its invitation token is redeemed.
func (s *Service) AddUser(ctx context.Context, input Input) (User, error) {
	input = normalizeInput(input)
	if err := shared.ValidateStruct(s.validator, input); err != nil {
		return User{}, err
	}
	user := User{
		ID:           uuid.NewString(),
		Email:        input.Email,
		Name:         input.Name,
		Role:         input.Role,
		VendorNumber: input.VendorNumber,
		CreatedAt:    s.now(),
	}
	if input.Password != "" {
		hash, err := s.hash(input.Password)
		if err != nil {
			return User{}, err
		}
		user.PasswordHash = hash
		user.IsActive = true
	} else {
		user.InvitationToken = uuid.NewString()
	}
	err := s.update(ctx, func(users []User) ([]User, bool, error) {
		if !emailUnique(users, user.Email, "") {
			return nil, false, ErrDuplicateEmail
		}
		return append(users, user), true, nil
	})
	if err != nil {
		return User{}, err
	}
	s.record(ctx, "users:create", user.ID, map[string]any{"email": user.Email, "role": user.Role})
	return user, nil
}

// UpdateUser overwrites profile fields. The duplicate check only runs when
// the email changes. A non-empty password replaces the current one.
func (s *Service) UpdateUser(ctx context.Context, id string, input Input) (User, error) {
	input = normalizeInput(input)
	if err := shared.ValidateStruct(s.validator, input); err != nil {
		return User{}, err
	}
	var hash string
	if input.Password != "" {
		var err error
		if hash, err = s.hash(input.Password); err != nil {
			return User{}, err
		}
	}
	var updated User
	err := s.update(ctx, func(users []User) ([]User, bool, error) {
		i := indexOf(users, id)
		if i < 0 {
			return nil, false, ErrUserNotFound
		}
		u := users[i]
		if !strings.EqualFold(u.Email, input.Email) && !emailUnique(users, input.Email, id) {
			return nil, false, ErrDuplicateEmail
		}
		if u.Role == shared.RoleAdmin && input.Role != shared.RoleAdmin && otherAdmins(users, id) == 0 {
			return nil, false, ErrLastAdminRole
		}
		u.Email = input.Email
		u.Name = input.Name
		u.Role = input.Role
		u.VendorNumber = input.VendorNumber
		if hash != "" {
			u.PasswordHash = hash
		}
		users[i] = u
		updated = u
		return users, true, nil
	})
	if err != nil {
		return User{}, err
	}
	s.record(ctx, "users:update", id, map[string]any{"role": updated.Role})
	return updated, nil
}

// DeleteUser removes an account unless no other admin would remain.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	err := s.update(ctx, func(users []User) ([]User, bool, error) {
		i := indexOf(users, id)
		if i < 0 {
			return nil, false, ErrUserNotFound
		}
		if otherAdmins(users, id) == 0 {
			return nil, false, ErrLastAdmin
		}
		return append(users[:i], users[i+1:]...), true, nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, "users:delete", id, nil)
	return nil
}

// SuspendUser blocks logins for an account.
func (s *Service) SuspendUser(ctx context.Context, id string) (User, error) {
	return s.setSuspended(ctx, id, true, "users:suspend")
}

// ActivateUserAccount lifts a suspension.
func (s *Service) ActivateUserAccount(ctx context.Context, id string) (User, error) {
	return s.setSuspended(ctx, id, false, "users:activate")
}

func (s *Service) setSuspended(ctx context.Context, id string, suspended bool, action string) (User, error) {
	var updated User
	err := s.update(ctx, func(users []User) ([]User, bool, error) {
		i := indexOf(users, id)
		if i < 0 {
			return nil, false, ErrUserNotFound
		}
		users[i].IsSuspended = suspended
		updated = users[i]
		return users, true, nil
	})
	if err != nil {
		return User{}, err
	}
	s.record(ctx, action, id, nil)
	return updated, nil
}

// ResetPassword replaces the password hash of an account.
func (s *Service) ResetPassword(ctx context.Context, id, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	err = s.update(ctx, func(users []User) ([]User, bool, error) {
		i := indexOf(users, id)
		if i < 0 {
			return nil, false, ErrUserNotFound
		}
		users[i].PasswordHash = hash
		return users, true, nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, "users:reset_password", id, nil)
	return nil
}

// ActivateInvitation sets the password of an invited account, activates it
// and clears the token.
func (s *Service) ActivateInvitation(ctx context.Context, token, password string) (User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return User{}, ErrInvalidInvitation
	}
	if err := validatePassword(password); err != nil {
		return User{}, err
	}
	hash, err := s.hash(password)
	if err != nil {
		return User{}, err
	}
	var activated User
	err = s.update(ctx, func(users []User) ([]User, bool, error) {
		for i := range users {
			if users[i].InvitationToken != "" && users[i].InvitationToken == token {
				users[i].PasswordHash = hash
				users[i].IsActive = true
				users[i].InvitationToken = ""
				activated = users[i]
				return users, true, nil
			}
		}
		return nil, false, ErrInvalidInvitation
	})
	if err != nil {
		return User{}, err
	}
	s.record(ctx, "users:accept_invitation", activated.ID, nil)
	return activated, nil
}

// Authenticate checks credentials and stamps lastLogin. Unknown emails,
// accounts without a password and wrong passwords all report
// shared.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = strings.TrimSpace(email)
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return User{}, err
	}
	var found *User
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			found = &users[i]
			break
		}
	}
	if found == nil || found.PasswordHash == "" {
		return User{}, shared.ErrInvalidCredentials
	}
	if found.IsSuspended {
		return User{}, ErrAccountSuspended
	}
	if err := bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(password)); err != nil {
		return User{}, shared.ErrInvalidCredentials
	}

	id := found.ID
	now := s.now()
	var user User
	err = s.update(ctx, func(users []User) ([]User, bool, error) {
		i := indexOf(users, id)
		if i < 0 {
			return nil, false, shared.ErrInvalidCredentials
		}
		users[i].LastLogin = &now
		user = users[i]
		return users, true, nil
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// AllowedVendorNumbers returns the vendor numbers user may see. A nil user sees nothing.
func AllowedVendorNumbers(user *User) shared.VendorScope {
	if user == nil {
		return shared.VendorScope{}
	}
	return shared.ScopeFor(user.Role, user.VendorNumber)
}

// SeedDefaultAccounts creates one admin, staff and vendor account when no
// users exist yet. It returns how many accounts were created.
func (s *Service) SeedDefaultAccounts(ctx context.Context, password, emailDomain string) (int, error) {
	if len(password) < 8 {
		return 0, errors.New("users: seed password must be at least 8 characters")
	}
	if emailDomain == "" {
		emailDomain = "warehouse.local"
	}
	hash, err := s.hash(password)
	if err != nil {
		return 0, err
	}
	now := s.now()
	seeds := []User{
		{Email: "admin@" + emailDomain, Name: "Admin User", Role: shared.RoleAdmin, VendorNumber: shared.AllVendorsMarker},
		{Email: "staff@" + emailDomain, Name: "Staff User", Role: shared.RoleStaff, VendorNumber: shared.AllVendorsMarker},
		{Email: "vendor@" + emailDomain, Name: "Vendor User", Role: shared.RoleVendor, VendorNumber: "V001"},
	}
	created := 0
	err = s.update(ctx, func(users []User) ([]User, bool, error) {
		if len(users) > 0 {
			return nil, false, nil
		}
		for _, u := range seeds {
			u.ID = uuid.NewString()
			u.IsActive = true
			u.PasswordHash = hash
			u.CreatedAt = now
			users = append(users, u)
			created++
		}
		return users, true, nil
	})
	if err != nil {
		return 0, err
	}
	if created > 0 {
		s.logger.InfoContext(ctx, "seeded default accounts", slog.Int("count", created), slog.String("domain", emailDomain))
	}
	return created, nil
}

// AccountByID adapts users to rbac.AccountSource.
func (s *Service) AccountByID(ctx context.Context, id string) (rbac.Account, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return rbac.Account{}, err
	}
	return rbac.Account{
		ID:           u.ID,
		Email:        u.Email,
		Role:         u.Role,
		VendorNumber: u.VendorNumber,
		Active:       u.IsActive,
		Suspended:    u.IsSuspended,
	}, nil
}

func (s *Service) update(ctx context.Context, fn func([]User) ([]User, bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Update(ctx, fn)
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("users: hash password: %w", err)
	}
	return string(hash), nil
}

func (s *Service) record(ctx context.Context, action, id string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actor := ""
	if p, ok := shared.PrincipalFromContext(ctx); ok {
		actor = p.UserID
	}
	err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor, Action: action, Entity: "user", EntityID: id, Meta: meta, At: s.now()})
	if err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func emailUnique(users []User, email, excludeID string) bool {
	for _, u := range users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) && (excludeID == "" || u.ID != excludeID) {
			return false
		}
	}
	return true
}

func otherAdmins(users []User, id string) int {
	n := 0
	for _, u := range users {
		if u.Role == shared.RoleAdmin && u.ID != id {
			n++
		}
	}
	return n
}

func indexOf(users []User, id string) int {
	for i := range users {
		if users[i].ID == id {
			return i
		}
	}
	return -1
}

// normalizeInput trims fields and keeps the vendor number only for vendors;
// admin and staff always carry ALL.
func normalizeInput(in Input) Input {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	in.VendorNumber = strings.TrimSpace(in.VendorNumber)
	if in.Role != shared.RoleVendor {
		in.VendorNumber = shared.AllVendorsMarker
	}
	return in
}

func validatePassword(password string) error {
	if len(password) < 8 {
		var verrs shared.ValidationErrors
		verrs.Add("password", "must be at least 8 characters")
		return verrs.Err()
	}
	return nil
}
