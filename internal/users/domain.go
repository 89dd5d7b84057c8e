package users

import (
	"time"

	"github.com/sevensea/warehouse/internal/shared"
)

// User represents a user account for management.
type User struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	Role            string     `json:"role"`
	VendorNumber    string     `json:"vendorNumber"`
	IsActive        bool       `json:"isActive"`
	IsSuspended     bool       `json:"isSuspended"`
	PasswordHash    string     `json:"passwordHash,omitempty"`
	InvitationToken string     `json:"invitationToken,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastLogin       *time.Time `json:"lastLogin"`
}

// Profile is the client-facing projection of a user without credentials.
type Profile struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	VendorNumber string     `json:"vendorNumber"`
	IsActive     bool       `json:"isActive"`
	IsSuspended  bool       `json:"isSuspended"`
	Invited      bool       `json:"invited"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLogin    *time.Time `json:"lastLogin"`
}

// Profile strips the password hash and invitation token.
func (u User) Profile() Profile {
	return Profile{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		VendorNumber: u.VendorNumber,
		IsActive:     u.IsActive,
		IsSuspended:  u.IsSuspended,
		Invited:      u.InvitationToken != "",
		CreatedAt:    u.CreatedAt,
		LastLogin:    u.LastLogin,
	}
}

// Status is the label used in listings and exports.
func (u User) Status() string {
	switch {
	case u.IsSuspended:
		return "Suspended"
	case !u.IsActive:
		return "Pending"
	default:
		return "Active"
	}
}

// Input carries the writable fields of a user. Password is optional on
// create; without it the user receives an invitation token.
type Input struct {
	Email        string `json:"email" validate:"required,email,max=254"`
	Name         string `json:"name" validate:"required,max=200"`
	Role         string `json:"role" validate:"required,oneof=admin staff vendor"`
	VendorNumber string `json:"vendorNumber" validate:"max=50"`
	Password     string `json:"password" validate:"omitempty,min=8,max=72"`
}

var (
	// ErrUserNotFound is returned for unknown user ids.
	ErrUserNotFound = shared.Kinded(shared.ErrNotFound, "users: user not found")
	// ErrDuplicateEmail rejects an email already used by another account.
	ErrDuplicateEmail = shared.Kinded(shared.ErrConflict, "users: email already exists")
	// ErrLastAdmin prevents deleting the only remaining admin.
	ErrLastAdmin = shared.Kinded(shared.ErrConflict, "users: cannot delete the last admin account")
	// ErrLastAdminRole prevents demoting the only remaining admin.
	ErrLastAdminRole = shared.Kinded(shared.ErrConflict, "users: cannot change the role of the last admin account")
	// ErrAccountSuspended rejects logins of suspended accounts.
	ErrAccountSuspended = shared.Kinded(shared.ErrForbidden, "users: account suspended, please contact administrator")
	// ErrInvalidInvitation is returned for unknown or used invitation tokens.
	ErrInvalidInvitation = shared.Kinded(shared.ErrValidation, "users: invalid or expired invitation")
)
