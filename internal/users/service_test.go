package users

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sevensea/warehouse/internal/platform/docstore"
	"github.com/sevensea/warehouse/internal/platform/export"
	"github.com/sevensea/warehouse/internal/shared"
)

var testNow = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(NewRepository(docstore.NewMemoryStore()), nil, ServiceConfig{
		Now:      func() time.Time { return testNow },
		HashCost: bcrypt.MinCost,
	})
}

func seed(t *testing.T, svc *Service) []User {
	t.Helper()
	n, err := svc.SeedDefaultAccounts(context.Background(), "warehouse-pass", "example.test")
	require.NoError(t, err)
	require.Equal(t, 3, n)
	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	return users
}

func TestSeedDefaultAccountsOnlyWhenEmpty(t *testing.T) {
	svc := newTestService(t)
	users := seed(t, svc)
	require.Equal(t, "Admin User", users[0].Name)
	require.Equal(t, "V001", users[2].VendorNumber)

	n, err := svc.SeedDefaultAccounts(context.Background(), "warehouse-pass", "example.test")
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = newTestService(t).SeedDefaultAccounts(context.Background(), "short", "")
	require.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService(t)
	seed(t, svc)
	ctx := context.Background()

	u, err := svc.Authenticate(ctx, "ADMIN@example.test", "warehouse-pass")
	require.NoError(t, err)
	require.NotNil(t, u.LastLogin)
	require.Equal(t, testNow, *u.LastLogin)

	_, err = svc.Authenticate(ctx, "admin@example.test", "wrong-pass")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody@example.test", "warehouse-pass")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.SuspendUser(ctx, u.ID)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "admin@example.test", "warehouse-pass")
	require.ErrorIs(t, err, ErrAccountSuspended)

	_, err = svc.ActivateUserAccount(ctx, u.ID)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "admin@example.test", "warehouse-pass")
	require.NoError(t, err)
}

func TestAddUserRejectsDuplicateEmail(t *testing.T) {
	svc := newTestService(t)
	seed(t, svc)
	_, err := svc.AddUser(context.Background(), Input{Email: "Staff@Example.test", Name: "Dup", Role: shared.RoleStaff, Password: "longenough"})
	require.ErrorIs(t, err, ErrDuplicateEmail)

	_, err = svc.AddUser(context.Background(), Input{Email: "not-an-email", Name: "", Role: "owner"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestInvitationFlow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	u, err := svc.AddUser(ctx, Input{Email: "new@example.test", Name: "New", Role: shared.RoleVendor, VendorNumber: "V009"})
	require.NoError(t, err)
	require.False(t, u.IsActive)
	require.NotEmpty(t, u.InvitationToken)
	require.True(t, u.Profile().Invited)

	_, err = svc.Authenticate(ctx, "new@example.test", "anything-at-all")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.ActivateInvitation(ctx, "bogus", "new-password")
	require.ErrorIs(t, err, ErrInvalidInvitation)

	activated, err := svc.ActivateInvitation(ctx, u.InvitationToken, "new-password")
	require.NoError(t, err)
	require.True(t, activated.IsActive)
	require.Empty(t, activated.InvitationToken)

	_, err = svc.ActivateInvitation(ctx, u.InvitationToken, "new-password")
	require.ErrorIs(t, err, ErrInvalidInvitation)

	_, err = svc.Authenticate(ctx, "new@example.test", "new-password")
	require.NoError(t, err)
}

func TestUpdateUser(t *testing.T) {
	svc := newTestService(t)
	users := seed(t, svc)
	ctx := context.Background()
	vendor := users[2]

	updated, err := svc.UpdateUser(ctx, vendor.ID, Input{Email: "VENDOR@example.test", Name: "Renamed", Role: shared.RoleVendor, VendorNumber: "V002"})
	require.NoError(t, err, "case-only email change is not a duplicate")
	require.Equal(t, "V002", updated.VendorNumber)

	_, err = svc.UpdateUser(ctx, vendor.ID, Input{Email: "staff@example.test", Name: "Renamed", Role: shared.RoleVendor})
	require.ErrorIs(t, err, ErrDuplicateEmail)

	promoted, err := svc.UpdateUser(ctx, vendor.ID, Input{Email: "vendor@example.test", Name: "Renamed", Role: shared.RoleStaff, VendorNumber: "V002"})
	require.NoError(t, err)
	require.Equal(t, shared.AllVendorsMarker, promoted.VendorNumber)

	_, err = svc.UpdateUser(ctx, "missing", Input{Email: "x@example.test", Name: "X", Role: shared.RoleStaff})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateUserKeepsLastAdminRole(t *testing.T) {
	svc := newTestService(t)
	users := seed(t, svc)
	ctx := context.Background()
	admin := users[0]

	_, err := svc.UpdateUser(ctx, admin.ID, Input{Email: admin.Email, Name: admin.Name, Role: shared.RoleStaff})
	require.ErrorIs(t, err, ErrLastAdminRole)
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.UpdateUser(ctx, admin.ID, Input{Email: admin.Email, Name: "Renamed", Role: shared.RoleAdmin})
	require.NoError(t, err)

	_, err = svc.AddUser(ctx, Input{Email: "second@example.test", Name: "Second", Role: shared.RoleAdmin, Password: "longenough"})
	require.NoError(t, err)
	demoted, err := svc.UpdateUser(ctx, admin.ID, Input{Email: admin.Email, Name: admin.Name, Role: shared.RoleStaff})
	require.NoError(t, err)
	require.Equal(t, shared.RoleStaff, demoted.Role)
}

func TestDeleteUserKeepsLastAdmin(t *testing.T) {
	svc := newTestService(t)
	users := seed(t, svc)
	ctx := context.Background()
	admin := users[0]

	require.ErrorIs(t, svc.DeleteUser(ctx, admin.ID), ErrLastAdmin)

	second, err := svc.AddUser(ctx, Input{Email: "second@example.test", Name: "Second", Role: shared.RoleAdmin, Password: "longenough"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteUser(ctx, admin.ID))
	require.ErrorIs(t, svc.DeleteUser(ctx, second.ID), ErrLastAdmin)
	require.ErrorIs(t, svc.DeleteUser(ctx, admin.ID), ErrUserNotFound)
}

func TestResetPassword(t *testing.T) {
	svc := newTestService(t)
	users := seed(t, svc)
	ctx := context.Background()

	require.ErrorIs(t, svc.ResetPassword(ctx, users[1].ID, "short"), shared.ErrValidation)
	require.NoError(t, svc.ResetPassword(ctx, users[1].ID, "brand-new-pass"))
	_, err := svc.Authenticate(ctx, "staff@example.test", "warehouse-pass")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "staff@example.test", "brand-new-pass")
	require.NoError(t, err)
}

func TestAllowedVendorNumbers(t *testing.T) {
	require.Empty(t, AllowedVendorNumbers(nil))
	require.Equal(t, shared.AllVendors, AllowedVendorNumbers(&User{Role: shared.RoleStaff}))
	require.Equal(t, shared.AllVendors, AllowedVendorNumbers(&User{Role: shared.RoleVendor, VendorNumber: "ALL"}))
	require.Equal(t, shared.VendorScope{"V003"}, AllowedVendorNumbers(&User{Role: shared.RoleVendor, VendorNumber: "V003"}))
	require.Empty(t, AllowedVendorNumbers(&User{Role: shared.RoleVendor}))
}

func TestAccountByIDAndEmailUnique(t *testing.T) {
	svc := newTestService(t)
	users := seed(t, svc)
	ctx := context.Background()

	acct, err := svc.AccountByID(ctx, users[2].ID)
	require.NoError(t, err)
	require.Equal(t, shared.RoleVendor, acct.Role)
	require.True(t, acct.Active)

	_, err = svc.AccountByID(ctx, "ghost")
	require.ErrorIs(t, err, shared.ErrNotFound)

	unique, err := svc.IsEmailUnique(ctx, "ADMIN@example.test", "")
	require.NoError(t, err)
	require.False(t, unique)
	unique, err = svc.IsEmailUnique(ctx, "admin@example.test", users[0].ID)
	require.NoError(t, err)
	require.True(t, unique)
}

func TestExportTable(t *testing.T) {
	login := testNow
	table := ExportTable([]User{
		{Name: "Ann", Email: "ann@example.test", Role: "admin", VendorNumber: "ALL", IsActive: true, LastLogin: &login},
		{Name: "Bob", Email: "bob@example.test", Role: "vendor", VendorNumber: "V001"},
		{Name: "Cy", Email: "cy@example.test", Role: "staff", IsActive: true, IsSuspended: true},
	})
	var buf bytes.Buffer
	require.NoError(t, export.WriteCSV(&buf, table))
	require.Equal(t, "Name,Email,Role,Vendor Number,Status,Last Login\n"+
		"Ann,ann@example.test,admin,ALL,Active,2024-03-15 09:00\n"+
		"Bob,bob@example.test,vendor,V001,Pending,Never\n"+
		"Cy,cy@example.test,staff,,Suspended,Never\n", buf.String())
}
