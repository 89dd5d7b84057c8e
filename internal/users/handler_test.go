package users

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sevensea/warehouse/internal/rbac"
	"github.com/sevensea/warehouse/internal/shared"
)

func newTestRouter(t *testing.T) (*Service, http.Handler) {
	t.Helper()
	svc := newTestService(t)
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, rbac.Middleware{})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if role := r.Header.Get("X-Test-Role"); role != "" {
				p := shared.Principal{UserID: "actor", Role: role}
				r = r.WithContext(shared.ContextWithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Route("/users", h.MountRoutes)
	return svc, r
}

func call(h http.Handler, method, target, role, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("X-Test-Role", role)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerUsersAreAdminOnly(t *testing.T) {
	svc, router := newTestRouter(t)
	seed(t, svc)

	require.Equal(t, http.StatusForbidden, call(router, http.MethodGet, "/users", shared.RoleStaff, "").Code)
	require.Equal(t, http.StatusForbidden, call(router, http.MethodGet, "/users", shared.RoleVendor, "").Code)
	require.Equal(t, http.StatusUnauthorized, call(router, http.MethodGet, "/users", "", "").Code)

	rec := call(router, http.MethodGet, "/users?search=vendor", shared.RoleAdmin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "passwordHash")
	var page struct {
		Users []Profile `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Users, 1)
	require.Equal(t, "vendor@example.test", page.Users[0].Email)
}

func TestHandlerCreateInvitesAndRejectsDuplicates(t *testing.T) {
	svc, router := newTestRouter(t)
	seed(t, svc)

	rec := call(router, http.MethodPost, "/users", shared.RoleAdmin,
		`{"email":"new@example.test","name":"New Person","role":"vendor","vendorNumber":"V009"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		User            Profile `json:"user"`
		InvitationToken string  `json:"invitationToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, created.User.Invited)
	require.NotEmpty(t, created.InvitationToken)

	rec = call(router, http.MethodPost, "/users", shared.RoleAdmin,
		`{"email":"NEW@example.test","name":"Again","role":"staff"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = call(router, http.MethodGet, "/users/email-available?email=new@example.test", shared.RoleAdmin, "")
	require.JSONEq(t, `{"available":false}`, rec.Body.String())
	rec = call(router, http.MethodGet, "/users/email-available?email=new@example.test&excludeId="+created.User.ID, shared.RoleAdmin, "")
	require.JSONEq(t, `{"available":true}`, rec.Body.String())

	rec = call(router, http.MethodPost, "/users", shared.RoleAdmin, `{"email":"bad","name":"","role":"owner"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerLastAdminAndSuspend(t *testing.T) {
	svc, router := newTestRouter(t)
	accounts := seed(t, svc)
	var adminID, staffID string
	for _, u := range accounts {
		switch u.Role {
		case shared.RoleAdmin:
			adminID = u.ID
		case shared.RoleStaff:
			staffID = u.ID
		}
	}

	rec := call(router, http.MethodDelete, "/users/"+adminID, shared.RoleAdmin, "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = call(router, http.MethodPost, "/users/"+staffID+"/suspend", shared.RoleAdmin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.True(t, p.IsSuspended)

	rec = call(router, http.MethodPost, "/users/"+staffID+"/password", shared.RoleAdmin, `{"password":"short"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = call(router, http.MethodPost, "/users/"+staffID+"/password", shared.RoleAdmin, `{"password":"longenough"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = call(router, http.MethodGet, "/users/missing", shared.RoleAdmin, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(router, http.MethodGet, "/users/export?format=csv", shared.RoleAdmin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "users-2024-03-15.csv")
	require.Contains(t, rec.Body.String(), "Name,Email,Role,Vendor Number,Status,Last Login")
}
