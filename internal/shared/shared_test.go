package shared_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sevensea/warehouse/internal/shared"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestValidationErrors(t *testing.T) {
	var verrs shared.ValidationErrors
	require.NoError(t, verrs.Err())

	verrs.Add("quantity", "must be greater than zero")
	err := verrs.Err()
	require.Error(t, err)
	require.True(t, errors.Is(err, shared.ErrValidation))
	require.Equal(t, "validation failed: quantity: must be greater than zero", err.Error())
}

func TestUserSafeMessage(t *testing.T) {
	require.Equal(t, "Insufficient stock", shared.UserSafeMessage(errors.New("inventory: insufficient stock")))
	require.Equal(t, "", shared.UserSafeMessage(nil))
	kinded := shared.Kinded(shared.ErrConflict, "users: email already in use")
	require.True(t, errors.Is(kinded, shared.ErrConflict))
	require.Equal(t, "Email already in use", shared.UserSafeMessage(kinded))
}

func TestSessionRoundTrip(t *testing.T) {
	_, client := newRedis(t)
	sm := shared.NewSessionManager(client, "test_session", time.Hour, false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser("user-1")
	sess.Set("k", "v")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, sess))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sess.ID})
	loaded, err := sm.Load(context.Background(), next)
	require.NoError(t, err)
	require.Equal(t, sess.ID, loaded.ID)
	require.Equal(t, "user-1", loaded.User())
	require.Equal(t, "v", loaded.Get("k"))
}

func TestSessionRegenerateDropsOldID(t *testing.T) {
	mr, client := newRedis(t)
	sm := shared.NewSessionManager(client, "test_session", time.Hour, false)

	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NoError(t, sm.Commit(context.Background(), httptest.NewRecorder(), sess))
	oldID := sess.ID

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: oldID})
	loaded, err := sm.Load(context.Background(), next)
	require.NoError(t, err)
	sm.Regenerate(loaded)
	loaded.SetUser("user-2")
	require.NoError(t, sm.Commit(context.Background(), httptest.NewRecorder(), loaded))

	require.NotEqual(t, oldID, loaded.ID)
	require.False(t, mr.Exists("warehouse:session:"+oldID))
	require.True(t, mr.Exists("warehouse:session:"+loaded.ID))
}

func TestUnknownSessionCookieStartsFresh(t *testing.T) {
	_, client := newRedis(t)
	sm := shared.NewSessionManager(client, "test_session", time.Hour, false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: "forged"})
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	require.NotEqual(t, "forged", sess.ID)
	require.Empty(t, sess.User())
}

func TestCSRFTokens(t *testing.T) {
	_, client := newRedis(t)
	sm := shared.NewSessionManager(client, "test_session", time.Hour, false)
	csrf := shared.NewCSRFManager("secret")

	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	token, err := csrf.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	again, err := csrf.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	require.Equal(t, token, again)

	require.NoError(t, csrf.VerifyToken(context.Background(), sess, token))
	require.ErrorIs(t, csrf.VerifyToken(context.Background(), sess, "nope"), shared.ErrCSRFTokenMismatch)
	require.ErrorIs(t, csrf.VerifyToken(context.Background(), sess, ""), shared.ErrCSRFTokenMissing)

	csrf.Rotate(sess)
	require.ErrorIs(t, csrf.VerifyToken(context.Background(), sess, token), shared.ErrCSRFTokenMissing)
}

func TestIdempotencyStore(t *testing.T) {
	_, client := newRedis(t)
	store := shared.NewIdempotencyStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.CheckAndInsert(ctx, "abc", "inventory.import"))
	require.ErrorIs(t, store.CheckAndInsert(ctx, "abc", "inventory.import"), shared.ErrIdempotencyConflict)
	require.NoError(t, store.CheckAndInsert(ctx, "abc", "billing.import"))

	require.NoError(t, store.Delete(ctx, "abc", "inventory.import"))
	require.NoError(t, store.CheckAndInsert(ctx, "abc", "inventory.import"))
	require.Error(t, store.CheckAndInsert(ctx, "", "inventory.import"))
}

func TestLockerSerializesAndReportsBusy(t *testing.T) {
	_, client := newRedis(t)
	locker := shared.NewLocker(client, time.Second)
	other := shared.NewLocker(client, time.Second)
	ctx := context.Background()

	var calls atomic.Int32
	err := locker.WithLock(ctx, shared.WorkflowLockKey, func(ctx context.Context) error {
		calls.Add(1)
		shortCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		innerErr := other.WithLock(shortCtx, shared.WorkflowLockKey, func(context.Context) error {
			calls.Add(1)
			return nil
		})
		require.Error(t, innerErr)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())

	require.NoError(t, other.WithLock(ctx, shared.WorkflowLockKey, func(context.Context) error {
		calls.Add(1)
		return nil
	}))
	require.Equal(t, int32(2), calls.Load())
}

func TestNilLockerRunsDirectly(t *testing.T) {
	var locker *shared.Locker
	ran := false
	require.NoError(t, locker.WithLock(context.Background(), "k", func(context.Context) error {
		ran = true
		return nil
	}))
	require.True(t, ran)
}

func TestRoleScopes(t *testing.T) {
	require.ElementsMatch(t, shared.CoreScopes(), shared.RoleScopes(shared.RoleAdmin))
	require.Contains(t, shared.RoleScopes(shared.RoleStaff), shared.PermTransactionsEdit)
	require.NotContains(t, shared.RoleScopes(shared.RoleStaff), shared.PermUsersView)
	require.NotContains(t, shared.RoleScopes(shared.RoleVendor), shared.PermTransactionsView)
	require.NotContains(t, shared.RoleScopes(shared.RoleVendor), shared.PermBillingsEdit)
	require.Nil(t, shared.RoleScopes("guest"))
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	page, meta := shared.Paginate(items, 2, 2)
	require.Equal(t, []int{3, 4}, page)
	require.Equal(t, 3, meta.TotalPages)

	page, _ = shared.Paginate(items, 9, 2)
	require.Empty(t, page)
}
