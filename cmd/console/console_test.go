package main

import (
	"context"
	"sync"
	"testing"

	authstate "github.com/goliatone/go-auth-state"
	"github.com/goliatone/go-auth-state/provider/local"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryUsers struct {
	mu      sync.Mutex
	records map[string]*local.UserRecord
	creates int
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{records: map[string]*local.UserRecord{}}
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*local.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.Email == email {
			out := *r
			return &out, nil
		}
	}
	return nil, local.ErrUserNotFound
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (*local.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[id]; ok {
		out := *r
		return &out, nil
	}
	return nil, local.ErrUserNotFound
}

func (m *memoryUsers) Create(_ context.Context, record *local.UserRecord) (*local.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	out := *record
	m.records[record.ID] = &out
	return record, nil
}

func TestBootstrapAdmin(t *testing.T) {
	users := newMemoryUsers()
	handler := NewBootstrapAdminHandler(users, authstate.NoopLogger())

	msg := BootstrapAdminMessage{Email: " Admin@Example.com ", Password: "secret1"}
	assert.Equal(t, "user.bootstrap_admin", msg.Type())

	require.NoError(t, handler.Execute(context.Background(), msg))
	require.NoError(t, handler.Execute(context.Background(), msg))
	assert.Equal(t, 1, users.creates)

	record, err := users.GetByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, authstate.RoleAdmin, record.Role)
	require.NoError(t, local.ComparePasswordAndHash("secret1", record.PasswordHash))

	again := newMemoryUsers()
	require.NoError(t, NewBootstrapAdminHandler(again, authstate.NoopLogger()).Execute(context.Background(), msg))
	other, err := again.GetByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, record.ID, other.ID)
}

func TestBootstrapAdminSkipsEmptyEmail(t *testing.T) {
	users := newMemoryUsers()
	require.NoError(t, NewBootstrapAdminHandler(users, authstate.NoopLogger()).
		Execute(context.Background(), BootstrapAdminMessage{}))
	assert.Zero(t, users.creates)
}

func TestBootstrapAdminCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewBootstrapAdminHandler(newMemoryUsers(), authstate.NoopLogger()).
		Execute(ctx, BootstrapAdminMessage{Email: "a@b.com", Password: "secret1"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSectionResponse(t *testing.T) {
	t.Run("renders admitted user", func(t *testing.T) {
		status, payload := sectionResponse("production", &authstate.User{
			ID:    "u-1",
			Email: "op@example.com",
			Role:  authstate.RoleOperator,
		})

		assert.Equal(t, router.StatusOK, status)
		assert.Equal(t, "production", payload["section"])
		assert.Equal(t, "Operario", payload["role_name"])
	})

	t.Run("rejects without user", func(t *testing.T) {
		status, payload := sectionResponse("finance", nil)

		assert.Equal(t, router.StatusUnauthorized, status)
		assert.Equal(t, "not authenticated", payload["error"])
	})
}

func TestFallbackRoutes(t *testing.T) {
	r := newCaptureRouter()
	FallbackRoutes(r, "/auth/login")

	require.Len(t, r.handlers, 2)
	assert.NotNil(t, r.handlers["/"])
	assert.NotNil(t, r.handlers["/*"])
	assert.Empty(t, r.middleware["/*"])
}

func TestRoleDisplayName(t *testing.T) {
	assert.Equal(t, "Administrador", RoleDisplayName(authstate.RoleAdmin))
	assert.Equal(t, "Repartidor", RoleDisplayName(authstate.RoleDriver))
	assert.Equal(t, "auditor", RoleDisplayName("auditor"))
}

func TestProtectedRoutes(t *testing.T) {
	store := authstate.NewStore(staticProvider{}, authstate.WithLogger(authstate.NoopLogger()))
	defer store.Close()

	r := newCaptureRouter()
	ProtectedRoutes(r, authstate.NewGuard(store))

	for _, section := range protectedSections {
		_, ok := r.handlers["/"+section]
		assert.True(t, ok, section)
		assert.Len(t, r.middleware["/"+section], 1, section)
	}
}

type captureRouter struct {
	handlers   map[string]router.HandlerFunc
	middleware map[string][]router.MiddlewareFunc
}

func newCaptureRouter() *captureRouter {
	return &captureRouter{
		handlers:   map[string]router.HandlerFunc{},
		middleware: map[string][]router.MiddlewareFunc{},
	}
}

func (r *captureRouter) Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo {
	r.handlers[path] = handler
	r.middleware[path] = mw
	return nil
}

func (r *captureRouter) Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo {
	return r.Get(path, handler, mw...)
}

func (r *captureRouter) Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo {
	return r.Get(path, handler, mw...)
}

type staticProvider struct{}

func (staticProvider) GetCurrentSession(context.Context) (*authstate.Session, error) {
	return nil, nil
}

func (staticProvider) SignInWithPassword(context.Context, string, string) (*authstate.Session, error) {
	return nil, nil
}

func (staticProvider) SignOut(context.Context) error {
	return nil
}

func (staticProvider) OnSessionChange(authstate.SessionChangeFunc) authstate.Subscription {
	return authstate.SubscriptionFunc(nil)
}
