package authstate_test

import (
	"context"
	"mime/multipart"
	"sync"
	"testing"
	"time"

	authstate "github.com/goliatone/go-auth-state"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type initialResult struct {
	session *authstate.Session
	err     error
}

// FakeProvider is a controllable SessionProvider. GetCurrentSession blocks
// until the test sends a result on Initial.
type FakeProvider struct {
	Initial chan initialResult

	mu          sync.Mutex
	listeners   map[int]authstate.SessionChangeFunc
	nextID      int
	signIn      func(ctx context.Context, email, password string) (*authstate.Session, error)
	signOut     func(ctx context.Context) error
	signInCalls int
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		Initial:   make(chan initialResult, 1),
		listeners: map[int]authstate.SessionChangeFunc{},
	}
}

func (f *FakeProvider) GetCurrentSession(ctx context.Context) (*authstate.Session, error) {
	select {
	case r := <-f.Initial:
		return r.session, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *FakeProvider) SignInWithPassword(ctx context.Context, email, password string) (*authstate.Session, error) {
	f.mu.Lock()
	f.signInCalls++
	fn := f.signIn
	f.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(ctx, email, password)
}

func (f *FakeProvider) SignOut(ctx context.Context) error {
	f.mu.Lock()
	fn := f.signOut
	f.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (f *FakeProvider) OnSessionChange(fn authstate.SessionChangeFunc) authstate.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	return authstate.SubscriptionFunc(func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	})
}

func (f *FakeProvider) OnSignIn(fn func(ctx context.Context, email, password string) (*authstate.Session, error)) {
	f.mu.Lock()
	f.signIn = fn
	f.mu.Unlock()
}

func (f *FakeProvider) OnSignOut(fn func(ctx context.Context) error) {
	f.mu.Lock()
	f.signOut = fn
	f.mu.Unlock()
}

func (f *FakeProvider) SignInCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signInCalls
}

func (f *FakeProvider) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// Emit fires a change event synchronously on every listener.
func (f *FakeProvider) Emit(event authstate.SessionEvent, session *authstate.Session) {
	f.mu.Lock()
	fns := make([]authstate.SessionChangeFunc, 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(event, session)
	}
}

// ResolveInitial completes the pending GetCurrentSession call.
func (f *FakeProvider) ResolveInitial(session *authstate.Session, err error) {
	f.Initial <- initialResult{session: session, err: err}
}

func newTestStore(t *testing.T, provider *FakeProvider, opts ...authstate.StoreOption) *authstate.Store {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	opts = append([]authstate.StoreOption{
		authstate.WithInitContext(ctx),
		authstate.WithLogger(authstate.NoopLogger()),
	}, opts...)

	store := authstate.NewStore(provider, opts...)
	t.Cleanup(func() {
		cancel()
		store.Close()
	})
	return store
}

func waitSettled(t *testing.T, store authstate.StateReader) authstate.AuthState {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	state, err := store.WaitSettled(ctx)
	require.NoError(t, err)
	return state
}

func waitInitialized(t *testing.T, store *authstate.Store) {
	t.Helper()

	select {
	case <-store.Initialized():
	case <-time.After(2 * time.Second):
		t.Fatal("initial session fetch did not return")
	}
}

func testSession(id, email string) *authstate.Session {
	return &authstate.Session{
		AccessToken: "token-" + id,
		TokenType:   "bearer",
		ExpiresAt:   time.Now().Add(time.Hour),
		User: &authstate.User{
			ID:    id,
			Email: email,
			Role:  authstate.RoleAdmin,
		},
	}
}

// MockAuthStore implements authstate.AuthStore
type MockAuthStore struct {
	mock.Mock
}

func (m *MockAuthStore) State() authstate.AuthState {
	args := m.Called()
	return args.Get(0).(authstate.AuthState)
}

func (m *MockAuthStore) WaitSettled(ctx context.Context) (authstate.AuthState, error) {
	args := m.Called(ctx)
	return args.Get(0).(authstate.AuthState), args.Error(1)
}

func (m *MockAuthStore) SignIn(ctx context.Context, creds authstate.Credentials) error {
	args := m.Called(ctx, creds)
	return args.Error(0)
}

func (m *MockAuthStore) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAuthStore) ClearError() {
	m.Called()
}

// MockContext implements router.Context
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) SendStatus(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) FormFile(key string) (*multipart.FileHeader, error) {
	args := m.Called(key)
	fh, _ := args.Get(0).(*multipart.FileHeader)
	return fh, args.Error(1)
}

func (m *MockContext) FormValue(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}
