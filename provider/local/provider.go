package local

import (
	"context"
	"strings"
	"sync"
	"time"

	authstate "github.com/goliatone/go-auth-state"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// UserRecord is a stored account
type UserRecord struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Users is the account store used by the provider. Implementations return
// ErrUserNotFound when no record matches.
type Users interface {
	GetByEmail(ctx context.Context, email string) (*UserRecord, error)
	GetByID(ctx context.Context, id string) (*UserRecord, error)
	Create(ctx context.Context, record *UserRecord) (*UserRecord, error)
}

// Config configures the local provider.
type Config struct {
	SigningKey []byte
	Issuer     string
	// TokenTTL is the access token lifetime (default: 12h)
	TokenTTL time.Duration
	Storage  authstate.SessionStorage
	Logger   authstate.Logger
	Now      func() time.Time
}

// Provider implements authstate.SessionProvider on top of a Users store,
// bcrypt password hashes and HS256 access tokens.
type Provider struct {
	users   Users
	tokens  tokenService
	storage authstate.SessionStorage
	logger  authstate.Logger
	now     func() time.Time

	mu        sync.Mutex
	listeners map[int]authstate.SessionChangeFunc
	nextID    int

	storeMu sync.Mutex
	gen     uint64
}

// New creates a local provider.
func New(users Users, cfg Config) (*Provider, error) {
	if users == nil {
		return nil, goerrors.New("users store is required", goerrors.CategoryValidation).
			WithTextCode(TextCodeConfiguration)
	}
	if len(cfg.SigningKey) == 0 {
		return nil, ErrMissingSigningKey
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	if cfg.Storage == nil {
		cfg.Storage = authstate.NewMemorySessionStorage()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	_, logger := authstate.ResolveLogger("auth.local", nil, cfg.Logger)

	return &Provider{
		users: users,
		tokens: tokenService{
			signingKey: cfg.SigningKey,
			issuer:     cfg.Issuer,
			ttl:        cfg.TokenTTL,
		},
		storage:   cfg.Storage,
		logger:    logger,
		now:       cfg.Now,
		listeners: map[int]authstate.SessionChangeFunc{},
	}, nil
}

// Register creates an account with a hashed password.
func (p *Provider) Register(ctx context.Context, email, password, role string) (*authstate.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, goerrors.New("email is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := p.now()
	record, err := p.users.Create(ctx, &UserRecord{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("user registered", "user_id", record.ID, "role", record.Role)
	return toUser(record), nil
}

// SignInWithPassword checks the password and issues a session.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*authstate.Session, error) {
	record, err := p.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if IsUserNotFound(err) {
			p.logger.Debug("sign in for unknown email")
			return nil, ErrInvalidLogin
		}
		return nil, err
	}

	if err := ComparePasswordAndHash(password, record.PasswordHash); err != nil {
		p.logger.Debug("sign in with wrong password", "user_id", record.ID)
		return nil, err
	}

	token, expiresAt, err := p.tokens.mint(record, p.now())
	if err != nil {
		return nil, err
	}

	session := &authstate.Session{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
		User:        toUser(record),
	}

	if err := p.commit(ctx, session); err != nil {
		return nil, err
	}

	p.emit(authstate.EventSignedIn, session)
	return session.Clone(), nil
}

// GetCurrentSession restores and verifies the stored session. Tokens that
// fail verification and users that no longer exist count as no session.
// The outcome is dropped if a sign in or sign out completed meanwhile.
func (p *Provider) GetCurrentSession(ctx context.Context) (*authstate.Session, error) {
	gen := p.generation()

	session, err := p.storage.Load(ctx)
	if err != nil {
		return nil, err
	}

	if session == nil || session.AccessToken == "" {
		return p.restored(ctx, gen, nil, false)
	}

	claims, err := p.tokens.validate(session.AccessToken, p.now())
	if err != nil {
		p.logger.Info("discarding stored session", "error", err)
		return p.restored(ctx, gen, nil, true)
	}

	record, err := p.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if IsUserNotFound(err) {
			p.logger.Info("discarding session of removed user", "user_id", claims.Subject)
			return p.restored(ctx, gen, nil, true)
		}
		return nil, err
	}

	session.User = toUser(record)
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}

	return p.restored(ctx, gen, session, false)
}

// SignOut forgets the stored session.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.commit(ctx, nil); err != nil {
		return err
	}
	p.emit(authstate.EventSignedOut, nil)
	return nil
}

// OnSessionChange registers fn for session change events.
func (p *Provider) OnSessionChange(fn authstate.SessionChangeFunc) authstate.Subscription {
	if fn == nil {
		return authstate.SubscriptionFunc(nil)
	}

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return authstate.SubscriptionFunc(func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	})
}

func (p *Provider) generation() uint64 {
	p.storeMu.Lock()
	defer p.storeMu.Unlock()
	return p.gen
}

// commit writes a sign in (session) or sign out (nil) and supersedes any
// restore in progress.
func (p *Provider) commit(ctx context.Context, session *authstate.Session) error {
	p.storeMu.Lock()
	defer p.storeMu.Unlock()

	p.gen++
	if session == nil {
		return p.storage.Clear(ctx)
	}
	return p.storage.Save(ctx, session)
}

func (p *Provider) restored(ctx context.Context, gen uint64, session *authstate.Session, discard bool) (*authstate.Session, error) {
	p.storeMu.Lock()
	if p.gen != gen {
		p.storeMu.Unlock()
		p.logger.Debug("stored session check superseded")
		return nil, nil
	}

	var err error
	if discard {
		err = p.storage.Clear(ctx)
	}
	p.storeMu.Unlock()

	if err != nil {
		return nil, err
	}

	p.emit(authstate.EventInitialSession, session)
	return session.Clone(), nil
}

func (p *Provider) emit(event authstate.SessionEvent, session *authstate.Session) {
	p.mu.Lock()
	fns := make([]authstate.SessionChangeFunc, 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(event, session.Clone())
	}
}

func toUser(record *UserRecord) *authstate.User {
	return &authstate.User{
		ID:        record.ID,
		Email:     record.Email,
		Role:      record.Role,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
