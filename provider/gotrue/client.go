package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	authstate "github.com/goliatone/go-auth-state"
)

const (
	tokenPath  = "/auth/v1/token"
	logoutPath = "/auth/v1/logout"
	userPath   = "/auth/v1/user"
)

// Config holds the identity service configuration.
type Config struct {
	// URL is the service base URL, e.g. https://project.example.co
	URL string
	// APIKey is sent as the apikey header on every request
	APIKey string

	HTTPClient *http.Client
	Storage    authstate.SessionStorage
	Logger     authstate.Logger
	Now        func() time.Time
}

// Client implements authstate.SessionProvider against a GoTrue compatible
// identity service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	storage    authstate.SessionStorage
	logger     authstate.Logger
	now        func() time.Time

	mu        sync.Mutex
	listeners map[int]authstate.SessionChangeFunc
	nextID    int

	// storeMu serializes storage writes; gen counts completed sign ins and
	// sign outs so a slow restore cannot overwrite them.
	storeMu sync.Mutex
	gen     uint64
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil, ErrMissingURL
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("gotrue: invalid service URL %q", cfg.URL)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	storage := cfg.Storage
	if storage == nil {
		storage = authstate.NewMemorySessionStorage()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	_, logger := authstate.ResolveLogger("auth.gotrue", nil, cfg.Logger)

	return &Client{
		baseURL:    strings.TrimRight(raw, "/"),
		apiKey:     cfg.APIKey,
		httpClient: client,
		storage:    storage,
		logger:     logger,
		now:        now,
		listeners:  map[int]authstate.SessionChangeFunc{},
	}, nil
}

// GetCurrentSession restores the stored session. Expired or revoked
// sessions are discarded and reported as no session. A sign in or sign out
// that completes while the restore runs wins; the restore then neither
// touches storage nor emits.
func (c *Client) GetCurrentSession(ctx context.Context) (*authstate.Session, error) {
	gen := c.generation()

	session, err := c.storage.Load(ctx)
	if err != nil {
		return nil, err
	}

	if session == nil || session.AccessToken == "" {
		return c.restored(ctx, gen, nil, false)
	}

	if c.expired(session) {
		c.logger.Debug("stored session expired, discarding")
		return c.restored(ctx, gen, nil, true)
	}

	user, err := c.fetchUser(ctx, session.AccessToken)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsUnauthorized() {
			c.logger.Info("stored session rejected by identity service", "status", apiErr.Status)
			return c.restored(ctx, gen, nil, true)
		}
		return nil, err
	}

	session.User = user
	return c.restored(ctx, gen, session, false)
}

// SignInWithPassword exchanges email and password for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*authstate.Session, error) {
	endpoint := c.baseURL + tokenPath + "?grant_type=password"

	body, err := json.Marshal(passwordGrant{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	status, respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, apiError("sign_in", status, respBody)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(respBody, &tokenResp); err != nil {
		return nil, fmt.Errorf("gotrue: decode token response: %w", err)
	}

	if tokenResp.AccessToken == "" || tokenResp.User == nil {
		return nil, &APIError{Operation: "sign_in", Status: status, Message: "missing session in token response"}
	}

	session := tokenResp.session(c.now())
	if err := c.commit(ctx, session); err != nil {
		return nil, err
	}

	c.emit(authstate.EventSignedIn, session)
	return session.Clone(), nil
}

// SignOut revokes the session on the service and forgets it locally. A
// session the service no longer knows counts as signed out.
func (c *Client) SignOut(ctx context.Context) error {
	session, err := c.storage.Load(ctx)
	if err != nil {
		return err
	}

	if session != nil && session.AccessToken != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+logoutPath, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+session.AccessToken)

		status, respBody, err := c.do(req)
		if err != nil {
			return err
		}

		switch {
		case status >= 200 && status < 300:
		case status == http.StatusUnauthorized || status == http.StatusNotFound:
			c.logger.Debug("session already gone on identity service", "status", status)
		default:
			return apiError("sign_out", status, respBody)
		}
	}

	if err := c.commit(ctx, nil); err != nil {
		return err
	}

	c.emit(authstate.EventSignedOut, nil)
	return nil
}

// OnSessionChange registers fn for session change events.
func (c *Client) OnSessionChange(fn authstate.SessionChangeFunc) authstate.Subscription {
	if fn == nil {
		return authstate.SubscriptionFunc(nil)
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return authstate.SubscriptionFunc(func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	})
}

func (c *Client) generation() uint64 {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()
	return c.gen
}

// commit stores the outcome of a sign in (session) or sign out (nil) and
// supersedes any restore in progress.
func (c *Client) commit(ctx context.Context, session *authstate.Session) error {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	c.gen++
	if session == nil {
		return c.storage.Clear(ctx)
	}
	return c.storage.Save(ctx, session)
}

// restored finishes a restore started at gen. discard clears the stored
// session, a non nil session is written back.
func (c *Client) restored(ctx context.Context, gen uint64, session *authstate.Session, discard bool) (*authstate.Session, error) {
	c.storeMu.Lock()
	if c.gen != gen {
		c.storeMu.Unlock()
		c.logger.Debug("session restore superseded by sign in or sign out")
		return nil, nil
	}

	var err error
	switch {
	case session != nil:
		err = c.storage.Save(ctx, session)
	case discard:
		err = c.storage.Clear(ctx)
	}
	c.storeMu.Unlock()

	if err != nil {
		return nil, err
	}

	c.emit(authstate.EventInitialSession, session)
	return session, nil
}

func (c *Client) emit(event authstate.SessionEvent, session *authstate.Session) {
	c.mu.Lock()
	fns := make([]authstate.SessionChangeFunc, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(event, session.Clone())
	}
}

func (c *Client) fetchUser(ctx context.Context, accessToken string) (*authstate.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+userPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, apiError("user", status, body)
	}

	var user userResponse
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("gotrue: decode user response: %w", err)
	}

	return user.toUser(), nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, body, nil
}

// expired checks the stored expiry and the token exp claim. The token is
// not verified here; the service does that on the user lookup.
func (c *Client) expired(session *authstate.Session) bool {
	now := c.now()
	if session.Expired(now) {
		return true
	}

	token, _, err := jwt.NewParser().ParseUnverified(session.AccessToken, jwt.MapClaims{})
	if err != nil {
		return false
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}

	return !now.Before(exp.Time)
}
