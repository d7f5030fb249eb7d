package authstate

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-router"
)

const (
	// DefaultLoginPath is where unauthenticated navigation is sent
	DefaultLoginPath = "/auth/login"
	// DefaultReturnParam carries the originally requested path
	DefaultReturnParam = "returnUrl"
	// DefaultRedirect is used after login when no return path was given
	DefaultRedirect = "/dashboard"
)

// Decision is the outcome of a guard evaluation
type Decision struct {
	Admitted   bool
	RedirectTo string
	State      AuthState
}

// Guard admits navigation to protected routes. It never decides while the
// store is loading; it waits for settlement first.
type Guard struct {
	store        StateReader
	loginPath    string
	returnParam  string
	logger       Logger
	lp           LoggerProvider
	errorHandler func(c router.Context, err error) error
}

// GuardOption customizes the guard.
type GuardOption func(*Guard)

// WithLoginPath overrides the login entry point.
func WithLoginPath(path string) GuardOption {
	return func(g *Guard) {
		if path != "" {
			g.loginPath = path
		}
	}
}

// WithReturnParam overrides the query parameter that carries the return path.
func WithReturnParam(name string) GuardOption {
	return func(g *Guard) {
		if name != "" {
			g.returnParam = name
		}
	}
}

// WithGuardLogger sets the guard logger.
func WithGuardLogger(logger Logger) GuardOption {
	return func(g *Guard) {
		g.lp, g.logger = ResolveLogger("auth.guard", nil, logger)
	}
}

// WithGuardLoggerProvider resolves the guard logger from provider.
func WithGuardLoggerProvider(provider LoggerProvider) GuardOption {
	return func(g *Guard) {
		g.lp, g.logger = ResolveLogger("auth.guard", provider, g.logger)
	}
}

// WithGuardErrorHandler handles admissions aborted before a decision, e.g.
// when the request context ends while the store is still loading.
func WithGuardErrorHandler(handler func(c router.Context, err error) error) GuardOption {
	return func(g *Guard) {
		g.errorHandler = handler
	}
}

// NewGuard creates a guard reading from store. The store must be built
// before the guard; a nil store is a programming error.
func NewGuard(store StateReader, opts ...GuardOption) *Guard {
	if store == nil {
		panic("authstate: NewGuard requires a store")
	}

	g := &Guard{
		store:       store,
		loginPath:   DefaultLoginPath,
		returnParam: DefaultReturnParam,
	}
	g.lp, g.logger = ResolveLogger("auth.guard", nil, nil)

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	if g.errorHandler == nil {
		g.errorHandler = g.defaultErrHandler
	}

	return g
}

// LoginPath returns the login entry point
func (g *Guard) LoginPath() string {
	return g.loginPath
}

// ReturnParam returns the name of the return path query parameter
func (g *Guard) ReturnParam() string {
	return g.returnParam
}

// Admit waits for the store to settle and decides on requestedPath. It only
// reads the store, so repeated calls with unchanged state agree.
func (g *Guard) Admit(ctx context.Context, requestedPath string) (Decision, error) {
	state, err := g.store.WaitSettled(ctx)
	if err != nil {
		return Decision{State: state}, err
	}

	if state.IsAuthenticated {
		return Decision{Admitted: true, State: state}, nil
	}

	return Decision{
		Admitted:   false,
		RedirectTo: g.LoginRedirect(requestedPath),
		State:      state,
	}, nil
}

// LoginRedirect builds the login URL carrying requestedPath as return path
func (g *Guard) LoginRedirect(requestedPath string) string {
	if requestedPath == "" {
		requestedPath = "/"
	}

	sep := "?"
	if strings.Contains(g.loginPath, "?") {
		sep = "&"
	}

	return g.loginPath + sep + url.QueryEscape(g.returnParam) + "=" + escapeReturnPath(requestedPath)
}

// Middleware installs the guard as a per route admission check.
func (g *Guard) Middleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			requested := ctx.OriginalURL()

			decision, err := g.Admit(ctx.Context(), requested)
			if err != nil {
				return g.errorHandler(ctx, err)
			}

			if decision.Admitted {
				ctx.Locals(StateLocalsKey, decision.State)
				return next(ctx)
			}

			g.logger.Info("route admission denied, redirecting to login",
				"path", requested,
				"redirect", decision.RedirectTo,
			)

			statusCode := http.StatusSeeOther
			if ctx.Method() == http.MethodGet {
				statusCode = http.StatusFound
			}
			return ctx.Redirect(decision.RedirectTo, statusCode)
		}
	}
}

func (g *Guard) defaultErrHandler(c router.Context, err error) error {
	g.logger.Warn("route admission aborted", "path", c.OriginalURL(), "error", err)
	return err
}

// escapeReturnPath query escapes p but keeps path separators readable.
func escapeReturnPath(p string) string {
	return strings.ReplaceAll(url.QueryEscape(p), "%2F", "/")
}

// SafeReturnPath returns raw when it is a local absolute path, fallback
// otherwise. It rejects scheme or host bearing values and protocol
// relative paths so the return parameter cannot redirect off site.
func SafeReturnPath(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" {
		return fallback
	}

	return raw
}
