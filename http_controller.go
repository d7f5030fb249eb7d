package authstate

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// AuthStore is the store surface used by the login controller.
type AuthStore interface {
	StateReader
	SignIn(ctx context.Context, creds Credentials) error
	SignOut(ctx context.Context) error
	ClearError()
}

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// PathPrefix for routes (default: "/auth")
	PathPrefix string

	// ReturnParam is the query parameter carrying the return path (default: "returnUrl")
	ReturnParam string

	// DefaultRedirect after login when no return path is given (default: "/dashboard")
	DefaultRedirect string

	// SettleTimeout bounds the wait for the session event after sign in (default: 10s)
	SettleTimeout time.Duration

	// Logger for the controller (optional)
	Logger Logger

	// ErrorHandler handles unexpected errors (optional)
	ErrorHandler func(ctx router.Context, err error) error
}

// HTTPController serves the login container: login form state, sign in,
// sign out and the state snapshot.
type HTTPController struct {
	store  AuthStore
	config HTTPConfig
	logger Logger
}

// NewHTTPController creates a new login controller.
func NewHTTPController(store AuthStore, cfg HTTPConfig) *HTTPController {
	if store == nil {
		panic("authstate: NewHTTPController requires a store")
	}
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "/auth"
	}
	cfg.PathPrefix = "/" + strings.Trim(cfg.PathPrefix, "/")
	if cfg.ReturnParam == "" {
		cfg.ReturnParam = DefaultReturnParam
	}
	if cfg.DefaultRedirect == "" {
		cfg.DefaultRedirect = DefaultRedirect
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 10 * time.Second
	}

	_, logger := ResolveLogger("auth.http", nil, cfg.Logger)

	return &HTTPController{
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// PathPrefix returns the normalized mount point for RegisterRoutes
func (c *HTTPController) PathPrefix() string {
	return c.config.PathPrefix
}

// LoginPath returns the absolute login route, suitable for WithLoginPath
func (c *HTTPController) LoginPath() string {
	return c.config.PathPrefix + "/login"
}

// RegisterRoutes registers the auth routes on a group mounted at PathPrefix.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Get("/login", c.LoginShow)
	group.Post("/login", c.LoginPost)
	group.Post("/logout", c.LogOut)
	group.Get("/state", c.StateShow)
	group.Delete("/error", c.ErrorClear)
}

// LoginShow sends authenticated users on to their return path, everyone
// else gets the login form state.
func (c *HTTPController) LoginShow(ctx router.Context) error {
	state, err := c.store.WaitSettled(ctx.Context())
	if err != nil {
		return c.handleError(ctx, err)
	}

	returnURL := c.returnPath(ctx)

	if state.IsAuthenticated {
		return ctx.Redirect(returnURL, http.StatusFound)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"loading":    state.Loading,
		"error":      state.Error,
		"return_url": returnURL,
	})
}

// LoginPost signs in with the submitted credentials.
func (c *HTTPController) LoginPost(ctx router.Context) error {
	creds := Credentials{}
	if err := ctx.Bind(&creds); err != nil {
		c.logger.Error("login parse payload", "error", err)
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "Failed to parse form",
		})
	}

	if err := c.store.SignIn(ctx.Context(), creds); err != nil {
		status := router.StatusUnauthorized
		if IsValidationError(err) {
			status = router.StatusBadRequest
		}
		return ctx.JSON(status, map[string]string{
			"error": ErrorMessage(err),
		})
	}

	waitCtx, cancel := context.WithTimeout(ctx.Context(), c.config.SettleTimeout)
	defer cancel()

	state, err := c.store.WaitSettled(waitCtx)
	if err != nil {
		return c.handleError(ctx, err)
	}

	if !state.IsAuthenticated {
		msg := state.Error
		if msg == "" {
			msg = "Authentication Error"
		}
		return ctx.JSON(router.StatusUnauthorized, map[string]string{
			"error": msg,
		})
	}

	redirect := c.returnPath(ctx)
	c.logger.Info("signed in", "user_id", state.User.ID, "redirect", redirect)

	return ctx.Redirect(redirect, router.StatusSeeOther)
}

// LogOut ends the session and sends the user to the login page.
func (c *HTTPController) LogOut(ctx router.Context) error {
	if err := c.store.SignOut(ctx.Context()); err != nil {
		return ctx.JSON(router.StatusInternalServerError, map[string]string{
			"error": ErrorMessage(err),
		})
	}

	return ctx.Redirect(c.LoginPath(), router.StatusSeeOther)
}

// StateShow returns the current state snapshot.
func (c *HTTPController) StateShow(ctx router.Context) error {
	return ctx.JSON(router.StatusOK, c.store.State())
}

// ErrorClear dismisses the current error message.
func (c *HTTPController) ErrorClear(ctx router.Context) error {
	c.store.ClearError()
	return ctx.JSON(router.StatusOK, c.store.State())
}

func (c *HTTPController) returnPath(ctx router.Context) string {
	return SafeReturnPath(ctx.Query(c.config.ReturnParam, ""), c.config.DefaultRedirect)
}

func (c *HTTPController) handleError(ctx router.Context, err error) error {
	if c.config.ErrorHandler != nil {
		return c.config.ErrorHandler(ctx, err)
	}

	status := router.StatusInternalServerError
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code > 0 {
		status = richErr.Code
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		status = http.StatusServiceUnavailable
	}

	c.logger.Error("auth request failed", "error", err)

	return ctx.JSON(status, map[string]string{
		"error": ErrorMessage(err),
	})
}
