package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	ProviderGoTrue = "gotrue"
	ProviderLocal  = "local"
)

type BaseConfig struct {
	Name        string      `koanf:"name" json:"name"`
	Server      Server      `koanf:"server" json:"server"`
	Auth        Auth        `koanf:"auth" json:"auth"`
	Persistence Persistence `koanf:"persistence" json:"persistence"`
}

type Server struct {
	Address string `koanf:"address" json:"address"`
}

type Auth struct {
	Provider                string `koanf:"provider" json:"provider"`
	PathPrefix              string `koanf:"path_prefix" json:"path_prefix"`
	DefaultRedirect         string `koanf:"default_redirect" json:"default_redirect"`
	SettleTimeoutExpression string `koanf:"settle_timeout" json:"settle_timeout"`
	GoTrue                  GoTrue `koanf:"gotrue" json:"gotrue"`
	Local                   Local  `koanf:"local" json:"local"`
}

type GoTrue struct {
	URL    string `koanf:"url" json:"url"`
	APIKey string `koanf:"api_key" json:"api_key"`
}

type Local struct {
	SigningKey         string `koanf:"signing_key" json:"signing_key"`
	Issuer             string `koanf:"issuer" json:"issuer"`
	TokenTTLExpression string `koanf:"token_ttl" json:"token_ttl"`
	AdminEmail         string `koanf:"admin_email" json:"admin_email"`
	AdminPassword      string `koanf:"admin_password" json:"admin_password"`
}

type Persistence struct {
	Debug                 bool   `koanf:"debug" json:"debug"`
	Driver                string `koanf:"driver" json:"driver"`
	DSN                   string `koanf:"dsn" json:"dsn"`
	PingTimeoutExpression string `koanf:"ping_timeout" json:"ping_timeout"`
	OtelIdentifier        string `koanf:"otel_identifier" json:"otel_identifier"`
	SessionKey            string `koanf:"session_key" json:"session_key"`
}

// Validate runs after load, so the duration getters below never see a bad
// expression.
func (c BaseConfig) Validate() error {
	if err := validation.ValidateStruct(&c.Server,
		validation.Field(&c.Server.Address, validation.Required),
	); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := validation.ValidateStruct(&c.Persistence,
		validation.Field(&c.Persistence.DSN, validation.Required),
		validation.Field(&c.Persistence.PingTimeoutExpression, validation.By(durationRule)),
	); err != nil {
		return fmt.Errorf("persistence: %w", err)
	}

	if err := validation.ValidateStruct(&c.Auth,
		validation.Field(&c.Auth.Provider, validation.Required, validation.In(ProviderGoTrue, ProviderLocal)),
		validation.Field(&c.Auth.SettleTimeoutExpression, validation.By(durationRule)),
	); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	switch c.Auth.Provider {
	case ProviderGoTrue:
		if err := validation.ValidateStruct(&c.Auth.GoTrue,
			validation.Field(&c.Auth.GoTrue.URL, validation.Required, is.URL),
		); err != nil {
			return fmt.Errorf("auth.gotrue: %w", err)
		}
	case ProviderLocal:
		if err := validation.ValidateStruct(&c.Auth.Local,
			validation.Field(&c.Auth.Local.SigningKey, validation.Required, validation.Length(16, 0)),
			validation.Field(&c.Auth.Local.TokenTTLExpression, validation.By(durationRule)),
			validation.Field(&c.Auth.Local.AdminEmail, is.Email),
			validation.Field(&c.Auth.Local.AdminPassword, validation.Length(6, 0)),
		); err != nil {
			return fmt.Errorf("auth.local: %w", err)
		}
		if c.Auth.Local.AdminEmail != "" && c.Auth.Local.AdminPassword == "" {
			return fmt.Errorf("auth.local: admin_password: cannot be blank")
		}
	}

	return nil
}

func (c BaseConfig) GetName() string {
	return c.Name
}

func (c BaseConfig) GetServer() Server {
	return c.Server
}

func (c BaseConfig) GetAuth() Auth {
	return c.Auth
}

func (c BaseConfig) GetPersistence() Persistence {
	return c.Persistence
}

func (s Server) GetAddress() string {
	return s.Address
}

func (a Auth) GetProvider() string {
	return strings.ToLower(strings.TrimSpace(a.Provider))
}

func (a Auth) GetPathPrefix() string {
	return a.PathPrefix
}

func (a Auth) GetDefaultRedirect() string {
	return a.DefaultRedirect
}

// GetSettleTimeout returns zero when unset
func (a Auth) GetSettleTimeout() time.Duration {
	return mustParseDuration(a.SettleTimeoutExpression)
}

func (a Auth) GetGoTrue() GoTrue {
	return a.GoTrue
}

func (a Auth) GetLocal() Local {
	return a.Local
}

func (g GoTrue) GetURL() string {
	return g.URL
}

func (g GoTrue) GetAPIKey() string {
	return g.APIKey
}

func (l Local) GetSigningKey() string {
	return l.SigningKey
}

func (l Local) GetIssuer() string {
	return l.Issuer
}

func (l Local) GetTokenTTL() time.Duration {
	return mustParseDuration(l.TokenTTLExpression)
}

func (l Local) GetAdminEmail() string {
	return l.AdminEmail
}

func (l Local) GetAdminPassword() string {
	return l.AdminPassword
}

func (p Persistence) GetDebug() bool {
	return p.Debug
}

// GetDriver defaults to the sqlite shim the console opens
func (p Persistence) GetDriver() string {
	if p.Driver == "" {
		return "sqlite"
	}
	return p.Driver
}

func (p Persistence) GetDSN() string {
	return p.DSN
}

// GetServer is the connection string handed to the persistence client
func (p Persistence) GetServer() string {
	return p.DSN
}

func (p Persistence) GetPingTimeout() time.Duration {
	return mustParseDuration(p.PingTimeoutExpression)
}

func (p Persistence) GetOtelIdentifier() string {
	return p.OtelIdentifier
}

func (p Persistence) GetSessionKey() string {
	return p.SessionKey
}

func durationRule(value any) error {
	expr, _ := value.(string)
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	if _, err := time.ParseDuration(expr); err != nil {
		return fmt.Errorf("invalid duration %q", expr)
	}
	return nil
}

func mustParseDuration(expr string) time.Duration {
	if strings.TrimSpace(expr) == "" {
		return 0
	}
	dur, err := time.ParseDuration(expr)
	if err != nil {
		panic(
			fmt.Sprintf("unable to parse time: expr %s", expr),
		)
	}
	return dur
}
