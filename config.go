package identity

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goliatone/go-errors"
)

// Config carries everything the identity surface needs to run.
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() time.Duration
	GetSessionDuration() time.Duration
	GetIssuer() string
	GetBaseURL() string
	GetDatabaseDSN() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetMailFrom() string
	GetJWKSEndpoint() string
	GetProviderIssuer() string
	GetProviderAudience() string
	GetListenAddr() string
	GetLogLevel() string
	GetDebug() bool
}

// EnvConfig loads Config from environment variables.
type EnvConfig struct {
	SigningKey      string        `env:"IDENTITY_SIGNING_KEY,required"`
	TokenExpiration time.Duration `env:"IDENTITY_TOKEN_EXPIRATION" envDefault:"1h"`
	SessionDuration time.Duration `env:"IDENTITY_SESSION_DURATION" envDefault:"24h"`
	Issuer          string        `env:"IDENTITY_ISSUER" envDefault:"go-identity"`
	BaseURL         string        `env:"IDENTITY_BASE_URL" envDefault:"http://localhost:3000"`

	DatabaseDSN string `env:"IDENTITY_DATABASE_DSN" envDefault:"file::memory:?cache=shared"`

	RedisAddr     string `env:"IDENTITY_REDIS_ADDR"`
	RedisPassword string `env:"IDENTITY_REDIS_PASSWORD"`
	RedisDB       int    `env:"IDENTITY_REDIS_DB" envDefault:"0"`

	SMTPHost     string `env:"IDENTITY_SMTP_HOST"`
	SMTPPort     int    `env:"IDENTITY_SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"IDENTITY_SMTP_USERNAME"`
	SMTPPassword string `env:"IDENTITY_SMTP_PASSWORD"`
	MailFrom     string `env:"IDENTITY_MAIL_FROM"`

	JWKSEndpoint     string `env:"IDENTITY_PROVIDER_JWKS_URL"`
	ProviderIssuer   string `env:"IDENTITY_PROVIDER_ISSUER"`
	ProviderAudience string `env:"IDENTITY_PROVIDER_AUDIENCE"`

	ListenAddr string `env:"IDENTITY_LISTEN_ADDR" envDefault:":3000"`
	LogLevel   string `env:"IDENTITY_LOG_LEVEL" envDefault:"info"`
	Debug      bool   `env:"IDENTITY_DEBUG" envDefault:"false"`
}

// NewConfigFromEnv loads configuration from environment variables.
func NewConfigFromEnv() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to parse environment configuration")
	}
	return cfg, nil
}

var _ Config = (*EnvConfig)(nil)

func (c *EnvConfig) GetSigningKey() string             { return c.SigningKey }
func (c *EnvConfig) GetTokenExpiration() time.Duration { return c.TokenExpiration }
func (c *EnvConfig) GetSessionDuration() time.Duration { return c.SessionDuration }
func (c *EnvConfig) GetIssuer() string                 { return c.Issuer }
func (c *EnvConfig) GetBaseURL() string                { return c.BaseURL }
func (c *EnvConfig) GetDatabaseDSN() string            { return c.DatabaseDSN }
func (c *EnvConfig) GetRedisAddr() string              { return c.RedisAddr }
func (c *EnvConfig) GetRedisPassword() string          { return c.RedisPassword }
func (c *EnvConfig) GetRedisDB() int                   { return c.RedisDB }
func (c *EnvConfig) GetSMTPHost() string               { return c.SMTPHost }
func (c *EnvConfig) GetSMTPPort() int                  { return c.SMTPPort }
func (c *EnvConfig) GetSMTPUsername() string           { return c.SMTPUsername }
func (c *EnvConfig) GetSMTPPassword() string           { return c.SMTPPassword }
func (c *EnvConfig) GetMailFrom() string               { return c.MailFrom }
func (c *EnvConfig) GetJWKSEndpoint() string           { return c.JWKSEndpoint }
func (c *EnvConfig) GetProviderIssuer() string         { return c.ProviderIssuer }
func (c *EnvConfig) GetProviderAudience() string       { return c.ProviderAudience }
func (c *EnvConfig) GetListenAddr() string             { return c.ListenAddr }
func (c *EnvConfig) GetLogLevel() string               { return c.LogLevel }
func (c *EnvConfig) GetDebug() bool                    { return c.Debug }
