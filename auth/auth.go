package auth

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/flowkit/auth/jwt"
	apperrors "github.com/kbukum/flowkit/errors"
)

// Anonymous is the caller id used when authentication is disabled.
const Anonymous = "anonymous"

// TokenValidator validates a bearer token and returns the caller id.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// TokenValidatorFunc adapts a function to TokenValidator.
type TokenValidatorFunc func(token string) (string, error)

// ValidateToken implements TokenValidator.
func (f TokenValidatorFunc) ValidateToken(token string) (string, error) {
	return f(token)
}

// Claims are the token claims flowkit understands. The subject is the
// caller id.
type Claims struct {
	gojwt.RegisteredClaims
}

func (c *Claims) Registered() *gojwt.RegisteredClaims { return &c.RegisteredClaims }

// Config holds authentication configuration.
type Config struct {
	Enabled bool       `yaml:"enabled" mapstructure:"enabled"`
	JWT     jwt.Config `yaml:"jwt" mapstructure:"jwt"`
}

// ApplyDefaults sets JWT defaults.
func (c *Config) ApplyDefaults() {
	c.JWT.ApplyDefaults()
}

// Validate checks the JWT settings when authentication is enabled.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if err := c.JWT.Validate(); err != nil {
		return fmt.Errorf("auth.jwt: %w", err)
	}
	return nil
}

// Describe returns a one-liner for the startup summary.
func (c *Config) Describe() string {
	if !c.Enabled {
		return "disabled"
	}
	return fmt.Sprintf("JWT(%s) issuer=%q", c.JWT.Method, c.JWT.Issuer)
}

// NewService creates the token service for cfg.
func NewService(cfg Config) (*jwt.Service[*Claims], error) {
	return jwt.NewService(cfg.JWT, func() *Claims { return &Claims{} })
}

// IssueToken mints a bearer token for subject, e.g. the service subject a
// remote task runner calls back with. A zero ttl uses the configured one.
func IssueToken(cfg Config, subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}
	svc, err := NewService(cfg)
	if err != nil {
		return "", err
	}
	claims := &Claims{RegisteredClaims: gojwt.RegisteredClaims{Subject: subject}}
	if ttl > 0 {
		claims.ExpiresAt = gojwt.NewNumericDate(time.Now().Add(ttl))
	}
	return svc.Issue(claims)
}

// NewValidator returns a validator that accepts tokens signed per cfg and
// yields their subject. Rejections are TOKEN_EXPIRED or INVALID_TOKEN
// AppErrors. It returns nil when authentication is disabled.
func NewValidator(cfg Config) (TokenValidator, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	svc, err := NewService(cfg)
	if err != nil {
		return nil, err
	}
	return TokenValidatorFunc(func(token string) (string, error) {
		claims, err := svc.Parse(token)
		switch {
		case errors.Is(err, gojwt.ErrTokenExpired):
			return "", apperrors.TokenExpired().WithCause(err)
		case err != nil:
			return "", apperrors.InvalidToken().WithCause(err)
		case claims.Subject == "":
			return "", apperrors.InvalidToken().WithDetail("reason", "token has no subject")
		}
		return claims.Subject, nil
	}), nil
}
