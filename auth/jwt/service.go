// Package jwt signs and verifies HMAC JWTs for a caller-defined claims type.
//
//	svc, err := jwt.NewService(cfg, func() *MyClaims { return &MyClaims{} })
//	token, err := svc.Issue(&MyClaims{RegisteredClaims: gojwt.RegisteredClaims{Subject: "user-123"}})
//	claims, err := svc.Parse(token)
package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Claims is a claims set that exposes its registered claims, so Issue can
// stamp issuer, audience and lifetime on it.
type Claims interface {
	gojwt.Claims
	Registered() *gojwt.RegisteredClaims
}

// Service issues and verifies tokens carrying claims of type T.
type Service[T Claims] struct {
	cfg    Config
	key    []byte
	method gojwt.SigningMethod
	parser *gojwt.Parser
	fresh  func() T
	now    func() time.Time
}

// NewService validates cfg. fresh returns an empty T to parse into.
func NewService[T Claims](cfg Config, fresh func() T) (*Service[T], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}
	s := &Service[T]{
		cfg:    cfg,
		key:    []byte(cfg.Secret),
		method: cfg.signingMethod(),
		fresh:  fresh,
		now:    time.Now,
	}

	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{s.method.Alg()}),
		gojwt.WithExpirationRequired(),
		gojwt.WithIssuedAt(),
		gojwt.WithTimeFunc(func() time.Time { return s.now() }),
		gojwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, gojwt.WithIssuer(cfg.Issuer))
	}
	if len(cfg.Audience) > 0 {
		opts = append(opts, gojwt.WithAudience(cfg.Audience[0]))
	}
	s.parser = gojwt.NewParser(opts...)
	return s, nil
}

// Issue signs claims after filling whichever of iat, exp, iss and aud are
// unset from the config.
func (s *Service[T]) Issue(claims T) (string, error) {
	rc := claims.Registered()
	now := s.now()
	if rc.IssuedAt == nil {
		rc.IssuedAt = gojwt.NewNumericDate(now)
	}
	if rc.ExpiresAt == nil {
		rc.ExpiresAt = gojwt.NewNumericDate(now.Add(s.cfg.TokenTTL))
	}
	if rc.Issuer == "" {
		rc.Issuer = s.cfg.Issuer
	}
	if len(rc.Audience) == 0 {
		rc.Audience = s.cfg.Audience
	}
	signed, err := gojwt.NewWithClaims(s.method, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, algorithm, expiry, issuer and audience.
func (s *Service[T]) Parse(raw string) (T, error) {
	var zero T
	claims := s.fresh()
	token, err := s.parser.ParseWithClaims(raw, claims, func(*gojwt.Token) (any, error) { return s.key, nil })
	if err != nil {
		return zero, fmt.Errorf("jwt: %w", err)
	}
	if !token.Valid {
		return zero, errors.New("jwt: token is not valid")
	}
	return claims, nil
}
