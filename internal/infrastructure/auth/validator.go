package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"parley-server/internal/domain"
)

// Config holds token validation settings. Exactly one of JWKSURL and
// HMACSecret must be set; the HMAC mode exists for local development where
// no identity provider runs.
type Config struct {
	JWKSURL         string
	Issuer          string
	Audience        string
	HMACSecret      string
	RefreshInterval time.Duration
}

// Validator validates bearer tokens and resolves them to a principal.
type Validator struct {
	cfg    Config
	log    zerolog.Logger
	jwks   *keyfunc.JWKS
	secret []byte
}

// NewValidator initializes JWKS fetching when a JWKS URL is configured.
func NewValidator(ctx context.Context, cfg Config, log zerolog.Logger) (*Validator, error) {
	v := &Validator{cfg: cfg, log: log.With().Str("component", "auth").Logger()}

	switch {
	case cfg.JWKSURL != "":
		refresh := cfg.RefreshInterval
		if refresh <= 0 {
			refresh = time.Hour
		}
		jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
			Ctx:               ctx,
			RefreshInterval:   refresh,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				v.log.Error().Err(err).Msg("jwks refresh error")
			},
		})
		if err != nil {
			return nil, fmt.Errorf("fetch jwks: %w", err)
		}
		v.jwks = jwks
	case cfg.HMACSecret != "":
		v.log.Warn().Msg("using shared-secret token validation, not for production")
		v.secret = []byte(cfg.HMACSecret)
	default:
		return nil, errors.New("auth requires a jwks url or an hmac secret")
	}

	return v, nil
}

// Ready reports whether the validator can verify tokens.
func (v *Validator) Ready() bool {
	return v != nil && (v.jwks != nil || len(v.secret) > 0)
}

// Validate parses and verifies a raw bearer token, returning the principal
// it asserts.
func (v *Validator) Validate(_ context.Context, rawToken string) (*domain.Principal, error) {
	keyFunc, methods := v.keyFunc()
	if keyFunc == nil {
		return nil, errors.New("token validator not initialised")
	}

	parseOpts := []jwt.ParserOption{jwt.WithValidMethods(methods)}
	if v.cfg.Issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		parseOpts = append(parseOpts, jwt.WithAudience(v.cfg.Audience))
	}

	token, err := jwt.NewParser(parseOpts...).Parse(rawToken, keyFunc)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, errors.New("sub claim missing")
	}

	iss, _ := claims["iss"].(string)
	username, _ := claims["preferred_username"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	return &domain.Principal{
		ID:         sub,
		AuthMethod: domain.AuthMethodJWT,
		Subject:    sub,
		Issuer:     iss,
		Username:   username,
		Email:      email,
		Name:       name,
		Roles:      extractRoles(claims),
	}, nil
}

func (v *Validator) keyFunc() (jwt.Keyfunc, []string) {
	if v.jwks != nil {
		return v.jwks.Keyfunc, []string{"RS256", "RS384", "RS512"}
	}
	if len(v.secret) > 0 {
		secret := v.secret
		return func(*jwt.Token) (any, error) { return secret, nil }, []string{"HS256"}
	}
	return nil, nil
}

// extractRoles reads roles from a flat "roles" claim or the Keycloak
// realm_access shape.
func extractRoles(claims jwt.MapClaims) []string {
	var roles []string

	appendRoles := func(raw any) {
		list, ok := raw.([]any)
		if !ok {
			return
		}
		for _, entry := range list {
			if s, ok := entry.(string); ok && s != "" {
				roles = append(roles, strings.TrimSpace(s))
			}
		}
	}

	appendRoles(claims["roles"])
	if realmAccess, ok := claims["realm_access"].(map[string]any); ok {
		appendRoles(realmAccess["roles"])
	}
	return roles
}
