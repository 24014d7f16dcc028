package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hermitai/server/internal/agent/model"
	"github.com/hermitai/server/internal/core"
)

const (
	DefaultTTL        = time.Hour
	DefaultCookieName = "authToken"
)

// Claims is the JWT payload of a session credential.
type Claims struct {
	UserID          string   `json:"userId"`
	Username        string   `json:"username"`
	Email           string   `json:"email"`
	Roles           []string `json:"roles"`
	IsEmailVerified bool     `json:"isEmailVerified"`
	Credits         int      `json:"credits"`
	jwt.RegisteredClaims
}

// JWTIssuer mints and verifies HS256 session tokens.
type JWTIssuer struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
	env        core.Environment
	now        func() time.Time
}

func NewJWTIssuer(cfg model.SessionConfig, env core.Environment) *JWTIssuer {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	name := cfg.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	return &JWTIssuer{
		secret:     []byte(cfg.JWTSecret),
		ttl:        ttl,
		cookieName: name,
		env:        env,
		now:        time.Now,
	}
}

// Issue signs claims. It returns model.ErrSigningUnavailable without a secret.
func (i *JWTIssuer) Issue(c model.SessionClaims) (string, error) {
	if len(i.secret) == 0 {
		return "", model.ErrSigningUnavailable
	}
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:          c.UserID,
		Username:        c.Username,
		Email:           c.Email,
		Roles:           c.Roles,
		IsEmailVerified: c.IsEmailVerified,
		Credits:         c.Credits,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns its claims.
func (i *JWTIssuer) Parse(tokenString string) (*Claims, error) {
	if len(i.secret) == 0 {
		return nil, model.ErrSigningUnavailable
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	if claims.UserID == "" {
		return nil, errors.New("session token has no userId")
	}
	return claims, nil
}

// Cookie wraps a token in the session cookie.
func (i *JWTIssuer) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     i.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(i.ttl / time.Second),
		HttpOnly: true,
		Secure:   !i.env.IsDevelopment(),
		SameSite: http.SameSiteLaxMode,
	}
}

var _ model.CredentialIssuer = (*JWTIssuer)(nil)
