package model

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrUserNotFound is returned by ledgers when no record matches the id.
	ErrUserNotFound = errors.New("user not found")
	// ErrSigningUnavailable is returned by issuers without a signing secret.
	ErrSigningUnavailable = errors.New("session signing secret not configured")
)

// User is the subset of the user record the chat flow needs.
type User struct {
	ID              string   `json:"userId"`
	Username        string   `json:"username"`
	Email           string   `json:"email"`
	Roles           []string `json:"roles"`
	IsEmailVerified bool     `json:"isEmailVerified"`
	Credits         int      `json:"credits"`
}

// SessionClaims are embedded into a refreshed session credential.
type SessionClaims struct {
	UserID          string
	Username        string
	Email           string
	Roles           []string
	IsEmailVerified bool
	Credits         int
}

// ClaimsFor builds session claims from a user record with the given balance.
func ClaimsFor(u User, credits int) SessionClaims {
	return SessionClaims{
		UserID:          u.ID,
		Username:        u.Username,
		Email:           u.Email,
		Roles:           u.Roles,
		IsEmailVerified: u.IsEmailVerified,
		Credits:         credits,
	}
}

// CreditLedger is the persistent credit store.
type CreditLedger interface {
	// TryDeduct atomically subtracts cost iff the balance covers it.
	TryDeduct(ctx context.Context, userID string, cost int) (bool, error)
	ReadBalance(ctx context.Context, userID string) (int, error)
	FindUser(ctx context.Context, userID string) (*User, error)
}

// CredentialIssuer mints session credentials.
type CredentialIssuer interface {
	Issue(claims SessionClaims) (string, error)
	Cookie(token string) *http.Cookie
}

// RetrievalContext is knowledge-base text relevant to a query.
type RetrievalContext struct {
	Text     string
	TopScore float64
}

// ContextProvider fetches knowledge-base context for a user's query.
// Implementations return (nil, nil) when nothing matched.
type ContextProvider interface {
	Fetch(ctx context.Context, query, userID string) (*RetrievalContext, error)
}

type userIDKey struct{}

// WithUserID stores the acting user id on the context for tool executors.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFrom returns the acting user id, or "" if none was set.
func UserIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}
