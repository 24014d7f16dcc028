package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/auth"
	"google.golang.org/genai"

	logx "github.com/hermitai/server/pkg/logger"
)

// Generator produces text for a prompt. Operation labels the call in logs and errors.
type Generator interface {
	Generate(ctx context.Context, operation, prompt string) (*Generation, error)
}

// recoverableSignatures are matched case-insensitively against primary errors
// whose type carried no status.
var recoverableSignatures = []string{
	"unauthenticated",
	"invalid_grant",
	"invalid jwt signature",
	"permission_denied",
	"googleautherror",
	"resource_exhausted",
	"quota",
	"rate limit",
	"error 401,",
	"error 403,",
	"error 429,",
	// cloud.google.com/go/auth token and key failures
	"credentials:",
	"cannot fetch token",
	"private key should be a pem",
}

// recoverableStatus lists API statuses that justify trying the secondary backend.
var recoverableStatus = map[int]bool{
	http.StatusUnauthorized:    true,
	http.StatusForbidden:       true,
	http.StatusTooManyRequests: true,
}

// IsRecoverable reports whether a primary failure may be retried on the secondary backend.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) {
		return true
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return recoverableStatus[apiErr.Code]
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return recoverableStatus[apiErrPtr.Code]
	}
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range recoverableSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// Error is returned when no backend produced an answer.
type Error struct {
	Operation     string
	PrimaryName   string
	SecondaryName string
	Primary       error
	Secondary     error
}

func (e *Error) Error() string {
	if e.Secondary == nil {
		return fmt.Sprintf("%s failed for %s: %v", e.PrimaryName, e.Operation, e.Primary)
	}
	return fmt.Sprintf("both %s and %s failed for %s. Primary: %v, Fallback: %v",
		e.PrimaryName, e.SecondaryName, e.Operation, e.Primary, e.Secondary)
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Primary != nil {
		errs = append(errs, e.Primary)
	}
	if e.Secondary != nil {
		errs = append(errs, e.Secondary)
	}
	return errs
}

// FallbackClient calls the primary backend and, for recoverable failures only,
// retries once on the secondary backend with the same prompt.
type FallbackClient struct {
	primary   Backend
	secondary Backend
}

// NewFallbackClient builds a client. secondary may be nil, in which case
// primary failures are returned as is.
func NewFallbackClient(primary, secondary Backend) (*FallbackClient, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary backend is nil")
	}
	return &FallbackClient{primary: primary, secondary: secondary}, nil
}

func (c *FallbackClient) Generate(ctx context.Context, operation, prompt string) (*Generation, error) {
	logx.Debug().Str("operation", operation).Str("backend", c.primary.Name()).Msg("LLM request")

	gen, err := c.primary.Generate(ctx, prompt)
	if err == nil && (gen == nil || strings.TrimSpace(gen.Text) == "") {
		err = fmt.Errorf("%s: %w", c.primary.Name(), ErrEmptyResponse)
	}
	if err == nil {
		return gen, nil
	}

	if c.secondary == nil || !IsRecoverable(err) {
		logx.Error().Err(err).Str("operation", operation).Str("backend", c.primary.Name()).
			Msg("LLM request failed without fallback")
		return nil, &Error{Operation: operation, PrimaryName: c.primary.Name(), Primary: err}
	}

	logx.Warn().Err(err).
		Str("operation", operation).
		Str("primary", c.primary.Name()).
		Str("secondary", c.secondary.Name()).
		Msg("Primary LLM failed with recoverable error, falling back")

	gen2, err2 := c.secondary.Generate(ctx, prompt)
	if err2 == nil && (gen2 == nil || strings.TrimSpace(gen2.Text) == "") {
		err2 = fmt.Errorf("%s: %w", c.secondary.Name(), ErrEmptyResponse)
	}
	if err2 != nil {
		logx.Error().Err(err2).Str("operation", operation).Str("backend", c.secondary.Name()).
			Msg("Fallback LLM failed")
		return nil, &Error{
			Operation:     operation,
			PrimaryName:   c.primary.Name(),
			SecondaryName: c.secondary.Name(),
			Primary:       err,
			Secondary:     err2,
		}
	}

	gen2.UsedFallback = true
	return gen2, nil
}

var _ Generator = (*FallbackClient)(nil)
