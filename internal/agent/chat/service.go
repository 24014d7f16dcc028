package chat

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hermitai/server/internal/agent/model"
	errx "github.com/hermitai/server/internal/core/error"
	logx "github.com/hermitai/server/pkg/logger"
)

// DefaultRelevanceThreshold is the minimum top score for retrieved context to be used.
const DefaultRelevanceThreshold = 0.75

// Processor runs one query after credits were taken.
type Processor interface {
	Process(ctx context.Context, in model.ProcessInput) (*model.Result, error)
}

type Config struct {
	Ledger    model.CreditLedger
	Provider  model.ContextProvider // optional
	Processor Processor
	Cost      int
	Threshold float64
}

// Service is the chat entry point: it authorizes and charges the user,
// attaches relevant knowledge-base context and hands over to the processor.
type Service struct {
	ledger    model.CreditLedger
	provider  model.ContextProvider
	processor Processor
	cost      int
	threshold float64
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Ledger == nil || cfg.Processor == nil {
		return nil, fmt.Errorf("chat service requires a ledger and a processor")
	}
	if cfg.Cost <= 0 {
		cfg.Cost = 1
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultRelevanceThreshold
	}
	return &Service{
		ledger:    cfg.Ledger,
		provider:  cfg.Provider,
		processor: cfg.Processor,
		cost:      cfg.Cost,
		threshold: cfg.Threshold,
	}, nil
}

// Ask answers query for user. The Result is never nil; failed pre-checks
// carry their status and code and take no credit.
func (s *Service) Ask(ctx context.Context, user *model.User, query string) (*model.Result, error) {
	if err := s.preCheck(ctx, user, query); err != nil {
		logx.Warn().Err(err).Int("status", err.Status).Str("code", err.Code).Msg("Chat pre-check rejected query")
		res := &model.Result{Status: err.Status, ErrorCode: err.Code, Reply: err.Message}
		if user != nil {
			res.Credits = user.Credits
		}
		return res, err
	}

	query = strings.TrimSpace(query)
	return s.processor.Process(ctx, model.ProcessInput{
		User:             *user,
		Query:            query,
		Cost:             s.cost,
		RetrievalContext: s.retrieve(ctx, query, user.ID),
	})
}

func (s *Service) preCheck(ctx context.Context, user *model.User, query string) *errx.AppError {
	if user == nil || user.ID == "" {
		return errx.NewCoded(nil, http.StatusUnauthorized, errx.CodeUnauthorized, "User not authenticated.")
	}
	if !user.IsEmailVerified {
		return errx.NewCoded(nil, http.StatusForbidden, errx.CodeEmailNotVerified,
			"Please verify your email address to use the AI chat features.")
	}
	if strings.TrimSpace(query) == "" {
		return errx.NewCoded(nil, http.StatusBadRequest, errx.CodeInvalidQuery, "Query must not be empty.")
	}
	if user.Credits < s.cost {
		return errx.NewCoded(nil, http.StatusPaymentRequired, errx.CodeInsufficientCredits,
			fmt.Sprintf("You do not have enough credits for this query (requires %d, you have %d). Please top up your credits.",
				s.cost, user.Credits))
	}

	ok, err := s.ledger.TryDeduct(ctx, user.ID, s.cost)
	if err != nil {
		return errx.NewCoded(err, http.StatusInternalServerError, errx.CodeInternal,
			"An unexpected error occurred while deducting credits.")
	}
	if !ok {
		return errx.NewCoded(nil, http.StatusConflict, errx.CodeCreditDeductionFailed,
			"Failed to deduct credits. This could be due to a concurrent transaction or insufficient credits. Please try again.")
	}
	return nil
}

// retrieve returns context only when it clears the relevance threshold.
// Provider failures are logged and the query proceeds without context.
func (s *Service) retrieve(ctx context.Context, query, userID string) *model.RetrievalContext {
	if s.provider == nil {
		return nil
	}
	rc, err := s.provider.Fetch(ctx, query, userID)
	if err != nil {
		logx.Warn().Err(err).Str("user_id", userID).Msg("Knowledge base lookup failed, continuing without context")
		return nil
	}
	if rc == nil || strings.TrimSpace(rc.Text) == "" {
		return nil
	}
	if rc.TopScore < s.threshold {
		logx.Debug().Str("user_id", userID).Float64("top_score", rc.TopScore).Float64("threshold", s.threshold).
			Msg("Knowledge base context below relevance threshold")
		return nil
	}
	return rc
}
