package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/hermitai/server/internal/agent/model"
	logx "github.com/hermitai/server/pkg/logger"
)

// Settler refreshes the balance and session credential after a query.
// It never fails; problems are reported as degraded notes.
type Settler struct {
	ledger model.CreditLedger
	issuer model.CredentialIssuer
}

func New(ledger model.CreditLedger, issuer model.CredentialIssuer) *Settler {
	return &Settler{ledger: ledger, issuer: issuer}
}

// Settle reads back the user's balance after cost was deducted and mints a
// refreshed credential. When the user cannot be reloaded the prior claims are
// reused with the balance alone; when that read fails too the balance is
// estimated as the pre-deduction balance minus cost.
func (s *Settler) Settle(ctx context.Context, user model.User, cost int) *model.Settlement {
	out := &model.Settlement{Credits: user.Credits - cost}
	if out.Credits < 0 {
		out.Credits = 0
	}

	current := user
	if s.ledger == nil {
		out.Degraded = append(out.Degraded, "credit ledger unavailable, balance estimated")
	} else if fresh, err := s.ledger.FindUser(ctx, user.ID); err == nil && fresh != nil {
		current = *fresh
		out.Credits = fresh.Credits
	} else {
		if err == nil {
			err = model.ErrUserNotFound
		}
		balance, berr := s.ledger.ReadBalance(ctx, user.ID)
		if berr == nil {
			logx.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to reload user after query, using balance only")
			out.Credits = balance
			out.Degraded = append(out.Degraded, fmt.Sprintf("user read-back failed, prior claims reused: %v", err))
		} else {
			logx.Warn().Err(berr).Str("user_id", user.ID).Msg("Failed to read back balance after query")
			out.Degraded = append(out.Degraded, fmt.Sprintf("balance read-back failed, balance estimated: %v", berr))
		}
	}

	if s.issuer == nil {
		out.Degraded = append(out.Degraded, "credential issuer unavailable, session not refreshed")
		return out
	}
	token, err := s.issuer.Issue(model.ClaimsFor(current, out.Credits))
	if err != nil {
		if errors.Is(err, model.ErrSigningUnavailable) {
			logx.Error().Str("user_id", user.ID).Msg("JWT secret not configured, session not refreshed")
		} else {
			logx.Error().Err(err).Str("user_id", user.ID).Msg("Failed to mint session token")
		}
		out.Degraded = append(out.Degraded, fmt.Sprintf("session not refreshed: %v", err))
		return out
	}

	out.Token = token
	out.Cookie = s.issuer.Cookie(token)
	logx.Debug().Str("user_id", user.ID).Int("credits", out.Credits).Msg("Session settled")
	return out
}
