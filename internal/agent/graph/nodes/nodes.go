package nodes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/compose"

	"github.com/hermitai/server/internal/agent/graph/parsers"
	"github.com/hermitai/server/internal/agent/graph/prompts"
	"github.com/hermitai/server/internal/agent/graph/tools"
	"github.com/hermitai/server/internal/agent/llm"
	"github.com/hermitai/server/internal/agent/model"
	errx "github.com/hermitai/server/internal/core/error"
	logx "github.com/hermitai/server/pkg/logger"
)

// Operation labels passed to the LLM client.
const (
	OperationDecision  = "tool_decision"
	OperationSynthesis = "synthesis"
)

// ToolExecutor runs one decided tool and reports the outcome as a tagged result.
type ToolExecutor interface {
	Execute(ctx context.Context, decision model.ToolDecision) model.ToolResult
}

// NewDecisionPromptPreHandler binds the incoming session to the graph state.
func NewDecisionPromptPreHandler() func(context.Context, *model.QuerySession, *model.AppState) (*model.QuerySession, error) {
	return func(ctx context.Context, in *model.QuerySession, s *model.AppState) (*model.QuerySession, error) {
		if in == nil {
			return nil, fmt.Errorf("query session is nil")
		}
		s.Session = in
		s.TotalCostUSD = 0
		in.Phase = model.PhaseDecide
		return in, nil
	}
}

// NewDecisionPromptNode renders the tool-decision prompt from the registry.
func NewDecisionPromptNode(reg *tools.Registry) *compose.Lambda {
	specs := reg.List()
	return compose.InvokableLambda(func(ctx context.Context, in *model.QuerySession) (string, error) {
		out, err := prompts.BuildDecisionPrompt(ctx, specs, in.OriginalQuery, in.RetrievalContext)
		if err != nil {
			return "", fmt.Errorf("render decision prompt: %w", err)
		}
		logx.Debug().
			Str("user_id", in.UserID).
			Bool("has_context", in.HasContext()).
			Int("tool_count", len(specs)).
			Msg("Deciding on tool")
		return out, nil
	})
}

// NewDecisionModelNode asks the LLM client which tool to use and returns the raw output.
func NewDecisionModelNode(gen llm.Generator) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, prompt string) (string, error) {
		out, err := gen.Generate(ctx, OperationDecision, prompt)
		if err != nil {
			appErr := errx.NewCoded(errors.Join(errx.ErrDecisionBackend, err),
				http.StatusBadGateway, errx.CodeDecisionFailed, errx.DecisionApology)
			return "", failSession(ctx, model.PhaseFailedDecision, appErr)
		}
		if err := recordGeneration(ctx, NodeDecisionModel, out); err != nil {
			return "", err
		}
		return out.Text, nil
	})
}

// NewDecisionParserNode turns the decision output into a ToolDecision on the session.
func NewDecisionParserNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, raw string) (*model.QuerySession, error) {
		session, err := sessionFrom(ctx)
		if err != nil {
			return nil, err
		}

		decision, err := parsers.ParseToolDecision(raw)
		if err != nil {
			logx.Error().Err(err).Str("user_id", session.UserID).Msg("Error parsing tool decision")
			appErr := errx.NewCoded(err, http.StatusInternalServerError, errx.CodeDecisionInvalid, errx.DecisionApology)
			return nil, failSession(ctx, model.PhaseFailedDecision, appErr)
		}

		session.Decision = decision
		if decision.IsNone() {
			session.Phase = model.PhaseToolNone
		} else {
			session.Phase = model.PhaseToolChosen
		}
		logx.Debug().
			Str("user_id", session.UserID).
			Str("tool_name", decision.ToolName).
			Msg("Tool decision parsed")
		return session, nil
	})
}

// NewToolRouteCondition routes "none" decisions straight to synthesis.
func NewToolRouteCondition() func(context.Context, *model.QuerySession) (string, error) {
	return func(ctx context.Context, in *model.QuerySession) (string, error) {
		if in.Decision == nil || in.Decision.IsNone() {
			logx.Debug().Msg("No tool needed - routing to synthesis")
			return NodeSynthesisPrompt, nil
		}
		logx.Debug().Str("tool_name", in.Decision.ToolName).Msg("Routing to ToolDispatcher")
		return NodeToolDispatcher, nil
	}
}

// NewToolDispatcherNode executes the decided tool and stores the observation.
// The graph reaches this node at most once per query.
func NewToolDispatcherNode(exec ToolExecutor) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *model.QuerySession) (*model.QuerySession, error) {
		res := exec.Execute(model.WithUserID(ctx, in.UserID), *in.Decision)
		in.ToolResult = &res

		ev := logx.Debug()
		if !res.OK() {
			ev = logx.Warn().Str("tool_error", string(model.ToolErrorKindOf(res.Err)))
		}
		ev.Str("user_id", in.UserID).
			Str("tool_name", res.Tool).
			Bool("ok", res.OK()).
			Bool("cached", res.Cached).
			Msg("Tool finished")
		return in, nil
	})
}

// NewSynthesisPromptNode picks and renders the answer prompt.
func NewSynthesisPromptNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *model.QuerySession) (string, error) {
		out, phase, err := prompts.BuildSynthesisPrompt(ctx, prompts.SynthesisInput{
			Query:      in.OriginalQuery,
			Decision:   in.Decision,
			ToolResult: in.ToolResult,
			Context:    in.RetrievalContext,
		})
		if err != nil {
			return "", fmt.Errorf("render synthesis prompt: %w", err)
		}
		in.Phase = phase
		logx.Debug().Str("user_id", in.UserID).Str("phase", string(phase)).Msg("AI thinking...")
		return out, nil
	})
}

// NewSynthesisModelNode generates the final answer.
func NewSynthesisModelNode(gen llm.Generator) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, prompt string) (*model.QuerySession, error) {
		session, err := sessionFrom(ctx)
		if err != nil {
			return nil, err
		}

		out, err := gen.Generate(ctx, OperationSynthesis, prompt)
		if err != nil {
			appErr := errx.NewCoded(errors.Join(errx.ErrSynthesisBackend, err),
				http.StatusBadGateway, errx.CodeSynthesisFailed, errx.SynthesisApology)
			return nil, failSession(ctx, model.PhaseFailedSynthesis, appErr)
		}
		if err := recordGeneration(ctx, NodeSynthesisModel, out); err != nil {
			return nil, err
		}

		session.FinalAnswer = strings.TrimSpace(out.Text)
		session.Phase = model.PhaseDone
		logx.Debug().Str("user_id", session.UserID).Msg("AI response ready")
		return session, nil
	})
}

// recordGeneration stores backend, fallback and cost of one LLM call.
func recordGeneration(ctx context.Context, node string, gen *llm.Generation) error {
	return compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
		if state.Session == nil {
			return fmt.Errorf("missing session in state")
		}
		switch node {
		case NodeDecisionModel:
			state.Session.DecisionBackend = gen.Backend
		case NodeSynthesisModel:
			state.Session.SynthesisBackend = gen.Backend
		}
		state.Session.UsedFallback = state.Session.UsedFallback || gen.UsedFallback

		if gen.Usage == nil {
			return nil
		}
		inC, outC, totalC := model.ComputeCost(gen.Usage, model.ResolvePricing(gen.Model))
		state.TotalCostUSD += totalC
		state.Session.CostUSD = state.TotalCostUSD
		logx.Debug().
			Str("user_id", state.Session.UserID).
			Str("node", node).
			Str("backend", gen.Backend).
			Str("model", gen.Model).
			Int("prompt_tokens", gen.Usage.PromptTokens).
			Int("completion_tokens", gen.Usage.CompletionTokens).
			Int("total_tokens", gen.Usage.TotalTokens).
			Float64("input_cost_usd", inC).
			Float64("output_cost_usd", outC).
			Float64("total_cost_usd", totalC).
			Msg("LLM usage")
		return nil
	})
}
