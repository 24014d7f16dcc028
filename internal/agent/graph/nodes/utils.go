package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/hermitai/server/internal/agent/model"
)

// Node keys of the query graph.
const (
	NodeDecisionPrompt  = "DecisionPrompt"
	NodeDecisionModel   = "DecisionModel"
	NodeDecisionParser  = "DecisionParser"
	NodeToolDispatcher  = "ToolDispatcher"
	NodeSynthesisPrompt = "SynthesisPrompt"
	NodeSynthesisModel  = "SynthesisModel"
)

// sessionFrom returns the session bound to the graph state.
func sessionFrom(ctx context.Context) (*model.QuerySession, error) {
	var session *model.QuerySession
	err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
		if state.Session == nil {
			return fmt.Errorf("missing session in state")
		}
		session = state.Session
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access state: %w", err)
	}
	return session, nil
}

// failSession records a request-level failure on the session and returns err.
func failSession(ctx context.Context, phase model.Phase, err error) error {
	if perr := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
		if state.Session != nil {
			state.Session.Phase = phase
			state.Session.Err = err
		}
		return nil
	}); perr != nil {
		return fmt.Errorf("%w (state unavailable: %v)", err, perr)
	}
	return err
}
