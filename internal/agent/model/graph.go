package model

import (
	"net/http"
)

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
type AppState struct {
	Session *QuerySession

	// Accumulated total LLM cost (USD) across model invocations for this query
	TotalCostUSD float64
}

// Phase names a step of the processing state machine.
type Phase string

const (
	PhaseDecide            Phase = "decide_tool"
	PhaseToolNone          Phase = "tool_none"
	PhaseToolChosen        Phase = "tool_chosen"
	PhaseSynthesizeTool    Phase = "synthesize_from_tool"
	PhaseSynthesizeContext Phase = "synthesize_from_context"
	PhaseSynthesizeGeneral Phase = "synthesize_from_general"
	PhaseFailedDecision    Phase = "failed_decision"
	PhaseFailedSynthesis   Phase = "failed_synthesis"
	PhaseDone              Phase = "done"
)

// QuerySession is the ephemeral record of one query. It is created by the
// processor, filled in by the graph nodes and discarded after settlement.
type QuerySession struct {
	UserID           string
	OriginalQuery    string
	RetrievalContext *RetrievalContext
	Decision         *ToolDecision
	ToolResult       *ToolResult
	FinalAnswer      string

	Phase            Phase
	DecisionBackend  string
	SynthesisBackend string
	UsedFallback     bool
	CostUSD          float64
	Err              error
}

func NewQuerySession(userID, query string, rc *RetrievalContext) *QuerySession {
	return &QuerySession{
		UserID:           userID,
		OriginalQuery:    query,
		RetrievalContext: rc,
		Phase:            PhaseDecide,
	}
}

// HasContext reports whether usable retrieval context was supplied.
func (s *QuerySession) HasContext() bool {
	return s.RetrievalContext != nil && s.RetrievalContext.Text != ""
}

// ProcessInput is the processor's request.
type ProcessInput struct {
	User             User
	Query            string
	Cost             int
	RetrievalContext *RetrievalContext
}

// Result is the processor's response. It is always populated, including on
// decision and synthesis failures.
type Result struct {
	Status    int
	ErrorCode string
	Reply     string

	Tool         string
	ToolFailed   bool
	UsedFallback bool
	Phase        Phase
	CostUSD      float64

	Credits       int
	SessionToken  string
	SessionCookie *http.Cookie
	Degraded      []string
}

// Settlement is the outcome of the post-loop balance refresh.
type Settlement struct {
	Credits  int
	Token    string
	Cookie   *http.Cookie
	Degraded []string
}

// CreditsHeader is the response header carrying the refreshed balance.
const CreditsHeader = "X-User-Credits"
