package model

import (
	"context"
	"errors"
	"strings"
)

// ToolNone is the decision value meaning no tool should be executed.
const ToolNone = "none"

// ToolDecision is the structured choice produced by the decision model.
type ToolDecision struct {
	ToolName  string            `json:"tool_name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

// IsNone reports whether the model chose to answer without a tool.
func (d ToolDecision) IsNone() bool {
	return strings.EqualFold(strings.TrimSpace(d.ToolName), ToolNone)
}

// ToolResult is the tagged outcome of a tool dispatch. Exactly one of Text or
// Err carries the payload; Observation renders it for prompt embedding.
type ToolResult struct {
	Tool string
	Text string
	Err  error
	// Cached is set when the result was served from the tool cache.
	Cached bool
}

func ToolOK(tool, text string) ToolResult {
	return ToolResult{Tool: tool, Text: text}
}

func ToolFailed(tool string, err error) ToolResult {
	return ToolResult{Tool: tool, Err: err}
}

// OK reports whether the executor succeeded.
func (r ToolResult) OK() bool {
	return r.Err == nil
}

// Observation is the exact string embedded into the synthesis prompt.
func (r ToolResult) Observation() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Text
}

// Executor runs one tool with already validated arguments.
type Executor func(ctx context.Context, args map[string]string) (string, error)

// ToolError is the error side of a ToolResult. Message is rendered verbatim.
type ToolError struct {
	Kind    ToolErrorKind
	Message string
	Cause   error
}

type ToolErrorKind string

const (
	ToolErrUnknown   ToolErrorKind = "unknown_tool"
	ToolErrArgument  ToolErrorKind = "missing_argument"
	ToolErrExecution ToolErrorKind = "execution_failed"
)

func (e *ToolError) Error() string {
	return e.Message
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}

// ToolErrorKindOf returns the kind of a tool error, or "" for foreign errors.
func ToolErrorKindOf(err error) ToolErrorKind {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// ToolUsageRepository records how often each tool was used per user.
type ToolUsageRepository interface {
	RecordUse(ctx context.Context, userID, tool string) error
	Usage(ctx context.Context, userID string) (map[string]int64, error)
}

// ToolResultCache stores successful tool outputs keyed by tool and arguments.
type ToolResultCache interface {
	Get(ctx context.Context, tool string, args map[string]string) (string, bool, error)
	Set(ctx context.Context, tool string, args map[string]string, output string) error
}
