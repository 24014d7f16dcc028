package prompts

import (
	"context"
	_ "embed"

	"github.com/hermitai/server/internal/agent/model"
)

var (
	//go:embed template/synthesis_tool.txt
	synthesisToolPrompt string
	//go:embed template/synthesis_context.txt
	synthesisContextPrompt string
	//go:embed template/synthesis_general.txt
	synthesisGeneralPrompt string
)

// SynthesisInput is everything the answer prompt may draw from.
type SynthesisInput struct {
	Query      string
	Decision   *model.ToolDecision
	ToolResult *model.ToolResult
	Context    *model.RetrievalContext
}

// BuildSynthesisPrompt picks the tool, context-only or general template, in
// that order of precedence, and returns the rendered prompt with its phase.
func BuildSynthesisPrompt(ctx context.Context, in SynthesisInput) (string, model.Phase, error) {
	if in.Decision != nil && !in.Decision.IsNone() && in.ToolResult != nil {
		out, err := render(ctx, "synthesis_tool", synthesisToolPrompt, map[string]any{
			"Query":       in.Query,
			"Tool":        in.Decision.ToolName,
			"Observation": in.ToolResult.Observation(),
		})
		return out, model.PhaseSynthesizeTool, err
	}

	if in.Context != nil && in.Context.Text != "" {
		out, err := render(ctx, "synthesis_context", synthesisContextPrompt, map[string]any{
			"Query":   in.Query,
			"Context": in.Context.Text,
		})
		return out, model.PhaseSynthesizeContext, err
	}

	out, err := render(ctx, "synthesis_general", synthesisGeneralPrompt, map[string]any{
		"Query": in.Query,
	})
	return out, model.PhaseSynthesizeGeneral, err
}
