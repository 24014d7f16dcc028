package prompts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/hermitai/server/internal/agent/graph/tools"
	"github.com/hermitai/server/internal/agent/model"
)

func TestToolLineRendersArgumentSchema(t *testing.T) {
	spec, ok := tools.DefaultRegistry().Lookup(tools.ToolSearchEngine)
	require.True(t, ok)

	line, err := ToolLine(spec)
	require.NoError(t, err)
	require.Equal(t,
		`search_engine: `+spec.Description+` Arguments: {"engine":"string (optional, 'google', 'bing', or 'yandex', defaults to 'google')","query":"string (the search query)"}`,
		line)
}

func TestToolLineWithoutParams(t *testing.T) {
	line, err := ToolLine(tools.Spec{Name: "session_stats", Description: "Stats.", Params: map[string]*schema.ParameterInfo{}})
	require.NoError(t, err)
	require.Equal(t, "session_stats: Stats. Arguments: {}", line)
}

func TestDecisionPromptListsEveryToolInOrder(t *testing.T) {
	specs := tools.DefaultRegistry().List()
	out, err := BuildDecisionPrompt(context.Background(), specs, "What is the capital of France?", nil)
	require.NoError(t, err)

	last := -1
	for _, s := range specs {
		idx := strings.Index(out, "\n"+s.Name+": ")
		require.Greater(t, idx, last, "tool %s out of order", s.Name)
		last = idx
	}
	require.Contains(t, out, `User query: "What is the capital of France?"`)
	require.NotContains(t, out, "ADDITIONAL CONTEXT FROM KNOWLEDGE BASE (")
	require.Contains(t, out, `{"tool_name": "none"}`)
}

func TestDecisionPromptPlacesContextBeforeQuery(t *testing.T) {
	rc := &model.RetrievalContext{Text: "Our refund window is 30 days.", TopScore: 0.92}
	out, err := BuildDecisionPrompt(context.Background(), tools.DefaultRegistry().List(), "What is the refund window?", rc)
	require.NoError(t, err)

	ctxIdx := strings.Index(out, "Our refund window is 30 days.")
	queryIdx := strings.Index(out, `User query: "What is the refund window?"`)
	require.Greater(t, ctxIdx, 0)
	require.Greater(t, queryIdx, ctxIdx)
	require.Contains(t, out, "ADDITIONAL CONTEXT FROM KNOWLEDGE BASE (Consider this before deciding on a tool):")
}

func TestSynthesisPromptPrecedence(t *testing.T) {
	ctx := context.Background()
	rc := &model.RetrievalContext{Text: "Refunds take 30 days.", TopScore: 0.9}

	observation := `{"organic":[{"title":"X hits $1"}]}`
	out, phase, err := BuildSynthesisPrompt(ctx, SynthesisInput{
		Query:      "latest price of X",
		Decision:   &model.ToolDecision{ToolName: tools.ToolSearchEngine, Arguments: map[string]string{"query": "X price"}},
		ToolResult: &model.ToolResult{Tool: tools.ToolSearchEngine, Text: observation},
		Context:    rc,
	})
	require.NoError(t, err)
	require.Equal(t, model.PhaseSynthesizeTool, phase)
	require.Contains(t, out, "I used the 'search_engine' tool")
	require.Contains(t, out, observation)
	require.NotContains(t, out, rc.Text)

	out, phase, err = BuildSynthesisPrompt(ctx, SynthesisInput{
		Query:    "refund window?",
		Decision: &model.ToolDecision{ToolName: model.ToolNone},
		Context:  rc,
	})
	require.NoError(t, err)
	require.Equal(t, model.PhaseSynthesizeContext, phase)
	require.Contains(t, out, "STRICT CONTEXT-ONLY MODE")
	require.Contains(t, out, rc.Text)

	out, phase, err = BuildSynthesisPrompt(ctx, SynthesisInput{
		Query:    "What is the capital of France?",
		Decision: &model.ToolDecision{ToolName: model.ToolNone},
	})
	require.NoError(t, err)
	require.Equal(t, model.PhaseSynthesizeGeneral, phase)
	require.Contains(t, out, `"What is the capital of France?"`)
	require.NotContains(t, out, "Context from Knowledge Base")
}

func TestSynthesisPromptEmbedsToolErrors(t *testing.T) {
	res := model.ToolFailed(tools.ToolScrapeAsMarkdown, errors.New("Error executing scrape_as_markdown: status 502"))
	out, phase, err := BuildSynthesisPrompt(context.Background(), SynthesisInput{
		Query:      "summarize https://example.com",
		Decision:   &model.ToolDecision{ToolName: tools.ToolScrapeAsMarkdown},
		ToolResult: &res,
	})
	require.NoError(t, err)
	require.Equal(t, model.PhaseSynthesizeTool, phase)
	require.Contains(t, out, "Error executing scrape_as_markdown: status 502")
}
