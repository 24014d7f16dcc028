package prompts

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hermitai/server/internal/agent/graph/tools"
	"github.com/hermitai/server/internal/agent/model"
)

//go:embed template/decision_prompt.txt
var decisionPrompt string

// ToolLine renders one tool as "name: description Arguments: {json}".
func ToolLine(spec tools.Spec) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(spec.ArgumentSchema()); err != nil {
		return "", fmt.Errorf("encode arguments of %s: %w", spec.Name, err)
	}
	return fmt.Sprintf("%s: %s Arguments: %s", spec.Name, spec.Description, strings.TrimSpace(buf.String())), nil
}

// BuildDecisionPrompt renders the tool-decision prompt. Tools appear in the
// given order; the context block is omitted when rc is nil or empty.
func BuildDecisionPrompt(ctx context.Context, specs []tools.Spec, query string, rc *model.RetrievalContext) (string, error) {
	lines := make([]string, 0, len(specs))
	for _, s := range specs {
		line, err := ToolLine(s)
		if err != nil {
			return "", err
		}
		lines = append(lines, line)
	}

	contextText := ""
	if rc != nil {
		contextText = rc.Text
	}

	return render(ctx, "decision", decisionPrompt, map[string]any{
		"Tools":   lines,
		"Context": contextText,
		"Query":   query,
	})
}
