package parsers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hermitai/server/internal/agent/model"
	errx "github.com/hermitai/server/internal/core/error"
	logx "github.com/hermitai/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 64 * 1024 // 64KB
	maxErrSnippet = 200       // limit error snippet size
)

type rawDecision struct {
	ToolName  *string        `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
}

// ParseToolDecision extracts a ToolDecision from raw decision-model output.
// Markdown code fences around the JSON object are tolerated. Every failure
// wraps errx.ErrDecisionParse.
func ParseToolDecision(content string) (decision *model.ToolDecision, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "decision_parser").Msgf("panic recovered: %v", r)
			decision = nil
			err = fmt.Errorf("%w: parser panic", errx.ErrDecisionParse)
		}
	}()

	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "decision_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("decision output exceeds size limit")
		return nil, fmt.Errorf("%w: output too large (%d bytes)", errx.ErrDecisionParse, len(content))
	}

	body := StripCodeFence(content)
	if body == "" {
		return nil, fmt.Errorf("%w: empty output", errx.ErrDecisionParse)
	}

	var raw rawDecision
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v: %s", errx.ErrDecisionParse, err, safeSnippet(body))
	}
	if raw.ToolName == nil || strings.TrimSpace(*raw.ToolName) == "" {
		return nil, fmt.Errorf("%w: missing tool_name: %s", errx.ErrDecisionParse, safeSnippet(body))
	}

	decision = &model.ToolDecision{
		ToolName:  strings.TrimSpace(*raw.ToolName),
		Arguments: make(map[string]string, len(raw.Arguments)),
	}
	for k, v := range raw.Arguments {
		if s, ok := stringify(v); ok {
			decision.Arguments[k] = s
		}
	}
	return decision, nil
}

// StripCodeFence trims whitespace and removes a leading ```json or ``` fence
// and a trailing ``` fence. The language tag matches in any case.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
		if len(s) >= len("json") && strings.EqualFold(s[:len("json")], "json") {
			s = s[len("json"):]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// stringify renders scalar JSON values as strings. Nulls are dropped and
// nested values are re-encoded as JSON.
func stringify(v any) (string, bool) {
	switch vv := v.(type) {
	case nil:
		return "", false
	case string:
		return vv, true
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(vv), true
	default:
		b, err := json.Marshal(vv)
		if err != nil {
			return fmt.Sprint(vv), true
		}
		return string(b), true
	}
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
