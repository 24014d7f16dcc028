package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hermitai/server/internal/agent/model"
)

const usageUnavailable = "Tool usage tracking is not available for this session."

// NewSessionStatsExecutor lists the other registered tools and, when a usage
// repository is configured, the acting user's per-tool call counts.
func NewSessionStatsExecutor(reg *Registry, usage model.ToolUsageRepository) model.Executor {
	return func(ctx context.Context, _ map[string]string) (string, error) {
		var b strings.Builder
		b.WriteString("Available tools in this session include:\n")
		for _, name := range reg.Names() {
			if name == ToolSessionStats {
				continue
			}
			fmt.Fprintf(&b, "- %s\n", name)
		}

		userID := model.UserIDFrom(ctx)
		if usage == nil || userID == "" {
			b.WriteString("\n" + usageUnavailable)
			return b.String(), nil
		}

		counts, err := usage.Usage(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("load tool usage: %w", err)
		}
		if len(counts) == 0 {
			b.WriteString("\n" + usageUnavailable)
			return b.String(), nil
		}

		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)

		b.WriteString("\nTool usage for this account:\n")
		for _, name := range names {
			fmt.Fprintf(&b, "- %s: %d\n", name, counts[name])
		}
		return b.String(), nil
	}
}
