package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/hermitai/server/internal/agent/model"
	logx "github.com/hermitai/server/pkg/logger"
)

// Binding attaches an executor to a registered tool.
type Binding struct {
	Executor model.Executor
	// Cacheable results are stored in the tool cache when one is configured.
	Cacheable bool
}

// DispatcherOptions holds optional collaborators.
type DispatcherOptions struct {
	Cache model.ToolResultCache
	Usage model.ToolUsageRepository
}

type dispatchEntry struct {
	required  []string
	exec      model.Executor
	cacheable bool
}

// Dispatcher maps a ToolDecision onto exactly one executor call.
// It is immutable after construction and safe for concurrent use.
type Dispatcher struct {
	table map[string]dispatchEntry
	cache model.ToolResultCache
	usage model.ToolUsageRepository
}

// NewDispatcher builds the dispatch table from the registry. Registered tools
// without a binding are rejected at dispatch time like unknown tools.
func NewDispatcher(reg *Registry, bindings map[string]Binding, opts DispatcherOptions) (*Dispatcher, error) {
	if reg == nil {
		return nil, fmt.Errorf("tool registry is nil")
	}
	table := make(map[string]dispatchEntry, len(bindings))
	for name, b := range bindings {
		spec, ok := reg.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("binding for unregistered tool %q", name)
		}
		if b.Executor == nil {
			return nil, fmt.Errorf("nil executor for tool %q", name)
		}
		table[name] = dispatchEntry{
			required:  spec.RequiredArgs(),
			exec:      b.Executor,
			cacheable: b.Cacheable,
		}
	}
	return &Dispatcher{table: table, cache: opts.Cache, usage: opts.Usage}, nil
}

// Execute runs the decided tool. It never panics and reports every failure
// as an error-tagged ToolResult.
func (d *Dispatcher) Execute(ctx context.Context, decision model.ToolDecision) model.ToolResult {
	name := strings.TrimSpace(decision.ToolName)

	entry, ok := d.table[name]
	if !ok {
		logx.Warn().Str("tool_name", name).Msg("Decision named an unconfigured tool")
		return model.ToolFailed(name, &model.ToolError{
			Kind:    model.ToolErrUnknown,
			Message: fmt.Sprintf("Error: Tool '%s' is not configured for execution", name),
		})
	}

	for _, arg := range entry.required {
		if strings.TrimSpace(decision.Arguments[arg]) == "" {
			logx.Warn().Str("tool_name", name).Str("argument", arg).Msg("Required tool argument missing")
			return model.ToolFailed(name, &model.ToolError{
				Kind:    model.ToolErrArgument,
				Message: fmt.Sprintf("Error: required argument '%s' missing for tool '%s'", arg, name),
			})
		}
	}

	args := copyArgs(decision.Arguments)
	d.recordUse(ctx, name)

	if entry.cacheable && d.cache != nil {
		if out, hit, err := d.cache.Get(ctx, name, args); err != nil {
			logx.Warn().Err(err).Str("tool_name", name).Msg("Tool cache lookup failed")
		} else if hit {
			logx.Debug().Str("tool_name", name).Msg("Tool cache hit")
			res := model.ToolOK(name, out)
			res.Cached = true
			return res
		}
	}

	out, err := runExecutor(ctx, entry.exec, args)
	if err != nil {
		logx.Error().Err(err).Str("tool_name", name).Msg("Tool execution failed")
		return model.ToolFailed(name, &model.ToolError{
			Kind:    model.ToolErrExecution,
			Message: fmt.Sprintf("Error executing %s: %v", name, err),
			Cause:   err,
		})
	}

	if entry.cacheable && d.cache != nil {
		if err := d.cache.Set(ctx, name, args, out); err != nil {
			logx.Warn().Err(err).Str("tool_name", name).Msg("Tool cache store failed")
		}
	}
	return model.ToolOK(name, out)
}

func (d *Dispatcher) recordUse(ctx context.Context, name string) {
	if d.usage == nil {
		return
	}
	userID := model.UserIDFrom(ctx)
	if userID == "" {
		return
	}
	if err := d.usage.RecordUse(ctx, userID, name); err != nil {
		logx.Warn().Err(err).Str("tool_name", name).Str("user_id", userID).Msg("Failed to record tool usage")
	}
}

// runExecutor converts executor panics into errors.
func runExecutor(ctx context.Context, exec model.Executor, args map[string]string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return exec(ctx, args)
}

func copyArgs(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = strings.TrimSpace(v)
	}
	return out
}
