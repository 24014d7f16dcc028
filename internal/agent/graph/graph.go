package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cloudwego/eino/compose"

	"github.com/hermitai/server/internal/agent/graph/nodes"
	"github.com/hermitai/server/internal/agent/graph/observers"
	"github.com/hermitai/server/internal/agent/graph/tools"
	"github.com/hermitai/server/internal/agent/llm"
	"github.com/hermitai/server/internal/agent/model"
	errx "github.com/hermitai/server/internal/core/error"
	logx "github.com/hermitai/server/pkg/logger"
)

// maxRunSteps limits total run steps; a query visits at most six nodes.
const maxRunSteps = 20

// Settler refreshes balance and credentials once a query has finished.
type Settler interface {
	Settle(ctx context.Context, user model.User, cost int) *model.Settlement
}

// Config holds everything needed to compose the query graph.
type Config struct {
	Generator  llm.Generator
	Registry   *tools.Registry
	Dispatcher nodes.ToolExecutor
	Settler    Settler
}

// GraphBuilder handles the construction of the query graph.
type GraphBuilder struct {
	config *Config
	graph  *compose.Graph[*model.QuerySession, *model.QuerySession]
}

// Processor answers one query: decide on a tool, run it at most once,
// synthesize the answer and settle credits. It is safe for concurrent use.
type Processor struct {
	runnable compose.Runnable[*model.QuerySession, *model.QuerySession]
	settler  Settler
}

// BuildProcessor compiles the graph and returns a Processor.
func BuildProcessor(ctx context.Context, cfg Config) (*Processor, error) {
	if cfg.Settler == nil {
		return nil, fmt.Errorf("settler is nil")
	}
	runnable, err := BuildGraph(ctx, &cfg)
	if err != nil {
		return nil, err
	}
	logx.Debug().Msg("Query graph built successfully")
	return &Processor{runnable: runnable, settler: cfg.Settler}, nil
}

// BuildGraph constructs and returns the compiled query graph.
func BuildGraph(ctx context.Context, config *Config) (compose.Runnable[*model.QuerySession, *model.QuerySession], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Generator == nil {
		return nil, fmt.Errorf("llm generator is nil")
	}
	if config.Registry == nil || config.Dispatcher == nil {
		return nil, fmt.Errorf("tool registry/dispatcher is nil")
	}

	b := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[*model.QuerySession, *model.QuerySession](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := b.addNodes(); err != nil {
		return nil, err
	}
	if err := b.addEdges(); err != nil {
		return nil, err
	}
	if err := b.addBranches(); err != nil {
		return nil, err
	}
	return b.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	steps := []struct {
		key  string
		node *compose.Lambda
		opts []compose.GraphAddNodeOpt
	}{
		{nodes.NodeDecisionPrompt, nodes.NewDecisionPromptNode(b.config.Registry),
			[]compose.GraphAddNodeOpt{compose.WithStatePreHandler(nodes.NewDecisionPromptPreHandler())}},
		{nodes.NodeDecisionModel, nodes.NewDecisionModelNode(b.config.Generator), nil},
		{nodes.NodeDecisionParser, nodes.NewDecisionParserNode(), nil},
		{nodes.NodeToolDispatcher, nodes.NewToolDispatcherNode(b.config.Dispatcher), nil},
		{nodes.NodeSynthesisPrompt, nodes.NewSynthesisPromptNode(), nil},
		{nodes.NodeSynthesisModel, nodes.NewSynthesisModelNode(b.config.Generator), nil},
	}

	for _, s := range steps {
		opts := append([]compose.GraphAddNodeOpt{compose.WithNodeName(s.key)}, s.opts...)
		if err := b.graph.AddLambdaNode(s.key, s.node, opts...); err != nil {
			logx.Error().Err(err).Str("node", s.key).Msg("Error adding node")
			return fmt.Errorf("error adding node %s: %w", s.key, err)
		}
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeDecisionPrompt},
		{nodes.NodeDecisionPrompt, nodes.NodeDecisionModel},
		{nodes.NodeDecisionModel, nodes.NodeDecisionParser},
		{nodes.NodeToolDispatcher, nodes.NodeSynthesisPrompt},
		{nodes.NodeSynthesisPrompt, nodes.NodeSynthesisModel},
		{nodes.NodeSynthesisModel, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	toolBranch := compose.NewGraphBranch(
		nodes.NewToolRouteCondition(),
		map[string]bool{
			nodes.NodeToolDispatcher:  true,
			nodes.NodeSynthesisPrompt: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeDecisionParser, toolBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding tool branch")
		return fmt.Errorf("error adding tool branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[*model.QuerySession, *model.QuerySession], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxRunSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}

// Process runs one query. The returned Result is never nil; on decision or
// synthesis failure it carries the apology, status and code alongside the
// returned error. Settlement runs in every case, detached from ctx cancellation.
func (p *Processor) Process(ctx context.Context, in model.ProcessInput) (*model.Result, error) {
	session := model.NewQuerySession(in.User.ID, in.Query, in.RetrievalContext)

	_, runErr := p.runnable.Invoke(ctx, session, compose.WithCallbacks(observers.NewAllCallbacks()))
	res, err := classify(session, runErr)

	settled := p.settler.Settle(context.WithoutCancel(ctx), in.User, in.Cost)
	res.Credits = settled.Credits
	res.SessionToken = settled.Token
	res.SessionCookie = settled.Cookie
	res.Degraded = settled.Degraded

	ev := logx.Info()
	if err != nil {
		ev = logx.Error().Err(err)
	}
	ev.Str("user_id", in.User.ID).
		Str("phase", string(res.Phase)).
		Str("tool_name", res.Tool).
		Bool("used_fallback", res.UsedFallback).
		Float64("cost_usd", res.CostUSD).
		Int("credits", res.Credits).
		Int("status", res.Status).
		Msg("Query processed")
	return res, err
}

// classify maps the session and graph error onto a Result.
func classify(s *model.QuerySession, runErr error) (*model.Result, error) {
	res := &model.Result{
		Status:       http.StatusOK,
		Reply:        s.FinalAnswer,
		Phase:        s.Phase,
		UsedFallback: s.UsedFallback,
		CostUSD:      s.CostUSD,
	}
	if s.Decision != nil && !s.Decision.IsNone() {
		res.Tool = s.Decision.ToolName
	}
	if s.ToolResult != nil {
		res.ToolFailed = !s.ToolResult.OK()
	}

	if runErr == nil && s.Phase == model.PhaseDone {
		return res, nil
	}

	var appErr *errx.AppError
	switch {
	case runErr != nil && errors.As(runErr, &appErr) && appErr.Code != "":
	case s.Err != nil && errors.As(s.Err, &appErr) && appErr.Code != "":
	default:
		if runErr == nil {
			runErr = fmt.Errorf("query ended in phase %s", s.Phase)
		}
		appErr = errx.NewCoded(runErr, http.StatusInternalServerError, errx.CodeLoopException, errx.LoopApology)
	}

	res.Status = appErr.Status
	res.ErrorCode = appErr.Code
	res.Reply = appErr.Message
	return res, appErr
}
