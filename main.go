package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"github.com/hermitai/server/internal/agent/auth"
	"github.com/hermitai/server/internal/agent/chat"
	"github.com/hermitai/server/internal/agent/graph"
	"github.com/hermitai/server/internal/agent/graph/prompts"
	"github.com/hermitai/server/internal/agent/graph/tools"
	"github.com/hermitai/server/internal/agent/llm"
	"github.com/hermitai/server/internal/agent/model"
	"github.com/hermitai/server/internal/agent/repo"
	"github.com/hermitai/server/internal/agent/retrieval"
	"github.com/hermitai/server/internal/agent/settlement"
	"github.com/hermitai/server/internal/core"
	"github.com/hermitai/server/pkg/brightdata"
	"github.com/hermitai/server/pkg/browser"
	logx "github.com/hermitai/server/pkg/logger"
	pkgmongo "github.com/hermitai/server/pkg/mongo"
	pkgredis "github.com/hermitai/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the server,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis   pkgredis.Config
	MongoDB pkgmongo.Config `envconfig:"MONGODB"`

	// Tool backends
	BrightData brightdata.Config
	Browser    browser.Config

	// LLM providers
	Primary   model.PrimaryLLMConfig
	Secondary model.SecondaryLLMConfig

	// Agent configs
	Credits   model.CreditConfig
	Session   model.SessionConfig
	Retrieval model.RetrievalConfig
	Tools     model.ToolConfig
}

var rootCmd = &cobra.Command{
	Use:           "hermitai",
	Short:         "hermitai - one-shot tool-using assistant",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a single query for a user",
	RunE:  runAsk,
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools offered to the decision model",
	RunE:  runTools,
}

var (
	userFlag  string
	tokenFlag string
	queryFlag string
	quietFlag bool
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&quietFlag, "quiet", false, "Suppress log output")
	askCmd.Flags().StringVarP(&userFlag, "user", "u", "", "User id to answer for")
	askCmd.Flags().StringVarP(&tokenFlag, "token", "t", "", "Session token identifying the user")
	askCmd.Flags().StringVarP(&queryFlag, "query", "q", "", "Query to answer")
	_ = askCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(askCmd, toolsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*AppConfig, error) {
	if err := godotenv.Load(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load .env file: %v\n", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}

	logx.Init(logx.LoggerOpts{
		Environment: core.ParseEnvironment(cfg.Environment),
		Level:       cfg.LogLevel,
	})
	if quietFlag {
		logx.Disable()
	}
	return &cfg, nil
}

// app holds the wired components of one process.
type app struct {
	service *chat.Service
	ledger  *repo.MongoUserRepository
	issuer  *auth.JWTIssuer
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *AppConfig) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	fallback, clients, err := llm.NewBackends(ctx, cfg.Primary, cfg.Secondary)
	if err != nil {
		return nil, fmt.Errorf("init llm backends: %w", err)
	}

	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	logx.Info().Msg("Connected to Redis successfully")

	mc, err := cfg.MongoDB.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init mongodb: %w", err)
	}
	a.closers = append(a.closers, func() { _ = mc.Disconnect(context.Background()) })
	db := cfg.MongoDB.DB(mc)
	logx.Info().Str("database", db.Name()).Msg("Connected to MongoDB successfully")

	usage := repo.NewRedisToolUsageRepository(rdb, cfg.Tools.UsageTTL)
	cache := repo.NewRedisToolCache(rdb, cfg.Tools.CacheTTL)
	a.ledger = repo.NewMongoUserRepository(db, "")

	var provider model.ContextProvider
	if embedClient := embeddingClient(clients); cfg.Retrieval.Enabled && embedClient != nil {
		provider = retrieval.NewMongoProvider(
			db.Collection(cfg.Retrieval.Collection),
			retrieval.NewGenAIEmbedder(embedClient, cfg.Retrieval.EmbeddingModel),
			retrieval.Options{
				IndexName:     cfg.Retrieval.IndexName,
				Limit:         cfg.Retrieval.Limit,
				NumCandidates: cfg.Retrieval.NumCandidates,
			},
		)
	} else {
		logx.Warn().Bool("enabled", cfg.Retrieval.Enabled).Msg("Knowledge-base retrieval disabled")
	}

	reg := tools.DefaultRegistry()
	bindings := tools.Bindings(reg, tools.ExecutorDeps{
		BrightData: brightdata.New(cfg.BrightData, nil),
		Browser:    browser.New(cfg.Browser, nil),
		Usage:      usage,
	})
	dispatcher, err := tools.NewDispatcher(reg, bindings, tools.DispatcherOptions{Cache: cache, Usage: usage})
	if err != nil {
		return nil, fmt.Errorf("init tool dispatcher: %w", err)
	}

	a.issuer = auth.NewJWTIssuer(cfg.Session, core.ParseEnvironment(cfg.Environment))

	processor, err := graph.BuildProcessor(ctx, graph.Config{
		Generator:  fallback,
		Registry:   reg,
		Dispatcher: dispatcher,
		Settler:    settlement.New(a.ledger, a.issuer),
	})
	if err != nil {
		return nil, fmt.Errorf("build query graph: %w", err)
	}

	a.service, err = chat.NewService(chat.Config{
		Ledger:    a.ledger,
		Provider:  provider,
		Processor: processor,
		Cost:      cfg.Credits.CostPerQuery,
		Threshold: cfg.Retrieval.Threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("init chat service: %w", err)
	}

	ok = true
	return a, nil
}

// embeddingClient prefers the Vertex client and falls back to the Gemini API one.
func embeddingClient(c *llm.Clients) *genai.Client {
	if c == nil {
		return nil
	}
	if c.Vertex != nil {
		return c.Vertex
	}
	return c.Gemini
}

func runAsk(cmd *cobra.Command, _ []string) error {
	if (userFlag == "") == (tokenFlag == "") {
		return fmt.Errorf("exactly one of --user or --token is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	userID := userFlag
	if tokenFlag != "" {
		claims, err := a.issuer.Parse(tokenFlag)
		if err != nil {
			return fmt.Errorf("invalid session token: %w", err)
		}
		userID = claims.UserID
	}

	user, err := a.ledger.FindUser(ctx, userID)
	if err != nil {
		logx.Warn().Err(err).Str("user_id", userID).Msg("Could not load user")
	}

	res, askErr := a.service.Ask(ctx, user, queryFlag)
	printResult(cmd.OutOrStdout(), res)
	if askErr != nil {
		return fmt.Errorf("query failed with status %d", res.Status)
	}
	return nil
}

func printResult(w io.Writer, res *model.Result) {
	fmt.Fprintln(w, res.Reply)
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "status:         %d\n", res.Status)
	if res.ErrorCode != "" {
		fmt.Fprintf(w, "code:           %s\n", res.ErrorCode)
	}
	fmt.Fprintf(w, "X-User-Credits: %d\n", res.Credits)
	if res.Tool != "" {
		fmt.Fprintf(w, "tool:           %s (failed=%t)\n", res.Tool, res.ToolFailed)
	}
	fmt.Fprintf(w, "fallback:       %t\n", res.UsedFallback)
	fmt.Fprintf(w, "cost_usd:       %.6f\n", res.CostUSD)
	for _, note := range res.Degraded {
		fmt.Fprintf(w, "degraded:       %s\n", note)
	}
	if res.SessionCookie != nil {
		fmt.Fprintf(w, "Set-Cookie:     %s\n", res.SessionCookie.String())
	}
}

func runTools(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	for _, spec := range tools.DefaultRegistry().List() {
		line, err := prompts.ToolLine(spec)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "- "+line)
	}
	return nil
}
