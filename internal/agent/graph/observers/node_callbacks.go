package observers

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"

	logx "github.com/hermitai/server/pkg/logger"
)

type nodeStartKey struct{}

// newNodeHandler logs lambda node timings and failures.
func newNodeHandler() einocb.Handler {
	return einocb.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackInput) context.Context {
			return context.WithValue(ctx, nodeStartKey{}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackOutput) context.Context {
			logx.Debug().Str("node", info.Name).Dur("elapsed", elapsed(ctx)).Msg("Node finished")
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Warn().Err(err).Str("node", info.Name).Dur("elapsed", elapsed(ctx)).Msg("Node failed")
			return ctx
		}).
		Build()
}

func elapsed(ctx context.Context) time.Duration {
	start, ok := ctx.Value(nodeStartKey{}).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start)
}
