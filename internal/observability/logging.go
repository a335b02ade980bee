package observability

import (
	"context"
	"log/slog"
	"time"
)

// Logging reports capture outcomes through a structured logger.
// Failures log at warn level, everything else at debug.
type Logging struct {
	Logger *slog.Logger
}

func (l Logging) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func (l Logging) Recorded(ctx context.Context, target string, elapsed time.Duration) {
	l.logger().DebugContext(ctx, "entry recorded", "target", target, "elapsed", elapsed)
}

func (l Logging) Skipped(ctx context.Context, target string, reason SkipReason) {
	l.logger().DebugContext(ctx, "call not recorded", "target", target, "reason", string(reason))
}

func (l Logging) EncodeFailed(ctx context.Context, target string, err error) {
	l.logger().WarnContext(ctx, "capture skipped: encode failed", "target", target, "err", err)
}

func (l Logging) PersistFailed(ctx context.Context, target string, err error) {
	l.logger().WarnContext(ctx, "capture lost: persist failed", "target", target, "err", err)
}
