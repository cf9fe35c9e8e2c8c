package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"smugsync/internal/fs"
)

// retrier 对 ErrNetwork 做指数退避重试, 其他错误立即返回
type retrier struct {
	attempts int
	delay    time.Duration
	maxDelay time.Duration
	clock    clockwork.Clock
}

// do 返回尝试次数和最后一次的错误.
// 进行中的调用不受 ctx 取消影响; 退避等待期间被取消则返回 ctx.Err().
func (r *retrier) do(ctx context.Context, op string, fn func(context.Context) error) (int, error) {
	delay := r.delay
	callCtx := context.WithoutCancel(ctx)

	for attempt := 1; ; attempt++ {
		err := fn(callCtx)
		if err == nil || !errors.Is(err, fs.ErrNetwork) || attempt >= r.attempts {
			return attempt, err
		}

		slog.Warn("网络错误, 稍后重试", "op", op, "attempt", attempt, "delay", delay, "err", err)
		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-r.clock.After(delay):
		}

		delay *= 2
		if r.maxDelay > 0 && delay > r.maxDelay {
			delay = r.maxDelay
		}
	}
}
