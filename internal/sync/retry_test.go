package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"

	"smugsync/internal/fs"
)

func TestRetryBacksOffOnNetworkErrors(t *testing.T) {
	fc := clockwork.NewFakeClock()
	r := &retrier{attempts: 5, delay: time.Second, maxDelay: 10 * time.Second, clock: fc}

	calls := 0
	var attempts int
	var err error
	done := make(chan struct{})
	go func() {
		defer close(done)
		attempts, err = r.do(context.Background(), "upload", func(context.Context) error {
			calls++
			if calls < 3 {
				return fs.NetworkError(errors.New("503"))
			}
			return nil
		})
	}()

	fc.BlockUntil(1)
	fc.Advance(time.Second)
	fc.BlockUntil(1)
	fc.Advance(2 * time.Second)
	<-done

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnOtherErrors(t *testing.T) {
	r := &retrier{attempts: 5, delay: time.Hour, clock: clockwork.NewFakeClock()}
	attempts, err := r.do(context.Background(), "create", func(context.Context) error {
		return fs.ErrAuth
	})
	assert.ErrorIs(t, err, fs.ErrAuth)
	assert.Equal(t, 1, attempts)
}

func TestRetryGivesUp(t *testing.T) {
	fc := clockwork.NewFakeClock()
	r := &retrier{attempts: 2, delay: time.Second, clock: fc}

	var attempts int
	var err error
	done := make(chan struct{})
	go func() {
		defer close(done)
		attempts, err = r.do(context.Background(), "list", func(context.Context) error {
			return fs.NetworkError(errors.New("reset"))
		})
	}()
	fc.BlockUntil(1)
	fc.Advance(time.Second)
	<-done

	assert.ErrorIs(t, err, fs.ErrNetwork)
	assert.Equal(t, 2, attempts)
}

func TestRetryCancelledDuringBackoff(t *testing.T) {
	fc := clockwork.NewFakeClock()
	r := &retrier{attempts: 5, delay: time.Minute, clock: fc}
	ctx, cancel := context.WithCancel(context.Background())

	var err error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err = r.do(ctx, "upload", func(c context.Context) error {
			// 进行中的调用不受取消影响
			assert.NoError(t, c.Err())
			return fs.NetworkError(errors.New("reset"))
		})
	}()
	fc.BlockUntil(1)
	cancel()
	<-done

	assert.ErrorIs(t, err, context.Canceled)
}
