package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"columbarium/pkg/logger"
)

type countingCleaner struct {
	calls atomic.Int32
	err   error
}

func (c *countingCleaner) CleanupExpired(context.Context) (int64, error) {
	c.calls.Add(1)
	return 3, c.err
}

func TestWorker_RunCleansUntilCancelled(t *testing.T) {
	cleaner := &countingCleaner{}
	w := NewWorker(cleaner, 5*time.Millisecond, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return cleaner.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_ErrorsDoNotStopTheLoop(t *testing.T) {
	cleaner := &countingCleaner{err: errors.New("db down")}
	w := NewWorker(cleaner, 5*time.Millisecond, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	assert.Eventually(t, func() bool { return cleaner.calls.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestNewWorker_DefaultInterval(t *testing.T) {
	w := NewWorker(&countingCleaner{}, 0, logger.Nop())
	assert.Equal(t, time.Hour, w.interval)
}
