package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"clipstash/internal/observability/metrics"
)

type fakeTicker struct {
	ch      chan time.Time
	stopped bool
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{ch: make(chan time.Time)}
}

func (f *fakeTicker) C() <-chan time.Time {
	return f.ch
}

func (f *fakeTicker) Stop() {
	f.stopped = true
}

type fakeSweeper struct {
	mu     sync.Mutex
	calls  int
	purged int
	err    error
	swept  chan struct{}
}

func newFakeSweeper(purged int, err error) *fakeSweeper {
	return &fakeSweeper{purged: purged, err: err, swept: make(chan struct{}, 16)}
}

func (f *fakeSweeper) PurgeExpired(ctx context.Context) (int, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	f.swept <- struct{}{}
	return f.purged, f.err
}

func (f *fakeSweeper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testWorkerLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRetentionWorkerSweepsOnTick(t *testing.T) {
	sweeper := newFakeSweeper(2, nil)
	recorder := metrics.New()
	ticker := newFakeTicker()

	stop := startRetentionWorkerWithTicker(context.Background(), testWorkerLogger(), recorder, sweeper, time.Hour,
		func(time.Duration) sweepTicker { return ticker })

	ticker.ch <- time.Now()
	select {
	case <-sweeper.swept:
	case <-time.After(time.Second):
		t.Fatalf("sweep never ran")
	}
	stop()

	if sweeper.callCount() != 1 {
		t.Fatalf("expected 1 sweep, got %d", sweeper.callCount())
	}
	runs, failures, purged := recorder.SweepCounts()
	if runs != 1 || failures != 0 || purged != 2 {
		t.Fatalf("unexpected sweep counters: runs=%d failures=%d purged=%d", runs, failures, purged)
	}
	if !ticker.stopped {
		t.Fatalf("expected ticker stopped on shutdown")
	}
}

func TestRetentionWorkerContinuesAfterSweepError(t *testing.T) {
	sweeper := newFakeSweeper(0, errors.New("sweep failed"))
	recorder := metrics.New()
	ticker := newFakeTicker()

	stop := startRetentionWorkerWithTicker(context.Background(), testWorkerLogger(), recorder, sweeper, time.Hour,
		func(time.Duration) sweepTicker { return ticker })
	defer stop()

	for i := 0; i < 2; i++ {
		ticker.ch <- time.Now()
		select {
		case <-sweeper.swept:
		case <-time.After(time.Second):
			t.Fatalf("sweep %d never ran", i+1)
		}
	}

	if sweeper.callCount() != 2 {
		t.Fatalf("expected worker to keep running after error, got %d sweeps", sweeper.callCount())
	}
	runs, failures, _ := recorder.SweepCounts()
	if runs != 2 || failures != 2 {
		t.Fatalf("unexpected counters: runs=%d failures=%d", runs, failures)
	}
}

func TestRetentionWorkerStopIsIdempotent(t *testing.T) {
	sweeper := newFakeSweeper(0, nil)
	ticker := newFakeTicker()

	stop := startRetentionWorkerWithTicker(context.Background(), testWorkerLogger(), metrics.New(), sweeper, time.Hour,
		func(time.Duration) sweepTicker { return ticker })

	stop()
	stop()

	if sweeper.callCount() != 0 {
		t.Fatalf("expected no sweeps without ticks")
	}
}

func TestRetentionWorkerDisabledWithoutStoreOrInterval(t *testing.T) {
	stop := startRetentionWorker(context.Background(), testWorkerLogger(), metrics.New(), nil, time.Hour)
	stop()

	sweeper := newFakeSweeper(0, nil)
	stop = startRetentionWorker(context.Background(), testWorkerLogger(), metrics.New(), sweeper, 0)
	stop()
	if sweeper.callCount() != 0 {
		t.Fatalf("expected disabled worker to never sweep")
	}
}
