package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"clipstash/internal/observability/metrics"
)

type expirySweeper interface {
	PurgeExpired(ctx context.Context) (int, error)
}

type sweepTicker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

type tickerFactory func(time.Duration) sweepTicker

func startRetentionWorker(ctx context.Context, logger *slog.Logger, recorder *metrics.Recorder, store expirySweeper, interval time.Duration) func() {
	return startRetentionWorkerWithTicker(ctx, logger, recorder, store, interval, func(d time.Duration) sweepTicker {
		return timeTicker{ticker: time.NewTicker(d)}
	})
}

func startRetentionWorkerWithTicker(
	ctx context.Context,
	logger *slog.Logger,
	recorder *metrics.Recorder,
	store expirySweeper,
	interval time.Duration,
	newTicker tickerFactory,
) func() {
	if store == nil || interval <= 0 {
		return func() {}
	}
	if recorder == nil {
		recorder = metrics.Default()
	}
	workerCtx, cancel := context.WithCancel(ctx)
	ticker := newTicker(interval)
	done := make(chan struct{})
	go func() {
		defer func() {
			ticker.Stop()
			close(done)
		}()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C():
				purged, err := store.PurgeExpired(workerCtx)
				recorder.ObserveSweep(purged, err)
				if err != nil && logger != nil {
					logger.Error("failed to purge expired clips", "error", err)
					continue
				}
				for i := 0; i < purged; i++ {
					recorder.VideoExpired()
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
