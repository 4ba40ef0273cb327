package signalclient

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"peercall/pkg/logger"
)

// StopFunc cancels a background task and waits for it to exit.
// Calling it more than once is a no-op.
type StopFunc func()

// StartHeartbeat pings for id immediately and then every HeartbeatInterval
// until stopped or ctx ends. Ping failures are logged and otherwise ignored.
func (c *Client) StartHeartbeat(ctx context.Context, id string) StopFunc {
	return runEvery(ctx, c.HeartbeatInterval, func(ctx context.Context) {
		if err := c.Ping(ctx, id); err != nil {
			logger.Debug("Presence heartbeat failed", zap.String("peer_id", id), zap.Error(err))
		}
	})
}

// WatchPeer reports peerID's liveness to fn immediately and then every
// WatchInterval until stopped or ctx ends. A failed query reports offline.
func (c *Client) WatchPeer(ctx context.Context, peerID string, fn func(online bool)) StopFunc {
	return runEvery(ctx, c.WatchInterval, func(ctx context.Context) {
		online, err := c.IsOnline(ctx, peerID)
		if err != nil {
			logger.Debug("Remote status query failed", zap.String("peer_id", peerID), zap.Error(err))
			online = false
		}
		if ctx.Err() == nil {
			fn(online)
		}
	})
}

// runEvery runs tick now and on every interval in its own goroutine
func runEvery(ctx context.Context, interval time.Duration, tick func(ctx context.Context)) StopFunc {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick(ctx)
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
