package domain

import (
	"context"
	"time"
)

// EventBus carries ledger events to presentation clients.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Event channels.
const (
	ChannelTrades    = "trades"
	ChannelPortfolio = "portfolio"
)

// RateLimiter is a shared sliding-window limiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
