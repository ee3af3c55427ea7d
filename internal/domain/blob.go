package domain

import (
	"context"
	"io"
	"time"
)

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// TradeArchiver copies the trade log to cold storage.
type TradeArchiver interface {
	ArchiveTrades(ctx context.Context, before time.Time) (int64, error)
}
