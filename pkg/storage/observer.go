package storage

import (
	"context"
	"time"
)

// Facade operation names, used in OpError, logs and OperationEvent.
const (
	OpPut        = "put"
	OpGet        = "get"
	OpDelete     = "delete"
	OpList       = "list"
	OpURL        = "url"
	OpSignedURL  = "signed_url"
	OpExists     = "exists"
	OpCopy       = "copy"
	OpDisconnect = "disconnect"
)

// OperationEvent describes one finished facade operation.
type OperationEvent struct {
	Err      error
	Op       string
	Strategy string
	Key      string
	Bytes    int64 // payload bytes moved, 0 when not applicable
	Duration time.Duration
}

// Observer is notified after every I/O performing facade operation, including failed ones.
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	ObserveOperation(ctx context.Context, ev OperationEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev OperationEvent)

// ObserveOperation implements Observer.
func (f ObserverFunc) ObserveOperation(ctx context.Context, ev OperationEvent) { f(ctx, ev) }

type nopObserver struct{}

func (nopObserver) ObserveOperation(context.Context, OperationEvent) {}
