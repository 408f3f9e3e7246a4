// Package transport delivers raw event payloads from the outside world.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned when listening on a closed source.
var ErrClosed = errors.New("transport: source closed")

// Handler receives one raw payload. Sources call it from a single goroutine,
// in arrival order.
type Handler func(payload []byte)

// Source is a stream of event payloads.
type Source interface {
	// Listen delivers payloads to handler until ctx ends, Close is called or
	// the source fails. It returns nil on ctx end or Close.
	Listen(ctx context.Context, handler Handler) error
	Close() error
}

var (
	_ Source = (*MQTTSource)(nil)
	_ Source = (*PollSource)(nil)
)
