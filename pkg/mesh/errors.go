package mesh

import "errors"

var (
	// ErrTimeout is synthesized locally when a request expires without a
	// reply. It does not tell whether the request was ever delivered.
	ErrTimeout = errors.New("request timed out")
	// ErrClosed indicates the transport was closed.
	ErrClosed = errors.New("transport closed")
)
