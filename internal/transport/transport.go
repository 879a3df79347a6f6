// Package transport owns the client's socket: a reader goroutine that
// turns inbound bytes into wire.Frame values, a writer goroutine that
// drains an outbound byte queue, and an in-place TLS upgrade.
package transport

import (
	"crypto/tls"
	"errors"
	"time"

	"github.com/sadewadee/gonats/internal/wire"
)

// QueueCapacity bounds both the inbound frame queue and the outbound
// byte queue.
const QueueCapacity = 50

// ReadChunkSize is the maximum number of bytes requested per socket read.
const ReadChunkSize = 1024

// IOTimeout bounds a single blocking read/write so goroutines can
// periodically observe cancellation without a self-pipe, consolidating
// task exit to context cancellation rather than a second signaling path.
const IOTimeout = 10 * time.Second

// ErrClosed is returned by Send once the transport has been closed.
var ErrClosed = errors.New("transport: closed")

// ErrBackpressure is returned by Send when the outbound queue is full
// at the enqueue deadline.
var ErrBackpressure = errors.New("transport: send queue full")

// ErrTLSHandshake wraps a failed in-place TLS upgrade.
var ErrTLSHandshake = errors.New("transport: TLS handshake failed")

// Transport is the contract the protocol engine drives: start the
// connection, observe inbound frames, enqueue outbound bytes, and
// perform an in-place TLS upgrade.
type Transport interface {
	// Start dials the connection and launches the reader/writer tasks.
	Start() error

	// Recv returns the inbound frame queue. The channel is closed once
	// the transport becomes unhealthy or is closed.
	Recv() <-chan *wire.Frame

	// Send enqueues raw outbound bytes, blocking up to timeout before
	// failing with ErrBackpressure.
	Send(data []byte, timeout time.Duration) error

	// WrapSocket suspends the I/O tasks, performs a TLS handshake over
	// the existing socket, and restarts the I/O tasks against the
	// wrapped connection. The caller supplies the server name for SNI
	// via cfg.ServerName.
	WrapSocket(cfg *tls.Config) error

	// Healthy reports whether the transport's I/O tasks are still
	// running; false once a socket error has terminated them.
	Healthy() bool

	// Close signals both I/O tasks to exit, joins them, and releases
	// the socket.
	Close() error
}
