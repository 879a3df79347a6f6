// Package gonats is a client for the NATS publish/subscribe protocol:
// connect, subscribe with callbacks, and publish, over either raw TCP
// or WebSocket, with an in-place TLS upgrade when the server requires
// it.
package gonats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/sadewadee/gonats/internal/metrics"
	"github.com/sadewadee/gonats/internal/protocol"
	"github.com/sadewadee/gonats/internal/transport"
)

// Stats holds the connection's running message/byte counters.
type Stats = metrics.Stats

// Client coordinates a transport and a protocol engine: constructs
// them, forwards pub/sub calls, and owns the "connected" signal
// awaited by Start. Grounded on pynats/connection.py's NATSClient
// thin-forwarding style, with a construct-wire-logger-then-blocking-Start
// lifecycle shape.
type Client struct {
	host  string
	port  int
	wsURL string

	engineOpts protocol.Options
	catchAll   []Handler
	logger     *slog.Logger

	transport transport.Transport
	engine    *protocol.Engine
}

// New constructs a Client dialing host:port. It does not connect until
// Start is called.
func New(host string, port int, opts ...Option) *Client {
	c := &Client{
		host: host,
		port: port,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.engineOpts.Version == "" {
		c.engineOpts.Version = "0.1.0"
	}
	return c
}

// Start dials the transport, launches the protocol engine, and blocks
// until the handshake reaches Ready, ctx is canceled, or a fatal
// handshake error occurs (TlsRequired, AuthMissing, or an
// authorization-violation close).
func (c *Client) Start(ctx context.Context) error {
	if c.wsURL != "" {
		c.transport = transport.NewWebSocket(c.wsURL, websocket.DefaultDialer, c.logger)
	} else {
		c.transport = transport.NewTCP(c.host, c.port, c.logger)
	}

	c.engine = protocol.NewEngine(c.transport, c.logger, c.engineOpts)
	for _, fn := range c.catchAll {
		c.engine.AddCallback("", fn)
	}

	if err := c.engine.Start(ctx); err != nil {
		return newError("Start", KindTransportError, err)
	}

	select {
	case <-c.engine.Connected():
	case <-ctx.Done():
		c.engine.Close()
		return newError("Start", KindTransportError, ctx.Err())
	}

	if err := c.engine.Err(); err != nil {
		return wrapHandshakeError(err)
	}
	return nil
}

// Close shuts down the engine and transport, joining both background
// tasks before returning.
func (c *Client) Close() error {
	if c.engine == nil {
		return nil
	}
	if err := c.engine.Close(); err != nil {
		return wrapHandshakeError(err)
	}
	return nil
}

// Publish sends subject with payload, applying any PubOptions.
func (c *Client) Publish(subject string, payload []byte, opts ...PubOption) error {
	if subject == "" {
		return newError("Publish", KindBadArgument, fmt.Errorf("subject must not be empty"))
	}
	var settings publishSettings
	for _, opt := range opts {
		opt(&settings)
	}
	if err := c.engine.Publish(subject, payload, settings.headers, settings.replyTo); err != nil {
		return wrapEngineError("Publish", err)
	}
	return nil
}

// Subscribe registers subject with the server, optionally as part of
// queueGroup. Returns false if subject is already subscribed.
func (c *Client) Subscribe(subject string, queueGroup string) bool {
	return c.engine.Subscribe(subject, queueGroup)
}

// Unsubscribe removes subject from the subscription table. maxMsgs <=
// 0 unsubscribes immediately; a positive value lets up to that many
// further messages arrive first.
func (c *Client) Unsubscribe(subject string, maxMsgs int) bool {
	return c.engine.Unsubscribe(subject, maxMsgs)
}

// AddCallback registers fn in subject's bucket (the empty string is
// the catch-all bucket receiving every dispatched message) and
// returns an opaque id for later removal.
func (c *Client) AddCallback(subject string, fn Handler) string {
	return c.engine.AddCallback(subject, fn)
}

// RemoveCallback removes the callback identified by id from subject's
// bucket.
func (c *Client) RemoveCallback(subject, id string) bool {
	return c.engine.RemoveCallback(subject, id)
}

// Stats returns the connection's message/byte counters.
func (c *Client) Stats() *Stats { return c.engine.Stats() }

// Snapshot returns a point-in-time view of connection state, satisfying
// internal/diagnostics.Snapshotter.
func (c *Client) Snapshot() protocol.Snapshot { return c.engine.Snapshot() }

func wrapHandshakeError(err error) *Error {
	switch {
	case errors.Is(err, protocol.ErrTLSRequired):
		return newError("Start", KindTLSRequired, err)
	case errors.Is(err, protocol.ErrAuthMissing):
		return newError("Start", KindAuthMissing, err)
	case errors.Is(err, protocol.ErrAuthorizationViolation):
		return newError("Start", KindServerErr, err)
	default:
		return newError("Start", KindTransportError, err)
	}
}

func wrapEngineError(op string, err error) *Error {
	switch {
	case errors.Is(err, protocol.ErrPayloadTooLarge):
		return newError(op, KindPayloadTooLarge, err)
	case errors.Is(err, protocol.ErrNotConnected):
		return newError(op, KindTransportError, err)
	case errors.Is(err, transport.ErrBackpressure):
		return newError(op, KindBackpressure, err)
	default:
		return newError(op, KindTransportError, err)
	}
}
