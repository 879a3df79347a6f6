package gonats

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/sadewadee/gonats/internal/protocol"
	"github.com/sadewadee/gonats/internal/wire"
)

// Option configures a Client at construction time, replacing the
// original's long positional constructor with the functional-options
// pattern, the idiomatic Go alternative to the apcera-nats reference
// client's Options-struct constructor.
type Option func(*Client)

// WithUser sets the username half of user/password authentication.
func WithUser(user string) Option {
	return func(c *Client) { c.engineOpts.User = user }
}

// WithPassword sets the password half of user/password authentication.
func WithPassword(password string) Option {
	return func(c *Client) { c.engineOpts.Password = password }
}

// WithAuthToken sets a bearer auth token. When user/password are also
// set, CONNECT carries both.
func WithAuthToken(token string) Option {
	return func(c *Client) { c.engineOpts.AuthToken = token }
}

// WithTLSConfig supplies the TLS config used for an in-place upgrade
// when the server's INFO advertises tls_required.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Client) { c.engineOpts.TLSConfig = cfg }
}

// WithSendTimeout bounds how long Publish/Subscribe/Unsubscribe block
// enqueueing to the transport's outbound queue before failing with a
// Backpressure error. Defaults to 5s.
func WithSendTimeout(d time.Duration) Option {
	return func(c *Client) { c.engineOpts.SendTimeout = d }
}

// WithCatchAllCallback registers fn in the catch-all bucket ("")
// before Start, so it observes every dispatched message.
func WithCatchAllCallback(fn Handler) Option {
	return func(c *Client) { c.catchAll = append(c.catchAll, fn) }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithVersion overrides the client version string reported in CONNECT.
func WithVersion(version string) Option {
	return func(c *Client) { c.engineOpts.Version = version }
}

// WithWebSocket switches the transport to a ws://=/wss:// dial instead
// of raw TCP. url should include the scheme; host/port passed to New
// are ignored when this option is used.
func WithWebSocket(url string) Option {
	return func(c *Client) { c.wsURL = url }
}

// PubOption configures a single Publish call.
type PubOption func(*publishSettings)

type publishSettings struct {
	headers wire.Headers
	replyTo string
}

// WithHeaders attaches NATS/1.0 headers to a publish; dropped with a
// warning if the server does not advertise header support.
func WithHeaders(headers wire.Headers) PubOption {
	return func(p *publishSettings) { p.headers = headers }
}

// WithReplyTo sets the publish's reply-to subject.
func WithReplyTo(replyTo string) PubOption {
	return func(p *publishSettings) { p.replyTo = replyTo }
}

// Handler is invoked once per dispatched MSG/HMSG frame.
type Handler = protocol.Handler

// Frame is the tagged frame value passed to a Handler.
type Frame = wire.Frame
