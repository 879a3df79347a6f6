// Package protocol implements the NATS handshake and message-dispatch
// state machine. It is grounded on pynats/protocol/nats.py's Protocol
// class: a background task that drains a frame queue, dispatches on
// frame type, and maintains the subscription table and callback
// registry. The Python Thread + blocking Queue.get(timeout=...) loop
// is translated into a goroutine selecting on a channel and a
// context.Context.
package protocol

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sadewadee/gonats/internal/metrics"
	"github.com/sadewadee/gonats/internal/transport"
	"github.com/sadewadee/gonats/internal/wire"
)

// State is the handshake state machine's current position.
type State int32

const (
	StateDisconnected State = iota
	StateAwaitingInfo
	StateConnecting
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAwaitingInfo:
		return "awaiting_info"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options configures an Engine. Zero values are valid except where
// noted.
type Options struct {
	Lang        string
	Version     string
	User        string
	Password    string
	AuthToken   string
	TLSConfig   *tls.Config
	SendTimeout time.Duration // defaults to 5s
}

// Engine drives one connection's handshake, subscription bookkeeping,
// and message dispatch. One Engine per Transport.
type Engine struct {
	transport transport.Transport
	logger    *slog.Logger
	opts      Options

	stats *metrics.Stats
	reg   *registry

	infoMu sync.RWMutex
	info   *InfoOptions

	state atomic.Int32

	connected   chan struct{}
	connectOnce sync.Once

	fatalMu  sync.Mutex
	fatalErr error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine constructs an Engine around tr. tr.Start has not been
// called yet; Engine.Start does that.
func NewEngine(tr transport.Transport, logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 5 * time.Second
	}
	if opts.Lang == "" {
		opts.Lang = "go"
	}
	return &Engine{
		transport: tr,
		logger:    logger,
		opts:      opts,
		stats:     &metrics.Stats{},
		reg:       newRegistry(),
		connected: make(chan struct{}),
	}
}

// Start dials the transport and launches the dispatch loop. It
// returns once the transport is dialed; it does not wait for the
// handshake to reach Ready — callers select on Connected() for that.
// Canceling ctx after Start returns does not stop the dispatch loop;
// Close does.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(context.WithoutCancel(ctx))
	if err := e.transport.Start(); err != nil {
		return fmt.Errorf("protocol: starting transport: %w", err)
	}
	e.state.Store(int32(StateAwaitingInfo))
	e.wg.Add(1)
	go e.run()
	return nil
}

// Close cancels the dispatch loop, joins it (which in turn closes the
// transport), moves the state to Closed, and returns any fatal error
// recorded along the way (a handshake failure, an authorization
// violation, or the transport's inbound queue closing).
func (e *Engine) Close() error {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.state.Store(int32(StateClosed))
	return e.Err()
}

// Connected is closed once the handshake reaches Ready, or once a
// fatal error ends the engine before reaching Ready. Callers must
// check Err() after it closes to distinguish the two.
func (e *Engine) Connected() <-chan struct{} { return e.connected }

// Err returns the first fatal error recorded by the engine, if any.
func (e *Engine) Err() error {
	e.fatalMu.Lock()
	defer e.fatalMu.Unlock()
	return e.fatalErr
}

// State reports the current handshake state.
func (e *Engine) State() State { return State(e.state.Load()) }

// Info returns the server's INFO snapshot, if the handshake has
// reached it.
func (e *Engine) Info() (InfoOptions, bool) {
	e.infoMu.RLock()
	defer e.infoMu.RUnlock()
	if e.info == nil {
		return InfoOptions{}, false
	}
	return *e.info, true
}

// Stats returns the engine's counters.
func (e *Engine) Stats() *metrics.Stats { return e.stats }

// Publish serializes and enqueues a PUB or HPUB frame.
func (e *Engine) Publish(subject string, payload []byte, headers wire.Headers, replyTo string) error {
	if e.ctx != nil && e.ctx.Err() != nil {
		return ErrEngineClosed
	}
	if e.State() != StateReady {
		return ErrNotConnected
	}

	info, haveInfo := e.Info()
	if haveInfo && len(headers) > 0 && !info.Headers {
		e.logger.Warn("dropping headers: server does not support them", "subject", subject)
		headers = nil
	}
	if haveInfo && info.MaxPayload > 0 && int64(len(payload)) > info.MaxPayload {
		return fmt.Errorf("%w: payload is %d bytes, server max_payload is %d", ErrPayloadTooLarge, len(payload), info.MaxPayload)
	}

	var data []byte
	var err error
	if len(headers) > 0 {
		data, err = wire.BuildHpub(subject, replyTo, headers, payload)
	} else {
		data, err = wire.BuildPub(subject, replyTo, payload)
	}
	if err != nil {
		return fmt.Errorf("protocol: building publish frame: %w", err)
	}

	if err := e.transport.Send(data, e.opts.SendTimeout); err != nil {
		return fmt.Errorf("protocol: %w", err)
	}
	e.stats.IncOut(len(payload))
	return nil
}

// Subscribe registers subject with the server. Returns false if
// subject is already subscribed.
func (e *Engine) Subscribe(subject, queueGroup string) bool {
	sid := newToken()
	data, err := wire.BuildSub(subject, queueGroup, sid)
	if err != nil {
		e.logger.Error("invalid subscribe arguments", "subject", subject, "error", err)
		return false
	}
	if !e.reg.subscribe(subject, sid) {
		return false
	}
	if err := e.transport.Send(data, e.opts.SendTimeout); err != nil {
		e.logger.Error("failed to send SUB", "subject", subject, "error", err)
		return false
	}
	return true
}

// Unsubscribe removes subject from the subscription table and tells
// the server to stop delivering it. Registered callbacks for subject
// are left in place; a warning is logged if any remain.
func (e *Engine) Unsubscribe(subject string, maxMsgs int) bool {
	sid, callbacksRemain, ok := e.reg.unsubscribe(subject)
	if !ok {
		return false
	}
	data, err := wire.BuildUnsub(sid, maxMsgs)
	if err != nil {
		e.logger.Error("invalid unsubscribe arguments", "subject", subject, "error", err)
		return false
	}
	if err := e.transport.Send(data, e.opts.SendTimeout); err != nil {
		e.logger.Error("failed to send UNSUB", "subject", subject, "error", err)
		return false
	}
	if callbacksRemain {
		e.logger.Warn("callbacks remain registered after unsubscribe", "subject", subject)
	}
	return true
}

// AddCallback registers fn in subject's bucket (the empty string is
// the catch-all bucket) and returns its opaque id.
func (e *Engine) AddCallback(subject string, fn Handler) string {
	return e.reg.addCallback(subject, fn)
}

// RemoveCallback tombstones the callback identified by id in
// subject's bucket.
func (e *Engine) RemoveCallback(subject, id string) bool {
	return e.reg.removeCallback(subject, id)
}

// Snapshot is a point-in-time view of engine state for
// internal/diagnostics.
type Snapshot struct {
	State                State
	Info                 InfoOptions
	HasInfo              bool
	SubscriptionCount    int
	CallbackBucketCounts map[string]int
	Stats                metrics.Snapshot
}

// Snapshot captures the engine's current state under its locks.
func (e *Engine) Snapshot() Snapshot {
	info, hasInfo := e.Info()
	return Snapshot{
		State:                e.State(),
		Info:                 info,
		HasInfo:              hasInfo,
		SubscriptionCount:    e.reg.subscriptionCount(),
		CallbackBucketCounts: e.reg.callbackBucketCounts(),
		Stats:                e.stats.Snapshot(),
	}
}

func (e *Engine) run() {
	defer e.wg.Done()
	defer e.transport.Close()

	for {
		select {
		case <-e.ctx.Done():
			return
		case frame, ok := <-e.transport.Recv():
			if !ok {
				e.fail(fmt.Errorf("protocol: %w", transport.ErrClosed))
				return
			}
			if err := e.handle(frame); err != nil {
				e.fail(err)
				return
			}
		}
	}
}

func (e *Engine) handle(frame *wire.Frame) error {
	switch frame.Type {
	case wire.TypeInfo:
		return e.handleInfo(frame)
	case wire.TypePing:
		if err := e.transport.Send(wire.BuildPong(), e.opts.SendTimeout); err != nil {
			return fmt.Errorf("protocol: sending PONG: %w", err)
		}
		return nil
	case wire.TypeOk:
		e.logger.Debug("received +OK")
		return nil
	case wire.TypeErr:
		e.logger.Warn("received -ERR", "message", frame.ErrMessage)
		if isAuthorizationViolation(frame.ErrMessage) {
			return ErrAuthorizationViolation
		}
		return nil
	case wire.TypeMsg, wire.TypeHmsg:
		e.dispatch(frame)
		return nil
	default:
		e.logger.Warn("unrecognized frame type", "type", frame.Type)
		return nil
	}
}

func (e *Engine) handleInfo(frame *wire.Frame) error {
	info := buildInfoOptions(frame.Options)
	e.infoMu.Lock()
	e.info = &info
	e.infoMu.Unlock()
	e.state.Store(int32(StateConnecting))

	if info.TLSRequired {
		if e.opts.TLSConfig == nil {
			return ErrTLSRequired
		}
		if err := e.transport.WrapSocket(e.opts.TLSConfig); err != nil {
			return fmt.Errorf("protocol: TLS upgrade: %w", err)
		}
		e.stats.IncReconnect()
	}

	connectOpts := wire.ConnectOptions{
		Lang:        e.opts.Lang,
		Version:     e.opts.Version,
		Verbose:     true,
		Pedantic:    false,
		TLSRequired: e.opts.TLSConfig != nil,
		Headers:     true,
	}
	if info.AuthRequired {
		hasUserPass := e.opts.User != "" && e.opts.Password != ""
		hasToken := e.opts.AuthToken != ""
		if !hasUserPass && !hasToken {
			return ErrAuthMissing
		}
		if hasUserPass {
			connectOpts.User = e.opts.User
			connectOpts.Pass = e.opts.Password
		}
		if hasToken {
			connectOpts.AuthToken = e.opts.AuthToken
		}
	}

	data, err := wire.BuildConnect(connectOpts)
	if err != nil {
		return fmt.Errorf("protocol: building CONNECT: %w", err)
	}
	if err := e.transport.Send(data, e.opts.SendTimeout); err != nil {
		return fmt.Errorf("protocol: sending CONNECT: %w", err)
	}

	e.state.Store(int32(StateReady))
	e.signalConnected()
	return nil
}

func (e *Engine) dispatch(frame *wire.Frame) {
	e.stats.IncIn(len(frame.Payload))
	for _, h := range e.reg.dispatchList(frame.Subject) {
		e.invokeGuarded(h, frame)
	}
}

// invokeGuarded runs a callback with a recover so a panicking handler
// cannot take down the dispatch loop.
func (e *Engine) invokeGuarded(h Handler, frame *wire.Frame) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("callback panicked", "subject", frame.Subject, "recovered", r)
		}
	}()
	h(frame)
}

func (e *Engine) fail(err error) {
	e.fatalMu.Lock()
	if e.fatalErr == nil {
		e.fatalErr = err
	}
	e.fatalMu.Unlock()
	e.state.Store(int32(StateClosed))
	e.signalConnected()
}

func (e *Engine) signalConnected() {
	e.connectOnce.Do(func() { close(e.connected) })
}

func isAuthorizationViolation(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "authorization violation")
}
