package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sadewadee/gonats/internal/wire"
)

// ErrWebSocketTLSAtDial is returned by WebSocket.WrapSocket: a wss://
// endpoint negotiates TLS during the dial, via Dialer.TLSClientConfig,
// not after INFO like the raw-TCP transport.
var ErrWebSocketTLSAtDial = errors.New("transport: websocket TLS is configured at dial time, not via WrapSocket")

// WebSocket is a Transport that carries the identical NATS text protocol
// inside binary WebSocket frames, for servers exposing a ws://=/wss://
// listener. The read-pump shape (deadline-based read loop, close-code
// handling) mirrors a server-side upgrade handler's, adapted to the
// client/dial side.
type WebSocket struct {
	url    string
	dialer *websocket.Dialer
	header http.Header
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	sendCh chan []byte
	recvCh chan *wire.Frame

	masterCtx context.Context
	masterCln context.CancelFunc
	ioCtx     context.Context
	ioCln     context.CancelFunc
	wg        sync.WaitGroup

	healthy atomic.Bool
	closed  atomic.Bool
}

// NewWebSocket creates a WebSocket transport dialing url ("ws://" or
// "wss://"). TLS material for wss:// belongs on dialer.TLSClientConfig.
func NewWebSocket(url string, dialer *websocket.Dialer, logger *slog.Logger) *WebSocket {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocket{
		url:       url,
		dialer:    dialer,
		logger:    logger,
		sendCh:    make(chan []byte, QueueCapacity),
		recvCh:    make(chan *wire.Frame, QueueCapacity),
		masterCtx: ctx,
		masterCln: cancel,
	}
}

func (t *WebSocket) Start() error {
	conn, _, err := t.dialer.Dial(t.url, t.header)
	if err != nil {
		return fmt.Errorf("transport: websocket dial %s: %w", t.url, err)
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	t.healthy.Store(true)
	t.ioCtx, t.ioCln = context.WithCancel(t.masterCtx)
	t.wg.Add(2)
	go t.readLoop(t.ioCtx, conn)
	go t.writeLoop(t.ioCtx, conn)
	return nil
}

func (t *WebSocket) Recv() <-chan *wire.Frame { return t.recvCh }

func (t *WebSocket) Send(data []byte, timeout time.Duration) error {
	if t.closed.Load() {
		return ErrClosed
	}
	select {
	case t.sendCh <- data:
		return nil
	case <-time.After(timeout):
		return ErrBackpressure
	}
}

func (t *WebSocket) Healthy() bool { return t.healthy.Load() && !t.closed.Load() }

// WrapSocket always fails: see ErrWebSocketTLSAtDial.
func (t *WebSocket) WrapSocket(cfg *tls.Config) error {
	return ErrWebSocketTLSAtDial
}

func (t *WebSocket) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.masterCln()
	t.ioCln()
	t.wg.Wait()

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	close(t.recvCh)
	return nil
}

func (t *WebSocket) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer t.wg.Done()

	recvBuf := make([]byte, 0, ReadChunkSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(IOTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Debug("websocket closed by peer")
			} else if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
				continue
			} else {
				select {
				case <-ctx.Done():
					return
				default:
				}
				t.logger.Error("websocket read failed", "error", err)
			}
			t.healthy.Store(false)
			return
		}
		recvBuf = append(recvBuf, data...)

		for len(recvBuf) > 0 {
			frame, consumed, perr := wire.Parse(recvBuf)
			if perr == wire.ErrNeedMore {
				break
			}
			if perr == wire.ErrResync {
				t.logger.Warn("resynchronizing after unparseable bytes", "skipped", consumed)
				recvBuf = recvBuf[consumed:]
				continue
			}
			if perr != nil {
				t.logger.Warn("dropping malformed frame", "error", perr, "skipped", consumed)
				recvBuf = recvBuf[consumed:]
				continue
			}

			recvBuf = recvBuf[consumed:]
			select {
			case t.recvCh <- frame:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (t *WebSocket) writeLoop(ctx context.Context, conn *websocket.Conn) {
	defer t.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-t.sendCh:
			conn.SetWriteDeadline(time.Now().Add(IOTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				t.logger.Error("websocket write failed", "error", err)
				t.healthy.Store(false)
				return
			}
		}
	}
}
