package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sadewadee/gonats/internal/wire"
)

// TCP is the raw-socket Transport, grounded on pynats/transport.py's
// Transport class: a reader goroutine and a writer goroutine multiplexed
// against a cancellation context instead of a self-pipe.
type TCP struct {
	addr   string
	logger *slog.Logger

	mu   sync.Mutex
	conn net.Conn

	sendCh chan []byte
	recvCh chan *wire.Frame

	masterCtx context.Context
	masterCln context.CancelFunc

	ioCtx context.Context
	ioCln context.CancelFunc
	wg    sync.WaitGroup

	healthy atomic.Bool
	closed  atomic.Bool
}

// NewTCP creates a TCP transport dialing host:port.
func NewTCP(host string, port int, logger *slog.Logger) *TCP {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TCP{
		addr:      fmt.Sprintf("%s:%d", host, port),
		logger:    logger,
		sendCh:    make(chan []byte, QueueCapacity),
		recvCh:    make(chan *wire.Frame, QueueCapacity),
		masterCtx: ctx,
		masterCln: cancel,
	}
}

func (t *TCP) Start() error {
	conn, err := net.Dial("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", t.addr, err)
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	t.healthy.Store(true)
	t.startIOTasks()
	return nil
}

func (t *TCP) startIOTasks() {
	t.ioCtx, t.ioCln = context.WithCancel(t.masterCtx)
	t.wg.Add(2)
	go t.readLoop(t.ioCtx, t.conn)
	go t.writeLoop(t.ioCtx, t.conn)
}

func (t *TCP) Recv() <-chan *wire.Frame { return t.recvCh }

func (t *TCP) Send(data []byte, timeout time.Duration) error {
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

func (t *TCP) Healthy() bool { return t.healthy.Load() && !t.closed.Load() }

func (t *TCP) Close() error {
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

// WrapSocket suspends the reader/writer, performs a TLS handshake over
// the existing socket, and restarts them against the wrapped
// connection. recv/send queues are untouched, so no frames are lost
// across the upgrade.
func (t *TCP) WrapSocket(cfg *tls.Config) error {
	t.ioCln()
	t.wg.Wait()

	t.mu.Lock()
	plain := t.conn
	t.mu.Unlock()

	tlsConn := tls.Client(plain, cfg)
	hctx, cancel := context.WithTimeout(t.masterCtx, IOTimeout)
	defer cancel()
	if err := tlsConn.HandshakeContext(hctx); err != nil {
		return fmt.Errorf("%w: %w", ErrTLSHandshake, err)
	}

	t.mu.Lock()
	t.conn = tlsConn
	t.mu.Unlock()

	t.startIOTasks()
	return nil
}

func (t *TCP) readLoop(ctx context.Context, conn net.Conn) {
	defer t.wg.Done()

	readBuf := make([]byte, ReadChunkSize)
	recvBuf := make([]byte, 0, ReadChunkSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(IOTimeout))
		n, err := conn.Read(readBuf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			t.logger.Error("transport read failed", "error", err)
			t.healthy.Store(false)
			return
		}
		recvBuf = append(recvBuf, readBuf[:n]...)

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

func (t *TCP) writeLoop(ctx context.Context, conn net.Conn) {
	defer t.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-t.sendCh:
			if err := writeAll(ctx, conn, data); err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				t.logger.Error("transport write failed", "error", err)
				t.healthy.Store(false)
				return
			}
		}
	}
}

func writeAll(ctx context.Context, conn net.Conn, data []byte) error {
	for len(data) > 0 {
		conn.SetWriteDeadline(time.Now().Add(IOTimeout))
		n, err := conn.Write(data)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
					continue
				}
			}
			return err
		}
		data = data[n:]
	}
	return nil
}
