package transport

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/sadewadee/gonats/internal/wire"
)

func TestTCPStartRecvAndSend(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	var port int
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}

	serverConnCh := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		serverConnCh <- conn
	}()

	tr := NewTCP(host, port, nil)
	if err := tr.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Close()

	serverConn := <-serverConnCh
	defer serverConn.Close()

	if _, err := serverConn.Write([]byte("INFO {\"server_id\":\"s1\",\"server_name\":\"s1\",\"version\":\"2.10.0\",\"headers\":true,\"max_payload\":1048576,\"proto\":1}\r\n")); err != nil {
		t.Fatalf("server write: %v", err)
	}

	select {
	case f := <-tr.Recv():
		if f.Type != wire.TypeInfo {
			t.Fatalf("frame type = %v, want Info", f.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for INFO frame")
	}

	if err := tr.Send([]byte("PING\r\n"), time.Second); err != nil {
		t.Fatalf("Send: %v", err)
	}

	serverConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(serverConn)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	if line != "PING\r\n" {
		t.Fatalf("server saw %q, want PING\\r\\n", line)
	}
}

func TestTCPBackpressure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	var port int
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	tr := NewTCP(host, port, nil)
	if err := tr.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Close()
	<-accepted // keep the server conn open but never read; let the OS buffer fill

	var lastErr error
	for i := 0; i < 10000; i++ {
		lastErr = tr.Send(make([]byte, 4096), 5*time.Millisecond)
		if lastErr == ErrBackpressure {
			break
		}
	}
	if lastErr != ErrBackpressure {
		t.Fatalf("expected eventual ErrBackpressure, got %v", lastErr)
	}
}
