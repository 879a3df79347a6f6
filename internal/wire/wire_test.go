package wire

import (
	"bytes"
	"testing"
)

func TestParseInfo(t *testing.T) {
	raw := []byte(`INFO {"server_id":"s1","server_name":"s1","version":"2.10.0","headers":true,"max_payload":1048576,"proto":1}` + "\r\n")
	f, n, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != len(raw) {
		t.Fatalf("consumed %d, want %d", n, len(raw))
	}
	if f.Type != TypeInfo {
		t.Fatalf("type = %v, want Info", f.Type)
	}
	if f.Options["server_id"] != "s1" {
		t.Fatalf("options = %v", f.Options)
	}
}

func TestParsePlainMsg(t *testing.T) {
	raw := []byte("MSG FOO.BAR sid1 11\r\nHello World\r\n")
	f, n, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != len(raw) {
		t.Fatalf("consumed %d, want %d", n, len(raw))
	}
	if f.Subject != "FOO.BAR" || f.Sid != "sid1" || f.ReplyTo != "" {
		t.Fatalf("unexpected frame: %+v", f)
	}
	if string(f.Payload) != "Hello World" {
		t.Fatalf("payload = %q", f.Payload)
	}
}

func TestParseMsgWithReply(t *testing.T) {
	raw := []byte("MSG FOO.BAR sid1 GREETING.34 11\r\nHello World\r\n")
	f, _, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.ReplyTo != "GREETING.34" {
		t.Fatalf("reply_to = %q", f.ReplyTo)
	}
}

func TestParseHmsg(t *testing.T) {
	raw := []byte("HMSG FOO.BAR sid1 34 45\r\nNATS/1.0\r\nFoodGroup: vegetable\r\n\r\nHello World\r\n")
	f, n, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != len(raw) {
		t.Fatalf("consumed %d, want %d", n, len(raw))
	}
	v, ok := f.Headers.Get("FoodGroup")
	if !ok || v != "vegetable" {
		t.Fatalf("headers = %+v", f.Headers)
	}
	if string(f.Payload) != "Hello World" {
		t.Fatalf("payload = %q", f.Payload)
	}
}

func TestParsePingOkErr(t *testing.T) {
	f, n, err := Parse([]byte("PING\r\n"))
	if err != nil || f.Type != TypePing || n != 6 {
		t.Fatalf("PING: f=%+v n=%d err=%v", f, n, err)
	}

	f, n, err = Parse([]byte("+OK\r\n"))
	if err != nil || f.Type != TypeOk || n != 5 {
		t.Fatalf("+OK: f=%+v n=%d err=%v", f, n, err)
	}

	f, n, err = Parse([]byte("-ERR 'Authorization Violation'\r\n"))
	if err != nil || f.Type != TypeErr || f.ErrMessage != "Authorization Violation" {
		t.Fatalf("-ERR: f=%+v n=%d err=%v", f, n, err)
	}
}

func TestParseNeedMore(t *testing.T) {
	full := []byte("MSG FOO.BAR sid1 11\r\nHello World\r\n")
	for k := 1; k < len(full); k++ {
		_, n, err := Parse(full[:k])
		if err != ErrNeedMore {
			t.Fatalf("k=%d: err = %v, want ErrNeedMore", k, err)
		}
		if n != 0 {
			t.Fatalf("k=%d: consumed %d, want 0", k, n)
		}
	}
}

func TestParseIncrementalFraming(t *testing.T) {
	full := []byte("PING\r\nPING\r\nMSG FOO sid1 5\r\nhello\r\n")
	var got []Type
	for len(full) > 0 {
		f, n, err := Parse(full)
		if err == ErrNeedMore {
			t.Fatalf("unexpected need-more on a complete buffer")
		}
		if err == ErrResync {
			full = full[n:]
			continue
		}
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		got = append(got, f.Type)
		full = full[n:]
	}
	want := []Type{TypePing, TypePing, TypeMsg}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParseResyncThenValidFrame(t *testing.T) {
	buf := []byte("garbage line here\r\nPING\r\n")
	_, n, err := Parse(buf)
	if err != ErrResync {
		t.Fatalf("err = %v, want ErrResync", err)
	}
	buf = buf[n:]
	f, _, err := Parse(buf)
	if err != nil || f.Type != TypePing {
		t.Fatalf("expected PING after resync, got f=%+v err=%v", f, err)
	}
}

func TestParsePayloadContainingCRLF(t *testing.T) {
	payload := "line1\r\nline2"
	raw := []byte("MSG S sid1 " + itoa(len(payload)) + "\r\n" + payload + "\r\n")
	f, n, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != len(raw) {
		t.Fatalf("consumed %d, want %d", n, len(raw))
	}
	if string(f.Payload) != payload {
		t.Fatalf("payload = %q, want %q", f.Payload, payload)
	}
}

func itoa(n int) string { return string(appendInt(nil, n)) }

func TestBuildPub(t *testing.T) {
	got, err := BuildPub("S", "", []byte("x"))
	if err != nil {
		t.Fatalf("BuildPub: %v", err)
	}
	want := []byte("PUB S 1\r\nx\r\n")
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBuildPubWithReply(t *testing.T) {
	got, err := BuildPub("S", "R", []byte("x"))
	if err != nil {
		t.Fatalf("BuildPub: %v", err)
	}
	want := []byte("PUB S R 1\r\nx\r\n")
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBuildHpubRoundtrips(t *testing.T) {
	var hdrs Headers
	hdrs.Set("FoodGroup", "vegetable")
	built, err := BuildHpub("FOO.BAR", "", hdrs, []byte("Hello World"))
	if err != nil {
		t.Fatalf("BuildHpub: %v", err)
	}

	// Parse only decodes server-to-client frames, so the HPUB command
	// line is rewritten into the matching HMSG line (which adds a sid);
	// the byte counts, header block and payload are kept as built.
	msg := append([]byte("HMSG FOO.BAR sid1"), bytes.TrimPrefix(built, []byte("HPUB FOO.BAR"))...)
	f, n, err := Parse(msg)
	if err != nil {
		t.Fatalf("Parse(BuildHpub(...) as HMSG): %v", err)
	}
	if n != len(msg) {
		t.Fatalf("consumed %d, want %d", n, len(msg))
	}
	v, ok := f.Headers.Get("FoodGroup")
	if !ok || v != "vegetable" {
		t.Fatalf("headers = %+v", f.Headers)
	}
	if string(f.Payload) != "Hello World" {
		t.Fatalf("payload = %q", f.Payload)
	}
}

func TestBuildSubAndUnsub(t *testing.T) {
	sub, err := BuildSub("FOO.BAR", "", "sid1")
	if err != nil {
		t.Fatalf("BuildSub: %v", err)
	}
	if !bytes.Equal(sub, []byte("SUB FOO.BAR sid1\r\n")) {
		t.Fatalf("got %q", sub)
	}

	subQ, err := BuildSub("FOO.BAR", "workers", "sid1")
	if err != nil {
		t.Fatalf("BuildSub: %v", err)
	}
	if !bytes.Equal(subQ, []byte("SUB FOO.BAR workers sid1\r\n")) {
		t.Fatalf("got %q", subQ)
	}

	unsub, err := BuildUnsub("sid1", 0)
	if err != nil {
		t.Fatalf("BuildUnsub: %v", err)
	}
	if !bytes.Equal(unsub, []byte("UNSUB sid1\r\n")) {
		t.Fatalf("got %q", unsub)
	}

	unsubMax, err := BuildUnsub("sid1", 5)
	if err != nil {
		t.Fatalf("BuildUnsub: %v", err)
	}
	if !bytes.Equal(unsubMax, []byte("UNSUB sid1 5\r\n")) {
		t.Fatalf("got %q", unsubMax)
	}
}

func TestBuildBadArgument(t *testing.T) {
	if _, err := BuildPub("", "", nil); err == nil {
		t.Fatal("expected error for empty subject")
	}
	if _, err := BuildSub("", "", "sid1"); err == nil {
		t.Fatal("expected error for empty subject")
	}
	if _, err := BuildUnsub("", 0); err == nil {
		t.Fatal("expected error for empty sid")
	}
}

func TestBuildConnect(t *testing.T) {
	got, err := BuildConnect(ConnectOptions{
		Lang:     "go",
		Version:  "2.10.0",
		Verbose:  true,
		Pedantic: false,
		Headers:  true,
	})
	if err != nil {
		t.Fatalf("BuildConnect: %v", err)
	}
	if !bytes.HasPrefix(got, []byte("CONNECT {")) || !bytes.HasSuffix(got, []byte("}\r\n")) {
		t.Fatalf("got %q", got)
	}
}
