package wire

import (
	"bytes"
	"encoding/json"
	"strconv"
)

var crlf = []byte("\r\n")

// Parse inspects the head of buf and returns either a complete Frame and
// the number of bytes it occupies, ErrNeedMore with 0 bytes consumed, or
// ErrResync with the number of bytes to discard (through the next CRLF).
//
// Parse never mutates buf and never reads past a frame's declared
// boundaries; MSG/HMSG payload lengths are taken from the header and
// are authoritative.
func Parse(buf []byte) (*Frame, int, error) {
	idx := bytes.Index(buf, crlf)
	if idx == -1 {
		return nil, 0, ErrNeedMore
	}
	header := buf[:idx]

	tag, rest := splitTag(header)
	switch {
	case bytes.Equal(tag, []byte("INFO")):
		return parseInfo(rest, idx)
	case bytes.Equal(tag, []byte("MSG")):
		return parseMsg(rest, buf, idx)
	case bytes.Equal(tag, []byte("HMSG")):
		return parseHmsg(rest, buf, idx)
	case bytes.Equal(tag, []byte("PING")):
		return &Frame{Type: TypePing}, idx + 2, nil
	case bytes.Equal(tag, []byte("+OK")):
		return &Frame{Type: TypeOk}, idx + 2, nil
	case bytes.Equal(tag, []byte("-ERR")):
		return parseErr(rest, idx)
	default:
		return nil, idx + 2, ErrResync
	}
}

// splitTag separates the leading command token from the remainder of
// the header line (with the whitespace after the tag removed; trailing
// whitespace is kept).
func splitTag(header []byte) (tag, rest []byte) {
	i := bytes.IndexAny(header, " \t")
	if i == -1 {
		return header, nil
	}
	return header[:i], bytes.TrimLeft(header[i:], " \t")
}

func parseInfo(optionsJSON []byte, headerLen int) (*Frame, int, error) {
	var opts map[string]any
	if err := json.Unmarshal(optionsJSON, &opts); err != nil {
		return nil, headerLen + 2, ErrResync
	}
	return &Frame{Type: TypeInfo, Options: opts}, headerLen + 2, nil
}

func parseErr(quoted []byte, headerLen int) (*Frame, int, error) {
	msg := string(bytes.Trim(quoted, "'"))
	return &Frame{Type: TypeErr, ErrMessage: msg}, headerLen + 2, nil
}

// parseMsg handles `<subject> <sid> [<reply_to>] <#bytes>`.
func parseMsg(rest []byte, buf []byte, headerLen int) (*Frame, int, error) {
	fields := bytes.Fields(rest)
	var subject, sid, reply string
	var numBytes int
	var err error

	switch len(fields) {
	case 3:
		subject, sid = string(fields[0]), string(fields[1])
		numBytes, err = strconv.Atoi(string(fields[2]))
	case 4:
		subject, sid, reply = string(fields[0]), string(fields[1]), string(fields[2])
		numBytes, err = strconv.Atoi(string(fields[3]))
	default:
		return nil, headerLen + 2, ErrResync
	}
	if err != nil || numBytes < 0 {
		return nil, headerLen + 2, ErrResync
	}

	payloadStart := headerLen + 2
	payloadEnd := payloadStart + numBytes
	need := payloadEnd + 2
	if len(buf) < need {
		return nil, 0, ErrNeedMore
	}

	payload := make([]byte, numBytes)
	copy(payload, buf[payloadStart:payloadEnd])

	return &Frame{
		Type:    TypeMsg,
		Subject: subject,
		Sid:     sid,
		ReplyTo: reply,
		Payload: payload,
	}, need, nil
}

// parseHmsg handles `<subject> <sid> [<reply_to>] <#hdr_bytes> <#total_bytes>`
// followed by a NATS/1.0 header block and payload.
func parseHmsg(rest []byte, buf []byte, headerLen int) (*Frame, int, error) {
	fields := bytes.Fields(rest)
	var subject, sid, reply string
	var hdrBytes, totalBytes int
	var err1, err2 error

	switch len(fields) {
	case 4:
		subject, sid = string(fields[0]), string(fields[1])
		hdrBytes, err1 = strconv.Atoi(string(fields[2]))
		totalBytes, err2 = strconv.Atoi(string(fields[3]))
	case 5:
		subject, sid, reply = string(fields[0]), string(fields[1]), string(fields[2])
		hdrBytes, err1 = strconv.Atoi(string(fields[3]))
		totalBytes, err2 = strconv.Atoi(string(fields[4]))
	default:
		return nil, headerLen + 2, ErrResync
	}
	if err1 != nil || err2 != nil || hdrBytes < 0 || totalBytes < hdrBytes {
		return nil, headerLen + 2, ErrResync
	}

	dataStart := headerLen + 2
	dataEnd := dataStart + totalBytes
	need := dataEnd + 2
	if len(buf) < need {
		return nil, 0, ErrNeedMore
	}

	hdrBlock := buf[dataStart : dataStart+hdrBytes]
	payload := make([]byte, totalBytes-hdrBytes)
	copy(payload, buf[dataStart+hdrBytes:dataEnd])

	headers, ok := parseHeaderBlock(hdrBlock)
	if !ok {
		return nil, headerLen + 2, ErrResync
	}

	return &Frame{
		Type:    TypeHmsg,
		Subject: subject,
		Sid:     sid,
		ReplyTo: reply,
		Headers: headers,
		Payload: payload,
	}, need, nil
}

// parseHeaderBlock decodes a `NATS/1.0\r\nName: Value\r\n...\r\n` block.
// The leading version line is discarded. Empty lines, including the
// terminating one that the declared header length covers, are skipped.
func parseHeaderBlock(block []byte) (Headers, bool) {
	lines := bytes.Split(block, crlf)
	if len(lines) == 0 {
		return nil, false
	}
	// lines[0] is "NATS/1.0"; discard it.
	var headers Headers
	for _, line := range lines[1:] {
		if len(line) == 0 {
			continue
		}
		i := bytes.IndexByte(line, ':')
		if i == -1 {
			return nil, false
		}
		name := string(bytes.TrimSpace(line[:i]))
		value := string(bytes.TrimSpace(line[i+1:]))
		headers.Set(name, value)
	}
	return headers, true
}
