package wire

import "errors"

// ErrNeedMore indicates the buffer holds an incomplete frame; the caller
// must read more bytes and retry. Zero bytes are consumed.
var ErrNeedMore = errors.New("wire: incomplete frame, need more data")

// ErrResync indicates the buffer's head cannot form any known frame tag.
// The caller should discard the consumed byte count (through the next
// CRLF) and keep feeding the codec; this is non-fatal.
var ErrResync = errors.New("wire: unrecognized data, resynchronizing")

// ErrBadArgument indicates a Build* call was given a malformed argument
// (e.g. an empty subject).
var ErrBadArgument = errors.New("wire: bad argument")
