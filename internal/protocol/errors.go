package protocol

import "errors"

// ErrTLSRequired is the handshake's fatal outcome when the server
// advertises tls_required and no TLS config was supplied.
var ErrTLSRequired = errors.New("protocol: server requires TLS but no TLS config was provided")

// ErrAuthMissing is the handshake's fatal outcome when the server
// advertises auth_required and neither a user/password pair nor an
// auth token was supplied.
var ErrAuthMissing = errors.New("protocol: server requires authentication but no credentials were provided")

// ErrAuthorizationViolation is raised when a -ERR frame's message
// indicates an authorization violation.
var ErrAuthorizationViolation = errors.New("protocol: server closed the connection: authorization violation")

// ErrPayloadTooLarge is returned by Publish when payload exceeds the
// server's advertised max_payload.
var ErrPayloadTooLarge = errors.New("protocol: payload exceeds server max_payload")

// ErrEngineClosed is returned by operations attempted after Close.
var ErrEngineClosed = errors.New("protocol: engine closed")

// ErrNotConnected is returned by operations attempted before the
// handshake reaches Ready.
var ErrNotConnected = errors.New("protocol: not connected")
