package models

import "errors"

// Decode errors (malformed, unroutable) drop a single inbound message. The
// remaining errors surface to the caller as RESPONSE_ERROR messages.
var (
	ErrMalformedWireMessage    = errors.New("malformed wire message")
	ErrUnroutableMessage       = errors.New("unroutable message")
	ErrMissingCredential       = errors.New("missing credential")
	ErrInvalidCredentialFormat = errors.New("invalid credential format")
	ErrSigningFailed           = errors.New("signing failed")
	ErrTransport               = errors.New("transport error")
	ErrUnsupportedOperation    = errors.New("unsupported operation")
	ErrUnknownInstrument       = errors.New("unknown instrument")
)
