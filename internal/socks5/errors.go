package socks5

import (
	"errors"
	"fmt"
	"io"
	"syscall"
)

// Error classes. Every error returned by this package wraps exactly one of
// them.
var (
	// ErrDisconnect means the stream ended before a required field was fully
	// read.
	ErrDisconnect = errors.New("client disconnected")

	// ErrProtocol means the client sent a field the server cannot accept.
	ErrProtocol = errors.New("protocol violation")

	// ErrAuth means the client's credentials were rejected.
	ErrAuth = errors.New("authentication failed")

	// ErrUpstream means the connection to the requested target failed.
	ErrUpstream = errors.New("upstream connect failed")

	// ErrTransfer means the tunnel ended on an I/O error.
	ErrTransfer = errors.New("transfer failed")
)

// Protocol violations with a more specific meaning.
var (
	ErrBadVersion          = fmt.Errorf("%w: unsupported version", ErrProtocol)
	ErrNoAcceptableMethod  = fmt.Errorf("%w: no acceptable auth method", ErrProtocol)
	ErrCommandNotSupported = fmt.Errorf("%w: command not supported", ErrProtocol)
	ErrAddressNotSupported = fmt.Errorf("%w: address type not supported", ErrProtocol)
	ErrInvalidPort         = fmt.Errorf("%w: invalid port", ErrProtocol)
)

// ReplyCode returns the REP value a CONNECT reply should carry for err, and
// false if err has no reply code and the connection should simply be closed.
func ReplyCode(err error) (byte, bool) {
	switch {
	case errors.Is(err, ErrCommandNotSupported):
		return RepCommandNotSupported, true
	case errors.Is(err, ErrAddressNotSupported):
		return RepAddressNotSupported, true
	case errors.Is(err, ErrUpstream):
		return RepConnectionRefused, true
	default:
		return 0, false
	}
}

// IsDisconnect reports whether err is the peer going away rather than a
// failure worth reporting.
func IsDisconnect(err error) bool {
	return errors.Is(err, ErrDisconnect) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

func readErr(field string, err error) error {
	if IsDisconnect(err) {
		return fmt.Errorf("read %s: %w", field, ErrDisconnect)
	}
	return fmt.Errorf("read %s: %w", field, err)
}
