// Package socks5 implements the server side of the SOCKS5 wire protocol
// subset used by sockd: username/password negotiation (RFC 1929) and the
// CONNECT request (RFC 1928).
//
// Requests are parsed field by field straight off the client stream so that a
// short read can be told apart from a malformed field, and so that no bytes
// the client pipelines after its request are buffered away from the tunnel.
// Replies are encoded with the wire types in github.com/txthinking/socks5.
//
// This package does no I/O scheduling of its own; deadlines and connection
// lifetime belong to the caller.
package socks5
