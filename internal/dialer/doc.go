// Package dialer opens the outbound connections sockd tunnels to.
//
// Dialers implement a small interface (DialContext) so the proxy can be
// exercised against fakes in tests.
package dialer
