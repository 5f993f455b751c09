// Package proxy implements the sockd SOCKS5 server: the accept loop, the
// per-connection protocol state machine and the bidirectional tunnel.
//
// Every connection gets its own goroutine and every tunnel two more. The only
// state shared between connections is the read-only credential store.
package proxy
