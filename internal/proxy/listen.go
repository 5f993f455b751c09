package proxy

import (
	"context"
	"fmt"
	"net"
)

// ListenTCP listens on addr and returns a net.Listener that applies
// keepAliveConfig to accepted TCP connections.
func ListenTCP(ctx context.Context, addr string, keepAliveConfig net.KeepAliveConfig) (net.Listener, error) {
	lc := net.ListenConfig{}

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen tcp %s: %w", addr, err)
	}

	return &keepAliveListener{Listener: ln, ka: keepAliveConfig}, nil
}

// keepAliveListener sets the keepalive config explicitly on each accepted
// conn; net.ListenConfig would turn keepalive on even when it is disabled.
type keepAliveListener struct {
	net.Listener
	ka net.KeepAliveConfig
}

func (l *keepAliveListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetKeepAliveConfig(l.ka)
	}

	return conn, nil
}
