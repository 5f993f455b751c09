package dialer

import (
	"net"
	"time"
)

type Config struct {
	// DialTimeout bounds DNS resolution plus TCP connect.
	DialTimeout time.Duration
	KeepAlive   net.KeepAliveConfig
}
