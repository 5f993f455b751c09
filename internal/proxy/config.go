package proxy

import (
	"time"

	"github.com/die-net/sockd/internal/dialer"
)

type Config struct {
	// NegotiationTimeout bounds each read from the client until the target
	// connection is up. Tunnels have no read timeout.
	NegotiationTimeout time.Duration

	Dialer dialer.Dialer
}
