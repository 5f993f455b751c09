package proxy

import (
	"net"
	"sync"
	"time"
)

// onceCloseConn makes Close idempotent and safe to call concurrently. Only the
// first call reaches the underlying conn; later calls return nil.
type onceCloseConn struct {
	net.Conn
	once sync.Once
}

func newOnceCloseConn(c net.Conn) *onceCloseConn {
	return &onceCloseConn{Conn: c}
}

func (c *onceCloseConn) Close() error {
	var err error
	c.once.Do(func() {
		err = c.Conn.Close()
	})
	return err
}

// idleReader pushes the read deadline out by timeout before every Read, so a
// client may take as long as it likes overall but can't stall any one read.
type idleReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r idleReader) Read(p []byte) (int, error) {
	if r.timeout > 0 {
		if err := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
			return 0, err
		}
	}
	return r.conn.Read(p)
}
