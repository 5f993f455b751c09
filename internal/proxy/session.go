package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/die-net/sockd/internal/auth"
	"github.com/die-net/sockd/internal/dialer"
	"github.com/die-net/sockd/internal/metrics"
	"github.com/die-net/sockd/internal/socks5"
)

// State is a session's position in the protocol.
type State int

const (
	StateAwaitingHandshake State = iota
	StateAwaitingAuth
	StateAwaitingRequest
	StateConnecting
	StateTunneling
	StateClosed
)

var stateNames = [...]string{
	StateAwaitingHandshake: "handshake",
	StateAwaitingAuth:      "auth",
	StateAwaitingRequest:   "request",
	StateConnecting:        "connecting",
	StateTunneling:         "tunneling",
	StateClosed:            "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// session serves one client connection from greeting to teardown. It is not
// safe for concurrent use; run drives it on the connection's goroutine.
type session struct {
	client net.Conn
	r      io.Reader
	auth   auth.Authenticator
	dialer dialer.Dialer

	remote        string
	method        byte
	username      string
	authenticated bool
	request       *socks5.Request
	state         State
	endedIn       State
	stats         TunnelStats
}

func newSession(conn net.Conn, cfg Config, a auth.Authenticator) *session {
	c := newOnceCloseConn(conn)
	return &session{
		client: c,
		r:      idleReader{conn: c, timeout: cfg.NegotiationTimeout},
		auth:   a,
		dialer: cfg.Dialer,
		remote: conn.RemoteAddr().String(),
		state:  StateAwaitingHandshake,
	}
}

// run drives the session to completion and closes the client conn on every
// path. The returned error only describes why the session ended.
func (s *session) run(ctx context.Context) error {
	defer s.close()

	if err := s.negotiateHandshake(); err != nil {
		return err
	}
	if err := s.authenticate(); err != nil {
		return err
	}

	req, err := s.parseRequest()
	if err != nil {
		return err
	}

	target, err := s.connectTarget(ctx, req)
	if err != nil {
		return err
	}
	defer target.Close()

	if err := s.sendSuccessReply(target.LocalAddr()); err != nil {
		return err
	}

	return s.tunnel(ctx, target)
}

func (s *session) close() {
	if s.state != StateClosed {
		s.endedIn = s.state
		s.state = StateClosed
	}
	_ = s.client.Close()
}

func (s *session) negotiateHandshake() error {
	greet, err := socks5.ReadGreeting(s.r)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	if !greet.Offers(socks5.MethodUsernamePassword) {
		s.method = socks5.MethodNoAcceptable
		_ = socks5.WriteMethod(s.client, socks5.MethodNoAcceptable)
		return fmt.Errorf("handshake: %w", socks5.ErrNoAcceptableMethod)
	}

	s.method = socks5.MethodUsernamePassword
	if err := socks5.WriteMethod(s.client, s.method); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	s.state = StateAwaitingAuth
	return nil
}

func (s *session) authenticate() error {
	up, err := socks5.ReadUserPass(s.r)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	s.username = up.Username

	ok := s.auth.Authenticate(up.Username, up.Password)
	metrics.RecordAuth(ok)

	if !ok {
		_ = socks5.WriteUserPassStatus(s.client, false)
		return fmt.Errorf("auth: user %q: %w", up.Username, socks5.ErrAuth)
	}
	if err := socks5.WriteUserPassStatus(s.client, true); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	s.authenticated = true
	s.state = StateAwaitingRequest
	return nil
}

func (s *session) parseRequest() (*socks5.Request, error) {
	req, err := socks5.ReadRequest(s.r)
	if err != nil {
		if rep, ok := socks5.ReplyCode(err); ok && req != nil {
			_ = s.sendErrorReply(rep, req.Atyp)
		}
		return nil, fmt.Errorf("request: %w", err)
	}

	s.request = req
	s.state = StateConnecting
	return req, nil
}

func (s *session) connectTarget(ctx context.Context, req *socks5.Request) (net.Conn, error) {
	start := time.Now()
	conn, err := s.dialer.DialContext(ctx, "tcp", req.Address())
	metrics.ConnectDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		_ = s.sendErrorReply(socks5.RepConnectionRefused, req.Atyp)
		return nil, fmt.Errorf("connect %s: %w: %w", req.Address(), socks5.ErrUpstream, err)
	}

	// From here on the client may go quiet for as long as the tunnel lives.
	if err := s.client.SetReadDeadline(time.Time{}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("clear read deadline: %w", err)
	}

	return newOnceCloseConn(conn), nil
}

func (s *session) sendSuccessReply(bound net.Addr) error {
	if err := socks5.WriteSuccessReply(s.client, bound); err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	s.state = StateTunneling
	return nil
}

func (s *session) sendErrorReply(rep, atyp byte) error {
	if err := socks5.WriteErrorReply(s.client, rep, atyp); err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return nil
}

func (s *session) tunnel(ctx context.Context, target net.Conn) error {
	metrics.ActiveTunnels.Inc()
	defer metrics.ActiveTunnels.Dec()

	start := time.Now()
	stats, err := Tunnel(ctx, s.client, target)
	s.stats = stats

	metrics.RecordRelayed(stats.Up, stats.Down)
	metrics.TunnelDurationSeconds.Observe(time.Since(start).Seconds())

	if err != nil {
		return fmt.Errorf("tunnel: %w", err)
	}
	return nil
}
