package socks5

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"slices"
	"strconv"
)

// Greeting is the client's method-selection message.
type Greeting struct {
	Methods []byte
}

// Offers reports whether the client listed method.
func (g *Greeting) Offers(method byte) bool {
	return slices.Contains(g.Methods, method)
}

// ReadGreeting reads VER, NMETHODS and METHODS.
func ReadGreeting(r io.Reader) (*Greeting, error) {
	ver, err := readByte(r, "version")
	if err != nil {
		return nil, err
	}
	if ver != Version {
		return nil, fmt.Errorf("%w %d", ErrBadVersion, ver)
	}

	n, err := readByte(r, "method count")
	if err != nil {
		return nil, err
	}

	methods := make([]byte, int(n))
	if _, err := io.ReadFull(r, methods); err != nil {
		return nil, readErr("methods", err)
	}

	return &Greeting{Methods: methods}, nil
}

// UserPass is a username/password sub-negotiation request.
type UserPass struct {
	Username string
	Password string
}

// ReadUserPass reads VER, ULEN, UNAME, PLEN and PASSWD.
func ReadUserPass(r io.Reader) (*UserPass, error) {
	ver, err := readByte(r, "auth version")
	if err != nil {
		return nil, err
	}
	if ver != UserPassVersion {
		return nil, fmt.Errorf("%w %d in auth request", ErrBadVersion, ver)
	}

	user, err := readString(r, "username")
	if err != nil {
		return nil, err
	}
	pass, err := readString(r, "password")
	if err != nil {
		return nil, err
	}

	return &UserPass{Username: user, Password: pass}, nil
}

// Request is a parsed CONNECT request. Host holds the textual form of IP
// addresses and the unresolved name for ATYPDomain.
type Request struct {
	Cmd  byte
	Atyp byte
	Host string
	Port uint16
}

// Address returns host:port suitable for dialing.
func (r *Request) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(int(r.Port)))
}

// ReadRequest reads a CONNECT request.
//
// For ErrCommandNotSupported and ErrAddressNotSupported the returned Request
// is non-nil with Cmd and Atyp set, and nothing past the 4-byte header has
// been consumed.
func ReadRequest(r io.Reader) (*Request, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, readErr("request header", err)
	}
	if hdr[0] != Version {
		return nil, fmt.Errorf("%w %d in request", ErrBadVersion, hdr[0])
	}

	req := &Request{Cmd: hdr[1], Atyp: hdr[3]}
	if req.Cmd != CmdConnect {
		return req, fmt.Errorf("%w: %#02x", ErrCommandNotSupported, req.Cmd)
	}

	switch req.Atyp {
	case ATYPIPv4:
		b := make([]byte, net.IPv4len)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, readErr("ipv4 address", err)
		}
		req.Host = net.IP(b).String()
	case ATYPDomain:
		name, err := readString(r, "domain name")
		if err != nil {
			return nil, err
		}
		req.Host = name
	case ATYPIPv6:
		b := make([]byte, net.IPv6len)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, readErr("ipv6 address", err)
		}
		req.Host = net.IP(b).String()
	default:
		return req, fmt.Errorf("%w: %#02x", ErrAddressNotSupported, req.Atyp)
	}

	var port [2]byte
	if _, err := io.ReadFull(r, port[:]); err != nil {
		return nil, readErr("port", err)
	}
	req.Port = binary.BigEndian.Uint16(port[:])
	if req.Port == 0 {
		return nil, ErrInvalidPort
	}

	return req, nil
}

func readByte(r io.Reader, field string) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, readErr(field, err)
	}
	return b[0], nil
}

// readString reads a 1-byte length followed by that many bytes.
func readString(r io.Reader, field string) (string, error) {
	n, err := readByte(r, field+" length")
	if err != nil {
		return "", err
	}
	b := make([]byte, int(n))
	if _, err := io.ReadFull(r, b); err != nil {
		return "", readErr(field, err)
	}
	return string(b), nil
}
