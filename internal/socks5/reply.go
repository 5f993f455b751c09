package socks5

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	txsocks5 "github.com/txthinking/socks5"
)

const (
	// Version is the SOCKS protocol version.
	Version byte = 0x05

	// UserPassVersion is the RFC 1929 sub-negotiation version.
	UserPassVersion byte = 0x01

	MethodUsernamePassword = txsocks5.MethodUsernamePassword

	// MethodNoAcceptable tells the client none of its methods will do.
	MethodNoAcceptable byte = 0xff

	CmdConnect = txsocks5.CmdConnect

	ATYPIPv4   = txsocks5.ATYPIPv4
	ATYPDomain = txsocks5.ATYPDomain
	ATYPIPv6   = txsocks5.ATYPIPv6

	RepSuccess             = txsocks5.RepSuccess
	RepConnectionRefused   = txsocks5.RepConnectionRefused
	RepCommandNotSupported = txsocks5.RepCommandNotSupported
	RepAddressNotSupported = txsocks5.RepAddressNotSupported
)

// WriteMethod writes the server's method selection.
func WriteMethod(w io.Writer, method byte) error {
	if _, err := txsocks5.NewNegotiationReply(method).WriteTo(w); err != nil {
		return fmt.Errorf("negotiation reply: %w", err)
	}
	return nil
}

// WriteUserPassStatus writes the RFC 1929 status reply.
func WriteUserPassStatus(w io.Writer, ok bool) error {
	status := txsocks5.UserPassStatusFailure
	if ok {
		status = txsocks5.UserPassStatusSuccess
	}
	if _, err := txsocks5.NewUserPassNegotiationReply(status).WriteTo(w); err != nil {
		return fmt.Errorf("userpass reply: %w", err)
	}
	return nil
}

// WriteSuccessReply writes a success reply using bound as BND.ADDR and
// BND.PORT. The address type follows the actual IP family of bound.
func WriteSuccessReply(w io.Writer, bound net.Addr) error {
	ip, port := splitAddr(bound)

	atyp, addr := ATYPIPv4, []byte(net.IPv4zero.To4())
	if ip4 := ip.To4(); ip4 != nil {
		addr = ip4
	} else if ip16 := ip.To16(); ip16 != nil {
		atyp, addr = ATYPIPv6, ip16
	}

	if _, err := txsocks5.NewReply(RepSuccess, atyp, addr, portBytes(port)).WriteTo(w); err != nil {
		return fmt.Errorf("success reply: %w", err)
	}
	return nil
}

// WriteErrorReply writes a failure reply with an all-zero bound address. The
// zero address is IPv6 when the request was, IPv4 otherwise.
func WriteErrorReply(w io.Writer, rep, atyp byte) error {
	r := txsocks5.NewReply(rep, ATYPIPv4, []byte(net.IPv4zero.To4()), portBytes(0))
	if atyp == ATYPIPv6 {
		r = txsocks5.NewReply(rep, ATYPIPv6, []byte(net.IPv6zero), portBytes(0))
	}
	if _, err := r.WriteTo(w); err != nil {
		return fmt.Errorf("error reply: %w", err)
	}
	return nil
}

func splitAddr(a net.Addr) (net.IP, int) {
	switch a := a.(type) {
	case *net.TCPAddr:
		return a.IP, a.Port
	case *net.UDPAddr:
		return a.IP, a.Port
	default:
		return nil, 0
	}
}

func portBytes(port int) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, uint16(port))
	return b
}
