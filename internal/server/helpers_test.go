package server

import (
	"net"
	"net/netip"

	"skirmish/internal/session"
)

type discardPeer struct{}

func (discardPeer) Enqueue([]byte) bool { return true }

func sessionConn(conn net.Conn) session.FrameConn {
	return session.NewStreamConn(conn, 0, 0)
}

func mustAddr(s string) netip.AddrPort {
	return netip.MustParseAddrPort(s)
}
