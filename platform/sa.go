// Package platform describes the kernel IPsec SA/policy install
// contract the dispatcher drives when a Quick Mode negotiation
// completes: the shape of what gets installed and a narrow interface
// for doing it, so tests and embedders can supply their own.
// NetlinkInstaller programs the kernel's XFRM state and policy tables
// through netlink; NullInstaller does nothing.
package platform

import "net"

// Direction selects which half of a Quick Mode negotiation an SA
// install call is for.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
)

// SaParams is everything a kernel IPsec driver needs to install one
// ESP security association: endpoints, SPI, negotiated algorithms and
// keys, and the traffic selector it protects.
type SaParams struct {
	Direction Direction

	LocalAddr, RemoteAddr net.IP
	Spi                   uint32

	// EncrAlgo/AuthAlgo name the negotiated algorithms the way the
	// kernel's crypto API names them ("cbc(aes)", "hmac(sha256)"),
	// not the IKE transform id.
	EncrAlgo string
	EncrKey  []byte
	AuthAlgo string
	AuthKey  []byte

	// Selector: the traffic this SA protects.
	LocalSubnet, RemoteSubnet *net.IPNet

	ReplayWindow uint32
}

// Installer drives the kernel's IPsec SA/policy tables. The Session
// calls Install when a Quick Mode negotiation completes, one call per
// direction (installChildSa); nothing in the engine calls Remove.
type Installer interface {
	Install(p *SaParams) error
	Remove(p *SaParams) error
}
