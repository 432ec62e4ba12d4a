package ike

import (
	"errors"
	"net"

	"github.com/msgboxio/log"

	"github.com/msgboxio/ikev1/protocol"
)

// Config is the caller-supplied policy for one IKE engine instance:
// the acceptable Oakley (Phase 1) and ESP (Phase 2) transform sets, the
// configured traffic selectors, and the handful of threshold/workaround
// knobs that aren't in any RFC and have to come from somewhere. Loading
// this from a file, a policy DSL, or an admin socket is out of scope --
// callers build one of these directly.
type Config struct {
	ProposalsIke []*protocol.SaTransform
	ProposalsEsp []*protocol.SaTransform

	IsTransportMode bool

	PresharedKey []byte

	// MaximumMalformedNotify bounds how many malformed inbound messages
	// an SA tolerates before countMalformed tears it down; the count
	// covers the SA's whole life and is never reset. The conventional default matches long-standing libreswan
	// practice; no RFC defines this number.
	MaximumMalformedNotify int

	// MaximumAcceptedDuplicates bounds how many times a duplicate
	// request is answered with a cached retransmit before the
	// duplicate controller stops responding and only logs.
	MaximumAcceptedDuplicates int

	// DisableFragmentation makes a Session silently discard vendor
	// fragmentation payloads instead of reassembling them, for peers
	// whose policy disallows fragmented messages.
	DisableFragmentation bool
}

// DefaultConfig returns a Config accepting one conventional Phase 1 and
// one conventional Phase 2 transform: AES-CBC/SHA1/MODP1024 for Oakley,
// ESP-AES/HMAC-SHA1 for the child SA.
func DefaultConfig() *Config {
	return &Config{
		ProposalsIke: []*protocol.SaTransform{defaultOakleyTransform()},
		ProposalsEsp: []*protocol.SaTransform{defaultEspTransform()},

		MaximumMalformedNotify:    16,
		MaximumAcceptedDuplicates: 2,
	}
}

func defaultOakleyTransform() *protocol.SaTransform {
	return &protocol.SaTransform{
		Number:      1,
		TransformId: 1, // KEY_IKE
		Attributes: []*protocol.TransformAttribute{
			{Type: uint16(protocol.OAKLEY_ENCRYPTION_ALGORITHM), Value: uint16(protocol.OAKLEY_AES_CBC)},
			{Type: uint16(protocol.OAKLEY_HASH_ALGORITHM), Value: uint16(protocol.OAKLEY_SHA)},
			{Type: uint16(protocol.OAKLEY_GROUP_DESCRIPTION), Value: uint16(protocol.OAKLEY_GROUP_MODP_1024)},
			{Type: uint16(protocol.OAKLEY_AUTHENTICATION_METHOD), Value: uint16(protocol.SHARED_KEY_MESSAGE_INTEGRITY_CODE)},
			{Type: uint16(protocol.OAKLEY_KEY_LENGTH), Value: 128},
		},
	}
}

func defaultEspTransform() *protocol.SaTransform {
	return &protocol.SaTransform{
		Number:      1,
		TransformId: uint8(protocol.ESP_AES),
		Attributes: []*protocol.TransformAttribute{
			{Type: uint16(protocol.IPSEC_KEY_LENGTH), Value: 128},
			{Type: uint16(protocol.IPSEC_AUTH_ALGORITHM), Value: uint16(protocol.IPSEC_AUTH_HMAC_SHA)},
			{Type: uint16(protocol.IPSEC_ENCAPSULATION_MODE), Value: protocol.ENCAPSULATION_MODE_TUNNEL},
		},
	}
}

var errNoAcceptableProposal = errors.New("ike: acceptable proposal is missing")

// attrsSubsetOf reports whether every attribute in want also appears in
// have with the same value -- a peer is allowed to offer attributes we
// don't care about (e.g. a lifetime), but every attribute we require
// must be present and match.
func attrsSubsetOf(want, have []*protocol.TransformAttribute) bool {
	for _, w := range want {
		ok := false
		for _, h := range have {
			if h.Type == w.Type && h.Value == w.Value {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func transformAcceptable(accepted, offered *protocol.SaTransform) bool {
	if accepted.TransformId != offered.TransformId {
		return false
	}
	return attrsSubsetOf(accepted.Attributes, offered.Attributes)
}

// selectProposal walks the peer's numbered proposals for the given
// protocol, returning the first one containing a transform this
// configuration accepts -- first acceptable wins, rather than
// best-of-all, matching the "accept the first match" ordering of a
// table-scanning negotiation.
func selectProposal(prot protocol.ProtocolId, proposals []*protocol.SaProposal, accepted []*protocol.SaTransform) (*protocol.SaProposal, *protocol.SaTransform, bool) {
	for _, prop := range proposals {
		if prop.ProtocolId != prot {
			continue
		}
		for _, offered := range prop.Transforms {
			for _, want := range accepted {
				if transformAcceptable(want, offered) {
					return prop, offered, true
				}
			}
		}
	}
	return nil, nil, false
}

// CheckIkeProposal selects an acceptable Oakley transform from the
// peer's Phase 1 SA payload, returning the chosen proposal and
// transform so the caller can echo them back narrowed to one choice.
func (cfg *Config) CheckIkeProposal(sa *protocol.SaPayload) (*protocol.SaProposal, *protocol.SaTransform, error) {
	prop, tr, ok := selectProposal(protocol.PROTO_ISAKMP, sa.Proposals, cfg.ProposalsIke)
	if !ok {
		return nil, nil, errNoAcceptableProposal
	}
	return prop, tr, nil
}

// CheckEspProposal selects an acceptable ESP transform from a Quick
// Mode SA payload.
func (cfg *Config) CheckEspProposal(sa *protocol.SaPayload) (*protocol.SaProposal, *protocol.SaTransform, error) {
	prop, tr, ok := selectProposal(protocol.PROTO_IPSEC_ESP, sa.Proposals, cfg.ProposalsEsp)
	if !ok {
		return nil, nil, errNoAcceptableProposal
	}
	return prop, tr, nil
}

// NarrowedSaPayload rebuilds an SA payload carrying exactly one
// proposal/transform -- what a responder echoes back once it has
// picked the single acceptable choice out of everything the initiator
// offered.
func NarrowedSaPayload(prot protocol.ProtocolId, spi []byte, tr *protocol.SaTransform) *protocol.SaPayload {
	return &protocol.SaPayload{
		Doi:       protocol.IPSEC_DOI,
		Situation: protocol.SIT_IDENTITY_ONLY,
		Proposals: []*protocol.SaProposal{{
			Number:     1,
			ProtocolId: prot,
			Spi:        append([]byte{}, spi...),
			Transforms: []*protocol.SaTransform{tr},
		}},
	}
}

// Connection is the long-lived policy and endpoint state shared by
// every Phase 1 (and its child Phase 2) SA negotiated between one pair
// of peers. It is shared by reference across the SAs that use it, so a
// mutation -- e.g. a CISCO_LOAD_BALANCE redirect rewriting RemoteAddr --
// is visible to every sibling SA on its next send, not just the one
// that received the notification.
type Connection struct {
	LocalAddr, RemoteAddr *net.UDPAddr

	Config *Config

	LocalID, RemoteID *protocol.IdPayload

	LocalTs, RemoteTs []*protocol.Phase2IdPayload

	// DeferQuickModeUntilModeCfg implements the SOFTREMOTE_CLIENT_WORKAROUND
	// compatibility behavior: some old Cisco/SoftRemote-compatible peers
	// send their first Quick Mode request before Mode-Config has
	// finished, and expect the responder to hold it rather than reject
	// it outright. Off by default; a deployment that talks to one of
	// those peers turns it on for that Connection.
	DeferQuickModeUntilModeCfg bool

	// XauthServer/XauthClient and ModeCfgServer/ModeCfgClient select this
	// Connection's role in the Transaction (Phase 1.5) exchange: which
	// side is expected to send the first CFG_REQUEST of a never-seen
	// exchange, for XAUTH and Mode-Config independently, since a
	// deployment can run either side of either one. A gateway is
	// conventionally both servers, pushing XAUTH_TYPE then
	// INTERNAL_IP4_ADDRESS at a client that is both clients.
	XauthServer, XauthClient     bool
	ModeCfgServer, ModeCfgClient bool

	// XauthAuthenticator validates a submitted username/password when
	// this Connection is a XAUTH server. Nil rejects every attempt.
	XauthAuthenticator func(username, password string) bool

	// InternalAddress supplies the attributes a Mode-Config server
	// pushes back for a CFG_REQUEST. Nil replies with an empty CFG_REPLY.
	InternalAddress *InternalAddress
}

// InternalAddress is the internal-network configuration a Mode-Config
// server hands a client: its tunnel address, netmask, and resolver.
type InternalAddress struct {
	Address, Netmask, Dns net.IP
}

// MatchesEndpoint reports whether addr is the peer this connection
// negotiates with (same IP and port). Nothing in the engine calls it:
// the demultiplexer keys Connections by remote address string
// (addrKey).
func (c *Connection) MatchesEndpoint(addr *net.UDPAddr) bool {
	return c.RemoteAddr != nil && c.RemoteAddr.IP.Equal(addr.IP) && c.RemoteAddr.Port == addr.Port
}

// Redirect rewrites the connection's remote endpoint, the mutation
// CISCO_LOAD_BALANCE triggers. Logged because it silently changes where
// every subsequent message for every SA on this Connection is sent.
func (c *Connection) Redirect(newAddr *net.UDPAddr) {
	log.Infof("ike: connection %s -> %s redirected to %s", c.LocalAddr, c.RemoteAddr, newAddr)
	c.RemoteAddr = newAddr
}

// SelectorFromIPNet builds the Phase 2 ID payload pair IKE uses as a
// Quick Mode traffic selector for IPv4 subnets with no protocol/port
// restriction (the common site-to-site case).
func SelectorFromIPNet(n *net.IPNet) *protocol.Phase2IdPayload {
	idType := protocol.ID_IPV4_ADDR_SUBNET
	ones, bits := n.Mask.Size()
	data := append([]byte{}, n.IP.To4()...)
	mask := net.CIDRMask(ones, bits)
	data = append(data, mask...)
	return &protocol.Phase2IdPayload{IdType: idType, Data: data}
}
