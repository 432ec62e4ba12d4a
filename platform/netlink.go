package platform

import (
	"fmt"

	"github.com/msgboxio/log"
	"github.com/vishvananda/netlink"
)

// NetlinkInstaller drives the kernel's XFRM state/policy tables via
// vishvananda/netlink, the way the retrieved pack's weave and cilium
// IPsec drivers do: one XfrmState per direction carrying the
// negotiated key, and one XfrmPolicy binding a traffic selector to it.
type NetlinkInstaller struct{}

func NewNetlinkInstaller() *NetlinkInstaller { return &NetlinkInstaller{} }

func (n *NetlinkInstaller) Install(p *SaParams) error {
	state := xfrmState(p)
	if err := netlink.XfrmStateAdd(state); err != nil {
		return fmt.Errorf("platform: xfrm state add: %w", err)
	}
	policy := xfrmPolicy(p)
	if err := netlink.XfrmPolicyAdd(policy); err != nil {
		return fmt.Errorf("platform: xfrm policy add: %w", err)
	}
	log.V(1).Infof("platform: installed esp spi=%#x %s -> %s", p.Spi, p.LocalAddr, p.RemoteAddr)
	return nil
}

func (n *NetlinkInstaller) Remove(p *SaParams) error {
	if err := netlink.XfrmPolicyDel(xfrmPolicy(p)); err != nil {
		log.Warningf("platform: xfrm policy del spi=%#x: %v", p.Spi, err)
	}
	if err := netlink.XfrmStateDel(xfrmState(p)); err != nil {
		return fmt.Errorf("platform: xfrm state del: %w", err)
	}
	log.V(1).Infof("platform: removed esp spi=%#x", p.Spi)
	return nil
}

func xfrmState(p *SaParams) *netlink.XfrmState {
	src, dst := p.LocalAddr, p.RemoteAddr
	if p.Direction == DirectionIn {
		src, dst = p.RemoteAddr, p.LocalAddr
	}
	state := &netlink.XfrmState{
		Src:          src,
		Dst:          dst,
		Proto:        netlink.XFRM_PROTO_ESP,
		Mode:         netlink.XFRM_MODE_TUNNEL,
		Spi:          int(p.Spi),
		ReplayWindow: int(p.ReplayWindow),
	}
	if p.EncrAlgo != "" {
		state.Crypt = &netlink.XfrmStateAlgo{Name: p.EncrAlgo, Key: p.EncrKey}
	}
	if p.AuthAlgo != "" {
		state.Auth = &netlink.XfrmStateAlgo{Name: p.AuthAlgo, Key: p.AuthKey}
	}
	return state
}

func xfrmPolicy(p *SaParams) *netlink.XfrmPolicy {
	dir := netlink.XFRM_DIR_OUT
	src, dst := p.LocalSubnet, p.RemoteSubnet
	if p.Direction == DirectionIn {
		dir = netlink.XFRM_DIR_IN
		src, dst = p.RemoteSubnet, p.LocalSubnet
	}
	tmplSrc, tmplDst := p.LocalAddr, p.RemoteAddr
	if p.Direction == DirectionIn {
		tmplSrc, tmplDst = p.RemoteAddr, p.LocalAddr
	}
	return &netlink.XfrmPolicy{
		Src: src,
		Dst: dst,
		Dir: dir,
		Tmpls: []netlink.XfrmPolicyTmpl{
			{
				Src:   tmplSrc,
				Dst:   tmplDst,
				Proto: netlink.XFRM_PROTO_ESP,
				Mode:  netlink.XFRM_MODE_TUNNEL,
				Spi:   int(p.Spi),
			},
		},
	}
}

// NullInstaller discards every call, for tests and for callers who
// drive their own kernel glue outside this engine.
type NullInstaller struct{}

func (NullInstaller) Install(p *SaParams) error { return nil }
func (NullInstaller) Remove(p *SaParams) error  { return nil }
