package platform

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNullInstallerIsNoOp(t *testing.T) {
	var inst Installer = NullInstaller{}
	p := &SaParams{
		LocalAddr:  net.ParseIP("10.0.0.1"),
		RemoteAddr: net.ParseIP("10.0.0.2"),
		Spi:        0x1234,
	}
	require.NoError(t, inst.Install(p))
	require.NoError(t, inst.Remove(p))
}

func TestXfrmStateDirectionSwapsEndpoints(t *testing.T) {
	p := &SaParams{
		Direction:  DirectionIn,
		LocalAddr:  net.ParseIP("10.0.0.1"),
		RemoteAddr: net.ParseIP("10.0.0.2"),
		Spi:        7,
		EncrAlgo:   "cbc(aes)",
		EncrKey:    make([]byte, 16),
	}
	st := xfrmState(p)
	require.True(t, st.Src.Equal(p.RemoteAddr))
	require.True(t, st.Dst.Equal(p.LocalAddr))
	require.Equal(t, 7, st.Spi)
}
