package ike

import (
	"context"
	"net"
	"testing"

	kitlog "github.com/go-kit/kit/log"
	"github.com/stretchr/testify/require"

	"github.com/msgboxio/ikev1/ikecrypto"
	"github.com/msgboxio/ikev1/protocol"
)

func testSession(t *testing.T) *Session {
	t.Helper()
	conn := &Connection{
		LocalAddr:  &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: protocol.IKE_PORT},
		RemoteAddr: &net.UDPAddr{IP: net.ParseIP("127.0.0.2"), Port: protocol.IKE_PORT},
		Config:     DefaultConfig(),
	}
	s := NewSession(context.Background(), conn, false, ikecrypto.NewLocalHelper(), kitlog.NewNopLogger())
	s.IkeSpiI = protocol.Spi([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	s.IkeSpiR = protocol.Spi([]byte{8, 7, 6, 5, 4, 3, 2, 1})
	return s
}

func encodedFragment(id, number uint8, last bool, data []byte) []byte {
	p := &protocol.FragmentPayload{
		PayloadHeader: &protocol.PayloadHeader{},
		FragmentId:    id,
		Number:        number,
		Last:          last,
		Data:          data,
	}
	body := p.Encode()
	return append(protocol.EncodePayloadHeader(protocol.PayloadTypeNone, len(body)), body...)
}

func fragmentMessage(s *Session, id, number uint8, last bool, data []byte) *Message {
	h := &protocol.IkeHeader{
		IcookieSpi: s.IkeSpiI, RcookieSpi: s.IkeSpiR,
		ExchangeType: protocol.EXCHANGE_QUICK,
		NextPayload:  protocol.PayloadTypeFRAG,
		Flags:        protocol.FLAG_ENCRYPTION,
		MsgId:        0xAABBCCDD,
	}
	body := encodedFragment(id, number, last, data)
	return &Message{IkeHeader: h, Raw: append(h.Encode(), body...)}
}

// Interleaved fragment delivery reassembles to the in-order concatenation,
// the literal property scenario 5 describes.
func TestReassembleFragmentInterleaved(t *testing.T) {
	s := testSession(t)

	order := []struct {
		num  uint8
		last bool
		data []byte
	}{
		{2, false, []byte("BBBB")},
		{4, true, []byte("DDDD")},
		{1, false, []byte("AAAA")},
		{3, false, []byte("CCCC")},
	}

	var reassembled *Message
	for i, f := range order {
		m := fragmentMessage(s, 7, f.num, f.last, f.data)
		got, err := s.reassembleFragment(m)
		require.NoError(t, err)
		if i != len(order)-1 {
			require.Nil(t, got)
			continue
		}
		reassembled = got
	}

	require.NotNil(t, reassembled)
	require.Equal(t, protocol.PayloadTypeHASH, reassembled.IkeHeader.NextPayload)
	require.Equal(t, []byte("AAAABBBBCCCCDDDD"), reassembled.Body())
}

func TestReassembleFragmentDisabledDiscards(t *testing.T) {
	s := testSession(t)
	s.Conn.Config.DisableFragmentation = true

	m := fragmentMessage(s, 1, 1, true, []byte("data"))
	got, err := s.reassembleFragment(m)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestReassembleFragmentBadNumberMalformed(t *testing.T) {
	s := testSession(t)
	m := fragmentMessage(s, 1, 0, false, []byte("data"))
	_, err := s.reassembleFragment(m)
	require.Error(t, err)
}

func TestValidateExchangeHeaderMainModeRejectsNonZeroMsgid(t *testing.T) {
	m := &Message{IkeHeader: &protocol.IkeHeader{ExchangeType: protocol.EXCHANGE_IDPROT, MsgId: 5}}
	err := validateExchangeHeader(m)
	require.Error(t, err)
	ie, ok := err.(protocol.IkeError)
	require.True(t, ok)
	require.Equal(t, protocol.INVALID_MESSAGE_ID, ie.NotificationType)
}

func TestValidateExchangeHeaderQuickRejectsZeroMsgid(t *testing.T) {
	m := &Message{IkeHeader: &protocol.IkeHeader{ExchangeType: protocol.EXCHANGE_QUICK, MsgId: 0}}
	err := validateExchangeHeader(m)
	require.Error(t, err)
	ie, ok := err.(protocol.IkeError)
	require.True(t, ok)
	require.Equal(t, protocol.INVALID_MESSAGE_ID, ie.NotificationType)
}

func TestValidateExchangeHeaderUnsupportedExchangeType(t *testing.T) {
	m := &Message{IkeHeader: &protocol.IkeHeader{ExchangeType: protocol.EXCHANGE_NEW_GROUP}}
	err := validateExchangeHeader(m)
	require.Error(t, err)
	ie, ok := err.(protocol.IkeError)
	require.True(t, ok)
	require.Equal(t, protocol.UNSUPPORTED_EXCHANGE_TYPE, ie.NotificationType)
}

func TestValidateExchangeHeaderAcceptsWellFormed(t *testing.T) {
	require.NoError(t, validateExchangeHeader(&Message{IkeHeader: &protocol.IkeHeader{
		ExchangeType: protocol.EXCHANGE_IDPROT, MsgId: 0,
	}}))
	require.NoError(t, validateExchangeHeader(&Message{IkeHeader: &protocol.IkeHeader{
		ExchangeType: protocol.EXCHANGE_QUICK, MsgId: 1,
	}}))
	require.NoError(t, validateExchangeHeader(&Message{IkeHeader: &protocol.IkeHeader{
		ExchangeType: protocol.EXCHANGE_INFO, MsgId: 0,
	}}))
}

func TestDiscardQuickModeChildRemovesSubState(t *testing.T) {
	s := testSession(t)
	s.subState[42] = protocol.QUICK_R0
	m := &Message{IkeHeader: &protocol.IkeHeader{ExchangeType: protocol.EXCHANGE_QUICK, MsgId: 42}}
	s.discardQuickModeChild(m)
	_, ok := s.subState[42]
	require.False(t, ok)
}

// sendNotifyForPlaintext must silently drop encrypted-message failures
// rather than echo a notification back to the peer.
func TestSendNotifyForPlaintextDropsWhenEncrypted(t *testing.T) {
	s := testSession(t)
	m := &Message{IkeHeader: &protocol.IkeHeader{Flags: protocol.FLAG_ENCRYPTION}}
	err := s.sendNotifyForPlaintext(m, protocol.ErrF(protocol.INVALID_HASH_INFORMATION, "mismatch"))
	require.Error(t, err)
	require.Nil(t, s.lastSent)
}
