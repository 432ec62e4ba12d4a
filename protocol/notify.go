package protocol

import "github.com/msgboxio/packets"

/*
    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   |  Protocol ID  |   SPI Size    |      Notify Message Type      |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   ~                Security Parameter Index (SPI)                 ~
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   ~                       Notification Data                       ~
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
type NotifyPayload struct {
	*PayloadHeader
	ProtocolId       ProtocolId
	NotificationType NotificationType
	Spi              []byte
	Data             []byte
}

func (s *NotifyPayload) Type() PayloadType { return PayloadTypeN }

func (s *NotifyPayload) Encode() []byte {
	b := make([]byte, 4)
	packets.WriteB8(b, 0, uint8(s.ProtocolId))
	packets.WriteB8(b, 1, uint8(len(s.Spi)))
	packets.WriteB16(b, 2, uint16(s.NotificationType))
	b = append(b, s.Spi...)
	b = append(b, s.Data...)
	return b
}

func (s *NotifyPayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ErrF(PAYLOAD_MALFORMED, "notify payload shorter than 4 bytes")
	}
	pid, _ := packets.ReadB8(b, 0)
	s.ProtocolId = ProtocolId(pid)
	spiLen, _ := packets.ReadB8(b, 1)
	if len(b) < 4+int(spiLen) {
		return ErrF(PAYLOAD_MALFORMED, "notify payload spi truncated")
	}
	nt, _ := packets.ReadB16(b, 2)
	s.NotificationType = NotificationType(nt)
	s.Spi = append([]byte{}, b[4:4+int(spiLen)]...)
	s.Data = append([]byte{}, b[4+int(spiLen):]...)
	return nil
}
