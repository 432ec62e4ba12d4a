package protocol

import "github.com/msgboxio/packets"

/*
    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   | Next Payload  |   RESERVED    |         Payload Length        |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   | Fragment ID   | Frag Number   |  Flags        |RESERVED2      |
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
   ~                        Fragment Data                          ~
   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
const fragLastFlag = 1

// FragmentPayload is the vendor fragmentation extension: a multi-part
// message carries fragment index 1..N (N <= 16) with the last
// fragment's Flags byte marked, all sharing one FragmentId so the
// reassembler can tell apart concurrently fragmented messages.
type FragmentPayload struct {
	*PayloadHeader
	FragmentId uint8
	Number     uint8
	Last       bool
	Data       []byte
}

func (s *FragmentPayload) Type() PayloadType { return PayloadTypeFRAG }

func (s *FragmentPayload) Encode() []byte {
	b := make([]byte, 4)
	packets.WriteB8(b, 0, s.FragmentId)
	packets.WriteB8(b, 1, s.Number)
	if s.Last {
		packets.WriteB8(b, 2, fragLastFlag)
	}
	return append(b, s.Data...)
}

func (s *FragmentPayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ErrF(PAYLOAD_MALFORMED, "fragment payload shorter than 4 bytes")
	}
	s.FragmentId, _ = packets.ReadB8(b, 0)
	s.Number, _ = packets.ReadB8(b, 1)
	if s.Number < 1 || s.Number > 16 {
		return ErrF(PAYLOAD_MALFORMED, "fragment number %d out of range", s.Number)
	}
	flags, _ := packets.ReadB8(b, 2)
	s.Last = flags&fragLastFlag != 0
	s.Data = append([]byte{}, b[4:]...)
	return nil
}
