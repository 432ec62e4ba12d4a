package protocol

// PayloadChain collects decoded payloads two ways: Order preserves wire
// arrival order (needed for re-encoding and for handlers that care
// about position, e.g. first HASH vs subsequent ones in Informational
// exchanges), and ByType groups same-typed payloads into an ordered
// slice instead of the single-slot overwrite the naive "map type ->
// payload" container would do -- IKEv1 legitimately repeats SA/ID/NONCE
// (Quick Mode has two IDs) and Notify/Delete (several per message), so
// overwrite-by-type would silently drop all but the last one.
type PayloadChain struct {
	Order  []Payload
	ByType map[PayloadType][]Payload
}

func NewPayloadChain() *PayloadChain {
	return &PayloadChain{ByType: make(map[PayloadType][]Payload)}
}

func (c *PayloadChain) Add(p Payload) {
	c.Order = append(c.Order, p)
	c.ByType[p.Type()] = append(c.ByType[p.Type()], p)
}

// First returns the first payload of type t, or nil if none arrived.
func (c *PayloadChain) First(t PayloadType) Payload {
	l := c.ByType[t]
	if len(l) == 0 {
		return nil
	}
	return l[0]
}

// All returns every payload of type t in arrival order.
func (c *PayloadChain) All(t PayloadType) []Payload {
	return c.ByType[t]
}

// PresentTypes returns the bitmask of payload types that arrived, for
// the required/optional mask check.
func (c *PayloadChain) PresentTypes() PayloadSet {
	var m PayloadSet
	for t, l := range c.ByType {
		if len(l) > 0 {
			m = m.Add(t)
		}
	}
	return m
}

// constructors maps a canonical payload type to a fresh zero-value body
// the decoder will call Decode on. Phase 2 ID decoding is handled by the
// caller (the ID payload's shape depends on exchange type, something
// this package-local table has no way to express) via decodeWithPhase2Id.
var constructors = map[PayloadType]func(*PayloadHeader) Payload{
	PayloadTypeSA:   func(h *PayloadHeader) Payload { return &SaPayload{PayloadHeader: h} },
	PayloadTypeKE:   func(h *PayloadHeader) Payload { return &KePayload{PayloadHeader: h} },
	PayloadTypeID:   func(h *PayloadHeader) Payload { return &IdPayload{PayloadHeader: h} },
	PayloadTypeCERT: func(h *PayloadHeader) Payload { return &CertPayload{PayloadHeader: h} },
	PayloadTypeCR:   func(h *PayloadHeader) Payload { return &CertRequestPayload{PayloadHeader: h} },
	PayloadTypeHASH: func(h *PayloadHeader) Payload { return &HashPayload{PayloadHeader: h} },
	PayloadTypeSIG:  func(h *PayloadHeader) Payload { return &SigPayload{PayloadHeader: h} },
	PayloadTypeNONCE: func(h *PayloadHeader) Payload { return &NoncePayload{PayloadHeader: h} },
	PayloadTypeN:    func(h *PayloadHeader) Payload { return &NotifyPayload{PayloadHeader: h} },
	PayloadTypeD:    func(h *PayloadHeader) Payload { return &DeletePayload{PayloadHeader: h} },
	PayloadTypeVID:  func(h *PayloadHeader) Payload { return &VendorIdPayload{PayloadHeader: h} },
	PayloadTypeATTR: func(h *PayloadHeader) Payload { return &CfgPayload{PayloadHeader: h} },
	PayloadTypeFRAG: func(h *PayloadHeader) Payload { return &FragmentPayload{PayloadHeader: h} },
}

// DecodePayloadChain walks the generic-payload-header-linked chain
// starting at first, decoding each body against b (the bytes following
// the fixed ISAKMP header -- already decrypted, if encryption was in
// effect, by the caller). usePhase2Id selects Phase2IdPayload instead
// of IdPayload for ID payloads, since Quick Mode's ID shape differs
// from Main/Aggressive Mode's.
func DecodePayloadChain(first PayloadType, b []byte, usePhase2Id bool) (*PayloadChain, error) {
	chain := NewPayloadChain()
	next := first
	for next != PayloadTypeNone {
		if len(b) < PAYLOAD_HEADER_LENGTH {
			return nil, ErrF(PAYLOAD_MALFORMED, "truncated payload header")
		}
		hdr := &PayloadHeader{}
		if err := hdr.Decode(b[:PAYLOAD_HEADER_LENGTH]); err != nil {
			return nil, err
		}
		if int(hdr.PayloadLength) < PAYLOAD_HEADER_LENGTH || len(b) < int(hdr.PayloadLength) {
			return nil, ErrF(PAYLOAD_MALFORMED, "bad payload length %d", hdr.PayloadLength)
		}
		wireType := next
		canonical := CanonicalPayloadType(wireType)
		body := b[PAYLOAD_HEADER_LENGTH:hdr.PayloadLength]
		if canonical != PayloadTypeNone {
			var payload Payload
			if canonical == PayloadTypeID && usePhase2Id {
				payload = &Phase2IdPayload{PayloadHeader: hdr}
			} else if ctor, ok := constructors[canonical]; ok {
				payload = ctor(hdr)
			} else {
				return nil, ErrF(INVALID_PAYLOAD_TYPE, "unknown payload type %s", wireType)
			}
			if err := payload.Decode(body); err != nil {
				return nil, err
			}
			chain.Add(payload)
		}
		next = hdr.NextPayload
		b = b[hdr.PayloadLength:]
	}
	if len(b) != 0 {
		return nil, ErrF(PAYLOAD_MALFORMED, "trailing bytes after last payload")
	}
	return chain, nil
}

// EncodePayloadChain serializes payloads in Order, threading each
// one's NextPayload pointer to the following entry's wire type (or
// PayloadTypeNone for the last one).
func EncodePayloadChain(chain *PayloadChain) []byte {
	var b []byte
	for i, p := range chain.Order {
		next := PayloadTypeNone
		if i+1 < len(chain.Order) {
			next = chain.Order[i+1].Type()
		}
		body := p.Encode()
		b = append(b, EncodePayloadHeader(next, len(body))...)
		b = append(b, body...)
	}
	return b
}
