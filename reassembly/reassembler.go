// Package reassembly buffers vendor-fragmentation payloads per IKE SA
// and releases the concatenated message once every fragment has
// arrived, so the rest of the engine never sees a fragmented datagram.
package reassembly

import (
	"fmt"

	"github.com/msgboxio/ikev1/protocol"
	"github.com/msgboxio/log"
)

const maxFragments = 16

// entry is one buffered fragment, kept around only until its message
// is complete or replaced by a duplicate-indexed fragment.
type entry struct {
	last bool
	data []byte
}

// Reassembler holds the in-progress fragments for a single IKE SA. It
// is not safe for concurrent use; callers serialize access the way the
// rest of the per-SA state is serialized (the session's single event
// loop).
type Reassembler struct {
	id    uint8
	have  bool
	slots [maxFragments + 1]*entry // 1-indexed, slots[0] unused
	last  uint8                    // index carrying the last-flag, 0 if not yet seen
}

// New returns an empty reassembler.
func New() *Reassembler { return &Reassembler{} }

// Add buffers one fragment payload. It returns the concatenated
// message body once the fragment set is complete, or nil while more
// fragments are still expected. A fragment belonging to a different
// FragmentId than the one currently in progress resets the buffer --
// peers don't interleave two fragmented messages on one SA, and if one
// does, the newer id wins, consistent with how other per-SA transient
// state (e.g. a suspended message waiting on a crypto helper) is kept:
// newest replaces oldest rather than queuing.
func (r *Reassembler) Add(f *protocol.FragmentPayload) ([]byte, error) {
	if f.Number < 1 || f.Number > maxFragments {
		return nil, protocol.ErrF(protocol.PAYLOAD_MALFORMED, "fragment number %d out of range", f.Number)
	}
	if r.have && f.FragmentId != r.id {
		log.V(1).Infof("reassembly: fragment id changed %d -> %d, discarding in-progress set", r.id, f.FragmentId)
		r.reset()
	}
	r.have = true
	r.id = f.FragmentId
	if r.slots[f.Number] != nil {
		log.V(2).Infof("reassembly: replacing duplicate fragment %d/%d", f.FragmentId, f.Number)
	}
	r.slots[f.Number] = &entry{last: f.Last, data: f.Data}
	if f.Last {
		r.last = f.Number
	}
	if r.last == 0 {
		return nil, nil
	}
	for i := uint8(1); i <= r.last; i++ {
		if r.slots[i] == nil {
			return nil, nil
		}
	}
	body := r.concat()
	r.reset()
	return body, nil
}

func (r *Reassembler) concat() []byte {
	var b []byte
	for i := uint8(1); i <= r.last; i++ {
		b = append(b, r.slots[i].data...)
	}
	return b
}

func (r *Reassembler) reset() {
	*r = Reassembler{}
}

// Discard drops f without buffering it (logged at V(2)), for SAs whose
// connection policy disallows fragmentation; fragments already buffered
// are left as they are.
func (r *Reassembler) Discard(f *protocol.FragmentPayload) {
	log.V(2).Infof("reassembly: dropping fragment %d/%d, fragmentation disabled for this SA", f.FragmentId, f.Number)
}

func (r *Reassembler) String() string {
	return fmt.Sprintf("Reassembler{id=%d last=%d}", r.id, r.last)
}
