package ikecrypto

import (
	"context"
	"math/big"
)

// JobKind identifies what kind of background crypto work a Request
// asks for; the session suspends on Request and resumes on the
// matching Response arriving on Helper's channel.
type JobKind uint8

const (
	JobDiffieHellman JobKind = iota
	JobSign
	JobVerify
)

// Request is one unit of offloaded cryptographic work. Digest is an
// opaque token the caller attaches and gets back unchanged in the
// matching Response, letting the session correlate a completion to the
// suspended message it belongs to without the helper knowing anything
// about sessions.
type Request struct {
	Kind   JobKind
	Digest interface{}

	Suite   *OakleySuite
	Private *big.Int
	Peer    *big.Int // JobDiffieHellman: the other side's public value

	SignKey, SignData []byte // JobSign/JobVerify
	Signature         []byte // JobVerify only
}

// Response is the result of one Request, carried back with the same
// Digest the Request was submitted with.
type Response struct {
	Digest interface{}
	Shared *big.Int // JobDiffieHellman
	Out    []byte   // JobSign
	Valid  bool     // JobVerify
	Err    error
}

// Helper runs cryptographic work off the session's single-goroutine
// event loop: DH exponentiation and signature operations are expensive
// enough that running them inline would stall every other SA's message
// processing. This interface is the seam the ike package's Run()
// selects on alongside its other cases.
type Helper interface {
	// Submit enqueues a request; the result arrives later on Results().
	Submit(ctx context.Context, req Request)
	// Results returns the channel Responses are delivered on.
	Results() <-chan Response
}

// localHelper runs every request synchronously inline before replying
// on Results(), for tests and for callers not worried about blocking
// the calling goroutine on DH/signature math.
type localHelper struct {
	out chan Response
}

// NewLocalHelper returns a Helper that does real crypto work but
// without a background worker pool -- useful for unit tests that want
// deterministic, synchronous completions.
func NewLocalHelper() Helper {
	return &localHelper{out: make(chan Response, 1)}
}

func (h *localHelper) Submit(ctx context.Context, req Request) {
	resp := Response{Digest: req.Digest}
	switch req.Kind {
	case JobDiffieHellman:
		shared, err := req.Suite.SharedSecret(req.Peer, req.Private)
		resp.Shared, resp.Err = shared, err
	case JobSign:
		resp.Out = req.Suite.Prf(req.SignKey, req.SignData)
	case JobVerify:
		expect := req.Suite.Prf(req.SignKey, req.SignData)
		resp.Valid = constantTimeEqual(expect, req.Signature)
	}
	select {
	case h.out <- resp:
	case <-ctx.Done():
	}
}

func (h *localHelper) Results() <-chan Response { return h.out }

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
