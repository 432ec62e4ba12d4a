package microcode

import "github.com/msgboxio/ikev1/protocol"

// Exchange is the narrow view of an in-progress message exchange a
// handler function needs: the inbound header and payload chain, the
// matched transition, and a place to stash outbound payloads. The
// concrete implementation (an IKE SA and its connection) lives in the
// parent ike package -- this package only describes the shape, so it
// never has to import it.
type Exchange interface {
	// Header returns the decoded ISAKMP header of the inbound message.
	Header() *protocol.IkeHeader

	// Payloads returns the decoded payload chain of the inbound message.
	Payloads() *protocol.PayloadChain

	// Transition returns the table row the dispatcher matched before
	// invoking the handler.
	Transition() *Transition

	// AddPayload appends a payload to the outbound message under
	// construction, in the order handlers add them.
	AddPayload(p protocol.Payload)
}

// HandlerFunc runs the side effects of one matched transition and
// reports what happened; the dispatcher (in the ike package) owns
// turning a Result into wire bytes, timer arming, and state mutation.
type HandlerFunc func(ex Exchange) Result

var handlers = map[HandlerID]HandlerFunc{}

// RegisterHandler binds id, one of the HandlerID constants a Transition
// names, to the function that implements it. Called from the ike
// package's init so the table (built here, in this package's own init)
// and the handler implementations (which must not be imported here,
// to avoid a cycle) can be wired together without either package
// depending on the other's internals.
func RegisterHandler(id HandlerID, fn HandlerFunc) {
	handlers[id] = fn
}

// Handler returns the function registered for id, or (nil, false) if
// nothing has registered yet -- the caller should treat that as an
// InternalError result rather than a nil-pointer panic.
func Handler(id HandlerID) (HandlerFunc, bool) {
	fn, ok := handlers[id]
	return fn, ok
}

// unexpected is pre-registered for HandlerUnexpected: every Table row
// that reaches a terminal/self-loop state with no real work left to do
// names this handler, and it has no dependency on the ike package.
func init() {
	RegisterHandler(HandlerUnexpected, func(ex Exchange) Result {
		return ResultFail(protocol.INVALID_EXCHANGE_TYPE)
	})
}
