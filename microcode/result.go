// Package microcode implements the table-driven IKEv1 state transition
// table: for each (from-state, auth-class) pair it records the payload
// grammar a message must satisfy, the state to advance to, the timer to
// arm, and which registered handler runs the transition's side effects.
package microcode

import "github.com/msgboxio/ikev1/protocol"

// Outcome is the result sum type a handler returns instead of a bare
// error; the dispatcher owns every side effect implied by it, replacing
// exception-like early returns with an explicit result value.
type Outcome uint8

const (
	Ok Outcome = iota
	Suspend
	Ignore
	Fail
	Fatal
	InternalError
)

func (o Outcome) String() string {
	switch o {
	case Ok:
		return "Ok"
	case Suspend:
		return "Suspend"
	case Ignore:
		return "Ignore"
	case Fail:
		return "Fail"
	case Fatal:
		return "Fatal"
	case InternalError:
		return "InternalError"
	default:
		return "Outcome(?)"
	}
}

// Result carries an Outcome plus, for Fail, the notification to send
// back to the peer.
type Result struct {
	Outcome Outcome
	Notify  protocol.NotificationType
}

func ResultOk() Result             { return Result{Outcome: Ok} }
func ResultSuspend() Result        { return Result{Outcome: Suspend} }
func ResultIgnore() Result         { return Result{Outcome: Ignore} }
func ResultFatal() Result          { return Result{Outcome: Fatal} }
func ResultInternalError() Result  { return Result{Outcome: InternalError} }
func ResultFail(n protocol.NotificationType) Result {
	return Result{Outcome: Fail, Notify: n}
}
