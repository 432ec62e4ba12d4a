package microcode

import (
	"fmt"

	"github.com/msgboxio/ikev1/protocol"
)

type HashType uint8

const (
	HashNone HashType = iota
	V1_HASH_1
	V1_HASH_2
	V1_HASH_3
)

type TimerEvent uint8

const (
	TimerNull TimerEvent = iota
	TimerRetransmit
	TimerSaReplace
	TimerSoDiscard
)

// Flags bits for the Transition tuple.
type Flags uint16

const (
	FlagInitiator Flags = 1 << iota
	FlagReply
	FlagInputEncrypted
	FlagOutputEncrypted
	FlagFirstEncryptedInput
	FlagRetransmitOnDuplicate
	FlagReleasePendingP2
	FlagXauthAuth
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// HandlerID names a registered handler function (see RegisterHandler/
// Handler in dispatch.go); the table stores ids rather than func values so the
// table can be built, and validated, before any handler package has
// registered anything -- init-order independent, the way database/sql
// drivers register against a name rather than a live object.
type HandlerID string

const (
	HandlerUnexpected   HandlerID = "unexpected"
	HandlerMainMode     HandlerID = "main_mode"
	HandlerAggrMode     HandlerID = "aggr_mode"
	HandlerQuickMode    HandlerID = "quick_mode"
	HandlerInformational HandlerID = "informational"
	HandlerXauth        HandlerID = "xauth"
	HandlerModeCfg      HandlerID = "mode_cfg"
)

// Transition is one immutable row of the microcode table.
type Transition struct {
	FromState   protocol.FromState
	ToState     protocol.FromState
	AuthClass   protocol.AuthClass
	ReqPayloads protocol.PayloadSet
	OptPayloads protocol.PayloadSet
	Timer       TimerEvent
	Handler     HandlerID
	HashType    HashType
	Flags       Flags
}

// selfLoop reports a transition that keeps the SA in its current state,
// the explicit replacement for an UNDEFINED next-state sentinel.
func selfLoop(t Transition) Transition {
	t.ToState = t.FromState
	return t
}

// Table is the ordered, immutable set of accepted (from_state,
// auth-class) transitions. Construction-time validation (ValidateTable)
// enforces its structural invariants.
var Table []Transition

// firstEntry indexes the first Table row for a given from_state, so
// Lookup can start its linear auth-class scan there.
var firstEntry = map[protocol.FromState]int{}

func init() {
	Table = buildTable()
	for i, t := range Table {
		if _, ok := firstEntry[t.FromState]; !ok {
			firstEntry[t.FromState] = i
		}
	}
	if err := ValidateTable(Table); err != nil {
		panic("microcode: invalid table: " + err.Error())
	}
}

func buildTable() []Transition {
	sa := protocol.MaskOf(protocol.PayloadTypeSA)
	ke := protocol.MaskOf(protocol.PayloadTypeKE)
	nonce := protocol.MaskOf(protocol.PayloadTypeNONCE)
	id := protocol.MaskOf(protocol.PayloadTypeID)
	hash := protocol.MaskOf(protocol.PayloadTypeHASH)
	optExtras := protocol.MaskOf(protocol.PayloadTypeVID, protocol.PayloadTypeN, protocol.PayloadTypeCERT, protocol.PayloadTypeCR, protocol.PayloadTypeNATD_RFC, protocol.PayloadTypeNATOA_RFC)

	var t []Transition

	// --- Main Mode ---------------------------------------------------
	t = append(t,
		Transition{FromState: protocol.MAIN_R0, ToState: protocol.MAIN_R1, AuthClass: protocol.AUTH_CLASS_ANY,
			ReqPayloads: sa, OptPayloads: optExtras, Timer: TimerSoDiscard, Handler: HandlerMainMode},
		Transition{FromState: protocol.MAIN_I1, ToState: protocol.MAIN_I2, AuthClass: protocol.AUTH_CLASS_ANY,
			ReqPayloads: sa, OptPayloads: optExtras, Timer: TimerRetransmit, Handler: HandlerMainMode, Flags: FlagInitiator | FlagReply},
		Transition{FromState: protocol.MAIN_R1, ToState: protocol.MAIN_R2, AuthClass: protocol.AUTH_CLASS_ANY,
			ReqPayloads: ke | nonce, OptPayloads: optExtras, Timer: TimerRetransmit, Handler: HandlerMainMode,
			Flags: FlagReply | FlagRetransmitOnDuplicate},
		Transition{FromState: protocol.MAIN_I2, ToState: protocol.MAIN_I3, AuthClass: protocol.AUTH_CLASS_ANY,
			ReqPayloads: ke | nonce, OptPayloads: optExtras, Timer: TimerRetransmit, Handler: HandlerMainMode,
			Flags: FlagInitiator | FlagReply | FlagOutputEncrypted},
		Transition{FromState: protocol.MAIN_R2, ToState: protocol.MAIN_R3, AuthClass: protocol.AUTH_CLASS_PSK,
			ReqPayloads: id | hash, OptPayloads: optExtras, Timer: TimerSaReplace, Handler: HandlerMainMode,
			HashType: V1_HASH_1, Flags: FlagReply | FlagInputEncrypted | FlagOutputEncrypted | FlagFirstEncryptedInput | FlagRetransmitOnDuplicate},
		Transition{FromState: protocol.MAIN_R2, ToState: protocol.MAIN_R3, AuthClass: protocol.AUTH_CLASS_DS,
			ReqPayloads: id | protocol.MaskOf(protocol.PayloadTypeSIG), OptPayloads: optExtras | hash, Timer: TimerSaReplace, Handler: HandlerMainMode,
			HashType: V1_HASH_1, Flags: FlagReply | FlagInputEncrypted | FlagOutputEncrypted | FlagFirstEncryptedInput | FlagRetransmitOnDuplicate},
		Transition{FromState: protocol.MAIN_I3, ToState: protocol.MAIN_I4, AuthClass: protocol.AUTH_CLASS_PSK,
			ReqPayloads: id | hash, OptPayloads: optExtras, Timer: TimerSaReplace, Handler: HandlerMainMode,
			HashType: V1_HASH_2, Flags: FlagInitiator | FlagInputEncrypted | FlagOutputEncrypted | FlagRetransmitOnDuplicate},
		Transition{FromState: protocol.MAIN_I3, ToState: protocol.MAIN_I4, AuthClass: protocol.AUTH_CLASS_DS,
			ReqPayloads: id | protocol.MaskOf(protocol.PayloadTypeSIG), OptPayloads: optExtras | hash, Timer: TimerSaReplace, Handler: HandlerMainMode,
			HashType: V1_HASH_2, Flags: FlagInitiator | FlagInputEncrypted | FlagOutputEncrypted | FlagRetransmitOnDuplicate},
		selfLoop(Transition{FromState: protocol.MAIN_R3, AuthClass: protocol.AUTH_CLASS_ANY,
			Timer: TimerNull, Handler: HandlerUnexpected, Flags: FlagInputEncrypted}),
		selfLoop(Transition{FromState: protocol.MAIN_I4, AuthClass: protocol.AUTH_CLASS_ANY,
			Timer: TimerNull, Handler: HandlerUnexpected, Flags: FlagInputEncrypted}),
	)

	// --- Aggressive Mode ----------------------------------------------
	t = append(t,
		Transition{FromState: protocol.AGGR_R0, ToState: protocol.AGGR_R1, AuthClass: protocol.AUTH_CLASS_PSK,
			ReqPayloads: sa | ke | nonce | id, OptPayloads: optExtras, Timer: TimerSoDiscard, Handler: HandlerAggrMode},
		Transition{FromState: protocol.AGGR_I1, ToState: protocol.AGGR_I2, AuthClass: protocol.AUTH_CLASS_PSK,
			ReqPayloads: sa | ke | nonce | id | hash, OptPayloads: optExtras, Timer: TimerSaReplace, Handler: HandlerAggrMode,
			HashType: V1_HASH_2, Flags: FlagInitiator | FlagReply},
		Transition{FromState: protocol.AGGR_R1, ToState: protocol.AGGR_R2, AuthClass: protocol.AUTH_CLASS_PSK,
			ReqPayloads: hash, OptPayloads: optExtras, Timer: TimerSaReplace, Handler: HandlerAggrMode,
			HashType: V1_HASH_3, Flags: FlagReply | FlagRetransmitOnDuplicate},
		selfLoop(Transition{FromState: protocol.AGGR_I2, AuthClass: protocol.AUTH_CLASS_ANY,
			Timer: TimerNull, Handler: HandlerUnexpected}),
		selfLoop(Transition{FromState: protocol.AGGR_R2, AuthClass: protocol.AUTH_CLASS_ANY,
			Timer: TimerNull, Handler: HandlerUnexpected, Flags: FlagInputEncrypted}),
	)

	// --- Quick Mode ----------------------------------------------------
	t = append(t,
		Transition{FromState: protocol.QUICK_R0, ToState: protocol.QUICK_R1, AuthClass: protocol.AUTH_CLASS_ANY,
			ReqPayloads: hash | sa | nonce, OptPayloads: optExtras | id, Timer: TimerRetransmit, Handler: HandlerQuickMode,
			HashType: V1_HASH_1, Flags: FlagReply | FlagInputEncrypted | FlagOutputEncrypted},
		Transition{FromState: protocol.QUICK_I1, ToState: protocol.QUICK_I2, AuthClass: protocol.AUTH_CLASS_ANY,
			ReqPayloads: hash | sa | nonce, OptPayloads: optExtras | id, Timer: TimerSaReplace, Handler: HandlerQuickMode,
			HashType: V1_HASH_2, Flags: FlagInitiator | FlagReply | FlagInputEncrypted | FlagOutputEncrypted | FlagReleasePendingP2},
		selfLoop(Transition{FromState: protocol.QUICK_R1, AuthClass: protocol.AUTH_CLASS_ANY,
			ReqPayloads: hash, Timer: TimerSaReplace, Handler: HandlerQuickMode,
			HashType: V1_HASH_3, Flags: FlagInputEncrypted | FlagReleasePendingP2}),
		selfLoop(Transition{FromState: protocol.QUICK_I2, AuthClass: protocol.AUTH_CLASS_ANY,
			Timer: TimerNull, Handler: HandlerUnexpected, Flags: FlagInputEncrypted}),
		selfLoop(Transition{FromState: protocol.QUICK_R2, AuthClass: protocol.AUTH_CLASS_ANY,
			Timer: TimerNull, Handler: HandlerUnexpected, Flags: FlagInputEncrypted}),
	)

	// --- Informational ---------------------------------------------------
	t = append(t,
		Transition{FromState: protocol.INFO, ToState: protocol.INFO, AuthClass: protocol.AUTH_CLASS_ANY,
			OptPayloads: protocol.MaskOf(protocol.PayloadTypeN, protocol.PayloadTypeD), Timer: TimerNull, Handler: HandlerInformational},
		Transition{FromState: protocol.INFO_PROTECTED, ToState: protocol.INFO_PROTECTED, AuthClass: protocol.AUTH_CLASS_ANY,
			ReqPayloads: hash, OptPayloads: protocol.MaskOf(protocol.PayloadTypeN, protocol.PayloadTypeD), Timer: TimerNull, Handler: HandlerInformational,
			HashType: V1_HASH_1, Flags: FlagInputEncrypted},
	)

	// --- XAUTH / Mode-Config ---------------------------------------------
	cfgAttrs := protocol.MaskOf(protocol.PayloadTypeATTR)
	t = append(t,
		Transition{FromState: protocol.XAUTH_R0, ToState: protocol.XAUTH_R1, AuthClass: protocol.AUTH_CLASS_ANY,
			ReqPayloads: hash | cfgAttrs, Timer: TimerRetransmit, Handler: HandlerXauth,
			HashType: V1_HASH_1, Flags: FlagReply | FlagInputEncrypted | FlagOutputEncrypted | FlagXauthAuth},
		Transition{FromState: protocol.XAUTH_I0, ToState: protocol.XAUTH_I1, AuthClass: protocol.AUTH_CLASS_ANY,
			ReqPayloads: hash | cfgAttrs, Timer: TimerRetransmit, Handler: HandlerXauth,
			HashType: V1_HASH_1, Flags: FlagInitiator | FlagReply | FlagInputEncrypted | FlagOutputEncrypted | FlagXauthAuth},
		selfLoop(Transition{FromState: protocol.XAUTH_R1, AuthClass: protocol.AUTH_CLASS_ANY,
			ReqPayloads: hash | cfgAttrs, Timer: TimerNull, Handler: HandlerXauth,
			HashType: V1_HASH_1, Flags: FlagInputEncrypted | FlagXauthAuth}),
		Transition{FromState: protocol.MODE_CFG_R0, ToState: protocol.MODE_CFG_R1, AuthClass: protocol.AUTH_CLASS_ANY,
			ReqPayloads: hash | cfgAttrs, Timer: TimerRetransmit, Handler: HandlerModeCfg,
			HashType: V1_HASH_1, Flags: FlagReply | FlagInputEncrypted | FlagOutputEncrypted},
		Transition{FromState: protocol.MODE_CFG_I1, ToState: protocol.MODE_CFG_R2, AuthClass: protocol.AUTH_CLASS_ANY,
			ReqPayloads: hash | cfgAttrs, Timer: TimerNull, Handler: HandlerModeCfg,
			HashType: V1_HASH_1, Flags: FlagInitiator | FlagInputEncrypted | FlagOutputEncrypted | FlagReleasePendingP2},
		selfLoop(Transition{FromState: protocol.MODE_CFG_R1, AuthClass: protocol.AUTH_CLASS_ANY,
			Timer: TimerNull, Handler: HandlerUnexpected, Flags: FlagInputEncrypted}),
		selfLoop(Transition{FromState: protocol.MODE_CFG_R2, AuthClass: protocol.AUTH_CLASS_ANY,
			ReqPayloads: hash | cfgAttrs, Timer: TimerNull, Handler: HandlerModeCfg,
			HashType: V1_HASH_1, Flags: FlagInputEncrypted | FlagOutputEncrypted | FlagReleasePendingP2}),
	)

	return t
}

// Lookup finds the transition for from_state whose auth-class matches,
// scanning from the first entry for that state. When the SA does not
// exist yet (authClassKnown is false, initial messages), the first
// entry for the state is used regardless of auth class.
func Lookup(from protocol.FromState, auth protocol.AuthClass, authClassKnown bool) (*Transition, bool) {
	start, ok := firstEntry[from]
	if !ok {
		return nil, false
	}
	if !authClassKnown {
		return &Table[start], true
	}
	for i := start; i < len(Table) && Table[i].FromState == from; i++ {
		if Table[i].AuthClass == protocol.AUTH_CLASS_ANY || Table[i].AuthClass == auth {
			return &Table[i], true
		}
	}
	return nil, false
}

// ValidateTable enforces two invariants: every
// INPUT_ENCRYPTED-but-not-FIRST_ENCRYPTED_INPUT transition whose
// handler isn't "unexpected" must require HASH and declare a hash
// type, and no from_state may list the same (non-ANY) auth class more
// than once, which would make Lookup's scan pick the first match
// arbitrarily.
func ValidateTable(table []Transition) error {
	byState := map[protocol.FromState][]protocol.AuthClass{}
	for _, tr := range table {
		byState[tr.FromState] = append(byState[tr.FromState], tr.AuthClass)
		if tr.Flags.Has(FlagInputEncrypted) && !tr.Flags.Has(FlagFirstEncryptedInput) && tr.Handler != HandlerUnexpected {
			if !tr.ReqPayloads.Has(protocol.PayloadTypeHASH) {
				return fmt.Errorf("%s/%s: encrypted non-first transition must require HASH", tr.FromState, tr.Handler)
			}
			if tr.HashType == HashNone {
				return fmt.Errorf("%s/%s: encrypted non-first transition must declare a hash type", tr.FromState, tr.Handler)
			}
		}
	}
	// Processing PKE/RPKE auth classes is out of scope, so a state need
	// not cover all of {PSK, DS, PKE, RPKE} -- only that no auth class
	// is listed twice for the same from_state, which would make Lookup's
	// scan pick the first match arbitrarily.
	for state, classes := range byState {
		seen := map[protocol.AuthClass]bool{}
		for _, c := range classes {
			if c != protocol.AUTH_CLASS_ANY && seen[c] {
				return fmt.Errorf("%s: auth class %s listed more than once", state, c)
			}
			seen[c] = true
		}
	}
	return nil
}
