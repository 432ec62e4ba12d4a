package protocol

import "fmt"

// NotificationType doubles as the local decode-error vocabulary and the
// wire value carried by a Notify payload's notify-message-type field
// (RFC 2408 section 3.14.1); the two uses share one numbering space.
type NotificationType uint16

type IkeError struct {
	NotificationType
	Message string
}

func ErrF(e NotificationType, format string, a ...interface{}) IkeError {
	return IkeError{e, fmt.Sprintf(format, a...)}
}

func (e IkeError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.NotificationType, e.Message)
	}
	return e.NotificationType.String()
}

// RFC 2408 IPsec DOI notify-message-type values, plus the local
// decode-time codes the demultiplexer/decoder raise before a message
// even reaches a Notify payload.
const (
	INVALID_PAYLOAD_TYPE        NotificationType = 1
	DOI_NOT_SUPPORTED           NotificationType = 2
	SITUATION_NOT_SUPPORTED     NotificationType = 3
	INVALID_COOKIE              NotificationType = 4
	INVALID_MAJOR_VERSION       NotificationType = 5
	INVALID_MINOR_VERSION       NotificationType = 6
	INVALID_EXCHANGE_TYPE       NotificationType = 7
	INVALID_FLAGS               NotificationType = 8
	INVALID_MESSAGE_ID          NotificationType = 9
	INVALID_PROTOCOL_ID         NotificationType = 10
	INVALID_SPI                 NotificationType = 11
	INVALID_TRANSFORM_ID        NotificationType = 12
	ATTRIBUTES_NOT_SUPPORTED    NotificationType = 13
	NO_PROPOSAL_CHOSEN          NotificationType = 14
	BAD_PROPOSAL_SYNTAX         NotificationType = 15
	PAYLOAD_MALFORMED           NotificationType = 16
	INVALID_KEY_INFORMATION     NotificationType = 17
	INVALID_ID_INFORMATION      NotificationType = 18
	INVALID_CERT_ENCODING       NotificationType = 19
	INVALID_CERTIFICATE         NotificationType = 20
	CERT_TYPE_UNSUPPORTED       NotificationType = 21
	INVALID_CERT_AUTHORITY      NotificationType = 22
	INVALID_HASH_INFORMATION    NotificationType = 23
	AUTHENTICATION_FAILED       NotificationType = 24
	INVALID_SIGNATURE           NotificationType = 25
	ADDRESS_NOTIFICATION        NotificationType = 26
	NOTIFY_SA_LIFETIME          NotificationType = 27
	CERTIFICATE_UNAVAILABLE     NotificationType = 28
	UNSUPPORTED_EXCHANGE_TYPE   NotificationType = 29
	UNEQUAL_PAYLOAD_LENGTHS     NotificationType = 30

	// RFC 3706 Dead Peer Detection.
	R_U_THERE         NotificationType = 36136
	R_U_THERE_ACK     NotificationType = 36137

	// Private/vendor status notifications carried transparently.
	CONNECTED             NotificationType = 16384
	CISCO_LOAD_BALANCE    NotificationType = 40501

	// Local-only: raised by the decoder/demultiplexer before any Notify
	// payload is involved; never sent on the wire under these names.
	INTERNAL_DECODE_ERROR NotificationType = 0
)

func (n NotificationType) IsDeadPeerDetection() bool {
	return n == R_U_THERE || n == R_U_THERE_ACK
}

func (n NotificationType) String() string {
	switch n {
	case INVALID_PAYLOAD_TYPE:
		return "INVALID_PAYLOAD_TYPE"
	case DOI_NOT_SUPPORTED:
		return "DOI_NOT_SUPPORTED"
	case SITUATION_NOT_SUPPORTED:
		return "SITUATION_NOT_SUPPORTED"
	case INVALID_COOKIE:
		return "INVALID_COOKIE"
	case INVALID_MAJOR_VERSION:
		return "INVALID_MAJOR_VERSION"
	case INVALID_MINOR_VERSION:
		return "INVALID_MINOR_VERSION"
	case INVALID_EXCHANGE_TYPE:
		return "INVALID_EXCHANGE_TYPE"
	case INVALID_FLAGS:
		return "INVALID_FLAGS"
	case INVALID_MESSAGE_ID:
		return "INVALID_MESSAGE_ID"
	case INVALID_PROTOCOL_ID:
		return "INVALID_PROTOCOL_ID"
	case INVALID_SPI:
		return "INVALID_SPI"
	case INVALID_TRANSFORM_ID:
		return "INVALID_TRANSFORM_ID"
	case ATTRIBUTES_NOT_SUPPORTED:
		return "ATTRIBUTES_NOT_SUPPORTED"
	case NO_PROPOSAL_CHOSEN:
		return "NO_PROPOSAL_CHOSEN"
	case BAD_PROPOSAL_SYNTAX:
		return "BAD_PROPOSAL_SYNTAX"
	case PAYLOAD_MALFORMED:
		return "PAYLOAD_MALFORMED"
	case INVALID_KEY_INFORMATION:
		return "INVALID_KEY_INFORMATION"
	case INVALID_ID_INFORMATION:
		return "INVALID_ID_INFORMATION"
	case INVALID_CERT_ENCODING:
		return "INVALID_CERT_ENCODING"
	case INVALID_CERTIFICATE:
		return "INVALID_CERTIFICATE"
	case CERT_TYPE_UNSUPPORTED:
		return "CERT_TYPE_UNSUPPORTED"
	case INVALID_CERT_AUTHORITY:
		return "INVALID_CERT_AUTHORITY"
	case INVALID_HASH_INFORMATION:
		return "INVALID_HASH_INFORMATION"
	case AUTHENTICATION_FAILED:
		return "AUTHENTICATION_FAILED"
	case INVALID_SIGNATURE:
		return "INVALID_SIGNATURE"
	case ADDRESS_NOTIFICATION:
		return "ADDRESS_NOTIFICATION"
	case NOTIFY_SA_LIFETIME:
		return "SA_LIFETIME"
	case CERTIFICATE_UNAVAILABLE:
		return "CERTIFICATE_UNAVAILABLE"
	case UNSUPPORTED_EXCHANGE_TYPE:
		return "UNSUPPORTED_EXCHANGE_TYPE"
	case UNEQUAL_PAYLOAD_LENGTHS:
		return "UNEQUAL_PAYLOAD_LENGTHS"
	case R_U_THERE:
		return "R_U_THERE"
	case R_U_THERE_ACK:
		return "R_U_THERE_ACK"
	case CONNECTED:
		return "CONNECTED"
	case CISCO_LOAD_BALANCE:
		return "CISCO_LOAD_BALANCE"
	default:
		return fmt.Sprintf("NotificationType(%d)", uint16(n))
	}
}
