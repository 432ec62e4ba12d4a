package protocol

import "fmt"

func (t PayloadType) String() string {
	switch t {
	case PayloadTypeNone:
		return "NONE"
	case PayloadTypeSA:
		return "SA"
	case PayloadTypeP:
		return "P"
	case PayloadTypeT:
		return "T"
	case PayloadTypeKE:
		return "KE"
	case PayloadTypeID:
		return "ID"
	case PayloadTypeCERT:
		return "CERT"
	case PayloadTypeCR:
		return "CR"
	case PayloadTypeHASH:
		return "HASH"
	case PayloadTypeSIG:
		return "SIG"
	case PayloadTypeNONCE:
		return "NONCE"
	case PayloadTypeN:
		return "N"
	case PayloadTypeD:
		return "D"
	case PayloadTypeVID:
		return "VID"
	case PayloadTypeATTR:
		return "ATTR"
	case PayloadTypeSAK:
		return "SAK"
	case PayloadTypeNATD_RFC:
		return "NATD"
	case PayloadTypeNATOA_RFC:
		return "NATOA"
	case PayloadTypeNATD_DRAFT:
		return "NATD(draft)"
	case PayloadTypeNATOA_DRAFT:
		return "NATOA(draft)"
	case PayloadTypeFRAG:
		return "FRAG"
	default:
		return fmt.Sprintf("PayloadType(%d)", uint8(t))
	}
}

func (e IkeExchangeType) String() string {
	switch e {
	case EXCHANGE_NONE:
		return "NONE"
	case EXCHANGE_BASE:
		return "Base"
	case EXCHANGE_IDPROT:
		return "MainMode"
	case EXCHANGE_AUTH_ONLY:
		return "AuthOnly"
	case EXCHANGE_AGGR:
		return "AggressiveMode"
	case EXCHANGE_INFO:
		return "Informational"
	case EXCHANGE_TRANSACTION:
		return "Transaction"
	case EXCHANGE_QUICK:
		return "QuickMode"
	case EXCHANGE_NEW_GROUP:
		return "NewGroup"
	default:
		return fmt.Sprintf("ExchangeType(%d)", uint8(e))
	}
}

func (f IkeFlags) String() string {
	s := ""
	if f.IsEncrypted() {
		s += "E"
	}
	if f.IsCommit() {
		s += "C"
	}
	if f.IsAuthOnly() {
		s += "A"
	}
	if s == "" {
		return "-"
	}
	return s
}

func (p ProtocolId) String() string {
	switch p {
	case PROTO_ISAKMP:
		return "ISAKMP"
	case PROTO_IPSEC_AH:
		return "IPSEC_AH"
	case PROTO_IPSEC_ESP:
		return "IPSEC_ESP"
	case PROTO_IPCOMP:
		return "IPCOMP"
	default:
		return fmt.Sprintf("ProtocolId(%d)", uint8(p))
	}
}

func (s FromState) String() string {
	switch s {
	case STATE_UNDEFINED:
		return "UNDEFINED"
	case MAIN_R0:
		return "MAIN_R0"
	case MAIN_I1:
		return "MAIN_I1"
	case MAIN_R1:
		return "MAIN_R1"
	case MAIN_I2:
		return "MAIN_I2"
	case MAIN_R2:
		return "MAIN_R2"
	case MAIN_I3:
		return "MAIN_I3"
	case MAIN_R3:
		return "MAIN_R3"
	case MAIN_I4:
		return "MAIN_I4"
	case AGGR_R0:
		return "AGGR_R0"
	case AGGR_I1:
		return "AGGR_I1"
	case AGGR_R1:
		return "AGGR_R1"
	case AGGR_I2:
		return "AGGR_I2"
	case AGGR_R2:
		return "AGGR_R2"
	case QUICK_R0:
		return "QUICK_R0"
	case QUICK_I1:
		return "QUICK_I1"
	case QUICK_R1:
		return "QUICK_R1"
	case QUICK_I2:
		return "QUICK_I2"
	case QUICK_R2:
		return "QUICK_R2"
	case INFO:
		return "INFO"
	case INFO_PROTECTED:
		return "INFO_PROTECTED"
	case XAUTH_I0:
		return "XAUTH_I0"
	case XAUTH_I1:
		return "XAUTH_I1"
	case XAUTH_R0:
		return "XAUTH_R0"
	case XAUTH_R1:
		return "XAUTH_R1"
	case MODE_CFG_I1:
		return "MODE_CFG_I1"
	case MODE_CFG_R0:
		return "MODE_CFG_R0"
	case MODE_CFG_R1:
		return "MODE_CFG_R1"
	case MODE_CFG_R2:
		return "MODE_CFG_R2"
	default:
		return fmt.Sprintf("FromState(%d)", uint8(s))
	}
}

func (a AuthClass) String() string {
	switch a {
	case AUTH_CLASS_ANY:
		return "ANY"
	case AUTH_CLASS_PSK:
		return "PSK"
	case AUTH_CLASS_DS:
		return "DS"
	case AUTH_CLASS_PKE:
		return "PKE"
	case AUTH_CLASS_RPKE:
		return "RPKE"
	default:
		return fmt.Sprintf("AuthClass(%d)", uint8(a))
	}
}
