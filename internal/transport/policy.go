package transport

import "github.com/infinoted/libinfinity/internal/xerr"

// SecurityPolicy is InfXmppConnectionSecurityPolicy from spec §4.B.
type SecurityPolicy int

const (
	OnlyUnsecured SecurityPolicy = iota
	OnlyTLS
	BothPreferUnsecured
	BothPreferTLS
)

// ServerAdvertiseStartTLS decides whether a server advertises <starttls/>
// and whether it marks <required/> (spec §4.B: "as server, advertise
// <starttls> (and mark <required/> if only-tls)").
func ServerAdvertiseStartTLS(policy SecurityPolicy) (advertise, required bool) {
	switch policy {
	case OnlyUnsecured:
		return false, false
	case OnlyTLS:
		return true, true
	default:
		return true, false
	}
}

// ClientStartTLSDecision is what a client does on seeing the server's
// <starttls/> feature (or its absence).
type ClientStartTLSDecision int

const (
	ClientSkipStartTLS ClientStartTLSDecision = iota
	ClientNegotiateStartTLS
)

// DecideClientStartTLS implements spec §4.B's client-side refusal and
// negotiation rules: "as client, refuse to continue on only-tls when
// <starttls> is absent, and refuse on only-unsecured when <required/> is
// present. On both-prefer-tls the client issues <starttls> if offered; on
// both-prefer-unsecured it does not."
func DecideClientStartTLS(policy SecurityPolicy, offered, required bool) (ClientStartTLSDecision, error) {
	switch policy {
	case OnlyTLS:
		if !offered {
			return ClientSkipStartTLS, xerr.New(xerr.DomainTransport, xerr.CodeTLSRequired, "server did not offer starttls")
		}
		return ClientNegotiateStartTLS, nil
	case OnlyUnsecured:
		if required {
			return ClientSkipStartTLS, xerr.New(xerr.DomainTransport, xerr.CodeTLSUnsupported, "server requires starttls")
		}
		return ClientSkipStartTLS, nil
	case BothPreferTLS:
		if offered {
			return ClientNegotiateStartTLS, nil
		}
		return ClientSkipStartTLS, nil
	case BothPreferUnsecured:
		return ClientSkipStartTLS, nil
	default:
		return ClientSkipStartTLS, xerr.New(xerr.DomainTransport, xerr.CodeInvalidAttribute, "unknown security policy")
	}
}
