package transport

import (
	"mellium.im/sasl"

	"github.com/infinoted/libinfinity/internal/xerr"
)

// Credentials supplies the username/password/authzid a SASL mechanism
// needs (spec §4.B: "SASL layer uses a pluggable context providing
// mechanism callbacks").
type Credentials struct {
	Username string
	Password string
	Identity string
}

// ClientAuthenticator drives one SASL negotiation attempt client-side. A
// fresh one is built on Retry so a failed mechanism doesn't leave stale
// negotiator state behind (spec §4.B: "retry entry point that resets the
// layer without tearing down TCP/TLS").
type ClientAuthenticator struct {
	mechanisms  []sasl.Mechanism
	credentials Credentials
	neg         *sasl.Negotiator
}

func NewClientAuthenticator(creds Credentials, mechanisms ...sasl.Mechanism) *ClientAuthenticator {
	return &ClientAuthenticator{mechanisms: mechanisms, credentials: creds}
}

// SelectMechanism picks the first mechanism both the client supports and
// the server advertised, and starts a fresh negotiator for it. An empty
// intersection is the "no-suitable-mechanism" failure from RFC 3920 §6.4
// (spec §4.B: "Failure conditions are the RFC 3920 §6.4 error taxonomy").
func (a *ClientAuthenticator) SelectMechanism(advertised []string) error {
	offered := make(map[string]bool, len(advertised))
	for _, m := range advertised {
		offered[m] = true
	}
	for _, m := range a.mechanisms {
		if offered[m.Name] {
			a.start(m)
			return nil
		}
	}
	return xerr.New(xerr.DomainAuth, xerr.CodeNoSASLMechanism, "no mechanism in common with server")
}

func (a *ClientAuthenticator) start(m sasl.Mechanism) {
	creds := a.credentials
	a.neg = sasl.NewClient(m, func() (username, password, identity []byte) {
		return []byte(creds.Username), []byte(creds.Password), []byte(creds.Identity)
	})
}

// Step feeds challenge (nil for the initial response) through the
// negotiator and returns whether another round is expected plus the
// response to send.
func (a *ClientAuthenticator) Step(challenge []byte) (more bool, response []byte, err error) {
	if a.neg == nil {
		return false, nil, xerr.New(xerr.DomainAuth, xerr.CodeNoSASLMechanism, "no mechanism selected")
	}
	return a.neg.Step(challenge)
}

// Retry resets the layer for a second mechanism or credential set without
// tearing down the underlying TCP/TLS connection (spec §4.B).
func (a *ClientAuthenticator) Retry(creds Credentials) {
	a.credentials = creds
	a.neg = nil
}
