package transport

import "github.com/infinoted/libinfinity/internal/xerr"

// Role distinguishes which side of the mirrored state machine a
// StateMachine drives (spec §4.B: "applies to both client and server
// roles, mirrored").
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// State is one node of the client-side state list from spec §4.B:
// "connected → opening-initial-stream → awaiting-features →
// [starttls-negotiating] → reopening-stream → awaiting-features →
// [sasl-negotiating] → reopening-stream → awaiting-features →
// authenticated → closing → closed". The server side mirrors the same
// shape around accepting rather than opening a stream.
type State int

const (
	StateConnected State = iota
	StateOpeningInitialStream
	StateAwaitingFeatures
	StateStartTLSNegotiating
	StateReopeningStreamAfterTLS
	StateAwaitingFeaturesAfterTLS
	StateSASLNegotiating
	StateReopeningStreamAfterSASL
	StateAwaitingFeaturesAfterSASL
	StateAuthenticated
	StateClosing
	StateClosed
)

// StateMachine drives one connection through the mirrored XMPP stream
// negotiation. It only tracks state and enforces legal transitions; actual
// byte-level stream opening, STARTTLS, and SASL stepping are the caller's
// job (transport.Conn, crypto/tls, and sasl.go respectively) so this type
// stays testable without real I/O.
type StateMachine struct {
	Role     Role
	Policy   SecurityPolicy
	state    State
	tlsDone  bool
	authDone bool
}

func NewStateMachine(role Role, policy SecurityPolicy) *StateMachine {
	return &StateMachine{Role: role, Policy: policy, state: StateConnected}
}

func (m *StateMachine) State() State { return m.state }

// transition is the only place state actually changes, so every edge in
// the diagram has one line to audit against spec §4.B.
func (m *StateMachine) transition(from, to State) error {
	if m.state != from {
		return xerr.New(xerr.DomainTransport, xerr.CodeUnexpectedNode, "xmpp state machine: illegal transition")
	}
	m.state = to
	return nil
}

// OpenStream moves from connected into opening-initial-stream then
// awaiting-features, mirroring both roles: the client sends its opening
// <stream:stream> and waits for <stream:features/>; the server accepts one
// and replies with its own features.
func (m *StateMachine) OpenStream() error {
	if err := m.transition(StateConnected, StateOpeningInitialStream); err != nil {
		return err
	}
	return m.transition(StateOpeningInitialStream, StateAwaitingFeatures)
}

// BeginStartTLS enters the bracketed [starttls-negotiating] state. It is
// legal only from the first awaiting-features plateau.
func (m *StateMachine) BeginStartTLS() error {
	if m.state != StateAwaitingFeatures {
		return xerr.New(xerr.DomainTransport, xerr.CodeUnexpectedNode, "starttls only legal while awaiting features")
	}
	m.state = StateStartTLSNegotiating
	return nil
}

// FinishStartTLS completes STARTTLS and reopens the stream over the new
// security context (spec §4.B: "each reopening sends a fresh
// <stream:stream> header over the new security context"), landing back in
// awaiting-features to read the post-TLS feature set.
func (m *StateMachine) FinishStartTLS() error {
	if err := m.transition(StateStartTLSNegotiating, StateReopeningStreamAfterTLS); err != nil {
		return err
	}
	m.tlsDone = true
	return m.transition(StateReopeningStreamAfterTLS, StateAwaitingFeaturesAfterTLS)
}

// BeginSASL enters [sasl-negotiating], legal either straight from the
// first awaiting-features plateau (no STARTTLS happened) or from the one
// after STARTTLS.
func (m *StateMachine) BeginSASL() error {
	if m.state != StateAwaitingFeatures && m.state != StateAwaitingFeaturesAfterTLS {
		return xerr.New(xerr.DomainTransport, xerr.CodeUnexpectedNode, "sasl only legal while awaiting features")
	}
	m.state = StateSASLNegotiating
	return nil
}

// FinishSASL completes authentication and reopens the stream a final time,
// then marks the connection authenticated.
func (m *StateMachine) FinishSASL() error {
	if err := m.transition(StateSASLNegotiating, StateReopeningStreamAfterSASL); err != nil {
		return err
	}
	m.authDone = true
	if err := m.transition(StateReopeningStreamAfterSASL, StateAwaitingFeaturesAfterSASL); err != nil {
		return err
	}
	return m.transition(StateAwaitingFeaturesAfterSASL, StateAuthenticated)
}

// Close begins closing, valid from any state once the connection is being
// torn down.
func (m *StateMachine) Close() {
	m.state = StateClosing
}

func (m *StateMachine) Closed() {
	m.state = StateClosed
}

// TLSDone and AuthDone let callers (e.g. the SASL retry entry point) check
// whether a security layer already completed without tracking it
// separately.
func (m *StateMachine) TLSDone() bool  { return m.tlsDone }
func (m *StateMachine) AuthDone() bool { return m.authDone }
