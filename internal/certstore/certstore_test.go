package certstore

import "testing"

// This mirrors scenario (f) from spec §8: no CA trust, no prior pin,
// server presents cert C -> query; accept -> pinned; reconnect with same
// C -> no query; same-SAN replacement -> query again without CA trust,
// silent replace with CA trust; different SAN -> query again.
func TestDecideAndPinScenarioF(t *testing.T) {
	certC := []byte("fingerprint-C")
	certCPrime := []byte("fingerprint-C-prime")

	var promptCalls int
	prompt := func(string, []byte) bool { promptCalls++; return true }

	// First connection: untrusted, no pin -> must prompt, then pin.
	accept, shouldPin := decideAndPin("host", nil, false, false, certC, false, prompt)
	if !accept || !shouldPin {
		t.Fatalf("first connection: accept=%v shouldPin=%v, want true/true", accept, shouldPin)
	}
	if promptCalls != 1 {
		t.Fatalf("expected 1 prompt, got %d", promptCalls)
	}

	// Reconnect with the same cert and a pin now on file -> accept, no
	// prompt, no further pin write.
	accept, shouldPin = decideAndPin("host", certC, true, false, certC, false, prompt)
	if !accept || shouldPin {
		t.Fatalf("reconnect same cert: accept=%v shouldPin=%v, want true/false", accept, shouldPin)
	}
	if promptCalls != 1 {
		t.Fatalf("reconnect with matching pin must not prompt again, got %d calls", promptCalls)
	}

	// Server now presents C' with a SAN still covering hostname, but without
	// CA trust: a SAN match alone doesn't suffice for a silent replace, so
	// the user is queried, and on accept the pin is replaced.
	accept, shouldPin = decideAndPin("host", certC, true, false, certCPrime, true, prompt)
	if !accept || !shouldPin {
		t.Fatalf("untrusted SAN match still requires a query per the decision table")
	}
	if promptCalls != 2 {
		t.Fatalf("expected a second prompt for the untrusted replacement, got %d", promptCalls)
	}

	// Trusted-by-CA + SAN match -> silent replace, no prompt at all.
	promptCalls = 0
	accept, shouldPin = decideAndPin("host", certC, true, true, certCPrime, true, nil)
	if !accept || !shouldPin {
		t.Fatalf("trusted SAN-matching replacement: accept=%v shouldPin=%v, want true/true", accept, shouldPin)
	}
	if promptCalls != 0 {
		t.Fatalf("trusted SAN match must not prompt")
	}

	// Trusted-by-CA but SAN mismatch -> still queries the user.
	accept, shouldPin = decideAndPin("host", certC, true, false, certCPrime, false, func(string, []byte) bool { return false })
	if accept || shouldPin {
		t.Fatalf("rejecting a SAN-mismatched replacement must close the connection, got accept=%v shouldPin=%v", accept, shouldPin)
	}
}
