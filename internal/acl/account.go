package acl

import (
	"crypto/sha256"
	"crypto/subtle"
	"time"
)

// AccountInfo is one registered account's identity material (spec §4.K,
// Account identity; spec §3, ACL account): the certificate DNs that
// authenticate as it, and the salted password hash for SASL password
// auth. Either may be empty.
type AccountInfo struct {
	ID           string
	Name         string // human-readable, optional
	CertDNs      []string
	PasswordHash [32]byte
	Salt         [32]byte
	HasPassword  bool
	Transient    bool // created for an anonymous/unauthenticated session, GC-eligible
	FirstSeen    time.Time
	LastSeen     time.Time
}

// ClientView is the client-visible projection of an account: spec §3
// says it "strips hash and DNs" since a client has no business learning
// another account's credential material.
type ClientView struct {
	ID        string
	Name      string
	FirstSeen time.Time
	LastSeen  time.Time
}

// Project strips credential material from info for sending to a client
// (spec §3, ACL account: "The corresponding client-visible projection
// strips hash and DNs").
func Project(info AccountInfo) ClientView {
	return ClientView{ID: info.ID, Name: info.Name, FirstSeen: info.FirstSeen, LastSeen: info.LastSeen}
}

// IdentifyByCert returns the account whose certificate-DN list contains
// dn, or Default if the policy admits unauthenticated clients and none
// matches (spec §4.K).
func IdentifyByCert(accounts []AccountInfo, dn string, allowUnauthenticated bool) (Account, bool) {
	for _, a := range accounts {
		for _, d := range a.CertDNs {
			if d == dn {
				return Account(a.ID), true
			}
		}
	}
	if allowUnauthenticated {
		return Default, true
	}
	return "", false
}

// HashPassword computes SHA256(salt[0:16] || password || salt[16:32]),
// the scheme spec §4.K prescribes for stored password verification.
func HashPassword(salt [32]byte, password string) [32]byte {
	h := sha256.New()
	h.Write(salt[:16])
	h.Write([]byte(password))
	h.Write(salt[16:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyPassword reports whether password matches the account's stored
// hash, in constant time.
func VerifyPassword(info AccountInfo, password string) bool {
	if !info.HasPassword {
		return false
	}
	got := HashPassword(info.Salt, password)
	return subtle.ConstantTimeCompare(got[:], info.PasswordHash[:]) == 1
}

// PinOutcome is the client-side decision from the certificate-pinning
// table in spec §4.K.
type PinOutcome int

const (
	// PinAccept: proceed with the connection; no pin store change.
	PinAccept PinOutcome = iota
	// PinAcceptAndPin: proceed, and record the offered fingerprint as the
	// pin for this hostname (there was none before).
	PinAcceptAndPin
	// PinAcceptAndReplace: proceed, and overwrite the stored pin.
	PinAcceptAndReplace
	// PinAskUser: the decision needs an interactive confirmation; the
	// caller resolves it and then calls DecideAfterPrompt.
	PinAskUser
)

// DecidePin implements the spec §4.K decision table. trustedByCA is
// whether the platform/CA trust chain validated the certificate.
// pinnedFingerprint is nil if no pin is on file for hostname.
// hostnameMatchesCert is whether the certificate's subject/SANs cover
// hostname (only consulted when a stale pin exists and CA trust holds).
func DecidePin(trustedByCA bool, pinnedFingerprint []byte, offeredFingerprint []byte, hostnameMatchesCert bool) PinOutcome {
	if pinnedFingerprint == nil {
		if trustedByCA {
			return PinAcceptAndPin
		}
		return PinAskUser
	}
	if fingerprintsEqual(pinnedFingerprint, offeredFingerprint) {
		return PinAccept
	}
	if trustedByCA && hostnameMatchesCert {
		return PinAcceptAndReplace
	}
	return PinAskUser
}

// DecideAfterPrompt folds the user's accept/reject answer into a final
// pin-store action for the PinAskUser case.
func DecideAfterPrompt(accepted bool, hadPin bool) PinOutcome {
	if !accepted {
		return -1 // caller treats any negative outcome as "close the connection"
	}
	if hadPin {
		return PinAcceptAndReplace
	}
	return PinAcceptAndPin
}

func fingerprintsEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
