package transport

import (
	"crypto/tls"
	"crypto/x509"
	"net"

	"github.com/infinoted/libinfinity/internal/xerr"
)

// VerifyDecision is what the application's certificate callback returns
// (spec §4.B: "Certificate verification is a callback the application
// supplies; until the callback confirms or cancels, the TLS handshake is
// suspended").
type VerifyDecision int

const (
	VerifyConfirm VerifyDecision = iota
	VerifyCancel
)

// VerifyFunc inspects a peer's certificate chain and decides whether to
// proceed. It is called synchronously from inside the TLS handshake via
// tls.Config.VerifyPeerCertificate, so it runs on whatever goroutine
// started the handshake, not the I/O loop thread.
type VerifyFunc func(chain []*x509.Certificate) VerifyDecision

// NegotiateTLS performs the STARTTLS upgrade: it wraps raw in a TLS client
// or server connection per isClient, routes peer certificate verification
// through verify, and performs the handshake. Cancellation closes the
// connection with a typed error in the XMPP error domain (spec §4.B:
// "Cancellation closes the connection with a typed error whose domain is
// the XMPP error domain").
func NegotiateTLS(raw net.Conn, cfg *tls.Config, isClient bool, verify VerifyFunc) (*tls.Conn, error) {
	cfg = cfg.Clone()
	cfg.InsecureSkipVerify = true // verification is fully delegated to verify below
	var cancelled bool
	cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		chain := make([]*x509.Certificate, 0, len(rawCerts))
		for _, der := range rawCerts {
			cert, err := x509.ParseCertificate(der)
			if err != nil {
				return err
			}
			chain = append(chain, cert)
		}
		if verify(chain) == VerifyCancel {
			cancelled = true
			return xerr.New(xerr.DomainTransport, xerr.CodeCertNotTrusted, "certificate verification cancelled")
		}
		return nil
	}

	var tconn *tls.Conn
	if isClient {
		tconn = tls.Client(raw, cfg)
	} else {
		tconn = tls.Server(raw, cfg)
	}
	if err := tconn.Handshake(); err != nil {
		raw.Close()
		if cancelled {
			return nil, xerr.Wrap(xerr.DomainTransport, xerr.CodeCertNotTrusted, err)
		}
		return nil, xerr.Wrap(xerr.DomainTransport, xerr.CodeHandshakeFailed, err)
	}
	return tconn, nil
}
