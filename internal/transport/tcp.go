// Package transport implements the TCP/TLS/SASL/XMPP layer from spec §4.B:
// a non-blocking-status connection wrapper, optional SRV-based name
// resolution, the mirrored client/server XMPP stream state machine, the
// STARTTLS security policy decision table, and SASL authentication via
// mellium.im/sasl.
package transport

import (
	"context"
	"net"
	"sync"
)

// Status is a connection's lifecycle state (spec §4.B, TCP layer:
// "closed → connecting → connected → closed").
type Status int

const (
	StatusClosed Status = iota
	StatusConnecting
	StatusConnected
)

// SentHandler fires when len bytes have left the kernel send queue (spec
// §4.B: "a sent(len) signal fires when bytes leave the kernel queue").
type SentHandler func(n int)

// Conn is the duplex byte pipe spec §3 describes: a status and a network
// tag, wrapping a net.Conn that may be swapped out in place when STARTTLS
// upgrades the same logical connection to TLS. Conn does not record the
// peer certificate chain itself.
type Conn struct {
	mu      sync.Mutex
	raw     net.Conn
	status  Status
	network string // "tcp/ip", "jabber", "simulated" (spec §3, Connection)

	sent []SentHandler
}

// Dial opens a TCP connection to addr. It blocks the calling goroutine
// until the connect succeeds or fails, and returns a Conn only on success,
// already in StatusConnected; the intermediate StatusConnecting is never
// observable by callers.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	c := &Conn{status: StatusConnecting, network: "tcp/ip"}
	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.mu.Lock()
		c.status = StatusClosed
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Lock()
	c.raw = raw
	c.status = StatusConnected
	c.mu.Unlock()
	return c, nil
}

func (c *Conn) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Raw returns the current underlying net.Conn, e.g. to hand to tls.Client
// during STARTTLS negotiation.
func (c *Conn) Raw() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.raw
}

// Replace swaps the underlying net.Conn in place, used when STARTTLS
// upgrades a plaintext connection to a *tls.Conn wrapping the same socket
// (spec §4.B: "each reopening sends a fresh <stream:stream> header over the
// new security context", which presupposes the same Conn now writes
// through TLS).
func (c *Conn) Replace(raw net.Conn) {
	c.mu.Lock()
	c.raw = raw
	c.mu.Unlock()
}

func (c *Conn) OnSent(h SentHandler) {
	c.mu.Lock()
	c.sent = append(c.sent, h)
	c.mu.Unlock()
}

// Write writes b to the connection and fires sent(len) once the kernel has
// accepted it.
func (c *Conn) Write(b []byte) (int, error) {
	raw := c.Raw()
	n, err := raw.Write(b)
	if n > 0 {
		c.mu.Lock()
		handlers := append([]SentHandler(nil), c.sent...)
		c.mu.Unlock()
		for _, h := range handlers {
			h(n)
		}
	}
	return n, err
}

func (c *Conn) Read(b []byte) (int, error) {
	return c.Raw().Read(b)
}

// Close closes the underlying connection and marks it closed.
func (c *Conn) Close() error {
	c.mu.Lock()
	raw := c.raw
	c.status = StatusClosed
	c.mu.Unlock()
	if raw == nil {
		return nil
	}
	return raw.Close()
}
