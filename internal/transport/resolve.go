package transport

import (
	"context"
	"fmt"
	"net"
	"sort"

	"golang.org/x/net/idna"
)

// Target is one candidate endpoint a resolver yields, already
// priority/weight-ordered (spec §4.B, Name resolution).
type Target struct {
	Host string
	Port uint16
}

// ResolveXMPPServer implements the optional SRV lookup spec §4.B describes:
// query `_infinote._tcp.host`, and on failure fall back to resolving host
// directly on the caller-supplied default port. idna.Lookup normalizes an
// internationalized hostname to its ASCII form before either lookup, since
// DNS SRV/A queries operate on ASCII labels.
func ResolveXMPPServer(ctx context.Context, host string, defaultPort uint16) ([]Target, error) {
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid hostname %q: %w", host, err)
	}

	_, addrs, err := net.DefaultResolver.LookupSRV(ctx, "infinote", "tcp", ascii)
	if err == nil && len(addrs) > 0 {
		sort.Slice(addrs, func(i, j int) bool {
			if addrs[i].Priority != addrs[j].Priority {
				return addrs[i].Priority < addrs[j].Priority
			}
			return addrs[i].Weight > addrs[j].Weight
		})
		targets := make([]Target, 0, len(addrs))
		for _, a := range addrs {
			targets = append(targets, Target{Host: trimTrailingDot(a.Target), Port: a.Port})
		}
		return targets, nil
	}

	// No SRV record, or the lookup failed outright: fall back to A/AAAA on
	// host directly (spec §4.B: "on failure it falls back to A/AAAA on host
	// directly").
	if _, err := net.DefaultResolver.LookupHost(ctx, ascii); err != nil {
		return nil, fmt.Errorf("transport: could not resolve %q: %w", host, err)
	}
	return []Target{{Host: ascii, Port: defaultPort}}, nil
}

func trimTrailingDot(s string) string {
	if n := len(s); n > 0 && s[n-1] == '.' {
		return s[:n-1]
	}
	return s
}
