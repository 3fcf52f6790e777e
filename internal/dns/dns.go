// Package dns resolves the relay host, falling back to public resolvers when
// the system resolver is broken (captive portals, misconfigured VPNs).
package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// PublicDNS are servers to be queried if a local lookup fails
var PublicDNS = []string{
	"1.1.1.1:53",         // Cloudflare
	"1.0.0.1:53",         // Cloudflare
	"8.8.8.8:53",         // Google
	"8.8.4.4:53",         // Google
	"9.9.9.9:53",         // Quad9
	"149.112.112.112:53", // Quad9
	"208.67.222.222:53",  // Cisco OpenDNS
}

var errNoAddress = errors.New("no address records")

// Resolver looks a name up locally first and then races Servers.
type Resolver struct {
	Servers      []string
	LocalTimeout time.Duration
	RaceTimeout  time.Duration

	// SkipLocal disables the system resolver; used in tests.
	SkipLocal bool
}

// Default is the resolver used by Lookup.
var Default = &Resolver{
	Servers:      PublicDNS,
	LocalTimeout: time.Second,
	RaceTimeout:  2 * time.Second,
}

// Lookup resolves a hostname to an IP address using the Default resolver.
func Lookup(ctx context.Context, host string) (string, error) {
	return Default.Lookup(ctx, host)
}

// Lookup resolves host, preferring IPv4. Literal IPs are returned unchanged.
func (r *Resolver) Lookup(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	if !r.SkipLocal {
		if ip, err := r.localLookup(ctx, host); err == nil {
			return ip, nil
		}
	}

	return r.race(ctx, host)
}

func (r *Resolver) localLookup(ctx context.Context, host string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.LocalTimeout)
	defer cancel()

	ips, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	return preferIPv4(ips)
}

func (r *Resolver) race(ctx context.Context, host string) (string, error) {
	if len(r.Servers) == 0 {
		return "", fmt.Errorf("resolve %s: no fallback servers", host)
	}

	type result struct {
		ip  string
		err error
	}

	ctx, cancel := context.WithTimeout(ctx, r.RaceTimeout)
	defer cancel()

	results := make(chan result, len(r.Servers))
	for _, server := range r.Servers {
		go func(server string) {
			ip, err := query(ctx, host, server)
			results <- result{ip: ip, err: err}
		}(server)
	}

	var lastErr error
	for range r.Servers {
		select {
		case res := <-results:
			if res.err == nil {
				return res.ip, nil
			}
			lastErr = res.err
		case <-ctx.Done():
			return "", fmt.Errorf("resolve %s: public DNS race timed out", host)
		}
	}

	return "", fmt.Errorf("resolve %s: all %d servers failed: %w", host, len(r.Servers), lastErr)
}

// query asks one server for A then AAAA records.
func query(ctx context.Context, host, server string) (string, error) {
	c := new(dns.Client)

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		m := new(dns.Msg)
		m.SetQuestion(dns.Fqdn(host), qtype)
		m.RecursionDesired = true

		in, _, err := c.ExchangeContext(ctx, m, server)
		if err != nil {
			return "", err
		}
		if in.Rcode != dns.RcodeSuccess {
			return "", fmt.Errorf("%s: %s", server, dns.RcodeToString[in.Rcode])
		}

		for _, rr := range in.Answer {
			switch rec := rr.(type) {
			case *dns.A:
				return rec.A.String(), nil
			case *dns.AAAA:
				return rec.AAAA.String(), nil
			}
		}
	}

	return "", errNoAddress
}

func preferIPv4(ips []string) (string, error) {
	if len(ips) == 0 {
		return "", errNoAddress
	}
	for _, ip := range ips {
		if net.ParseIP(ip).To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}
