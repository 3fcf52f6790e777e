package dns

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func startServer(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("dns server did not start")
	}
	return pc.LocalAddr().String()
}

func TestLookupFallsBackToServers(t *testing.T) {
	addr := startServer(t, func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		if req.Question[0].Qtype == dns.TypeA {
			m.Answer = append(m.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: req.Question[0].Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
				A:   net.ParseIP("10.1.2.3"),
			})
		}
		_ = w.WriteMsg(m)
	})

	r := &Resolver{Servers: []string{addr}, RaceTimeout: 2 * time.Second, SkipLocal: true}
	ip, err := r.Lookup(context.Background(), "relay.liteshare.test")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ip != "10.1.2.3" {
		t.Fatalf("ip = %q, want 10.1.2.3", ip)
	}
}

func TestLookupReportsFailure(t *testing.T) {
	addr := startServer(t, func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetRcode(req, dns.RcodeNameError)
		_ = w.WriteMsg(m)
	})

	r := &Resolver{Servers: []string{addr}, RaceTimeout: 2 * time.Second, SkipLocal: true}
	if _, err := r.Lookup(context.Background(), "missing.liteshare.test"); err == nil {
		t.Fatal("expected error for NXDOMAIN")
	}
}

func TestLookupLiteralIP(t *testing.T) {
	r := &Resolver{SkipLocal: true}
	ip, err := r.Lookup(context.Background(), "127.0.0.1")
	if err != nil || ip != "127.0.0.1" {
		t.Fatalf("Lookup literal = %q, %v", ip, err)
	}
}

func TestPreferIPv4(t *testing.T) {
	ip, err := preferIPv4([]string{"::1", "192.0.2.1"})
	if err != nil || ip != "192.0.2.1" {
		t.Fatalf("preferIPv4 = %q, %v", ip, err)
	}
	if _, err := preferIPv4(nil); err == nil {
		t.Fatal("expected error for empty list")
	}
}
