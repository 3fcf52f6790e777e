// Package discovery advertises relays on the local network over mDNS and
// finds them again.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

// DNS-SD service parameters.
const (
	Service       = "_liteshare._tcp"
	Domain        = "local."
	DefaultBrowse = 3 * time.Second
)

// TXT record keys.
const (
	txtPath    = "path"
	txtAuth    = "auth"
	txtVersion = "version"
)

var ErrInvalidPort = errors.New("invalid port")

// Relay is a relay found on the network.
type Relay struct {
	Instance string
	Host     string
	Port     int
	IPs      []net.IP
	Path     string
	// TokenRequired is true when the relay checks ?token=.
	TokenRequired bool
	Version       string
}

// URL returns the WebSocket endpoint of the relay, preferring IPv4.
func (r Relay) URL() string {
	host := strings.TrimSuffix(r.Host, ".")
	if ip := preferredIP(r.IPs); ip != nil {
		host = ip.String()
	}
	path := r.Path
	if path == "" {
		path = "/ws"
	}
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(host, fmt.Sprint(r.Port)), path)
}

func preferredIP(ips []net.IP) net.IP {
	for _, ip := range ips {
		if ip.To4() != nil {
			return ip
		}
	}
	if len(ips) > 0 {
		return ips[0]
	}
	return nil
}

// Server is a running advertisement.
type Server interface {
	Shutdown()
}

// Registrar publishes a service.
type Registrar func(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (Server, error)

func zeroconfRegister(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (Server, error) {
	srv, err := zeroconf.Register(instance, service, domain, port, txt, ifaces)
	if err != nil {
		return nil, err
	}
	return srv, nil
}

// Browser lists service entries. *zeroconf.Resolver satisfies it.
type Browser interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// Advertisement describes how a relay is published.
type Advertisement struct {
	Instance      string
	Port          int
	Path          string
	TokenRequired bool
	Version       string
}

// TXT renders the advertisement's TXT records.
func (a Advertisement) TXT() []string {
	auth := "none"
	if a.TokenRequired {
		auth = "token"
	}
	txt := []string{txtPath + "=" + a.Path, txtAuth + "=" + auth}
	if a.Version != "" {
		txt = append(txt, txtVersion+"="+a.Version)
	}
	return txt
}

// Advertise publishes a relay with register, or over zeroconf when nil.
func Advertise(a Advertisement, register Registrar) (Server, error) {
	if a.Port <= 0 || a.Port > 65535 {
		return nil, fmt.Errorf("advertise %d: %w", a.Port, ErrInvalidPort)
	}
	if a.Instance == "" {
		host, _ := os.Hostname()
		a.Instance = "liteshare-" + host
	}
	if a.Path == "" {
		a.Path = "/ws"
	}
	if register == nil {
		register = zeroconfRegister
	}

	srv, err := register(a.Instance, Service, Domain, a.Port, a.TXT(), nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	return srv, nil
}

// Browse collects relays until ctx ends. Without a deadline on ctx, browsing
// stops after DefaultBrowse. A nil browser uses a new zeroconf resolver.
func Browse(ctx context.Context, b Browser) ([]Relay, error) {
	if b == nil {
		r, err := zeroconf.NewResolver(nil)
		if err != nil {
			return nil, fmt.Errorf("mdns resolver: %w", err)
		}
		b = r
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultBrowse)
		defer cancel()
	}

	entries := make(chan *zeroconf.ServiceEntry)
	errCh := make(chan error, 1)
	go func() {
		errCh <- b.Browse(ctx, Service, Domain, entries)
	}()

	seen := make(map[string]Relay)
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return sorted(seen), nil
			}
			if entry == nil {
				continue
			}
			r := entryToRelay(entry)
			seen[r.Instance] = r

		case err := <-errCh:
			if err != nil {
				return nil, fmt.Errorf("mdns browse: %w", err)
			}
			errCh = nil

		case <-ctx.Done():
			return sorted(seen), nil
		}
	}
}

func sorted(m map[string]Relay) []Relay {
	out := make([]Relay, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instance < out[j].Instance })
	return out
}

func entryToRelay(e *zeroconf.ServiceEntry) Relay {
	txt := ParseTXT(e.Text)

	ips := make([]net.IP, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
	ips = append(ips, e.AddrIPv4...)
	ips = append(ips, e.AddrIPv6...)

	return Relay{
		Instance:      e.Instance,
		Host:          e.HostName,
		Port:          e.Port,
		IPs:           ips,
		Path:          txt[txtPath],
		TokenRequired: txt[txtAuth] == "token",
		Version:       txt[txtVersion],
	}
}

// ParseTXT splits key=value TXT records. Keys without a value map to "".
func ParseTXT(records []string) map[string]string {
	out := make(map[string]string, len(records))
	for _, rec := range records {
		k, v, _ := strings.Cut(rec, "=")
		if k == "" {
			continue
		}
		out[strings.ToLower(k)] = v
	}
	return out
}
