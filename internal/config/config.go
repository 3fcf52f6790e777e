package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/pion/webrtc/v4"
)

// Default configuration values
const (
	DefaultRelayURL      = "ws://127.0.0.1:8000/ws"
	DefaultListenAddr    = "127.0.0.1:8000"
	DefaultRoom          = "demo-room"
	DefaultSTUN          = "stun:stun.l.google.com:19302"
	DefaultStatsInterval = 1500 * time.Millisecond
)

// Config holds client configuration
type Config struct {
	// RelayURL is the WebSocket endpoint of the signaling relay
	RelayURL string

	// Token is the shared credential presented to the relay
	Token string

	// Room joined when none is given on the command line
	Room string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	// LiteMode starts the session with the quality ceiling pinned at lite
	LiteMode bool

	// StatsInterval is the quality controller cadence
	StatsInterval time.Duration
}

// Options for loading config with CLI flag overrides
type Options struct {
	RelayURL   string
	Token      string
	Room       string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
	LiteMode   bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		RelayURL:      pick(opts.RelayURL, "LITESHARE_RELAY", DefaultRelayURL),
		Token:         pick(opts.Token, "LITESHARE_TOKEN", ""),
		Room:          pick(opts.Room, "LITESHARE_ROOM", DefaultRoom),
		STUNServer:    pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer:    pick(opts.TURNServer, "TURN_SERVER", ""),
		TURNUser:      pick(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:      pick(opts.TURNPass, "TURN_PASSWORD", ""),
		ForceRelay:    opts.ForceRelay,
		LiteMode:      opts.LiteMode,
		StatsInterval: DefaultStatsInterval,
	}

	if !cfg.LiteMode {
		if v, ok := os.LookupEnv("LITESHARE_LITE"); ok {
			lite, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("invalid LITESHARE_LITE %q: %w", v, err)
			}
			cfg.LiteMode = lite
		}
	}

	u, err := url.Parse(cfg.RelayURL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid relay URL %q: scheme must be ws or wss", cfg.RelayURL)
	}

	if cfg.ForceRelay && cfg.TURNServer == "" {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}

func pick(flag, env, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return def
}

// SignalingURL returns the relay endpoint with the credential attached
func (c *Config) SignalingURL() string {
	u, err := url.Parse(c.RelayURL)
	if err != nil {
		return c.RelayURL
	}
	if c.Token != "" {
		q := u.Query()
		q.Set("token", c.Token)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// ICEServers builds the pion ICE server list
func (c *Config) ICEServers() []webrtc.ICEServer {
	var servers []webrtc.ICEServer
	if c.STUNServer != "" {
		servers = append(servers, webrtc.ICEServer{URLs: []string{c.STUNServer}})
	}
	if turn := c.GetTURNServers(); turn != nil {
		servers = append(servers, webrtc.ICEServer{
			URLs:       turn,
			Username:   c.TURNUser,
			Credential: c.TURNPass,
		})
	}
	return servers
}

// RelayConfig holds relay server configuration
type RelayConfig struct {
	ListenAddr string

	// Token, when set, must be presented as ?token= on the WebSocket upgrade
	Token string

	// MessagesPerSecond bounds what a single client may push through the hub
	MessagesPerSecond float64
	MessageBurst      int

	// Advertise publishes the relay over mDNS
	Advertise bool
}

// RelayOptions for loading relay config with CLI flag overrides
type RelayOptions struct {
	ListenAddr string
	Token      string
	Advertise  bool
}

// LoadRelay reads relay configuration, flag > env > default
func LoadRelay(opts RelayOptions) (*RelayConfig, error) {
	cfg := &RelayConfig{
		ListenAddr:        pick(opts.ListenAddr, "LITESHARE_ADDR", DefaultListenAddr),
		Token:             pick(opts.Token, "LITESHARE_TOKEN", ""),
		MessagesPerSecond: 50,
		MessageBurst:      100,
		Advertise:         opts.Advertise,
	}
	return cfg, nil
}
