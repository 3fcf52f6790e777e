package cmd

import (
	"testing"

	"github.com/BioHazard786/liteshare/internal/telemetry"
)

func TestSessionStatsCountsTransitions(t *testing.T) {
	var s sessionStats
	for _, p := range []string{"normal", "normal", "lite", "ultra", "ultra", "lite"} {
		s.observe(telemetry.Snapshot{Profile: p})
	}
	if got := s.transitions.Load(); got != 3 {
		t.Errorf("transitions = %d, want 3", got)
	}
	if got, _ := s.profile.Load().(string); got != "lite" {
		t.Errorf("final profile = %q", got)
	}
}

func TestClientFlagsLoad(t *testing.T) {
	t.Setenv("LITESHARE_RELAY", "ws://10.0.0.5:8000/ws")
	t.Setenv("LITESHARE_ROOM", "")

	f := clientFlags{token: "secret", lite: true}
	cfg, err := f.load(roomArg([]string{"team-sync"}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Room != "team-sync" || !cfg.LiteMode {
		t.Errorf("cfg = %+v", cfg)
	}
	if want := "ws://10.0.0.5:8000/ws?token=secret"; cfg.SignalingURL() != want {
		t.Errorf("SignalingURL = %q, want %q", cfg.SignalingURL(), want)
	}

	if _, err := (&clientFlags{relay: "http://nope"}).load(""); err == nil {
		t.Error("accepted a non-websocket relay URL")
	}
}
