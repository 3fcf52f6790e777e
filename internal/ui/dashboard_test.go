package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/liteshare/internal/discovery"
	"github.com/BioHazard786/liteshare/internal/session"
	"github.com/BioHazard786/liteshare/internal/telemetry"
)

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func newTestModel(a Actions) *dashboardModel {
	d := NewDashboard("LiteShare", a)
	return d.model
}

func TestLiteKeyTogglesFromCurrentStatus(t *testing.T) {
	var got []bool
	m := newTestModel(Actions{ToggleLite: func(lite bool) error {
		got = append(got, lite)
		return nil
	}})

	_, cmd := m.Update(key('l'))
	if cmd == nil {
		t.Fatal("no command for l")
	}
	cmd()

	m.Update(statusMsg(session.Status{LiteMode: true}))
	_, cmd = m.Update(key('l'))
	cmd()

	if len(got) != 2 || !got[0] || got[1] {
		t.Errorf("toggles = %v, want [true false]", got)
	}
}

func TestShareKeyFollowsPhase(t *testing.T) {
	var got []bool
	m := newTestModel(Actions{ToggleShare: func(share bool) error {
		got = append(got, share)
		return errors.New("capture denied")
	}})

	_, cmd := m.Update(key('s'))
	msg := cmd()
	m.Update(msg)
	if m.actionErr == nil {
		t.Error("action error not recorded")
	}

	m.Update(statusMsg(session.Status{Phase: session.Sharing}))
	_, cmd = m.Update(key('s'))
	cmd()

	if len(got) != 2 || !got[0] || got[1] {
		t.Errorf("share toggles = %v, want [true false]", got)
	}
}

func TestUnboundKeysDoNothing(t *testing.T) {
	m := newTestModel(Actions{})
	for _, r := range "lsh" {
		if _, cmd := m.Update(key(r)); cmd != nil {
			t.Errorf("key %c produced a command", r)
		}
	}
	if hints := m.keyHints(); hints != "q quit" {
		t.Errorf("hints = %q", hints)
	}
}

func TestViewShowsQualityPanels(t *testing.T) {
	m := newTestModel(Actions{})
	m.Update(statusMsg(session.Status{Phase: session.Sharing, Text: "Sharing screen", Room: "demo-room", Connected: true}))
	m.Update(localQualityMsg(telemetry.Snapshot{
		Profile: "lite", Label: "Lite", MeasuredKbps: 280, TargetKbps: 300, LiteMode: true,
	}))
	m.Update(remoteVideoMsg("video/VP8"))

	view := m.View()
	for _, want := range []string{"demo-room", "Sharing screen", "Profile: LITE (Lite)", "video/VP8", "q quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	// Leaving the sharing phase drops the local panel.
	m.Update(statusMsg(session.Status{Phase: session.Joined, Text: "Sharing stopped"}))
	if strings.Contains(m.View(), "Profile: LITE") {
		t.Error("local panel survived stop")
	}
}

func TestQuitClearsView(t *testing.T) {
	m := newTestModel(Actions{})
	_, cmd := m.Update(key('q'))
	if cmd == nil {
		t.Fatal("q did not quit")
	}
	if m.View() != "" {
		t.Error("view not cleared on quit")
	}
}

func TestRelayTable(t *testing.T) {
	if v := RelayTableView(nil); !strings.Contains(v, "No relays") {
		t.Errorf("empty view = %q", v)
	}

	v := RelayTableView([]discovery.Relay{{
		Instance: "office", Port: 8000, Path: "/ws", TokenRequired: true, Version: "1.0.0",
	}})
	for _, want := range []string{"office", "token", "1.0.0"} {
		if !strings.Contains(v, want) {
			t.Errorf("table missing %q:\n%s", want, v)
		}
	}
}
