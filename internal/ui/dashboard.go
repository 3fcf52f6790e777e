package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/BioHazard786/liteshare/internal/session"
	"github.com/BioHazard786/liteshare/internal/telemetry"
)

// Actions are the controls bound to dashboard keys. A nil action hides its
// key. They run off the UI goroutine.
type Actions struct {
	ToggleShare func(share bool) error
	ToggleLite  func(lite bool) error
	HangUp      func() error
}

// Dashboard is the live view of a session.
type Dashboard struct {
	program *tea.Program
	model   *dashboardModel
	updates chan tea.Msg
}

type (
	statusMsg       session.Status
	localQualityMsg telemetry.Snapshot
	peerQualityMsg  telemetry.Snapshot
	remoteVideoMsg  string
	noticeMsg       string
	actionDoneMsg   struct{ err error }
)

type dashboardModel struct {
	title   string
	actions Actions
	updates chan tea.Msg
	spinner spinner.Model

	status      session.Status
	local       *telemetry.Snapshot
	peer        *telemetry.Snapshot
	remoteVideo string
	notice      string
	actionErr   error
	quitting    bool
}

// NewDashboard builds a dashboard titled title. Run starts it.
func NewDashboard(title string, actions Actions, opts ...tea.ProgramOption) *Dashboard {
	updates := make(chan tea.Msg, 64)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	m := &dashboardModel{
		title:   title,
		actions: actions,
		updates: updates,
		spinner: s,
	}
	return &Dashboard{
		model:   m,
		updates: updates,
		program: tea.NewProgram(m, opts...),
	}
}

// Run blocks until the user quits or Quit is called.
func (d *Dashboard) Run() error {
	_, err := d.program.Run()
	return err
}

func (d *Dashboard) Quit() {
	d.program.Quit()
}

// push drops updates while the UI is behind; the next one supersedes it.
func (d *Dashboard) push(msg tea.Msg) {
	select {
	case d.updates <- msg:
	default:
	}
}

func (d *Dashboard) SetStatus(s session.Status) { d.push(statusMsg(s)) }

// SetLocalQuality shows the controller's latest snapshot.
func (d *Dashboard) SetLocalQuality(s telemetry.Snapshot) { d.push(localQualityMsg(s)) }

// SetPeerQuality shows the snapshot reported by the sharing peer.
func (d *Dashboard) SetPeerQuality(s telemetry.Snapshot) { d.push(peerQualityMsg(s)) }

// SetRemoteVideo describes the inbound video, or clears it with "".
func (d *Dashboard) SetRemoteVideo(desc string) { d.push(remoteVideoMsg(desc)) }

func (d *Dashboard) Notice(text string) { d.push(noticeMsg(text)) }

func (m *dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *dashboardModel) listen() tea.Cmd {
	return func() tea.Msg {
		return <-m.updates
	}
}

func (m *dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statusMsg:
		m.status = session.Status(msg)
		if m.status.Phase != session.Sharing {
			m.local = nil
		}
		return m, m.listen()

	case localQualityMsg:
		s := telemetry.Snapshot(msg)
		m.local = &s
		return m, m.listen()

	case peerQualityMsg:
		s := telemetry.Snapshot(msg)
		m.peer = &s
		return m, m.listen()

	case remoteVideoMsg:
		m.remoteVideo = string(msg)
		if msg == "" {
			m.peer = nil
		}
		return m, m.listen()

	case noticeMsg:
		m.notice = string(msg)
		return m, m.listen()

	case actionDoneMsg:
		m.actionErr = msg.err
		return m, nil
	}
	return m, nil
}

func (m *dashboardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "l":
		if m.actions.ToggleLite == nil {
			return m, nil
		}
		lite := !m.status.LiteMode
		return m, runAction(func() error { return m.actions.ToggleLite(lite) })

	case "s":
		if m.actions.ToggleShare == nil {
			return m, nil
		}
		share := m.status.Phase != session.Sharing
		return m, runAction(func() error { return m.actions.ToggleShare(share) })

	case "h":
		if m.actions.HangUp == nil {
			return m, nil
		}
		return m, runAction(m.actions.HangUp)
	}
	return m, nil
}

func runAction(fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: fn()}
	}
}

func (m *dashboardModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	title := m.title
	if m.status.Room != "" {
		title = fmt.Sprintf("%s  %s %s", title, IconRoom, m.status.Room)
	}
	b.WriteString(HeaderStyle.Render(title) + "\n")
	b.WriteString(m.statusLine() + "\n")

	if m.notice != "" {
		b.WriteString(MutedStyle.Render(m.notice) + "\n")
	}
	if m.actionErr != nil {
		b.WriteString(ErrorStyle.Render(IconError+" "+m.actionErr.Error()) + "\n")
	}

	var panels []string
	if m.local != nil {
		panels = append(panels, PanelStyle.Render(qualityPanel(IconScreen+" Sending", m.local)))
	}
	if m.remoteVideo != "" || m.peer != nil {
		body := IconViewer + " " + orNA(m.remoteVideo)
		if m.peer != nil {
			body = qualityPanel(IconViewer+" Receiving "+orNA(m.remoteVideo), m.peer)
		}
		panels = append(panels, PeerPanelStyle.Render(body))
	}
	if len(panels) > 0 {
		b.WriteString("\n" + lipgloss.JoinHorizontal(lipgloss.Top, panels...) + "\n")
	}

	b.WriteString(FooterStyle.Render(m.keyHints()))
	return b.String()
}

func (m *dashboardModel) statusLine() string {
	st := m.status
	text := st.Text
	if text == "" {
		text = "Starting"
	}

	var line string
	switch {
	case st.Err != nil:
		line = ErrorStyle.Render(IconError + " " + text)
	case st.Phase == session.Sharing:
		line = SuccessStyle.Render(IconScreen + " " + text)
	case st.Connected:
		line = fmt.Sprintf("%s %s", m.spinner.View(), text)
	default:
		line = WarningStyle.Render(text)
	}

	if st.LiteMode {
		line += "  " + LiteBadgeStyle.Render(IconLite+" LITE")
	}
	return line
}

func qualityPanel(heading string, s *telemetry.Snapshot) string {
	badge := BadgeStyle
	if s.LiteMode {
		badge = LiteBadgeStyle
	}
	return fmt.Sprintf("%s  %s\n\n%s", BoldStyle.Render(heading), badge.Render(s.Label), s.String())
}

func (m *dashboardModel) keyHints() string {
	var hints []string
	if m.actions.ToggleShare != nil {
		if m.status.Phase == session.Sharing {
			hints = append(hints, "s stop sharing")
		} else {
			hints = append(hints, "s share screen")
		}
	}
	if m.actions.ToggleLite != nil {
		if m.status.LiteMode {
			hints = append(hints, "l lite off")
		} else {
			hints = append(hints, "l lite on")
		}
	}
	if m.actions.HangUp != nil {
		hints = append(hints, "h hang up")
	}
	hints = append(hints, "q quit")
	return strings.Join(hints, " • ")
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
