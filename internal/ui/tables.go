package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/BioHazard786/liteshare/internal/discovery"
)

// RelayTableView lists relays found on the local network.
func RelayTableView(relays []discovery.Relay) string {
	if len(relays) == 0 {
		return MutedStyle.Render("No relays found on the local network")
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	t.Style().Color.Header = text.Colors{text.FgCyan, text.Bold}
	t.SetTitle(IconRelay + " Relays")
	t.AppendHeader(table.Row{"#", "Name", "Endpoint", "Auth", "Version"})

	for i, r := range relays {
		auth := "open"
		if r.TokenRequired {
			auth = "token"
		}
		version := r.Version
		if version == "" {
			version = "-"
		}
		t.AppendRow(table.Row{i + 1, r.Instance, r.URL(), auth, version})
	}
	return t.Render()
}

func RenderRelayTable(relays []discovery.Relay) {
	fmt.Println(RelayTableView(relays))
}

// SessionSummary is printed when a share or view session ends.
type SessionSummary struct {
	Room         string
	Duration     time.Duration
	FinalProfile string
	Transitions  int
	Recording    string
}

func SessionSummaryView(s SessionSummary) string {
	rows := [][]string{
		{"Room", s.Room},
		{"Duration", s.Duration.Round(time.Second).String()},
	}
	if s.FinalProfile != "" {
		rows = append(rows,
			[]string{"Final profile", s.FinalProfile},
			[]string{"Quality changes", fmt.Sprint(s.Transitions)},
		)
	}
	if s.Recording != "" {
		rows = append(rows, []string{"Recording", s.Recording})
	}

	tbl := ltable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Session", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == ltable.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func RenderSessionSummary(s SessionSummary) {
	fmt.Println(SessionSummaryView(s))
}
