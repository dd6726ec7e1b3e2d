package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Rishabh-hub-code/babel-stream-talk/internal/captions"
)

// RoomInfo is the shareable room banner shown while waiting for a peer
type RoomInfo struct {
	RoomID   string
	RoomLink string
}

func NewRoomInfo(roomID, roomLink string) *RoomInfo {
	return &RoomInfo{
		RoomID:   roomID,
		RoomLink: roomLink,
	}
}

func (r *RoomInfo) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Room Ready!\n\n%s Room ID:    %s\n%s Room Link:  %s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconLink, MutedStyle.Render(r.RoomLink),
	)

	return boxStyle.Render(content)
}

// TranscriptTableView renders the final transcript as a table, one row per
// caption in receipt order.
func TranscriptTableView(events []captions.Event) string {
	if len(events) == 0 {
		return MutedStyle.Render("No captions were recorded")
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleRounded)
	tbl.AppendHeader(table.Row{"#", "Time", "Speaker", "Caption", "Translation"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Caption", WidthMax: 40},
		{Name: "Translation", WidthMax: 40},
		{Name: "#", Align: text.AlignRight},
	})

	for i, ev := range events {
		stamp := time.UnixMilli(ev.TimestampMs).Format("15:04:05")
		tbl.AppendRow(table.Row{i + 1, stamp, ev.Speaker, ev.Text, ev.Translation})
	}

	return tbl.Render()
}

// CallSummary holds the end-of-call statistics.
type CallSummary struct {
	RoomID         string
	Duration       time.Duration
	Captions       int
	Speakers       int
	TranscriptPath string
}

func CallSummaryView(summary CallSummary) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleRounded)
	tbl.AppendHeader(table.Row{"Metric", "Value"})
	tbl.AppendRows([]table.Row{
		{"Room", summary.RoomID},
		{"Duration", summary.Duration.Round(time.Second).String()},
		{"Captions", summary.Captions},
		{"Speakers", summary.Speakers},
	})
	if summary.TranscriptPath != "" {
		tbl.AppendRow(table.Row{"Transcript", summary.TranscriptPath})
	}
	return tbl.Render()
}

// RenderCallSummary prints the summary and transcript after the call view
// has exited the alternate screen.
func RenderCallSummary(summary CallSummary, events []captions.Event) {
	fmt.Println(TitleStyle.Render(fmt.Sprintf("%s Call Summary", IconCall)))
	fmt.Println(CallSummaryView(summary))
	fmt.Println()
	fmt.Println(TranscriptTableView(events))
}
