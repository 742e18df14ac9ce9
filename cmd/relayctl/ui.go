package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
)

var (
	primary = lipgloss.Color("#22d3ee")
	success = lipgloss.Color("#10B981")
	failure = lipgloss.Color("#EF4444")
	muted   = lipgloss.Color("#6B7280")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(primary)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(success)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(failure)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)

	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2)
)

func printTitle(text string) {
	fmt.Println(titleStyle.Render(text))
}

func printStep(ok bool, text string, elapsed time.Duration) {
	mark := successStyle.Render("✓")
	if !ok {
		mark = errorStyle.Render("✗")
	}
	fmt.Printf("  %s %s %s\n", mark, text, mutedStyle.Render(elapsed.Round(time.Millisecond).String()))
}

func printError(text string) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+text)
}

func printSummary(passed bool, steps int) {
	style := summaryStyle.BorderForeground(success)
	text := successStyle.Render(fmt.Sprintf("PROBE PASSED (%d steps)", steps))
	if !passed {
		style = summaryStyle.BorderForeground(failure)
		text = errorStyle.Render("PROBE FAILED")
	}
	fmt.Println(style.Render(text))
}

func renderRooms(rooms []roomInfo) {
	if len(rooms) == 0 {
		fmt.Println(mutedStyle.Render("No rooms"))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Room", "Participants", "Capacity", "Created"})
	for _, r := range rooms {
		participants := strings.Join(r.Participants, ", ")
		if participants == "" {
			participants = "-"
		}
		t.AppendRow(table.Row{
			r.ID,
			participants,
			fmt.Sprintf("%d/%d", len(r.Participants), r.MaxParticipants),
			r.CreatedAt.Local().Format(time.DateTime),
		})
	}
	t.Render()
}
