package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dennisdiepolder/qcdash/internal/presence"
	"github.com/dennisdiepolder/qcdash/internal/report"
	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/fatih/color"
)

func printViewer(w io.Writer, v types.Viewer) {
	green := color.New(color.FgGreen)
	green.Fprintf(w, "  Name:   ")
	fmt.Fprintln(w, v.Name)
	green.Fprintf(w, "  Role:   ")
	fmt.Fprintln(w, v.Role)
	green.Fprintf(w, "  Teams:  ")
	fmt.Fprintln(w, listOrNone(v.Teams))
	green.Fprintf(w, "  Shifts: ")
	fmt.Fprintln(w, listOrNone(v.Shifts))
}

func printReport(w io.Writer, rep *report.Report) {
	cyan := color.New(color.FgCyan)
	cyan.Fprintf(w, "Off-queue time %s .. %s (%s view)\n\n", rep.Start, rep.End, rep.View)

	if len(rep.Rows) == 0 {
		fmt.Fprintln(w, "No agents match.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AGENT\tEXT\tOFF QUEUE\tEXCLUDED\tSTATUS")
	for _, row := range rep.Rows {
		excluded := "-"
		if row.ExcludedIntervals > 0 {
			excluded = fmt.Sprintf("%d (%s)", row.ExcludedIntervals, presence.FormatHMS(row.ExcludedSeconds))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", row.AgentName, row.VoipID, row.OffQueueFormatted, excluded, statusLabel(row.Status))
	}
	tw.Flush()

	fmt.Fprintln(w)
	cyan.Fprintf(w, "In line now: %d\n", len(rep.InLine))
	if rep.MalformedDropped > 0 {
		color.New(color.FgYellow).Fprintf(w, "%d malformed events ignored\n", rep.MalformedDropped)
	}
}

func printEvents(w io.Writer, logs []report.AgentEvents) {
	if len(logs) == 0 {
		fmt.Fprintln(w, "No events.")
		return
	}
	cyan := color.New(color.FgCyan)
	for _, agent := range logs {
		cyan.Fprintf(w, "%s (%s)\n", agent.AgentName, agent.VoipID)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, e := range agent.Events {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", e.Time.Format("2006-01-02 15:04:05"), e.Queue, e.Kind)
		}
		tw.Flush()
	}
}

func printActivity(w io.Writer, entries []types.ActivityEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No activity.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tUSER\tTYPE\tMESSAGE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Timestamp, e.User, e.Type, e.Message)
	}
	tw.Flush()
}

func statusLabel(s types.PresenceStatus) string {
	switch s {
	case types.StatusOnQueue:
		return color.GreenString("on queue")
	case types.StatusOffQueue:
		return color.RedString("off queue")
	}
	return color.New(color.Faint).Sprint("no events")
}

func listOrNone(v []string) string {
	if len(v) == 0 {
		return "(none)"
	}
	return strings.Join(v, ", ")
}
