// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package plan

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vmware/pack-deploy/pkg/state"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Render formats the run outcome for terminal output, one line per target.
func (r *RunReport) Render() string {
	width := 0
	for _, t := range r.Targets {
		if len(t.Target) > width {
			width = len(t.Target)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", headerStyle.Render(fmt.Sprintf("release %s  plan %s", r.Release, r.Plan)))
	for _, t := range r.Targets {
		name := fmt.Sprintf("%-*s", width, t.Target)
		switch t.Status {
		case TargetSucceeded:
			fmt.Fprintf(&b, "  %s  %s  executed %d, skipped %d\n",
				name, okStyle.Render("ok         "), t.Executed, t.Skipped)
		case TargetAlreadyDone:
			fmt.Fprintf(&b, "  %s  %s  all %d steps already recorded\n",
				name, dimStyle.Render("up-to-date "), t.Skipped)
		case TargetInterrupted:
			fmt.Fprintf(&b, "  %s  %s  executed %d, skipped %d\n",
				name, warnStyle.Render("interrupted"), t.Executed, t.Skipped)
		case TargetFailed:
			fmt.Fprintf(&b, "  %s  %s  at %s: %v\n",
				name, failStyle.Render("FAILED     "), t.FailedStep, t.Err)
		}
	}
	return b.String()
}

// RenderRecords formats the ledger view of a release, grouped by target.
func RenderRecords(releaseID string, records []state.Record) string {
	if len(records) == 0 {
		return fmt.Sprintf("release %s: no recorded steps\n", releaseID)
	}

	width := 0
	for _, rec := range records {
		if len(rec.Step) > width {
			width = len(rec.Step)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", headerStyle.Render("release "+releaseID))
	currentTarget := ""
	for _, rec := range records {
		if rec.Target != currentTarget {
			currentTarget = rec.Target
			fmt.Fprintf(&b, "  %s\n", rec.Target)
		}
		fmt.Fprintf(&b, "    %-*s  %s  %s", width, rec.Step, renderState(rec.State),
			rec.StartedAt.Format(time.RFC3339))
		if rec.State == state.StateFailed && rec.Error != "" {
			fmt.Fprintf(&b, "  %s", rec.Error)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderState(recordState string) string {
	padded := fmt.Sprintf("%-9s", recordState)
	switch recordState {
	case state.StateSucceeded:
		return okStyle.Render(padded)
	case state.StateFailed:
		return failStyle.Render(padded)
	default:
		return warnStyle.Render(padded)
	}
}
