// Package output provides terminal output utilities for pomoblock.
//
// This package includes:
//   - Table rendering for blocking status, history events and backups
//   - Doctor check lists
//   - A session countdown and a spinner for requests waiting on elevation
//
// All rendering functions use plain characters and ANSI color codes when
// stdout is a terminal. Progress indicators are safe for concurrent use.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/pomoblock/internal/blocker"
	"github.com/blackwell-systems/pomoblock/internal/store"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderStatus describes the blocking state in a few lines.
func RenderStatus(st blocker.Status) string {
	var sb strings.Builder

	if !st.Active {
		sb.WriteString(fmt.Sprintf("%-10s %s\n", "Blocking:", colorize(colorGray, "off")))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("%-10s %s\n", "Blocking:", colorize(colorGreen, "on")))
	if !st.Since.IsZero() {
		sb.WriteString(fmt.Sprintf("%-10s %s (%s)\n", "Since:",
			st.Since.Local().Format("15:04:05"), humanize.Time(st.Since)))
	}
	sb.WriteString(fmt.Sprintf("%-10s %d\n", "Sites:", len(st.Domains)))
	for _, d := range st.Domains {
		sb.WriteString("  " + d + "\n")
	}
	return sb.String()
}

// RenderDomainList renders a numbered list of domains.
func RenderDomainList(domains []string) string {
	if len(domains) == 0 {
		return "Blocklist is empty.\n"
	}

	var sb strings.Builder
	for i, d := range domains {
		sb.WriteString(fmt.Sprintf("%3d. %s\n", i+1, d))
	}
	return sb.String()
}

// RenderEventTable renders history events in the order given.
func RenderEventTable(events []*store.Event) string {
	if len(events) == 0 {
		return "No history yet.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-16s %-12s %-7s %-28s %s\n",
		"When", "Action", "Result", "Sites", "Detail"))
	sb.WriteString(strings.Repeat("─", 90))
	sb.WriteString("\n")

	for _, ev := range events {
		result := colorize(colorGreen, fmt.Sprintf("%-7s", "ok"))
		detail := ev.Message
		if !ev.Success {
			result = colorize(colorRed, fmt.Sprintf("%-7s", "failed"))
			detail = ev.Error
		}

		sb.WriteString(fmt.Sprintf("%-16s %-12s %s %-28s %s\n",
			truncate(humanize.Time(ev.CreatedAt), 16),
			ev.Kind,
			result,
			formatDomains(ev.Domains, 28),
			truncate(detail, 60)))
	}

	return sb.String()
}

// RenderSnapshotTable renders recorded hosts backups.
func RenderSnapshotTable(snapshots []*store.Snapshot) string {
	if len(snapshots) == 0 {
		return "No backups recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-5s %-16s %-9s %-12s %-14s %s\n",
		"ID", "Created", "Size", "Reason", "SHA-256", "Path"))
	sb.WriteString(strings.Repeat("─", 90))
	sb.WriteString("\n")

	for _, snap := range snapshots {
		sb.WriteString(fmt.Sprintf("%-5d %-16s %-9s %-12s %-14s %s\n",
			snap.ID,
			truncate(humanize.Time(snap.CreatedAt), 16),
			humanize.Bytes(uint64(snap.SizeBytes)),
			truncate(snap.Reason, 12),
			truncate(snap.Checksum, 12),
			snap.SnapshotPath))
	}

	return sb.String()
}

// CheckStatus is the outcome of one doctor check.
type CheckStatus int

const (
	CheckOK CheckStatus = iota
	CheckWarn
	CheckFail
)

// Check is one line of doctor output.
type Check struct {
	Name   string
	Status CheckStatus
	Detail string
}

// RenderChecks renders doctor checks with a status marker per line.
func RenderChecks(checks []Check) string {
	var sb strings.Builder
	for _, c := range checks {
		var mark string
		switch c.Status {
		case CheckOK:
			mark = colorize(colorGreen, "✓")
		case CheckWarn:
			mark = colorize(colorYellow, "!")
		default:
			mark = colorize(colorRed, "✗")
		}
		sb.WriteString(fmt.Sprintf("%s %-22s %s\n", mark, c.Name, c.Detail))
	}
	return sb.String()
}

// FormatDuration renders a session length such as 25m or 1h30m.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = s[:len(s)-2]
	}
	if strings.HasSuffix(s, "h0m") {
		s = s[:len(s)-2]
	}
	return s
}

// formatDomains joins domains, eliding the rest when they do not fit.
func formatDomains(domains []string, maxLen int) string {
	if len(domains) == 0 {
		return "-"
	}
	joined := strings.Join(domains, ",")
	if len(joined) <= maxLen {
		return joined
	}
	first := truncate(domains[0], maxLen-8)
	return fmt.Sprintf("%s +%d", first, len(domains)-1)
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
