// Package inspect renders reports over the invocation journal.
package inspect

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mattjoyce/tokenforge/internal/storage"
)

// Report is the structured JSON representation of a journal report.
type Report struct {
	Total    int              `json:"total"`
	OK       int              `json:"ok"`
	Failed   int              `json:"failed"`
	Since    time.Time        `json:"since,omitzero"`
	Commands []CommandSummary `json:"commands"`
	// Failures counts failed invocations by error kind.
	Failures map[string]int  `json:"failures,omitempty"`
	Entries  []storage.Entry `json:"entries"`
}

// CommandSummary aggregates the entries of one command.
type CommandSummary struct {
	Command       string  `json:"command"`
	Calls         int     `json:"calls"`
	Failed        int     `json:"failed"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
	MaxDurationMS int64   `json:"max_duration_ms"`
}

// Summarize aggregates entries, which are expected newest first.
func Summarize(entries []storage.Entry) Report {
	r := Report{Entries: entries, Commands: []CommandSummary{}}
	if entries == nil {
		r.Entries = []storage.Entry{}
	}

	byCommand := map[string]*CommandSummary{}
	totals := map[string]int64{}
	for _, e := range entries {
		r.Total++
		if r.Since.IsZero() || e.StartedAt.Before(r.Since) {
			r.Since = e.StartedAt
		}

		cs, ok := byCommand[e.Command]
		if !ok {
			cs = &CommandSummary{Command: e.Command}
			byCommand[e.Command] = cs
		}
		cs.Calls++
		totals[e.Command] += e.DurationMS
		if e.DurationMS > cs.MaxDurationMS {
			cs.MaxDurationMS = e.DurationMS
		}

		if e.Status == storage.StatusOK {
			r.OK++
			continue
		}
		r.Failed++
		cs.Failed++
		if r.Failures == nil {
			r.Failures = map[string]int{}
		}
		kind := e.ErrorKind
		if kind == "" {
			kind = "unknown"
		}
		r.Failures[kind]++
	}

	for name, cs := range byCommand {
		cs.AvgDurationMS = float64(totals[name]) / float64(cs.Calls)
		r.Commands = append(r.Commands, *cs)
	}
	sort.Slice(r.Commands, func(i, j int) bool {
		if r.Commands[i].Calls != r.Commands[j].Calls {
			return r.Commands[i].Calls > r.Commands[j].Calls
		}
		return r.Commands[i].Command < r.Commands[j].Command
	})

	return r
}

// BuildReport renders a terminal-friendly report.
func BuildReport(entries []storage.Entry) string {
	report := Summarize(entries)

	var out strings.Builder
	fmt.Fprintf(&out, "Invocation Report\n")
	fmt.Fprintf(&out, "Entries     : %d (%d ok, %d failed)\n", report.Total, report.OK, report.Failed)
	if !report.Since.IsZero() {
		fmt.Fprintf(&out, "Since       : %s\n", report.Since.UTC().Format(time.RFC3339))
	}
	if report.Total == 0 {
		return out.String()
	}

	fmt.Fprintf(&out, "\n")
	for _, cs := range report.Commands {
		fmt.Fprintf(&out, "%-28s calls=%-4d failed=%-4d avg=%.1fms max=%dms\n",
			cs.Command, cs.Calls, cs.Failed, cs.AvgDurationMS, cs.MaxDurationMS)
	}

	if len(report.Failures) > 0 {
		kinds := make([]string, 0, len(report.Failures))
		for k := range report.Failures {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		fmt.Fprintf(&out, "\nFailures by kind:\n")
		for _, k := range kinds {
			fmt.Fprintf(&out, "  %-20s %d\n", k, report.Failures[k])
		}
	}

	fmt.Fprintf(&out, "\nRecent:\n")
	for _, e := range report.Entries {
		window := e.Window
		if window == "" {
			window = "-"
		}
		line := fmt.Sprintf("  %s  %-28s %-8s %-6s %4dms",
			e.StartedAt.Format("15:04:05"), e.Command, window, e.Status, e.DurationMS)
		if e.Status != storage.StatusOK {
			line += fmt.Sprintf("  [%s] %s", e.ErrorKind, e.Error)
		}
		fmt.Fprintln(&out, line)
	}

	return out.String()
}

// BuildJSONReport renders the report as indented JSON.
func BuildJSONReport(entries []storage.Entry) ([]byte, error) {
	return json.MarshalIndent(Summarize(entries), "", "  ")
}
