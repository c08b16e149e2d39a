// Package observability provides formatted CLI output and Prometheus metrics for generation runs.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/content-studio/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// progressBarWidth is the number of cells in a progress bar
	progressBarWidth = 30
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		line = truncate(line, boxWidth-4)
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintProgress writes a single-line progress update for a run
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(run types.Run) {
	fmt.Fprintf(p.out, "%s %5.1f%%  %-9s %s\n", progressBar(run.Percentage), run.Percentage, run.Stage, run.Message)
}

// PrintRun outputs a summary of a run: its stage, status and known artifacts
func (p *Printer) PrintRun(run *types.Run) {
	if run == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:      %s\n", run.ID))
	sb.WriteString(fmt.Sprintf("Type:     %s (%s)\n", run.Request.ContentType, run.Request.Language))
	sb.WriteString(fmt.Sprintf("Stage:    %s\n", run.Stage))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", run.Status))
	sb.WriteString(fmt.Sprintf("Progress: %s %.0f%%\n", progressBar(run.Percentage), run.Percentage))
	if run.Message != "" {
		sb.WriteString(fmt.Sprintf("Message:  %s\n", run.Message))
	}
	if run.Error != "" {
		sb.WriteString(fmt.Sprintf("Error:    %s\n", run.Error))
	}

	if len(run.Artifacts) > 0 {
		sb.WriteString("\nArtifacts:\n")
		kinds := make([]string, 0, len(run.Artifacts))
		for kind := range run.Artifacts {
			kinds = append(kinds, string(kind))
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			sb.WriteString(fmt.Sprintf("  • %-8s %s\n", kind, run.Artifacts[types.ArtifactKind(kind)]))
		}
	}

	title := "GENERATION RUN"
	if run.Status == types.StatusCompleted && run.Error != "" {
		title = "GENERATION RUN (completed with errors)"
	}
	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintHistory outputs the history list, most recent first
func (p *Printer) PrintHistory(records []types.HistoryRecord) {
	if len(records) == 0 {
		p.printBox("HISTORY", "No runs yet")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d runs\n\n", len(records)))
	for i, rec := range records {
		sb.WriteString(fmt.Sprintf("%-10s %-10s %3.0f%%  %s\n",
			shortID(rec.ID), rec.Status, rec.Percentage, rec.UpdatedAt.Format(time.DateTime)))
		sb.WriteString(fmt.Sprintf("  %s\n", truncate(rec.Prompt, 50)))
		if i < len(records)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("HISTORY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintPresets outputs the sample prompts for each content type
func (p *Printer) PrintPresets(presets map[types.ContentType]types.ContentPreset) {
	var sb strings.Builder
	first := true
	for _, ct := range types.ContentTypes {
		preset, ok := presets[ct]
		if !ok {
			continue
		}
		if !first {
			sb.WriteString("\n")
		}
		first = false
		sb.WriteString(fmt.Sprintf("%s (%s)\n", preset.Label, ct))
		count := min(len(preset.SamplePrompts), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", preset.SamplePrompts[i]))
		}
	}

	p.printBox("SAMPLE PROMPTS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintAPIKeys outputs the API keys of the account. Secrets are never shown here.
func (p *Printer) PrintAPIKeys(keys []types.APIKey) {
	if len(keys) == 0 {
		p.printBox("API KEYS", "No keys")
		return
	}

	var sb strings.Builder
	for _, k := range keys {
		state := "active"
		if k.RevokedAt != nil {
			state = "revoked"
		}
		sb.WriteString(fmt.Sprintf("%-12s %-20s %-8s %s\n", shortID(k.ID), truncate(k.Name, 20), state, k.Prefix))
	}

	p.printBox("API KEYS", strings.TrimSuffix(sb.String(), "\n"))
}

func progressBar(pct float64) string {
	filled := int(pct / 100 * progressBarWidth)
	filled = max(0, min(filled, progressBarWidth))
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled) + "]"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate shortens s to n runes, marking the cut with "..."
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
