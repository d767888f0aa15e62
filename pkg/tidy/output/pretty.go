package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// PrettyFormatter renders a styled summary for terminals.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatTable(r))
	w.WriteString(f.formatFooter(r))
	w.WriteString("\n")

	if len(r.Warnings) > 0 {
		w.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
		w.WriteString("\n")
		for _, warning := range r.Warnings {
			w.WriteString(WarningStyle.Render("  " + warning))
			w.WriteString("\n")
		}
	}
	return nil
}

func (f *PrettyFormatter) formatHeader(r *Result) string {
	lines := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Directory:"), ValueStyle.Render(r.Root)),
		fmt.Sprintf("%s %s  %s %s  %s %s",
			LabelStyle.Render("Scanned:"), ValueStyle.Render(fmt.Sprintf("%d", r.Stats.Scanned)),
			LabelStyle.Render("Excluded:"), ValueStyle.Render(fmt.Sprintf("%d", r.Stats.Excluded)),
			LabelStyle.Render("Took:"), ValueStyle.Render(formatDuration(r.Stats.Duration))),
	}
	if r.DryRun {
		lines = append(lines, DryRunBadge.Render("DRY RUN")+" "+MutedStyle.Render("nothing was moved to the trash"))
	}
	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatTable(r *Result) string {
	if len(r.Entries) == 0 {
		return MutedStyle.Render("  Nothing to clean") + "\n"
	}

	sizeWidth := 8
	ageWidth := 6
	for _, e := range r.Entries {
		sizeWidth = max(sizeWidth, len(e.SizeHuman))
		ageWidth = max(ageWidth, len(formatDuration(e.Age)))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %s  %s  %s\n",
		TableHeaderStyle.Render(padLeft("SIZE", sizeWidth)),
		TableHeaderStyle.Render(padLeft("AGE", ageWidth)),
		TableHeaderStyle.Render("PATH")))

	for _, e := range r.Entries {
		path := e.Path
		if e.IsDir {
			path += "/"
		}
		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n",
			SizeStyle.Render(padLeft(e.SizeHuman, sizeWidth)),
			MutedStyle.Render(padLeft(formatDuration(e.Age), ageWidth)),
			PathStyle.Render(path)))
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *Result) string {
	action := SuccessStyle.Render("Trashed:")
	if r.DryRun {
		action = WarningStyle.Render("Would trash:")
	}
	parts := []string{
		fmt.Sprintf("%s %s", action, ValueStyle.Render(fmt.Sprintf("%d", len(r.Entries)))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Total:"), SizeStyle.Render(humanize.IBytes(uint64(r.TotalSize())))),
	}
	if r.DryRun && len(r.Entries) > 0 {
		parts = append(parts, MutedStyle.Render("Run without --dry-run to trash these"))
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

// padLeft pads s with spaces on the left to width.
func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
