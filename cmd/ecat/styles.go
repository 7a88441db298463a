package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	ecat "github.com/anatolykoptev/go-ecat"
)

var (
	primaryColor = lipgloss.Color("#FF8C42")
	successColor = lipgloss.Color("#4ECDC4")
	warningColor = lipgloss.Color("#FFE66D")
	errorColor   = lipgloss.Color("#FF6B6B")
	subtleColor  = lipgloss.Color("#666666")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	subtleStyle  = lipgloss.NewStyle().Foreground(subtleColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(1, 2)
)

// newProgress draws scan progress on w. total is -1 when the source cannot
// tell its length up front.
func newProgress(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Scanning photos...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}

// renderSummary formats the end-of-scan box.
func renderSummary(r *ecat.Report) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(ecat.ReportTitle))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Case:      %s (%s)\n", r.CaseName, r.Contact)
	fmt.Fprintf(&b, "Target:    %s, coat %s\n", r.TargetID, r.TargetBucket)
	fmt.Fprintf(&b, "Scanned:   %d\n", r.Scanned)
	for _, o := range []ecat.Outcome{ecat.OutcomeRejectedColor, ecat.OutcomeRejectedGeotemporal, ecat.OutcomeRejectedTexture} {
		if n := r.Rejections[o]; n > 0 {
			b.WriteString(subtleStyle.Render(fmt.Sprintf("%-10s %d", string(o)+":", n)))
			b.WriteString("\n")
		}
	}
	skipped := 0
	for _, n := range r.Skips {
		skipped += n
	}
	if skipped > 0 {
		b.WriteString(warningStyle.Render(fmt.Sprintf("⚠ %d photos skipped", skipped)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if len(r.Entries) == 0 {
		b.WriteString(warningStyle.Render("No matches above " + fmt.Sprintf("%.2f%%", r.Threshold*100)))
	} else {
		b.WriteString(successStyle.Render("✓ " + r.Summary()))
		for _, e := range r.Entries {
			fmt.Fprintf(&b, "\n  %s  %s", e.ID, e.Percent())
		}
	}
	return boxStyle.Render(b.String())
}
