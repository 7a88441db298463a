package ecat

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ReportTitle heads every rendered report.
const ReportTitle = "eCat - Feline Identification Report"

// ReportEntry is one matched candidate in the report.
type ReportEntry struct {
	ID                  string
	Score               float64
	FingerprintDistance int // -1 when unavailable
}

// Percent formats the score the way the report prints it, e.g. "87.50%".
func (e ReportEntry) Percent() string {
	return fmt.Sprintf("%.2f%%", e.Score*100)
}

// Report is a snapshot of a finished scan. It owns copies of everything it
// shows, so rendering never touches the Result it was built from.
type Report struct {
	RunID       string
	GeneratedAt time.Time

	CaseName  string
	Contact   string
	Threshold float64
	Area      *SearchArea
	Window    *DateWindow

	TargetID          string
	TargetBucket      ColorBucket
	TargetFingerprint string

	Entries    []ReportEntry
	Scanned    int
	Rejections map[Outcome]int
	Skips      map[SkipReason]int
}

// BuildReport assembles the report for case c. res may be nil, in which case
// the report states zero matches.
func BuildReport(c Case, res *Result, at time.Time) *Report {
	r := &Report{
		GeneratedAt: at,
		CaseName:    c.Name,
		Contact:     c.Contact,
		Threshold:   c.Threshold,
		Entries:     []ReportEntry{},
		Rejections:  map[Outcome]int{},
		Skips:       map[SkipReason]int{},
	}
	if c.Area != nil {
		a := *c.Area
		r.Area = &a
	}
	if c.Window != nil {
		w := *c.Window
		r.Window = &w
	}
	if res == nil {
		return r
	}

	r.RunID = res.RunID
	r.Scanned = res.Scanned
	r.Rejections = res.RejectionCounts()
	r.Skips = res.SkipCounts()
	if t := res.Target; t != nil {
		r.TargetID = t.ID
		r.TargetBucket = t.Bucket
		r.TargetFingerprint = t.Fingerprint.String()
	}
	for _, m := range res.Matches {
		r.Entries = append(r.Entries, ReportEntry{ID: m.ID, Score: m.Score, FingerprintDistance: m.FingerprintDistance})
	}
	return r
}

// Summary states the match count, e.g. "2 matches".
func (r *Report) Summary() string {
	if len(r.Entries) == 1 {
		return "1 match"
	}
	return fmt.Sprintf("%d matches", len(r.Entries))
}

// Report file name prefixes used by the desktop and web front-ends.
const (
	DesktopReportPrefix = "REPORT_ECAT_"
	WebReportPrefix     = "Report_eCat_"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// FileName builds prefix + case name + ".pdf", with the name reduced to
// characters that are safe in a path and a Content-Disposition header.
func (r *Report) FileName(prefix string) string {
	name := strings.Trim(unsafeFileChars.ReplaceAllString(r.CaseName, "_"), "_")
	if name == "" {
		name = "case"
	}
	return prefix + name + ".pdf"
}

// header lists the label/value rows shared by the text and PDF outputs.
func (r *Report) header() [][2]string {
	rows := [][2]string{
		{"Case", r.CaseName},
		{"Contact", r.Contact},
		{"Examination date", r.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
	}
	if r.RunID != "" {
		rows = append(rows, [2]string{"Run", r.RunID})
	}
	if r.TargetID != "" {
		rows = append(rows, [2]string{"Target", fmt.Sprintf("%s (%s)", r.TargetID, r.TargetBucket)})
	}
	if r.TargetFingerprint != "" {
		rows = append(rows, [2]string{"Target fingerprint", r.TargetFingerprint})
	}
	rows = append(rows, [2]string{"Threshold", fmt.Sprintf("%.2f%%", r.Threshold*100)})
	if r.Area != nil {
		rows = append(rows, [2]string{"Search area", fmt.Sprintf("%s within %.2f km", r.Area.Center, r.Area.RadiusKm)})
	}
	if r.Window != nil {
		rows = append(rows, [2]string{"Date window", fmt.Sprintf("%s to %s",
			r.Window.Start.Format(time.DateOnly), r.Window.End.Format(time.DateOnly))})
	}
	rows = append(rows, [2]string{"Candidates scanned", fmt.Sprintf("%d", r.Scanned)})
	return rows
}

// tallies lists rejection and skip counts in a stable order.
func (r *Report) tallies() [][2]string {
	var rows [][2]string
	for _, o := range []Outcome{OutcomeRejectedColor, OutcomeRejectedGeotemporal, OutcomeRejectedTexture} {
		if n := r.Rejections[o]; n > 0 {
			rows = append(rows, [2]string{string(o), fmt.Sprintf("%d", n)})
		}
	}
	reasons := make([]string, 0, len(r.Skips))
	for k := range r.Skips {
		reasons = append(reasons, string(k))
	}
	sort.Strings(reasons)
	for _, k := range reasons {
		if n := r.Skips[SkipReason(k)]; n > 0 {
			rows = append(rows, [2]string{"skipped_" + k, fmt.Sprintf("%d", n)})
		}
	}
	return rows
}

func (e ReportEntry) line() string {
	s := fmt.Sprintf("- File: %s | Similarity: %s", e.ID, e.Percent())
	if e.FingerprintDistance >= 0 {
		s += fmt.Sprintf(" | pHash distance: %d", e.FingerprintDistance)
	}
	return s
}

// WriteText renders a plain-text report.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, ReportTitle)
	fmt.Fprintln(tw)
	for _, row := range r.header() {
		fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "SCAN RESULTS: %s\n", r.Summary())
	for _, e := range r.Entries {
		fmt.Fprintln(tw, e.line())
	}
	if rows := r.tallies(); len(rows) > 0 {
		fmt.Fprintln(tw)
		for _, row := range rows {
			fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
		}
	}
	return tw.Flush()
}

// PDF renders the report into memory, ready for an interactive download.
func (r *Report) PDF() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.WritePDF(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WritePDFFile persists the PDF at path.
func (r *Report) WritePDFFile(path string) error {
	data, err := r.PDF()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// WritePDF renders the PDF to w after checking the document is well formed.
func (r *Report) WritePDF(w io.Writer) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(ReportTitle, true)
	pdf.SetCreator("go-ecat", true)
	pdf.SetCreationDate(r.GeneratedAt)
	pdf.SetModificationDate(r.GeneratedAt)
	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 16)
		pdf.CellFormat(0, 10, tr(ReportTitle), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	})
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)
	for _, row := range r.header() {
		pdf.CellFormat(0, 8, tr(row[0]+": "+row[1]), "", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 10, tr("SCAN RESULTS: "+r.Summary()), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, e := range r.Entries {
		pdf.CellFormat(0, 8, tr(e.line()), "", 1, "L", false, 0, "")
	}

	if rows := r.tallies(); len(rows) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "", 10)
		for _, row := range rows {
			pdf.CellFormat(0, 6, tr(row[0]+": "+row[1]), "", 1, "L", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := validatePDF(buf.Bytes()); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

var disableConfigDir sync.Once

// validatePDF parses the rendered document with pdfcpu in relaxed mode.
func validatePDF(data []byte) error {
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return fmt.Errorf("validate report pdf: %w", err)
	}
	return nil
}
