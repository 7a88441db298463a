// Package web is the browser front-end: one upload form, one scan per
// request, whole-image comparison with no region step.
package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	ecat "github.com/anatolykoptev/go-ecat"
	"github.com/anatolykoptev/go-ecat/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	errTooLarge = errors.New("upload too large")
	errBadForm  = errors.New("bad form")
)

const thumbSide = 240

// Handler serves the upload form and runs scans.
type Handler struct {
	pipeline  ecat.Config
	threshold float64
	maxUpload int64
	logger    *slog.Logger
	tmpl      *template.Template
	mux       *http.ServeMux
}

// NewHandler parses the templates and registers the routes.
func NewHandler(cfg *config.Config, logger *slog.Logger) (*Handler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	threshold := cfg.Matching.Threshold
	if threshold < config.MinWebThreshold || threshold > config.MaxWebThreshold {
		threshold = ecat.DefaultThreshold
	}

	h := &Handler{
		pipeline:  cfg.Pipeline(),
		threshold: threshold,
		maxUpload: cfg.Server.MaxUploadBytes(),
		logger:    logger.With("handler", "scan"),
		tmpl:      tmpl,
		mux:       http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /{$}", h.index)
	h.mux.HandleFunc("POST /scan", h.scanPage)
	h.mux.HandleFunc("POST /api/scan", h.scanAPI)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type indexView struct {
	Threshold    float64
	MinThreshold float64
	MaxThreshold float64
	Error        string
}

func (h *Handler) index(w http.ResponseWriter, _ *http.Request) {
	h.render(w, http.StatusOK, "index.html", indexView{
		Threshold:    h.threshold,
		MinThreshold: config.MinWebThreshold,
		MaxThreshold: config.MaxWebThreshold,
	})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// scanRequest is a parsed upload form.
type scanRequest struct {
	Case    ecat.Case
	Target  ecat.Target
	Library []ecat.CandidateImage
}

// scanOutcome is everything a page or API response needs.
type scanOutcome struct {
	req    *scanRequest
	result *ecat.Result
	report *ecat.Report
	pdf    []byte
	// matched holds the bytes of each match, parallel to report.Entries.
	matched [][]byte
}

func (h *Handler) parseScan(w http.ResponseWriter, r *http.Request) (*scanRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errTooLarge
		}
		return nil, fmt.Errorf("%w: %v", errBadForm, err)
	}

	threshold := h.threshold
	if raw := strings.TrimSpace(r.FormValue("threshold")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: threshold %q", ecat.ErrInvalidCaseField, raw)
		}
		if v < config.MinWebThreshold || v > config.MaxWebThreshold {
			return nil, fmt.Errorf("%w: threshold %.2f outside %.2f-%.2f", ecat.ErrInvalidCaseField,
				v, config.MinWebThreshold, config.MaxWebThreshold)
		}
		threshold = v
	}

	req := &scanRequest{
		Case: ecat.Case{
			Name:      strings.TrimSpace(r.FormValue("name")),
			Contact:   strings.TrimSpace(r.FormValue("owner")),
			Threshold: threshold,
		},
	}
	if err := req.Case.Validate(); err != nil {
		return nil, err
	}

	targets := r.MultipartForm.File["target"]
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: target photo", ecat.ErrMissingCaseField)
	}
	data, err := readPart(targets[0])
	if err != nil {
		return nil, err
	}
	if _, err := ecat.ValidateImage(data, 1); err != nil {
		return nil, fmt.Errorf("target %s: %w", targets[0].Filename, err)
	}
	req.Target = ecat.Target{ID: targets[0].Filename, Data: data}

	files := r.MultipartForm.File["library"]
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: library photos", ecat.ErrMissingCaseField)
	}
	for _, fh := range files {
		data, err := readPart(fh)
		if err != nil {
			return nil, err
		}
		req.Library = append(req.Library, ecat.CandidateImage{ID: fh.Filename, Data: data})
	}
	return req, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", errBadForm, fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", errBadForm, fh.Filename, err)
	}
	return data, nil
}

func (h *Handler) runScan(w http.ResponseWriter, r *http.Request) (*scanOutcome, error) {
	req, err := h.parseScan(w, r)
	if err != nil {
		return nil, err
	}

	// Each request gets its own copy; the web form always compares whole frames.
	pcfg := h.pipeline
	pcfg.Regions = nil

	var matched [][]byte
	pcfg.OnVerdict = func(v ecat.Verdict, cand *ecat.CandidateImage) {
		if v.Outcome == ecat.OutcomeMatched {
			matched = append(matched, cand.Data)
		}
	}

	res, err := pcfg.Run(r.Context(), req.Case, req.Target, ecat.NewSliceSource(req.Library...))
	if err != nil {
		return nil, err
	}
	h.logger.Info("scan finished", "run", res.RunID, "case", req.Case.Name,
		"scanned", res.Scanned, "matches", len(res.Matches))

	report := ecat.BuildReport(req.Case, res, res.FinishedAt)
	pdf, err := report.PDF()
	if err != nil {
		return nil, err
	}
	return &scanOutcome{req: req, result: res, report: report, pdf: pdf, matched: matched}, nil
}

type galleryItem struct {
	ID      string
	Percent string
	Thumb   template.URL
}

type resultView struct {
	Report   *ecat.Report
	Gallery  []galleryItem
	PDFName  string
	PDFURL   template.URL
	Rejected map[ecat.Outcome]int
	Skipped  map[ecat.SkipReason]int
}

func (h *Handler) scanPage(w http.ResponseWriter, r *http.Request) {
	out, err := h.runScan(w, r)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("scan failed", "error", err)
		}
		h.render(w, status, "index.html", indexView{
			Threshold:    h.threshold,
			MinThreshold: config.MinWebThreshold,
			MaxThreshold: config.MaxWebThreshold,
			Error:        err.Error(),
		})
		return
	}

	view := resultView{
		Report:   out.report,
		Gallery:  gallery(out),
		PDFName:  out.report.FileName(ecat.WebReportPrefix),
		PDFURL:   template.URL(ecat.EncodeDataURL(out.pdf, "application/pdf")), //nolint:gosec // generated locally
		Rejected: out.report.Rejections,
		Skipped:  out.report.Skips,
	}
	h.render(w, http.StatusOK, "result.html", view)
}

// gallery pairs entries with match bytes by position; upload names may repeat.
func gallery(out *scanOutcome) []galleryItem {
	items := make([]galleryItem, 0, len(out.report.Entries))
	for i, e := range out.report.Entries {
		item := galleryItem{ID: e.ID, Percent: e.Percent()}
		if i < len(out.matched) {
			if thumb, err := ecat.Thumbnail(out.matched[i], thumbSide); err == nil {
				item.Thumb = template.URL(ecat.EncodeDataURL(thumb, "image/jpeg")) //nolint:gosec // generated locally
			}
		}
		items = append(items, item)
	}
	return items
}

type matchJSON struct {
	ID                  string  `json:"id"`
	Score               float64 `json:"score"`
	Percent             string  `json:"percent"`
	FingerprintDistance int     `json:"fingerprint_distance"`
}

type scanJSON struct {
	RunID        string                       `json:"run_id"`
	Case         string                       `json:"case"`
	Contact      string                       `json:"contact"`
	Threshold    float64                      `json:"threshold"`
	TargetBucket ecat.ColorBucket             `json:"target_bucket"`
	Scanned      int                          `json:"scanned"`
	Summary      string                       `json:"summary"`
	Matches      []matchJSON                  `json:"matches"`
	Rejected     map[ecat.Outcome][]string    `json:"rejected"`
	Skipped      map[ecat.SkipReason][]string `json:"skipped"`
	Report       string                       `json:"report_file"`
}

// scanAPI answers with JSON, or with the PDF itself when ?format=pdf.
func (h *Handler) scanAPI(w http.ResponseWriter, r *http.Request) {
	out, err := h.runScan(w, r)
	if err != nil {
		respondError(w, h.logger, statusFor(err), err)
		return
	}

	name := out.report.FileName(ecat.WebReportPrefix)
	if r.URL.Query().Get("format") == "pdf" {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Length", strconv.Itoa(len(out.pdf)))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, bytes.NewReader(out.pdf))
		return
	}

	resp := scanJSON{
		RunID:        out.result.RunID,
		Case:         out.req.Case.Name,
		Contact:      out.req.Case.Contact,
		Threshold:    out.req.Case.Threshold,
		TargetBucket: out.result.Target.Bucket,
		Scanned:      out.result.Scanned,
		Summary:      out.report.Summary(),
		Matches:      []matchJSON{},
		Rejected:     out.result.Rejected,
		Skipped:      out.result.Skipped,
		Report:       name,
	}
	for _, e := range out.report.Entries {
		resp.Matches = append(resp.Matches, matchJSON{
			ID: e.ID, Score: e.Score, Percent: e.Percent(), FingerprintDistance: e.FingerprintDistance,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("render failed", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Server wraps the handler with the standard middleware stack.
func Server(h *Handler, logger *slog.Logger) http.Handler {
	return Chain(h, Recover(logger), Logger(logger))
}
