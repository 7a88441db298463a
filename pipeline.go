package ecat

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Stage is a step of the per-candidate state machine.
type Stage string

const (
	StageLoaded        Stage = "LOADED"
	StageColorChecked  Stage = "COLOR_CHECKED"
	StageGeoChecked    Stage = "GEO_CHECKED"
	StageTextureScored Stage = "TEXTURE_SCORED"
	StageMatched       Stage = "MATCHED"
	StageRejected      Stage = "REJECTED"
)

// Outcome is the final state of one candidate.
type Outcome string

const (
	OutcomeMatched             Outcome = "matched"
	OutcomeRejectedColor       Outcome = "rejected_color"
	OutcomeRejectedGeotemporal Outcome = "rejected_geotemporal"
	OutcomeRejectedTexture     Outcome = "rejected_texture"
	OutcomeSkipped             Outcome = "skipped"
)

// Verdict records how far a candidate got and why it stopped.
type Verdict struct {
	ID      string
	Outcome Outcome
	Bucket  ColorBucket // empty when the image could not be decoded
	Score   float64     // meaningful only when Scored
	Scored  bool
	Skip    SkipReason // set for OutcomeSkipped
	Detail  string     // human-readable reason for rejections and skips
	Trace   []Stage
}

// Match is one MatchList entry.
type Match struct {
	ID    string
	Score float64
	// FingerprintDistance is the perceptual-hash distance between target and
	// candidate patches, -1 when unavailable.
	FingerprintDistance int
}

// MatchList holds matches in encounter order. Every score is at least the
// case threshold.
type MatchList []Match

// IDs returns the candidate identifiers in order.
func (m MatchList) IDs() []string {
	ids := make([]string, len(m))
	for i, e := range m {
		ids[i] = e.ID
	}
	return ids
}

// Target is the reference photo of the missing animal.
type Target struct {
	ID     string
	Data   []byte
	Region *Box // nil asks Config.Regions, or uses the full frame
}

// TargetSample is the biometric record built once from the target.
type TargetSample struct {
	ID          string
	Patch       *image.Gray
	Mean        MeanColor
	Bucket      ColorBucket
	Fingerprint Fingerprint
}

// Result is everything a scan produced.
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Target  *TargetSample
	Matches MatchList

	// Rejected partitions rejected candidate IDs by outcome, ColorRejects
	// further by the candidate's own bucket, and Skipped by skip reason.
	Rejected     map[Outcome][]string
	ColorRejects map[ColorBucket][]string
	Skipped      map[SkipReason][]string

	Scanned int
}

func newResult(now time.Time, target *TargetSample) *Result {
	return &Result{
		RunID:        uuid.NewString(),
		StartedAt:    now,
		Target:       target,
		Matches:      MatchList{},
		Rejected:     make(map[Outcome][]string),
		ColorRejects: make(map[ColorBucket][]string),
		Skipped:      make(map[SkipReason][]string),
	}
}

func (r *Result) record(v Verdict, fp int) {
	r.Scanned++
	switch v.Outcome {
	case OutcomeMatched:
		r.Matches = append(r.Matches, Match{ID: v.ID, Score: v.Score, FingerprintDistance: fp})
	case OutcomeSkipped:
		r.Skipped[v.Skip] = append(r.Skipped[v.Skip], v.ID)
	case OutcomeRejectedColor:
		r.Rejected[v.Outcome] = append(r.Rejected[v.Outcome], v.ID)
		r.ColorRejects[v.Bucket] = append(r.ColorRejects[v.Bucket], v.ID)
	default:
		r.Rejected[v.Outcome] = append(r.Rejected[v.Outcome], v.ID)
	}
}

// SkipCounts summarizes recovered per-candidate failures.
func (r *Result) SkipCounts() map[SkipReason]int {
	out := make(map[SkipReason]int, len(r.Skipped))
	for k, ids := range r.Skipped {
		out[k] = len(ids)
	}
	return out
}

// RejectionCounts summarizes rejections by gate.
func (r *Result) RejectionCounts() map[Outcome]int {
	out := make(map[Outcome]int, len(r.Rejected))
	for k, ids := range r.Rejected {
		out[k] = len(ids)
	}
	return out
}

// Run scans src against target for case cs.
//
// Case and target problems abort before the first candidate. Per-candidate
// decode and region failures are recorded as skips and the scan continues.
// ErrDimensionMismatch aborts. ctx is checked between candidates; when it is
// cancelled Run returns the result gathered so far together with ctx.Err().
func (c *Config) Run(ctx context.Context, cs Case, target Target, src CandidateSource) (*Result, error) {
	c.defaults()

	if err := cs.Validate(); err != nil {
		return nil, err
	}

	ext := c.Extractor()
	sample, err := c.BuildTarget(ctx, ext, target)
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", target.ID, err)
	}

	geo := NewGeoFilter(cs, c.MissingMeta)
	res := newResult(c.Now(), sample)

	slog.Debug("ecat: scan started", "run", res.RunID, "case", cs.Name,
		"bucket", sample.Bucket, "threshold", cs.Threshold, "geotemporal", geo.Enabled())

	for {
		if err := ctx.Err(); err != nil {
			res.FinishedAt = c.Now()
			return res, err
		}

		cand, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("candidate source: %w", err)
		}

		v, fp, err := c.evaluate(ctx, ext, geo, sample, cs.Threshold, cand)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				res.FinishedAt = c.Now()
				return res, ctxErr
			}
			slog.Error("ecat: scan aborted", "run", res.RunID, "candidate", cand.ID, "error", err.Error())
			return nil, fmt.Errorf("candidate %s: %w", cand.ID, err)
		}

		res.record(v, fp)
		if c.OnVerdict != nil {
			c.OnVerdict(v, cand)
		}
	}

	res.FinishedAt = c.Now()
	slog.Debug("ecat: scan finished", "run", res.RunID, "scanned", res.Scanned, "matches", len(res.Matches))
	return res, nil
}

// BuildTarget decodes the target, resolves its region and extracts the
// reference sample. The colour bucket is taken over the whole frame, the same
// way candidates are classified before their region is known.
func (c *Config) BuildTarget(ctx context.Context, ext Extractor, t Target) (*TargetSample, error) {
	c.defaults()

	img, err := Decode(t.Data)
	if err != nil {
		return nil, err
	}
	box, err := c.regionFor(ctx, t.ID, t.Region, img)
	if err != nil {
		return nil, err
	}
	feat, err := ext.Extract(img, box)
	if err != nil {
		return nil, err
	}
	return &TargetSample{
		ID:          t.ID,
		Patch:       feat.Patch,
		Mean:        feat.Mean,
		Bucket:      c.Color.ClassifyImage(img, img.Bounds()),
		Fingerprint: NewFingerprint(feat.Patch),
	}, nil
}

// evaluate runs the gates in cost order. The returned error is fatal for the
// whole scan; everything recoverable ends up in the verdict.
func (c *Config) evaluate(ctx context.Context, ext Extractor, geo GeoFilter, target *TargetSample,
	threshold float64, cand *CandidateImage) (Verdict, int, error) {
	v := Verdict{ID: cand.ID, Trace: []Stage{StageLoaded}}

	img, err := Decode(cand.Data)
	if err != nil {
		return skipped(v, SkipUnreadableImage, err), -1, nil
	}

	v.Bucket = c.Color.ClassifyImage(img, img.Bounds())
	v.Trace = append(v.Trace, StageColorChecked)
	if v.Bucket != target.Bucket {
		return rejected(v, OutcomeRejectedColor, fmt.Sprintf("coat %s, target %s", v.Bucket, target.Bucket)), -1, nil
	}

	meta := cand.Meta
	if meta == nil && geo.Enabled() {
		meta = ExtractCaptureMetadata(cand.Data)
	}
	ok, why := geo.Include(meta)
	v.Trace = append(v.Trace, StageGeoChecked)
	if !ok {
		return rejected(v, OutcomeRejectedGeotemporal, why), -1, nil
	}

	box, err := c.regionFor(ctx, cand.ID, cand.Region, img)
	if err != nil {
		if ctx.Err() != nil {
			return v, -1, err
		}
		return skipped(v, SkipInvalidRegion, err), -1, nil
	}
	feat, err := ext.Extract(img, box)
	if err != nil {
		return skipped(v, SkipInvalidRegion, err), -1, nil
	}

	score, err := c.Scorer.Score(target.Patch, feat.Patch)
	if err != nil {
		return v, -1, err
	}
	v.Score, v.Scored = score, true
	v.Trace = append(v.Trace, StageTextureScored)

	// NaN never clears the threshold.
	if !(score >= threshold) {
		return rejected(v, OutcomeRejectedTexture, fmt.Sprintf("similarity %.4f below %.4f", score, threshold)), -1, nil
	}

	v.Outcome = OutcomeMatched
	v.Trace = append(v.Trace, StageMatched)
	slog.Debug("ecat: match", "id", v.ID, "score", score)
	return v, target.Fingerprint.Distance(NewFingerprint(feat.Patch)), nil
}

func (c *Config) regionFor(ctx context.Context, id string, explicit *Box, img image.Image) (Box, error) {
	if explicit != nil {
		return *explicit, nil
	}
	if c.Regions == nil {
		return FullFrameBox(img.Bounds()), nil
	}
	box, ok, err := c.Regions.RequestRegion(ctx, id, img)
	if err != nil {
		if ctx.Err() != nil {
			return Box{}, err
		}
		return Box{}, fmt.Errorf("%w: %v", ErrInvalidRegion, err)
	}
	if !ok {
		return Box{}, fmt.Errorf("%w: no selection", ErrInvalidRegion)
	}
	return box, nil
}

func skipped(v Verdict, reason SkipReason, err error) Verdict {
	v.Outcome = OutcomeSkipped
	v.Skip = reason
	v.Detail = err.Error()
	v.Trace = append(v.Trace, StageRejected)
	slog.Warn("ecat: candidate skipped", "id", v.ID, "reason", string(reason), "error", v.Detail)
	return v
}

func rejected(v Verdict, o Outcome, detail string) Verdict {
	v.Outcome = o
	v.Detail = detail
	v.Trace = append(v.Trace, StageRejected)
	slog.Debug("ecat: candidate rejected", "id", v.ID, "outcome", string(o), "detail", detail)
	return v
}
