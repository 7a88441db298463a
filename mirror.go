package ecat

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Mirror copies matched and colour-rejected candidates into side folders so
// an operator can review them next to the report:
//
//	<dest>/matches/<file>
//	<dest>/color_rejects/<BUCKET>/<file>
//
// Mirroring never touches the library itself.
type Mirror struct {
	Dest string
}

const (
	matchesDir      = "matches"
	colorRejectsDir = "color_rejects"
)

// MatchesDir is where matched candidates land.
func (m Mirror) MatchesDir() string { return filepath.Join(m.Dest, matchesDir) }

// BucketDir is where colour rejects of bucket b land.
func (m Mirror) BucketDir(b ColorBucket) string {
	return filepath.Join(m.Dest, colorRejectsDir, string(b))
}

// Save writes cand into the folder for its verdict. Verdicts that are not
// mirrored, and candidates without bytes, are ignored.
func (m Mirror) Save(v Verdict, cand *CandidateImage) error {
	if cand == nil || len(cand.Data) == 0 {
		return nil
	}
	var dir string
	switch v.Outcome {
	case OutcomeMatched:
		dir = m.MatchesDir()
	case OutcomeRejectedColor:
		if v.Bucket == "" {
			return nil
		}
		dir = m.BucketDir(v.Bucket)
	default:
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mirror %s: %w", cand.ID, err)
	}
	path := filepath.Join(dir, mirrorName(cand.ID))
	if err := os.WriteFile(path, cand.Data, 0o644); err != nil {
		return fmt.Errorf("mirror %s: %w", cand.ID, err)
	}
	return nil
}

// Hook adapts Save to Config.OnVerdict. Failures are logged and the scan
// goes on.
func (m Mirror) Hook(next func(Verdict, *CandidateImage)) func(Verdict, *CandidateImage) {
	return func(v Verdict, cand *CandidateImage) {
		if err := m.Save(v, cand); err != nil {
			slog.Warn("ecat: mirror failed", "id", v.ID, "error", err.Error())
		}
		if next != nil {
			next(v, cand)
		}
	}
}

func mirrorName(id string) string {
	name := filepath.Base(strings.ReplaceAll(id, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "candidate"
	}
	return name
}
