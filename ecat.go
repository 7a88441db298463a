// Package ecat matches a lost animal's nose-pattern texture and coat colour
// against an unordered photo library. Cheap filters (colour bucket, capture
// place and time) run before the expensive structural similarity comparison;
// the surviving candidates form a ranked MatchList that feeds a case report.
package ecat

import (
	"context"
	"image"
	"net/http"
	"time"
)

const (
	// DefaultThreshold is the match-acceptance SSIM score.
	DefaultThreshold = 0.75
	// DefaultPatchSize is the side of the canonical grayscale patch.
	DefaultPatchSize = 100
)

// RegionProvider supplies the region of interest for an image. Desktop
// front-ends block here while the user draws a box; ok=false means the user
// made no selection.
type RegionProvider interface {
	RequestRegion(ctx context.Context, id string, img image.Image) (box Box, ok bool, err error)
}

// Config holds tuning values and collaborators injected by the consumer.
// The zero value is usable: defaults() fills every unset field.
type Config struct {
	PatchSize     int           // canonical patch side (default: DefaultPatchSize)
	Interpolation Interpolation // resampling filter (default: InterpolationBiLinear)
	Color         ColorThresholds
	MissingMeta   MissingMetadataPolicy // default: PassThrough

	// Regions supplies per-image selections. nil compares the whole frame,
	// which is what the web form does.
	Regions RegionProvider

	// Scorer overrides the similarity measure (default: SSIM with a 7x7 window).
	Scorer Scorer

	HTTPClient *http.Client // used by URLSource (nil = http.DefaultClient)
	UserAgent  string       // default: "Mozilla/5.0 (compatible; go-ecat/1.0)"

	Now func() time.Time // clock for run timestamps (default: time.Now)

	// Optional callbacks for progress and side files.
	OnVerdict func(Verdict, *CandidateImage)
}

func (c *Config) defaults() {
	if c.PatchSize <= 0 {
		c.PatchSize = DefaultPatchSize
	}
	if c.Interpolation == "" {
		c.Interpolation = InterpolationBiLinear
	}
	if c.Color == (ColorThresholds{}) {
		c.Color = DefaultColorThresholds()
	}
	if c.Scorer == nil {
		c.Scorer = SSIM{}
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (compatible; go-ecat/1.0)"
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Extractor returns the feature extractor shared by target and candidates.
func (c *Config) Extractor() Extractor {
	c.defaults()
	return Extractor{PatchSize: c.PatchSize, Interpolation: c.Interpolation}
}
