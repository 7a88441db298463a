package ecat

import (
	"context"
	"fmt"
	"image"
	"os"

	"gopkg.in/yaml.v3"
)

// FullFrame selects the whole image. It is the provider for front-ends that
// skip region selection.
type FullFrame struct{}

func (FullFrame) RequestRegion(_ context.Context, _ string, img image.Image) (Box, bool, error) {
	return FullFrameBox(img.Bounds()), true, nil
}

// StaticRegions answers from a fixed map keyed by image ID. IDs without an
// entry have no selection.
type StaticRegions map[string]Box

func (s StaticRegions) RequestRegion(_ context.Context, id string, _ image.Image) (Box, bool, error) {
	b, ok := s[id]
	return b, ok, nil
}

// regionEntry is one line of a regions manifest. PreviewScale is set when the
// box was drawn on a downscaled preview.
type regionEntry struct {
	Box          `yaml:",inline"`
	PreviewScale float64 `yaml:"preview_scale"`
}

// LoadRegions reads a YAML manifest mapping file names to boxes:
//
//	target.jpg: {x: 120, y: 80, w: 64, h: 48}
//	cat_0042.jpg: {x: 30, y: 40, w: 50, h: 40, preview_scale: 0.7}
func LoadRegions(path string) (StaticRegions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions %s: %w", path, err)
	}
	return ParseRegions(data)
}

// ParseRegions decodes manifest bytes; see LoadRegions for the format.
func ParseRegions(data []byte) (StaticRegions, error) {
	var raw map[string]regionEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse regions: %w", err)
	}
	out := make(StaticRegions, len(raw))
	for id, e := range raw {
		b := e.Box
		if e.PreviewScale > 0 {
			b = b.Scale(e.PreviewScale)
		}
		out[id] = b
	}
	return out, nil
}
