package ecat

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Box is a region of interest in native image pixels.
type Box struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// Rect converts the box to an image rectangle anchored at the frame origin.
func (b Box) Rect(bounds image.Rectangle) image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H).Add(bounds.Min)
}

// Scale maps a box drawn on a preview scaled by factor back to native pixels.
func (b Box) Scale(factor float64) Box {
	if factor <= 0 {
		return b
	}
	inv := func(v int) int { return int(float64(v) / factor) }
	return Box{X: inv(b.X), Y: inv(b.Y), W: inv(b.W), H: inv(b.H)}
}

// FullFrameBox covers the whole image.
func FullFrameBox(bounds image.Rectangle) Box {
	return Box{W: bounds.Dx(), H: bounds.Dy()}
}

// PreviewScale is the downscale factor a selection window uses for a frame of
// the given width: large camera frames are shown at 30%, the rest at 70%.
func PreviewScale(width int) float64 {
	if width > 2000 {
		return 0.3
	}
	return 0.7
}

// Interpolation names a deterministic resampling filter.
type Interpolation string

const (
	InterpolationNearest        Interpolation = "nearest"
	InterpolationApproxBiLinear Interpolation = "approx-bilinear"
	InterpolationBiLinear       Interpolation = "bilinear"
	InterpolationCatmullRom     Interpolation = "catmull-rom"
)

// ParseInterpolation validates a filter name from configuration.
func ParseInterpolation(s string) (Interpolation, error) {
	switch i := Interpolation(s); i {
	case InterpolationNearest, InterpolationApproxBiLinear, InterpolationBiLinear, InterpolationCatmullRom:
		return i, nil
	case "":
		return InterpolationBiLinear, nil
	default:
		return "", fmt.Errorf("unknown interpolation %q", s)
	}
}

func (i Interpolation) scaler() draw.Scaler {
	switch i {
	case InterpolationNearest:
		return draw.NearestNeighbor
	case InterpolationApproxBiLinear:
		return draw.ApproxBiLinear
	case InterpolationCatmullRom:
		return draw.CatmullRom
	default:
		return draw.BiLinear
	}
}

// MeanColor is the arithmetic mean of each channel, 0–255.
type MeanColor struct {
	R, G, B float64
}

// Features is what the scorer and classifier consume for one image.
type Features struct {
	Patch *image.Gray // PatchSize x PatchSize
	Mean  MeanColor   // over the unresized crop
}

// Extractor normalizes a region into a canonical grayscale patch. Target and
// candidates must go through the same Extractor value.
type Extractor struct {
	PatchSize     int
	Interpolation Interpolation
}

// Decode parses raw bytes with every registered decoder.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnreadableImage)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	return img, nil
}

// ExtractBytes decodes data and extracts features from box, or from the
// whole frame when box is nil.
func (e Extractor) ExtractBytes(data []byte, box *Box) (*Features, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	b := FullFrameBox(img.Bounds())
	if box != nil {
		b = *box
	}
	return e.Extract(img, b)
}

// Extract crops box out of img, resizes the crop to the canonical patch and
// converts it to grayscale.
func (e Extractor) Extract(img image.Image, box Box) (*Features, error) {
	if box.W <= 0 || box.H <= 0 {
		return nil, fmt.Errorf("%w: empty selection %dx%d", ErrInvalidRegion, box.W, box.H)
	}
	bounds := img.Bounds()
	crop := box.Rect(bounds)
	if !crop.In(bounds) {
		return nil, fmt.Errorf("%w: %v outside frame %v", ErrInvalidRegion, crop, bounds)
	}

	size := e.PatchSize
	if size <= 0 {
		size = DefaultPatchSize
	}

	scaled := image.NewRGBA(image.Rect(0, 0, size, size))
	e.Interpolation.scaler().Scale(scaled, scaled.Bounds(), img, crop, draw.Src, nil)

	return &Features{
		Patch: toGray(scaled),
		Mean:  meanColor(img, crop),
	}, nil
}

// toGray applies ITU-R 601 luma weights with rounding.
func toGray(src *image.RGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := src.RGBAAt(x, y)
			l := 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
			dst.SetGray(x, y, color.Gray{Y: uint8(math.Min(255, math.Round(l)))})
		}
	}
	return dst
}

func meanColor(img image.Image, r image.Rectangle) MeanColor {
	var sr, sg, sb float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			sr += float64(cr >> 8)
			sg += float64(cg >> 8)
			sb += float64(cb >> 8)
		}
	}
	n := float64(r.Dx() * r.Dy())
	return MeanColor{R: sr / n, G: sg / n, B: sb / n}
}
