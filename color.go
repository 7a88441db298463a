package ecat

import (
	"image"
	"math"
)

// ColorBucket is a coarse coat-colour class used as a cheap pre-filter.
type ColorBucket string

const (
	BucketWhite          ColorBucket = "WHITE"
	BucketBlack          ColorBucket = "BLACK"
	BucketOrangeBrown    ColorBucket = "ORANGE_BROWN"
	BucketGrayOrTricolor ColorBucket = "GRAY_OR_TRICOLOR"
)

// Buckets lists every bucket in classification order.
var Buckets = []ColorBucket{BucketWhite, BucketBlack, BucketOrangeBrown, BucketGrayOrTricolor}

// ColorThresholds are expressed on the 8-bit HSV scale: hue 0–179,
// saturation and value 0–255.
type ColorThresholds struct {
	SaturationMax float64 // below this the coat is achromatic
	WhiteValueMin float64 // achromatic and brighter than this → white
	BlackValueMax float64 // achromatic and darker than this → black
	HueMin        float64 // orange/brown hue band, inclusive
	HueMax        float64
}

// DefaultColorThresholds returns the fixed classification constants.
func DefaultColorThresholds() ColorThresholds {
	return ColorThresholds{
		SaturationMax: 40,
		WhiteValueMin: 200,
		BlackValueMax: 50,
		HueMin:        5,
		HueMax:        25,
	}
}

// HSV holds averaged hue, saturation and value on the 8-bit scale.
type HSV struct {
	H, S, V float64
}

// Classify maps averaged HSV statistics to exactly one bucket.
func (t ColorThresholds) Classify(c HSV) ColorBucket {
	switch {
	case c.S < t.SaturationMax && c.V > t.WhiteValueMin:
		return BucketWhite
	case c.S < t.SaturationMax && c.V < t.BlackValueMax:
		return BucketBlack
	case c.H >= t.HueMin && c.H <= t.HueMax:
		return BucketOrangeBrown
	default:
		return BucketGrayOrTricolor
	}
}

// ClassifyImage averages per-pixel HSV over r and classifies the result.
func (t ColorThresholds) ClassifyImage(img image.Image, r image.Rectangle) ColorBucket {
	return t.Classify(AverageHSV(img, r))
}

// AverageHSV converts every pixel in r to 8-bit HSV and averages each channel.
// An empty rectangle yields the zero HSV.
func AverageHSV(img image.Image, r image.Rectangle) HSV {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return HSV{}
	}
	var sh, ss, sv float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			h, s, v := rgbToHSV8(uint8(cr>>8), uint8(cg>>8), uint8(cb>>8))
			sh += h
			ss += s
			sv += v
		}
	}
	n := float64(r.Dx() * r.Dy())
	return HSV{H: sh / n, S: ss / n, V: sv / n}
}

// ToHSV converts a mean colour with the same 8-bit conversion. The channels
// are rounded first, as they would be for a single pixel.
func (m MeanColor) ToHSV() HSV {
	h, s, v := rgbToHSV8(clamp8(m.R), clamp8(m.G), clamp8(m.B))
	return HSV{H: h, S: s, V: v}
}

// rgbToHSV8 follows the common 8-bit convention: V = max, S = 255·(max−min)/max,
// H in degrees halved so it fits a byte. Each channel is rounded.
func rgbToHSV8(r, g, b uint8) (h, s, v float64) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	maxc := math.Max(rf, math.Max(gf, bf))
	minc := math.Min(rf, math.Min(gf, bf))
	diff := maxc - minc

	v = maxc
	if maxc > 0 {
		s = math.Round(255 * diff / maxc)
	}
	if diff == 0 {
		return 0, s, v
	}

	var deg float64
	switch maxc {
	case rf:
		deg = 60 * (gf - bf) / diff
	case gf:
		deg = 120 + 60*(bf-rf)/diff
	default:
		deg = 240 + 60*(rf-gf)/diff
	}
	if deg < 0 {
		deg += 360
	}
	h = math.Round(deg / 2)
	if h >= 180 {
		h -= 180
	}
	return h, s, v
}

func clamp8(f float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(f))))
}
