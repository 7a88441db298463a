package ecat

import (
	"image"
	"image/color"
	"testing"
)

func TestRGBToHSV8(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		r, g, b uint8
		h, s, v float64
	}{
		{name: "orange", r: 255, g: 128, b: 0, h: 15, s: 255, v: 255},
		{name: "red", r: 255, h: 0, s: 255, v: 255},
		{name: "green", g: 255, h: 60, s: 255, v: 255},
		{name: "blue", b: 255, h: 120, s: 255, v: 255},
		{name: "magenta wraps", r: 255, b: 255, h: 150, s: 255, v: 255},
		{name: "mid gray", r: 128, g: 128, b: 128, h: 0, s: 0, v: 128},
		{name: "black", h: 0, s: 0, v: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h, s, v := rgbToHSV8(tc.r, tc.g, tc.b)
			if h != tc.h || s != tc.s || v != tc.v {
				t.Errorf("rgbToHSV8(%d,%d,%d) = (%v,%v,%v), want (%v,%v,%v)",
					tc.r, tc.g, tc.b, h, s, v, tc.h, tc.s, tc.v)
			}
		})
	}
}

func TestClassify_Boundaries(t *testing.T) {
	t.Parallel()

	th := DefaultColorThresholds()
	tests := []struct {
		name string
		in   HSV
		want ColorBucket
	}{
		{name: "white", in: HSV{S: 39.9, V: 200.1}, want: BucketWhite},
		{name: "saturation at limit is not achromatic", in: HSV{S: 40, V: 250}, want: BucketGrayOrTricolor},
		{name: "value at white limit", in: HSV{S: 10, V: 200}, want: BucketGrayOrTricolor},
		{name: "black", in: HSV{S: 10, V: 49.9}, want: BucketBlack},
		{name: "value at black limit", in: HSV{S: 10, V: 50}, want: BucketGrayOrTricolor},
		{name: "hue lower bound", in: HSV{H: 5, S: 200, V: 150}, want: BucketOrangeBrown},
		{name: "hue upper bound", in: HSV{H: 25, S: 200, V: 150}, want: BucketOrangeBrown},
		{name: "hue just above band", in: HSV{H: 25.1, S: 200, V: 150}, want: BucketGrayOrTricolor},
		{name: "hue just below band", in: HSV{H: 4.9, S: 200, V: 150}, want: BucketGrayOrTricolor},
		{name: "achromatic wins over hue", in: HSV{H: 15, S: 10, V: 230}, want: BucketWhite},
		{name: "pale orange mid value", in: HSV{H: 15, S: 10, V: 120}, want: BucketOrangeBrown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := th.Classify(tc.in); got != tc.want {
				t.Errorf("Classify(%+v) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}
}

func TestClassify_Total(t *testing.T) {
	t.Parallel()

	th := DefaultColorThresholds()
	valid := make(map[ColorBucket]bool)
	for _, b := range Buckets {
		valid[b] = true
	}
	for h := 0.0; h < 180; h += 7 {
		for s := 0.0; s <= 255; s += 17 {
			for v := 0.0; v <= 255; v += 17 {
				if got := th.Classify(HSV{H: h, S: s, V: v}); !valid[got] {
					t.Fatalf("Classify(%v,%v,%v) = %q", h, s, v, got)
				}
			}
		}
	}
}

func TestClassifyImage(t *testing.T) {
	t.Parallel()

	th := DefaultColorThresholds()
	tests := []struct {
		name string
		c    color.Color
		want ColorBucket
	}{
		{name: "white coat", c: color.RGBA{R: 240, G: 240, B: 235, A: 255}, want: BucketWhite},
		{name: "black coat", c: color.RGBA{R: 20, G: 20, B: 20, A: 255}, want: BucketBlack},
		// Dark but saturation 46, above the black ceiling of 40.
		{name: "dark tinted", c: color.RGBA{R: 20, G: 18, B: 22, A: 255}, want: BucketGrayOrTricolor},
		{name: "ginger", c: color.RGBA{R: 255, G: 128, A: 255}, want: BucketOrangeBrown},
		{name: "brown", c: color.RGBA{R: 150, G: 75, A: 255}, want: BucketOrangeBrown},
		{name: "gray", c: color.RGBA{R: 128, G: 128, B: 128, A: 255}, want: BucketGrayOrTricolor},
		{name: "blue", c: color.RGBA{B: 200, A: 255}, want: BucketGrayOrTricolor},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			img := solid(16, 16, tc.c)
			if got := th.ClassifyImage(img, img.Bounds()); got != tc.want {
				t.Errorf("ClassifyImage = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestAverageHSV_EmptyRect(t *testing.T) {
	t.Parallel()

	img := solid(8, 8, color.RGBA{R: 255, A: 255})
	if got := AverageHSV(img, image.Rect(20, 20, 30, 30)); got != (HSV{}) {
		t.Errorf("AverageHSV outside frame = %+v, want zero", got)
	}
}

func TestAverageHSV_Mixed(t *testing.T) {
	t.Parallel()

	// Half black, half white averages to a mid value: neither achromatic
	// extreme, so the coat falls through to gray/tricolour.
	img := solid(10, 10, color.RGBA{A: 255})
	for y := range 10 {
		for x := 5; x < 10; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	got := AverageHSV(img, img.Bounds())
	if got.V != 127.5 || got.S != 0 {
		t.Errorf("AverageHSV = %+v, want S=0 V=127.5", got)
	}
	if b := DefaultColorThresholds().Classify(got); b != BucketGrayOrTricolor {
		t.Errorf("Classify = %s, want %s", b, BucketGrayOrTricolor)
	}
}
