package ecat

import (
	"fmt"
	"image"
)

// Scorer compares two canonical patches of identical size.
type Scorer interface {
	Score(a, b *image.Gray) (float64, error)
}

const (
	defaultSSIMWindow = 7
	defaultSSIMK1     = 0.01
	defaultSSIMK2     = 0.03
	ssimDataRange     = 255.0
)

// SSIM is the mean structural similarity index over every fully interior
// Window×Window neighbourhood, with uniform weights and sample covariance.
// Zero fields take the conventional defaults (7, 0.01, 0.03). A set Window
// must be odd and at least 3.
type SSIM struct {
	Window int
	K1, K2 float64
}

// Score returns a value in [-1, 1]; 1 means structurally identical.
// It is symmetric in its arguments and has no hidden state.
func (s SSIM) Score(a, b *image.Gray) (float64, error) {
	win := s.Window
	switch {
	case win == 0:
		win = defaultSSIMWindow
	case win < 3 || win%2 == 0:
		return 0, fmt.Errorf("%w: %d", ErrInvalidWindow, win)
	}
	k1, k2 := s.K1, s.K2
	if k1 == 0 {
		k1 = defaultSSIMK1
	}
	if k2 == 0 {
		k2 = defaultSSIMK2
	}

	if a == nil || b == nil {
		return 0, fmt.Errorf("%w: nil patch", ErrDimensionMismatch)
	}
	w, h := a.Rect.Dx(), a.Rect.Dy()
	if w != b.Rect.Dx() || h != b.Rect.Dy() {
		return 0, fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, w, h, b.Rect.Dx(), b.Rect.Dy())
	}
	if w < win || h < win {
		return 0, fmt.Errorf("%w: %dx%d patch smaller than %d window", ErrDimensionMismatch, w, h, win)
	}

	sa := newIntegrals(a, b)

	n := float64(win * win)
	covNorm := n / (n - 1)
	c1 := (k1 * ssimDataRange) * (k1 * ssimDataRange)
	c2 := (k2 * ssimDataRange) * (k2 * ssimDataRange)

	var total float64
	count := 0
	for y := 0; y+win <= h; y++ {
		for x := 0; x+win <= w; x++ {
			sx, sy, sxx, syy, sxy := sa.window(x, y, win)

			ux, uy := float64(sx)/n, float64(sy)/n
			vx := covNorm * (float64(sxx)/n - ux*ux)
			vy := covNorm * (float64(syy)/n - uy*uy)
			vxy := covNorm * (float64(sxy)/n - ux*uy)

			num := (2*ux*uy + c1) * (2*vxy + c2)
			den := (ux*ux + uy*uy + c1) * (vx + vy + c2)
			total += num / den
			count++
		}
	}

	return total / float64(count), nil
}

// integrals holds summed-area tables for x, y, x², y² and x·y. Sums are
// exact integers so the window statistics do not depend on traversal order.
type integrals struct {
	stride                int
	sx, sy, sxx, syy, sxy []int64
}

func newIntegrals(a, b *image.Gray) *integrals {
	w, h := a.Rect.Dx(), a.Rect.Dy()
	stride := w + 1
	size := stride * (h + 1)
	t := &integrals{
		stride: stride,
		sx:     make([]int64, size),
		sy:     make([]int64, size),
		sxx:    make([]int64, size),
		syy:    make([]int64, size),
		sxy:    make([]int64, size),
	}

	for y := range h {
		for x := range w {
			pa := int64(a.Pix[y*a.Stride+x])
			pb := int64(b.Pix[y*b.Stride+x])

			i := (y+1)*stride + (x + 1)
			up, left, diag := i-stride, i-1, i-stride-1

			t.sx[i] = pa + t.sx[up] + t.sx[left] - t.sx[diag]
			t.sy[i] = pb + t.sy[up] + t.sy[left] - t.sy[diag]
			t.sxx[i] = pa*pa + t.sxx[up] + t.sxx[left] - t.sxx[diag]
			t.syy[i] = pb*pb + t.syy[up] + t.syy[left] - t.syy[diag]
			t.sxy[i] = pa*pb + t.sxy[up] + t.sxy[left] - t.sxy[diag]
		}
	}
	return t
}

func (t *integrals) window(x, y, win int) (sx, sy, sxx, syy, sxy int64) {
	tl := y*t.stride + x
	tr := tl + win
	bl := (y+win)*t.stride + x
	br := bl + win
	rect := func(s []int64) int64 { return s[br] - s[tr] - s[bl] + s[tl] }
	return rect(t.sx), rect(t.sy), rect(t.sxx), rect(t.syy), rect(t.sxy)
}
