package ecat

import (
	"errors"
	"image"
	"testing"
)

func TestSSIM_Identical(t *testing.T) {
	t.Parallel()

	for _, seed := range []int{1, 2, 3} {
		a := texture(48, 48, seed)
		b := texture(48, 48, seed)
		got, err := SSIM{}.Score(a, b)
		if err != nil {
			t.Fatal(err)
		}
		if got != 1 {
			t.Errorf("seed %d: identical patches scored %v, want exactly 1", seed, got)
		}
	}
}

func TestSSIM_FlatPatches(t *testing.T) {
	t.Parallel()

	a := image.NewGray(image.Rect(0, 0, 16, 16))
	got, err := SSIM{}.Score(a, a)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("flat patch against itself = %v, want 1", got)
	}
}

func TestSSIM_SymmetricAndDeterministic(t *testing.T) {
	t.Parallel()

	a := texture(40, 40, 7)
	b := blemish(a, 10, 10, 6)

	ab, err := SSIM{}.Score(a, b)
	if err != nil {
		t.Fatal(err)
	}
	ba, err := SSIM{}.Score(b, a)
	if err != nil {
		t.Fatal(err)
	}
	if ab != ba {
		t.Errorf("Score(a,b) = %v, Score(b,a) = %v", ab, ba)
	}
	for range 3 {
		again, _ := SSIM{}.Score(a, b)
		if again != ab {
			t.Fatalf("repeated score %v, first %v", again, ab)
		}
	}
}

func TestSSIM_Ordering(t *testing.T) {
	t.Parallel()

	a := texture(48, 48, 11)
	small, _ := SSIM{}.Score(a, blemish(a, 20, 20, 2))
	large, _ := SSIM{}.Score(a, blemish(a, 10, 10, 16))
	other, _ := SSIM{}.Score(a, texture(48, 48, 12))

	if small <= 0.9 || small >= 1 {
		t.Errorf("small blemish scored %v, want (0.9, 1)", small)
	}
	if large >= small {
		t.Errorf("large blemish %v not below small blemish %v", large, small)
	}
	if other >= 0.3 {
		t.Errorf("unrelated texture scored %v, want < 0.3", other)
	}
	for _, s := range []float64{small, large, other} {
		if s < -1 || s > 1 {
			t.Errorf("score %v outside [-1, 1]", s)
		}
	}
}

func TestSSIM_DimensionErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b *image.Gray
	}{
		{name: "size mismatch", a: texture(32, 32, 1), b: texture(32, 31, 1)},
		{name: "smaller than window", a: texture(6, 6, 1), b: texture(6, 6, 1)},
		{name: "nil patch", a: texture(16, 16, 1), b: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := (SSIM{}).Score(tc.a, tc.b); !errors.Is(err, ErrDimensionMismatch) {
				t.Errorf("err = %v, want ErrDimensionMismatch", err)
			}
		})
	}
}

func TestSSIM_CustomWindow(t *testing.T) {
	t.Parallel()

	a := texture(10, 10, 5)
	if _, err := (SSIM{Window: 11}).Score(a, a); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("11x11 window on 10x10 patch: err = %v", err)
	}
	got, err := SSIM{Window: 3}.Score(a, a)
	if err != nil || got != 1 {
		t.Errorf("3x3 window = %v, %v", got, err)
	}
}

func TestSSIM_InvalidWindow(t *testing.T) {
	t.Parallel()

	a := texture(16, 16, 2)
	b := blemish(a, 4, 4, 3)
	for _, win := range []int{-7, 1, 2, 4, 8} {
		got, err := SSIM{Window: win}.Score(a, b)
		if !errors.Is(err, ErrInvalidWindow) {
			t.Errorf("window %d: score %v, err = %v, want ErrInvalidWindow", win, got, err)
		}
	}
}
