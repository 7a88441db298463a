package ecat

import (
	"bytes"
	"errors"
	"image"
	"testing"

	"golang.org/x/image/tiff"
)

func tiffBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestValidateImage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     func(t *testing.T) []byte
		minSide  int
		wantErr  bool
		wantMIME string
	}{
		{
			name:     "png passes",
			data:     func(t *testing.T) []byte { return pngBytes(t, texture(64, 32, 1)) },
			minSide:  16,
			wantMIME: "image/png",
		},
		{
			name:     "jpeg passes",
			data:     func(t *testing.T) []byte { return jpegBytes(t, texture(64, 64, 1)) },
			minSide:  1,
			wantMIME: "image/jpeg",
		},
		{
			name:     "tiff passes",
			data:     func(t *testing.T) []byte { return tiffBytes(t, texture(40, 40, 1)) },
			minSide:  16,
			wantMIME: "image/tiff",
		},
		{
			name:    "small tiff is rejected",
			data:    func(t *testing.T) []byte { return tiffBytes(t, texture(8, 8, 1)) },
			minSide: 16,
			wantErr: true,
		},
		{
			name:    "opaque binary is rejected",
			data:    func(*testing.T) []byte { return []byte{0x00, 0x01, 0x02, 0x03, 0xfe, 0xff} },
			wantErr: true,
		},
		{
			name:    "too small",
			data:    func(t *testing.T) []byte { return pngBytes(t, texture(64, 8, 1)) },
			minSide: 16,
			wantErr: true,
		},
		{
			name:    "text is rejected",
			data:    func(*testing.T) []byte { return []byte("just some text") },
			wantErr: true,
		},
		{
			name:    "empty is rejected",
			data:    func(*testing.T) []byte { return nil },
			wantErr: true,
		},
		{
			name: "truncated header is rejected",
			data: func(*testing.T) []byte {
				return []byte("\x89PNG\r\n\x1a\n")
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			info, err := ValidateImage(tc.data(t), tc.minSide)
			if tc.wantErr {
				if !errors.Is(err, ErrUnreadableImage) {
					t.Fatalf("err = %v, want ErrUnreadableImage", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if info.MIMEType != tc.wantMIME {
				t.Errorf("MIMEType = %q, want %q", info.MIMEType, tc.wantMIME)
			}
		})
	}
}
