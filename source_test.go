package ecat

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func drain(t *testing.T, src CandidateSource) []*CandidateImage {
	t.Helper()
	var out []*CandidateImage
	for {
		c, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, c)
	}
}

func TestSliceSource(t *testing.T) {
	t.Parallel()

	src := NewSliceSource(CandidateImage{ID: "a"}, CandidateImage{ID: "b"})
	if src.Len() != 2 {
		t.Errorf("Len() = %d", src.Len())
	}
	var ids []string
	for _, c := range drain(t, src) {
		ids = append(ids, c.ID)
	}
	if !slices.Equal(ids, []string{"a", "b"}) {
		t.Errorf("ids = %v", ids)
	}
	if _, err := src.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("Next after exhaustion = %v, want io.EOF", err)
	}
}

func TestDirSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for name, data := range map[string]string{
		"b.jpg":     "B",
		"a.PNG":     "A",
		"c.webp":    "C",
		"notes.txt": "not a photo",
		".DS_Store": "",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	// Mirrors written by a previous run must not be rescanned.
	if err := os.MkdirAll(filepath.Join(dir, "matches"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "matches", "a.PNG"), []byte("A"), 0o600); err != nil {
		t.Fatal(err)
	}

	src, err := NewDirSource(dir)
	if err != nil {
		t.Fatal(err)
	}
	if src.Len() != 3 {
		t.Errorf("Len() = %d, want 3", src.Len())
	}

	var ids, data []string
	for _, c := range drain(t, src) {
		ids = append(ids, c.ID)
		data = append(data, string(c.Data))
		if c.Path != filepath.Join(dir, c.ID) {
			t.Errorf("%s: path %q", c.ID, c.Path)
		}
	}
	if !slices.Equal(ids, []string{"a.PNG", "b.jpg", "c.webp"}) {
		t.Errorf("ids = %v", ids)
	}
	if !slices.Equal(data, []string{"A", "B", "C"}) {
		t.Errorf("data = %v", data)
	}
}

func TestDirSource_Missing(t *testing.T) {
	t.Parallel()

	if _, err := NewDirSource(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestIsImageFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{"cat.jpg", true},
		{"cat.JPEG", true},
		{"scan.tiff", true},
		{"clip.gif", true},
		{"old.bmp", true},
		{"notes.txt", false},
		{"jpg", false},
		{"archive.jpg.zip", false},
	}
	for _, tc := range tests {
		if got := IsImageFile(tc.name); got != tc.want {
			t.Errorf("IsImageFile(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}
