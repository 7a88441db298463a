package ecat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CandidateImage is one library photo, loaded for a single iteration of the
// scan and discarded after its verdict.
type CandidateImage struct {
	ID   string
	Data []byte

	// Region is a selection supplied with the image. It takes precedence
	// over Config.Regions.
	Region *Box

	// Meta overrides the EXIF block of Data when the acquisition layer
	// already knows where and when the photo was taken.
	Meta *CaptureMetadata

	// Path is the file the bytes came from, when there is one.
	Path string
}

// CandidateSource enumerates candidates in acquisition order. Next returns
// io.EOF when exhausted; any other error aborts the scan.
type CandidateSource interface {
	Next(ctx context.Context) (*CandidateImage, error)
}

// Sized is implemented by sources that know their length up front.
type Sized interface {
	Len() int
}

// SliceSource serves in-memory candidates, e.g. the files of an upload form.
type SliceSource struct {
	items []CandidateImage
	pos   int
}

// NewSliceSource wraps items; the slice is not copied.
func NewSliceSource(items ...CandidateImage) *SliceSource {
	return &SliceSource{items: items}
}

func (s *SliceSource) Next(_ context.Context) (*CandidateImage, error) {
	if s.pos >= len(s.items) {
		return nil, io.EOF
	}
	c := &s.items[s.pos]
	s.pos++
	return c, nil
}

func (s *SliceSource) Len() int { return len(s.items) }

// ImageExtensions are the file suffixes DirSource picks up.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff"}

// IsImageFile reports whether name carries a supported image extension.
func IsImageFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// DirSource lists image files directly inside a directory (no recursion, so
// the side-file mirrors inside it are never rescanned) and reads each file
// only when it is reached.
type DirSource struct {
	dir   string
	names []string
	pos   int
}

// NewDirSource lists dir once, in lexical order.
func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read library %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return &DirSource{dir: dir, names: names}, nil
}

// Next reads the next file. A read failure is not fatal: the candidate is
// returned without data and the scan skips it as unreadable.
func (s *DirSource) Next(_ context.Context) (*CandidateImage, error) {
	if s.pos >= len(s.names) {
		return nil, io.EOF
	}
	name := s.names[s.pos]
	s.pos++

	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("ecat: read candidate", "path", path, "error", err.Error())
		data = nil
	}
	return &CandidateImage{ID: name, Data: data, Path: path}, nil
}

func (s *DirSource) Len() int { return len(s.names) }
