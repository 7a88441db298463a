package ecat

import (
	"image"

	"github.com/corona10/goimagehash"
)

// Fingerprint is a 64-bit perceptual hash of a canonical patch. It is recorded
// in reports as supplementary evidence next to the SSIM score; it never
// decides a match.
type Fingerprint struct {
	hash *goimagehash.ImageHash
}

// NewFingerprint hashes a patch. If hashing fails the zero Fingerprint is
// returned (graceful degradation: reports just omit the value).
func NewFingerprint(patch image.Image) Fingerprint {
	if patch == nil {
		return Fingerprint{}
	}
	h, err := goimagehash.PerceptionHash(patch)
	if err != nil {
		return Fingerprint{}
	}
	return Fingerprint{hash: h}
}

// Valid reports whether the hash was computed.
func (f Fingerprint) Valid() bool { return f.hash != nil }

// String returns the hash in goimagehash's "p:<hex>" form, or "" when invalid.
func (f Fingerprint) String() string {
	if f.hash == nil {
		return ""
	}
	return f.hash.ToString()
}

// Distance is the Hamming distance between two fingerprints, or -1 when
// either side is missing.
func (f Fingerprint) Distance(other Fingerprint) int {
	if f.hash == nil || other.hash == nil {
		return -1
	}
	d, err := f.hash.Distance(other.hash)
	if err != nil {
		return -1
	}
	return d
}
