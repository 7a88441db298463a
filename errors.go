package ecat

import "errors"

var (
	// ErrUnreadableImage reports bytes that no registered decoder accepts.
	ErrUnreadableImage = errors.New("unreadable image")
	// ErrInvalidRegion reports a zero-area or out-of-frame region of interest.
	ErrInvalidRegion = errors.New("invalid region")
	// ErrMissingCaseField reports required case metadata that was not supplied.
	ErrMissingCaseField = errors.New("missing case field")
	// ErrInvalidCaseField reports case metadata outside its valid range.
	ErrInvalidCaseField = errors.New("invalid case field")
	// ErrDimensionMismatch reports patches of different sizes reaching the
	// scorer. Extraction always produces the canonical size, so this is a bug.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrInvalidWindow reports an SSIM window that is not an odd size of at
	// least 3.
	ErrInvalidWindow = errors.New("invalid ssim window")
)

// SkipReason classifies a candidate that was dropped without a verdict on
// its content.
type SkipReason string

const (
	SkipUnreadableImage SkipReason = "unreadable_image"
	SkipInvalidRegion   SkipReason = "invalid_region"
)
