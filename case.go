package ecat

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Case describes one search run. It is built once from user input and
// treated as read-only for the rest of the run.
type Case struct {
	Name    string
	Contact string

	// Area and Window enable the geotemporal gate. nil disables that half.
	Area   *SearchArea
	Window *DateWindow

	Threshold float64 // minimum similarity for a match, 0.0–1.0
}

// SearchArea is the disappearance point and search radius.
type SearchArea struct {
	Center   LatLon
	RadiusKm float64
}

// DateWindow bounds capture timestamps, both ends inclusive. Bounds are
// instants; callers building them from calendar days use UTC, the same
// zone ExtractCaptureMetadata reads zone-less camera clocks in.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w DateWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Validate checks the case before any image is touched.
func (c Case) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name", ErrMissingCaseField)
	}
	if strings.TrimSpace(c.Contact) == "" {
		return fmt.Errorf("%w: contact", ErrMissingCaseField)
	}
	if math.IsNaN(c.Threshold) || c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: threshold %v outside [0, 1]", ErrInvalidCaseField, c.Threshold)
	}

	if a := c.Area; a != nil {
		if a.RadiusKm == 0 {
			return fmt.Errorf("%w: search radius", ErrMissingCaseField)
		}
		if a.RadiusKm < 0 || math.IsNaN(a.RadiusKm) {
			return fmt.Errorf("%w: search radius %v", ErrInvalidCaseField, a.RadiusKm)
		}
		if !a.Center.Valid() {
			return fmt.Errorf("%w: coordinates %v", ErrInvalidCaseField, a.Center)
		}
	}

	if w := c.Window; w != nil {
		if w.Start.IsZero() {
			return fmt.Errorf("%w: start date", ErrMissingCaseField)
		}
		if w.End.IsZero() {
			return fmt.Errorf("%w: end date", ErrMissingCaseField)
		}
		if w.End.Before(w.Start) {
			return fmt.Errorf("%w: end date %s before start date %s",
				ErrInvalidCaseField, w.End.Format(time.DateOnly), w.Start.Format(time.DateOnly))
		}
	}

	return nil
}
