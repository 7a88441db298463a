package ecat

import (
	"fmt"
	"math"
	"strings"
)

// EarthRadiusKm is the mean radius of the spherical Earth approximation.
const EarthRadiusKm = 6371.0

// LatLon is a point in decimal degrees.
type LatLon struct {
	Lat, Lon float64
}

// Valid reports whether the point lies within the usual degree ranges.
func (p LatLon) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

func (p LatLon) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

// Haversine returns the great-circle distance between a and b in kilometers.
func Haversine(a, b LatLon) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLon/2), 2)
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// MissingMetadataPolicy decides what happens to a candidate that carries no
// capture location or timestamp while the matching gate is enabled.
type MissingMetadataPolicy string

const (
	// PassThrough keeps the candidate; absent metadata is not evidence against it.
	PassThrough MissingMetadataPolicy = "pass"
	// Reject drops the candidate.
	Reject MissingMetadataPolicy = "reject"
)

// ParseMissingMetadataPolicy accepts "pass", "pass-through", "reject".
func ParseMissingMetadataPolicy(s string) (MissingMetadataPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pass", "pass-through", "passthrough":
		return PassThrough, nil
	case "reject":
		return Reject, nil
	default:
		return "", fmt.Errorf("unknown missing-metadata policy %q", s)
	}
}

// GeoFilter is the metadata-only gate. It can only remove candidates.
type GeoFilter struct {
	Area    *SearchArea
	Window  *DateWindow
	Missing MissingMetadataPolicy
}

// NewGeoFilter builds the gate for a case.
func NewGeoFilter(c Case, missing MissingMetadataPolicy) GeoFilter {
	return GeoFilter{Area: c.Area, Window: c.Window, Missing: missing}
}

// Enabled reports whether the gate checks anything.
func (f GeoFilter) Enabled() bool {
	return f.Area != nil || f.Window != nil
}

// Include decides a candidate from its capture metadata; meta may be nil.
// The returned string explains a rejection.
func (f GeoFilter) Include(meta *CaptureMetadata) (bool, string) {
	if f.Area != nil {
		if meta == nil || !meta.HasLocation {
			if f.Missing == Reject {
				return false, "no capture location"
			}
		} else if d := Haversine(f.Area.Center, meta.Location); d > f.Area.RadiusKm {
			return false, fmt.Sprintf("%.3f km from disappearance point (radius %.3f km)", d, f.Area.RadiusKm)
		}
	}

	if f.Window != nil {
		if meta == nil || !meta.HasTime {
			if f.Missing == Reject {
				return false, "no capture time"
			}
		} else if !f.Window.Contains(meta.Taken) {
			return false, "captured " + meta.Taken.Format("2006-01-02 15:04 -07:00") + " outside date window"
		}
	}

	return true, ""
}
