package ecat

import (
	"bytes"
	"image"
	"strings"
	"time"

	"github.com/bep/imagemeta"
)

// CaptureMetadata is the subset of embedded metadata the geotemporal gate
// reads. The Has* flags distinguish "absent" from the zero value.
type CaptureMetadata struct {
	Location    LatLon
	HasLocation bool
	// Taken is in the camera's offset when the photo records one, otherwise
	// the camera's wall clock read as UTC. It never depends on the host zone.
	Taken   time.Time
	HasTime bool
}

const exifTimeLayout = "2006:01:02 15:04:05"

// captureTags are the EXIF tags needed for position and capture time.
var captureTags = map[string]bool{
	"GPSLatitude":         true,
	"GPSLatitudeRef":      true,
	"GPSLongitude":        true,
	"GPSLongitudeRef":     true,
	"DateTimeOriginal":    true,
	"OffsetTimeOriginal":  true,
	"CreateDate":          true,
	"OffsetTimeDigitized": true,
	"ModifyDate":          true,
	"OffsetTime":          true,
}

// timeTags pairs each capture timestamp with its offset tag, most
// specific first. ModifyDate is the IFD0 DateTime field.
var timeTags = [][2]string{
	{"DateTimeOriginal", "OffsetTimeOriginal"},
	{"CreateDate", "OffsetTimeDigitized"},
	{"ModifyDate", "OffsetTime"},
}

// ExtractCaptureMetadata reads GPS position and capture time from the EXIF
// block of raw image bytes. Returns nil when the data carries neither.
// Never returns an error: unparsable metadata counts as absent.
func ExtractCaptureMetadata(data []byte) *CaptureMetadata {
	if len(data) == 0 {
		return nil
	}
	format, ok := metaFormat(data)
	if !ok {
		return nil
	}

	var tags imagemeta.Tags
	_, err := imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: format,
		Sources:     imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return ti.Source == imagemeta.EXIF && captureTags[ti.Tag]
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			tags.Add(ti)
			return nil
		},
	})
	if err != nil {
		return nil
	}

	meta := &CaptureMetadata{}
	exif := tags.EXIF()

	_, hasLat := exif["GPSLatitude"]
	_, hasLon := exif["GPSLongitude"]
	if hasLat && hasLon {
		lat, lon, err := tags.GetLatLong()
		if err == nil {
			p := LatLon{Lat: lat, Lon: lon}
			if p.Valid() {
				meta.Location = p
				meta.HasLocation = true
			}
		}
	}

	if t, ok := captureTime(exif); ok {
		meta.Taken = t
		meta.HasTime = true
	}

	if !meta.HasLocation && !meta.HasTime {
		return nil
	}
	return meta
}

// metaFormat maps the decoder that recognises data to the container format
// imagemeta expects. GIF and BMP carry no EXIF.
func metaFormat(data []byte) (f imagemeta.ImageFormat, ok bool) {
	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return f, false
	}
	switch name {
	case "jpeg":
		return imagemeta.JPEG, true
	case "png":
		return imagemeta.PNG, true
	case "tiff":
		return imagemeta.TIFF, true
	case "webp":
		return imagemeta.WebP, true
	default:
		return f, false
	}
}

// captureTime reads the first usable entry of timeTags. EXIF timestamps
// carry no zone; the paired OffsetTime* tag, when present, supplies it.
func captureTime(exif map[string]imagemeta.TagInfo) (time.Time, bool) {
	for _, pair := range timeTags {
		raw, ok := tagString(exif[pair[0]])
		if !ok {
			continue
		}
		t, err := time.ParseInLocation(exifTimeLayout, raw, time.UTC)
		if err != nil || t.IsZero() {
			continue
		}
		if off, ok := tagString(exif[pair[1]]); ok {
			if loc, ok := exifOffset(off); ok {
				t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
			}
		}
		return t, true
	}
	return time.Time{}, false
}

func tagString(ti imagemeta.TagInfo) (string, bool) {
	var s string
	switch v := ti.Value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return "", false
	}
	s = strings.TrimSpace(strings.Trim(s, "\x00"))
	return s, s != ""
}

// exifOffset parses "+02:00" / "-03:30".
func exifOffset(s string) (*time.Location, bool) {
	t, err := time.Parse("-07:00", s)
	if err != nil {
		return nil, false
	}
	_, secs := t.Zone()
	return time.FixedZone(s, secs), true
}
