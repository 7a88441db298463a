package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	ecat "github.com/anatolykoptev/go-ecat"
	"github.com/anatolykoptev/go-ecat/internal/config"
)

// dateLayout is the day/month/year format the case form uses.
const dateLayout = "02/01/2006"

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a photo library for a missing cat",
		Long: `Scan compares the target photo against every photo in --library (or every
URL listed in --urls). The search area and date window are mandatory; photos
whose EXIF place or time falls outside them are dropped before texture scoring.

Regions of interest come from --target-region and a --regions manifest; without
a manifest the whole frame is compared.`,
		Example: `  ecat scan --target tom.jpg --library ./photos --name Tom --contact 555-0100 \
    --lat 40.4168 --lon -3.7038 --radius 5 --from 01/03/2026 --to 15/03/2026`,
		RunE: runScan,
	}

	f := cmd.Flags()
	f.String("target", "", "photo of the missing cat")
	f.String("target-region", "", "nose region of the target as x,y,w,h")
	f.String("library", "", "directory of candidate photos")
	f.String("urls", "", "file with one candidate URL per line")
	f.String("regions", "", "YAML manifest of per-photo regions")

	f.String("name", "", "name of the cat")
	f.String("contact", "", "owner contact")
	f.Float64("lat", 0, "latitude of the last known location")
	f.Float64("lon", 0, "longitude of the last known location")
	f.Float64("radius", 0, "search radius in km")
	f.String("from", "", "start of the date window (DD/MM/YYYY)")
	f.String("to", "", "end of the date window, inclusive (DD/MM/YYYY)")

	f.Float64("threshold", ecat.DefaultThreshold, "minimum similarity for a match (0-1)")
	f.Int("patch-size", ecat.DefaultPatchSize, "side of the comparison patch in pixels")
	f.String("interpolation", string(ecat.InterpolationBiLinear), "resampling filter (nearest, approx-bilinear, bilinear, catmull-rom)")
	f.String("missing-metadata", string(ecat.PassThrough), "photos without EXIF place/time: pass or reject")

	f.String("mirror", "", "copy matches and colour rejects under this directory")
	f.String("report", "", "report path (default: next to the library)")
	f.String("format", "pdf", "report format (pdf, text)")
	f.Bool("no-progress", false, "disable the progress bar")

	_ = viper.BindPFlag("matching.threshold", f.Lookup("threshold"))
	_ = viper.BindPFlag("matching.patch_size", f.Lookup("patch-size"))
	_ = viper.BindPFlag("matching.interpolation", f.Lookup("interpolation"))
	_ = viper.BindPFlag("geo.missing_metadata", f.Lookup("missing-metadata"))

	return cmd
}

// scanOptions are the flags that do not live in the config file.
type scanOptions struct {
	target       string
	targetRegion string
	library      string
	urls         string
	regions      string
	mirror       string
	report       string
	format       string
	noProgress   bool
}

func readScanOptions(cmd *cobra.Command) (scanOptions, error) {
	f := cmd.Flags()
	var o scanOptions
	o.target, _ = f.GetString("target")
	o.targetRegion, _ = f.GetString("target-region")
	o.library, _ = f.GetString("library")
	o.urls, _ = f.GetString("urls")
	o.regions, _ = f.GetString("regions")
	o.mirror, _ = f.GetString("mirror")
	o.report, _ = f.GetString("report")
	o.format, _ = f.GetString("format")
	o.noProgress, _ = f.GetBool("no-progress")

	if o.target == "" {
		return o, errors.New("--target is required")
	}
	if (o.library == "") == (o.urls == "") {
		return o, errors.New("exactly one of --library or --urls is required")
	}
	if o.format != "pdf" && o.format != "text" {
		return o, fmt.Errorf("invalid --format %q (pdf, text)", o.format)
	}
	return o, nil
}

// caseFromFlags builds the desktop case. Unlike the web form, the desktop
// flow always has a search area and a date window.
func caseFromFlags(cmd *cobra.Command, threshold float64) (ecat.Case, error) {
	f := cmd.Flags()
	name, _ := f.GetString("name")
	contact, _ := f.GetString("contact")

	for _, req := range []string{"lat", "lon", "radius", "from", "to"} {
		if !f.Changed(req) {
			return ecat.Case{}, fmt.Errorf("%w: --%s", ecat.ErrMissingCaseField, req)
		}
	}
	lat, _ := f.GetFloat64("lat")
	lon, _ := f.GetFloat64("lon")
	radius, _ := f.GetFloat64("radius")
	fromRaw, _ := f.GetString("from")
	toRaw, _ := f.GetString("to")

	from, err := parseDay(fromRaw)
	if err != nil {
		return ecat.Case{}, fmt.Errorf("%w: --from: %v", ecat.ErrInvalidCaseField, err)
	}
	to, err := parseDay(toRaw)
	if err != nil {
		return ecat.Case{}, fmt.Errorf("%w: --to: %v", ecat.ErrInvalidCaseField, err)
	}

	c := ecat.Case{
		Name:      strings.TrimSpace(name),
		Contact:   strings.TrimSpace(contact),
		Threshold: threshold,
		Area:      &ecat.SearchArea{Center: ecat.LatLon{Lat: lat, Lon: lon}, RadiusKm: radius},
		Window:    &ecat.DateWindow{Start: from, End: endOfDay(to)},
	}
	return c, c.Validate()
}

// parseDay reads a calendar day as UTC midnight, the zone capture times
// without a recorded offset are read in.
func parseDay(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.UTC)
}

// endOfDay makes the last day of the window count in full.
func endOfDay(t time.Time) time.Time {
	return t.Add(24*time.Hour - time.Nanosecond)
}

// parseBox reads "x,y,w,h".
func parseBox(s string) (*ecat.Box, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("region %q: want x,y,w,h", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = n
	}
	return &ecat.Box{X: v[0], Y: v[1], W: v[2], H: v[3]}, nil
}

func readURLList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open url list: %w", err)
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		urls = append(urls, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read url list: %w", err)
	}
	return urls, nil
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	opts, err := readScanOptions(cmd)
	if err != nil {
		return err
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	cs, err := caseFromFlags(cmd, cfg.Matching.Threshold)
	if err != nil {
		return err
	}

	pcfg := cfg.Pipeline()

	targetData, err := os.ReadFile(opts.target)
	if err != nil {
		return fmt.Errorf("failed to read target: %w", err)
	}
	target := ecat.Target{ID: filepath.Base(opts.target), Data: targetData}
	if opts.targetRegion != "" {
		if target.Region, err = parseBox(opts.targetRegion); err != nil {
			return err
		}
	}
	if opts.regions != "" {
		regions, err := ecat.LoadRegions(opts.regions)
		if err != nil {
			return err
		}
		pcfg.Regions = regions
	}

	var src ecat.CandidateSource
	if opts.library != "" {
		if src, err = ecat.NewDirSource(opts.library); err != nil {
			return err
		}
	} else {
		urls, err := readURLList(opts.urls)
		if err != nil {
			return err
		}
		src = pcfg.NewURLSource(urls, cfg.DownloadOpts())
	}

	total := -1
	if s, ok := src.(ecat.Sized); ok {
		total = s.Len()
	}

	var onVerdict func(ecat.Verdict, *ecat.CandidateImage)
	if !opts.noProgress {
		bar := newProgress(cmd.ErrOrStderr(), total)
		onVerdict = func(ecat.Verdict, *ecat.CandidateImage) {
			if err := bar.Add(1); err != nil {
				slog.Warn("Failed to update progress bar", "error", err)
			}
		}
		defer func() { _ = bar.Finish() }()
	}
	if opts.mirror != "" {
		onVerdict = ecat.Mirror{Dest: opts.mirror}.Hook(onVerdict)
	}
	pcfg.OnVerdict = onVerdict

	slog.Info("Starting scan", "case", cs.Name, "target", target.ID, "candidates", total)

	res, err := pcfg.Run(ctx, cs, target, src)
	if err != nil {
		if res != nil && errors.Is(err, context.Canceled) {
			fmt.Fprintln(cmd.OutOrStdout(), warningStyle.Render(
				fmt.Sprintf("⚠ Scan interrupted after %d photos; no report written", res.Scanned)))
		}
		return err
	}

	report := ecat.BuildReport(cs, res, res.FinishedAt)
	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(report))

	path, err := writeReport(cmd, report, opts)
	if err != nil {
		return err
	}
	if path != "" {
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ Report written to "+path))
	}
	return nil
}

// writeReport persists the report and returns its path, or "" when a text
// report went to stdout.
func writeReport(cmd *cobra.Command, r *ecat.Report, opts scanOptions) (string, error) {
	if opts.format == "text" {
		if opts.report == "" {
			return "", r.WriteText(cmd.OutOrStdout())
		}
		f, err := os.Create(opts.report)
		if err != nil {
			return "", fmt.Errorf("failed to create report: %w", err)
		}
		defer f.Close()
		if err := r.WriteText(f); err != nil {
			return "", err
		}
		return opts.report, nil
	}

	path := opts.report
	if path == "" {
		dir := opts.library
		if dir == "" {
			dir = "."
		}
		path = filepath.Join(dir, r.FileName(ecat.DesktopReportPrefix))
	}
	return path, r.WritePDFFile(path)
}
