// Command paradecheck runs one weather check from the command line, optionally
// compares alternative locations and exports the result.
//
//	paradecheck -location "Paris" -date 2025-07-04 -activity Hiking \
//	    -compare Lyon -compare Nice -export csv
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/parade-planner/internal/adapter/geocache"
	"github.com/couchcryptid/parade-planner/internal/adapter/geoprovider"
	"github.com/couchcryptid/parade-planner/internal/adapter/weatherapi"
	"github.com/couchcryptid/parade-planner/internal/config"
	"github.com/couchcryptid/parade-planner/internal/domain"
	"github.com/couchcryptid/parade-planner/internal/export"
	"github.com/couchcryptid/parade-planner/internal/observability"
	"github.com/couchcryptid/parade-planner/internal/picker"
	"github.com/couchcryptid/parade-planner/internal/session"
)

type options struct {
	location  string
	date      string
	activity  string
	lat, lng  float64
	pick      bool
	compare   []string
	exports   []domain.ExportFormat
	startYear int
	endYear   int
	asJSON    bool
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLoggerTo(os.Stderr, cfg)
	os.Exit(run(context.Background(), cfg, opts, observability.NewMetrics(), logger, os.Stdout, os.Stderr))
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("paradecheck", flag.ContinueOnError)
	fs.StringVar(&opts.location, "location", "", "location to check")
	fs.StringVar(&opts.date, "date", "", "date as YYYY-MM-DD, within the next year")
	fs.StringVar(&opts.activity, "activity", domain.DefaultActivity, "one of: "+strings.Join(domain.Activities, ", "))
	fs.Float64Var(&opts.lat, "lat", 0, "pick the location from this latitude (with -lng)")
	fs.Float64Var(&opts.lng, "lng", 0, "pick the location from this longitude (with -lat)")
	fs.Func("compare", "additional location to compare against (repeatable)", func(s string) error {
		opts.compare = append(opts.compare, s)
		return nil
	})
	fs.Func("export", "export format csv or json (repeatable)", func(s string) error {
		f, ok := domain.ParseExportFormat(s)
		if !ok {
			return fmt.Errorf("unsupported export format %q", s)
		}
		opts.exports = append(opts.exports, f)
		return nil
	})
	fs.IntVar(&opts.startYear, "start-year", 0, "first year of the trend series (service default when 0)")
	fs.IntVar(&opts.endYear, "end-year", 0, "last year of the trend series (service default when 0)")
	fs.BoolVar(&opts.asJSON, "json", false, "print the final session state as JSON")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "lat" || f.Name == "lng" {
			opts.pick = true
		}
	})
	if opts.location == "" && !opts.pick {
		return options{}, errUsage
	}
	return opts, nil
}

// run executes the check and returns the process exit code: 0 on success,
// 1 on a remote or export failure, 2 on invalid input.
func run(ctx context.Context, cfg *config.Config, opts options, metrics *observability.Metrics, logger *slog.Logger, out, errOut io.Writer) int {
	weather := weatherapi.NewClient(cfg.WeatherAPIURL, cfg.WeatherAPITimeout, metrics, logger)
	geocoder := geocache.Wrap(geoprovider.New(cfg, metrics, logger), cfg.GeocoderCacheSize, metrics)
	resolver := domain.NewResolver(geocoder, logger)
	p := picker.New(resolver, domain.LatLng{Lat: cfg.MapDefaultLat, Lng: cfg.MapDefaultLng}, metrics, logger)
	p.SetText(opts.location)

	sess := session.New("cli", weather, metrics, logger,
		session.WithPicker(p),
		session.WithTrendYears(domain.YearRange{Start: opts.startYear, End: opts.endYear}),
	)

	if opts.pick {
		p.ToggleMode()
		if _, err := p.Click(ctx, opts.lat, opts.lng); err != nil {
			logger.Error("map pick failed", "error", err)
			return 1
		}
		if _, err := p.Confirm(); err != nil {
			logger.Error("map pick failed", "error", err)
			return 1
		}
		fmt.Fprintf(out, "Picked location: %s\n", p.Text())
	}

	st, err := sess.Submit(ctx, p.Text(), opts.date, opts.activity)
	if err != nil {
		if domain.IsValidation(err) {
			fmt.Fprintln(errOut, err)
			return 2
		}
		fmt.Fprintln(errOut, failureMessage(st.Err, err))
		return 1
	}
	if !opts.asJSON {
		printCheck(out, st)
	}

	code := 0
	if len(opts.compare) > 0 {
		locations := append([]string{st.LastRequest.Location}, opts.compare...)
		st, err = sess.Compare(ctx, locations)
		switch {
		case domain.IsValidation(err):
			fmt.Fprintln(errOut, err)
			code = 2
		case err != nil:
			fmt.Fprintln(errOut, failureMessage(st.Comparison.Err, err))
			code = 1
		case !opts.asJSON:
			printComparison(out, *st.Comparison.Result)
		}
	}

	if len(opts.exports) > 0 {
		saver, err := newSaver(cfg, logger)
		if err != nil {
			logger.Error("export target unavailable", "error", err)
			return 1
		}
		ctrl := export.NewController(weather, sess, saver, metrics, logger)
		for _, f := range opts.exports {
			name, err := ctrl.Export(ctx, f)
			if err != nil {
				code = 1
				continue
			}
			fmt.Fprintf(out, "Exported %s\n", name)
		}
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sess.State()); err != nil {
			logger.Error("encode state", "error", err)
			return 1
		}
	}
	return code
}

func failureMessage(stateErr *session.StateError, err error) string {
	if stateErr != nil {
		return stateErr.Message
	}
	return err.Error()
}

func printCheck(out io.Writer, st session.State) {
	c := st.Check
	fmt.Fprintf(out, "%s on %s (%s)\n", st.LastRequest.Location, st.LastRequest.Date, st.LastRequest.Activity)
	fmt.Fprintf(out, "Score: %d/5 %s\n", c.Score, c.Classification)
	fmt.Fprintf(out, "%s\n", c.Justification)
	m := c.Metrics
	fmt.Fprintf(out, "Temperature %.1f°C (%.1f to %.1f), precipitation %.2f mm/h, wind %.1f km/h, humidity %.0f%%\n",
		m.AvgTempC, m.MinTempC, m.MaxTempC, m.AvgPrecipitationMMHr, m.AvgWindSpeedKMH, m.AvgHumidityPercent)
	if m.AvgUVIndex != nil {
		fmt.Fprintf(out, "UV index %.1f\n", *m.AvgUVIndex)
	}
	for _, r := range c.Recommendations {
		fmt.Fprintf(out, "  - %s\n", r)
	}
	if st.Trends != nil {
		fmt.Fprintf(out, "Climate trend: %s (%+.2f°C per decade)\n", st.Trends.Direction, st.Trends.Analysis.TempChangePerDecade)
	}
}

func printComparison(out io.Writer, result domain.ComparisonResult) {
	fmt.Fprintf(out, "Best location: %s\n", result.BestLocation)
	for i, e := range result.Ranked() {
		fmt.Fprintf(out, "%d. %s  %d/5\n", i+1, e.Location, e.Score)
	}
}

func newSaver(cfg *config.Config, logger *slog.Logger) (export.Saver, error) {
	if cfg.ExportBucket == "" {
		return export.NewDirSaver(cfg.ExportDir), nil
	}
	return export.NewObjectSaver(export.ObjectConfig{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Region:    cfg.S3Region,
		Bucket:    cfg.ExportBucket,
		Prefix:    cfg.ExportPrefix,
	}, logger)
}

var errUsage = errors.New("usage: paradecheck -location NAME -date YYYY-MM-DD [-activity NAME] [-compare NAME]... [-export csv|json]...")
