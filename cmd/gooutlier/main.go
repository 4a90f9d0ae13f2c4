// Command gooutlier flags the latest observation of a time series.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hed1ad/gooutlier/pkg/autoselect"
	"github.com/hed1ad/gooutlier/pkg/config"
	"github.com/hed1ad/gooutlier/pkg/detectors"
	gio "github.com/hed1ad/gooutlier/pkg/io"
	"github.com/hed1ad/gooutlier/pkg/io/csv"
	"github.com/hed1ad/gooutlier/pkg/io/influx"
	"github.com/hed1ad/gooutlier/pkg/io/jsonout"
	"github.com/hed1ad/gooutlier/pkg/io/pcap"
	"github.com/hed1ad/gooutlier/pkg/logging"
	"github.com/hed1ad/gooutlier/pkg/metrics"
	"github.com/hed1ad/gooutlier/pkg/outlier"
	"github.com/hed1ad/gooutlier/pkg/series"
)

var errNoSource = errors.New("exactly one of --csv, --pcap or --influx-url is required")

// sourceFlags selects where the series comes from.
type sourceFlags struct {
	csvFile   string
	noHeader  bool
	pcapFile  string
	bucket    time.Duration
	measure   string
	influxURL string
	token     string
	org       string
	query     string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.csvFile, "csv", "", "CSV file with timestamp,value rows")
	flags.BoolVar(&f.noHeader, "no-header", false, "CSV file has no header row")
	flags.StringVar(&f.pcapFile, "pcap", "", "pcap capture to aggregate into a traffic series")
	flags.DurationVar(&f.bucket, "bucket", time.Minute, "bucket width for --pcap")
	flags.StringVar(&f.measure, "measure", string(pcap.Packets), "per-bucket quantity for --pcap (packets, bytes, syn, payload)")
	flags.StringVar(&f.influxURL, "influx-url", "", "InfluxDB 2.x server URL")
	flags.StringVar(&f.token, "influx-token", os.Getenv("INFLUX_TOKEN"), "InfluxDB token (default $INFLUX_TOKEN)")
	flags.StringVar(&f.org, "influx-org", "", "InfluxDB organization")
	flags.StringVar(&f.query, "influx-query", "", "Flux query returning _time and _value")
}

func (f *sourceFlags) open() (gio.Reader, error) {
	set := 0
	for _, s := range []string{f.csvFile, f.pcapFile, f.influxURL} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return nil, errNoSource
	}

	switch {
	case f.csvFile != "":
		return csv.NewReader(f.csvFile, csv.WithHeader(!f.noHeader))
	case f.pcapFile != "":
		return pcap.NewFileReader(f.pcapFile, f.bucket, pcap.WithMeasure(pcap.Measure(f.measure)))
	default:
		if f.query == "" {
			return nil, errors.New("--influx-query is required with --influx-url")
		}
		return influx.NewClientReader(f.influxURL, f.token, f.org, f.query), nil
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "gooutlier",
		Short:        "Explainable outlier detection for the latest point of a time series",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")

	root.AddCommand(newDetectCmd(&configPath), newDetectorsCmd(&configPath))
	return root
}

func newDetectCmd(configPath *string) *cobra.Command {
	var src sourceFlags
	var metricsFile string
	var pretty bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Score the last observation and print the verdict as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			reg := prometheus.NewRegistry()
			engine := outlier.New(
				outlier.WithConfig(cfg),
				outlier.WithLogger(logger),
				outlier.WithMetrics(metrics.New(reg)),
			)

			s, err := readSeries(cmd.Context(), &src, logger)
			if err != nil {
				return err
			}

			res, err := engine.ProcessSeries(s)
			if err != nil {
				return err
			}

			var opts []jsonout.Option
			if pretty {
				opts = append(opts, jsonout.WithIndent("    "))
			}
			if err := jsonout.NewWriter(cmd.OutOrStdout(), opts...).Write(res.Verdict); err != nil {
				return err
			}

			if metricsFile != "" {
				if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
					return fmt.Errorf("write metrics: %w", err)
				}
			}
			return nil
		},
	}

	src.register(cmd)
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	return cmd
}

func newDetectorsCmd(configPath *string) *cobra.Command {
	var src sourceFlags

	cmd := &cobra.Command{
		Use:   "detectors",
		Short: "Print the detector ensemble selected for a series",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			s, err := readSeries(cmd.Context(), &src, logger)
			if err != nil {
				return err
			}

			reg := detectors.NewRegistry()
			sel, err := autoselect.Select(s, reg, cfg.Selection)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "interval: %s\n", sel.Interval)
			fmt.Fprintf(out, "cadence:  %s\n", sel.Tier)
			if sel.Season > 0 {
				fmt.Fprintf(out, "season:   %d samples\n", sel.Season)
			}
			fmt.Fprintln(out, strings.Join(reg.Names(), "\n"))
			return nil
		},
	}

	src.register(cmd)
	return cmd
}

func setup(configPath string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func readSeries(ctx context.Context, src *sourceFlags, logger *zap.Logger) (*series.Series, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	r, err := src.open()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	s, diags, err := r.Read(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range diags {
		logger.Warn(d.Message, zap.String("kind", string(d.Kind)))
	}
	logger.Debug("series loaded", zap.Int("points", s.Len()))
	return s, nil
}
