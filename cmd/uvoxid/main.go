package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/uvoxid/core"
	"github.com/signalsfoundry/uvoxid/geom"
	"github.com/signalsfoundry/uvoxid/internal/logging"
	"github.com/signalsfoundry/uvoxid/internal/observability"
	"github.com/signalsfoundry/uvoxid/kb"
	"github.com/signalsfoundry/uvoxid/timectrl"
	"github.com/signalsfoundry/uvoxid/track"
)

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "uvoxid:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:           "uvoxid",
		Short:         "Encode, compare and track UVoxID spatial addresses",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Usage()
			return errUsage
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel == "" {
				logLevel = os.Getenv("UVOXID_LOG_LEVEL")
			}
			if logFormat == "" {
				logFormat = os.Getenv("UVOXID_LOG_FORMAT")
			}
			log := logging.New(logging.Config{
				Level:  logLevel,
				Format: logFormat,
				Output: cmd.ErrOrStderr(),
			})
			cmd.SetContext(logging.ContextWithLogger(cmd.Context(), log))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (default $UVOXID_LOG_LEVEL or info)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (default $UVOXID_LOG_FORMAT or text)")

	root.AddCommand(
		newEncodeCmd(),
		newDecodeCmd(),
		newConvertCmd(),
		newApplyCmd(),
		newDiffCmd(),
		newSnapCmd(),
		newDistanceCmd(),
		newTrackCmd(),
	)
	return root
}

// exactArgs is cobra.ExactArgs reporting errUsage.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%w: %s takes %d argument(s), got %d", errUsage, cmd.Name(), n, len(args))
		}
		return nil
	}
}

func newEncodeCmd() *cobra.Command {
	var (
		frame     uint64
		radius    uint64
		lat, lon  int64
		normalize bool
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Print the hex address for the given fields",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := core.New(frame, radius, lat, lon)
			if normalize {
				addr = core.Normalize(addr)
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr.Hex())
			return nil
		},
	}
	f := cmd.Flags()
	f.Uint64Var(&frame, "frame", core.FrameEarth, "reference frame id")
	f.Uint64VarP(&radius, "radius", "r", 0, "radius in micrometers")
	f.Int64Var(&lat, "lat", 0, "latitude in millionths of a degree")
	f.Int64Var(&lon, "lon", 0, "longitude in millionths of a degree")
	f.BoolVar(&normalize, "normalize", false, "wrap latitude and longitude into range first")
	return cmd
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode HEX",
		Short: "Print the fields of an address",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := core.ParseHex(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, addr)
			fmt.Fprintf(out, "r=%.6f m, lat=%.6f°, lon=%.6f°\n", addr.RadiusMeters(), addr.LatDegrees(), addr.LonDegrees())
			return nil
		},
	}
}

func newConvertCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "convert VALUE",
		Short: "Convert an address between hex, json, proto and msgpack",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := readAddress(from, args[0])
			if err != nil {
				return err
			}
			out, err := writeAddress(to, addr)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "hex", "input format: hex, json, proto or msgpack")
	cmd.Flags().StringVar(&to, "to", "json", "output format: hex, json, proto or msgpack")
	return cmd
}

// readAddress decodes in. Binary formats are given as hex-encoded bytes.
func readAddress(format, in string) (core.Address, error) {
	format = strings.ToLower(format)
	switch format {
	case "hex":
		return core.ParseHex(in)
	case "json":
		var addr core.Address
		if err := json.Unmarshal([]byte(in), &addr); err != nil {
			return core.Address{}, fmt.Errorf("decode json: %w", err)
		}
		return addr, nil
	case "proto", "msgpack":
		raw, err := hex.DecodeString(in)
		if err != nil {
			return core.Address{}, fmt.Errorf("decode %s bytes: %w", format, err)
		}
		if format == "proto" {
			return core.DecodeProto(raw)
		}
		return core.DecodeMsgpack(raw)
	default:
		return core.Address{}, fmt.Errorf("%w: unknown format %q", errUsage, format)
	}
}

func writeAddress(format string, addr core.Address) (string, error) {
	switch strings.ToLower(format) {
	case "hex":
		return addr.Hex(), nil
	case "json":
		b, err := json.Marshal(addr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case "proto":
		return hex.EncodeToString(core.EncodeProto(addr)), nil
	case "msgpack":
		b, err := core.EncodeMsgpack(addr)
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(b), nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", errUsage, format)
	}
}

func newApplyCmd() *cobra.Command {
	var dr, dlat, dlon int64
	cmd := &cobra.Command{
		Use:   "apply HEX",
		Short: "Displace an address by a delta",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := core.ParseHex(args[0])
			if err != nil {
				return err
			}
			moved := addr.Add(core.NewDelta(dr, dlat, dlon))
			fmt.Fprintln(cmd.OutOrStdout(), moved.Hex())
			fmt.Fprintln(cmd.OutOrStdout(), moved)
			return nil
		},
	}
	cmd.Flags().Int64Var(&dr, "dr", 0, "radius change in micrometers")
	cmd.Flags().Int64Var(&dlat, "dlat", 0, "latitude change in millionths of a degree")
	cmd.Flags().Int64Var(&dlon, "dlon", 0, "longitude change in millionths of a degree")
	return cmd
}

func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff HEX_A HEX_B",
		Short: "Print the delta taking A to B",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, b, err := parsePair(args)
			if err != nil {
				return err
			}
			d, err := b.Sub(a)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), d)
			return nil
		},
	}
}

func newSnapCmd() *cobra.Command {
	var precision int
	cmd := &cobra.Command{
		Use:   "snap HEX",
		Short: "Print the tolerance bucket key of an address",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := core.ParseHex(args[0])
			if err != nil {
				return err
			}
			key, err := core.Snap(addr, precision)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	cmd.Flags().IntVarP(&precision, "precision", "p", track.DefaultPrecision, "significant units to keep")
	return cmd
}

func newDistanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distance HEX_A HEX_B",
		Short: "Print chord and great-circle distance in meters",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, b, err := parsePair(args)
			if err != nil {
				return err
			}
			chord, err := geom.LinearDistance(a, b)
			if err != nil {
				return err
			}
			arc, err := geom.HaversineDistance(a, b)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "chord=%.3f m, great-circle=%.3f m\n", chord, arc)
			return nil
		},
	}
}

func parsePair(args []string) (core.Address, core.Address, error) {
	a, err := core.ParseHex(args[0])
	if err != nil {
		return core.Address{}, core.Address{}, err
	}
	b, err := core.ParseHex(args[1])
	if err != nil {
		return core.Address{}, core.Address{}, err
	}
	return a, b, nil
}

type trackOptions struct {
	scenario    string
	metricsAddr string
	mode        string
	steps       int
}

func newTrackCmd() *cobra.Command {
	var opts trackOptions
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Propagate a YAML tracking scenario and print every sample",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.scenario == "" {
				return fmt.Errorf("%w: track needs --scenario", errUsage)
			}
			return runTrack(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.scenario, "scenario", "s", "", "path to a YAML tracking scenario")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics (disabled when empty)")
	f.StringVar(&opts.mode, "mode", "", "override the scenario clock mode: realtime or accelerated")
	f.IntVar(&opts.steps, "steps", 0, "override the scenario step count")
	return cmd
}

func runTrack(ctx context.Context, opts trackOptions, stdout, stderr io.Writer) error {
	log := logging.FromContext(ctx)

	sc, err := track.LoadScenarioFile(opts.scenario)
	if err != nil {
		return err
	}
	if opts.mode != "" {
		if sc.Mode, err = timectrl.ParseMode(opts.mode); err != nil {
			return err
		}
	}
	if opts.steps > 0 {
		sc.Steps = opts.steps
	}

	tracingCfg := observability.TracingConfigFromEnv()
	tracingCfg.Output = stderr
	shutdown, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	collector, err := observability.NewTrackCollector(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	if opts.metricsAddr != "" {
		srv := serveMetrics(opts.metricsAddr, collector, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	store, err := kb.NewKnowledgeBase(sc.Precision)
	if err != nil {
		return err
	}
	tracker := track.NewTracker(store, log,
		track.WithMetricsRecorder(collector),
		track.WithSampleHandler(func(s track.Sample) {
			fmt.Fprintf(stdout, "%d\t%s\t%s\t%s\t%s\n", s.Step, s.Time.Format(time.RFC3339), s.ObjectID, s.Address.Hex(), s.Delta)
		}),
	)
	if err := tracker.LoadScenario(sc); err != nil {
		return err
	}

	tc := timectrl.NewTimeController(sc.Start, sc.Step, sc.Mode)
	return tracker.Run(ctx, tc, sc.Steps)
}

func serveMetrics(addr string, collector *observability.TrackCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
