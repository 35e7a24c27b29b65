// cmd/civicpulse/main.go

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"civicpulse/internal/adapter/events"
	"civicpulse/internal/adapter/gazetteer"
	"civicpulse/internal/adapter/storage"
	"civicpulse/internal/bootstrap"
	"civicpulse/internal/config"
	"civicpulse/internal/domain/rollup"
	"civicpulse/internal/logging"
	"civicpulse/internal/service/aggregation"
	geoService "civicpulse/internal/service/geo"
)

var (
	cfg     config.Config
	logger  *zap.Logger
	timeout time.Duration
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "civicpulse",
		Short:         "Locality tagging and sentiment rollups",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logger, err = logging.New(cfg.Log.Level, cfg.Environment)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
	root.SetOut(out)
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout")

	root.AddCommand(newAggregateCmd(), newResolveCmd(), newTagCmd())
	return root
}

func newAggregateCmd() *cobra.Command {
	var date, start, end string
	var publish bool

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Roll up tagged records for a day or an explicit window",
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := windowFromFlags(date, start, end)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			db, err := bootstrap.OpenDatabase(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			gz, err := gazetteer.Load(cfg.Gazetteer.Path)
			if err != nil {
				return err
			}

			var publisher rollup.Publisher
			if publish {
				nc, err := bootstrap.ConnectNATS(cfg.NATS, logger)
				if err != nil {
					return err
				}
				defer nc.Close()
				publisher = events.NewPublisher(nc)
			}

			records := storage.NewRecordStore(db)
			engine := aggregation.NewEngine(
				records,
				storage.NewRollupStore(db),
				gz,
				publisher,
				aggregation.EngineConfig{
					Workers:       cfg.Aggregation.Workers,
					FetchTimeout:  cfg.Aggregation.FetchTimeout,
					UpsertTimeout: cfg.Aggregation.UpsertTimeout,
				},
				logger,
			)

			summary, err := engine.RunAggregation(ctx, window)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
				return err
			}
			if summary.PartialFailure() {
				return fmt.Errorf("%d localities failed to persist", len(summary.FailedLocalities))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Calendar day to aggregate (YYYY-MM-DD, UTC)")
	cmd.Flags().StringVar(&start, "start", "", "Window start (RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "Window end (RFC3339, exclusive)")
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish rollup events to NATS")
	cmd.MarkFlagsMutuallyExclusive("date", "start")
	cmd.MarkFlagsMutuallyExclusive("date", "end")
	cmd.MarkFlagsRequiredTogether("start", "end")

	return cmd
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <text>",
		Short: "Resolve free text to a locality",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gz, err := gazetteer.Load(cfg.Gazetteer.Path)
			if err != nil {
				return err
			}
			result := geoService.NewResolver(gz, nil).Resolve(args[0])
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func newTagCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Resolve locations for records that have none",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			db, err := bootstrap.OpenDatabase(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			gz, err := gazetteer.Load(cfg.Gazetteer.Path)
			if err != nil {
				return err
			}

			records := storage.NewRecordStore(db)
			tagger := geoService.NewTagger(geoService.NewResolver(gz, nil), records, records, logger)

			n, err := tagger.TagPending(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tagged %d records\n", n)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 500, "Maximum records to tag")
	return cmd
}

// windowFromFlags builds the aggregation window from either --date or --start/--end
func windowFromFlags(date, start, end string) (rollup.Window, error) {
	if date != "" {
		day, err := time.ParseInLocation(time.DateOnly, date, time.UTC)
		if err != nil {
			return rollup.Window{}, fmt.Errorf("invalid --date %q: %w", date, err)
		}
		return rollup.DayWindow(day), nil
	}

	if start == "" || end == "" {
		return rollup.Window{}, fmt.Errorf("either --date or both --start and --end are required")
	}

	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return rollup.Window{}, fmt.Errorf("invalid --start %q: %w", start, err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return rollup.Window{}, fmt.Errorf("invalid --end %q: %w", end, err)
	}

	window := rollup.Window{Start: s, End: e}
	return window, window.Validate()
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
