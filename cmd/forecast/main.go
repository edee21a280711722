package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"EconCast/internal/di"
	internalrepo "EconCast/internal/repository"
	"EconCast/internal/usecase"
	"EconCast/pkg/config"
	applogger "EconCast/pkg/logger"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	csvPath    string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "forecast",
		Short:         "Forecast economic indicators from a CSV dataset",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path (defaults apply when empty)")
	root.PersistentFlags().StringVar(&opts.csvPath, "csv", "", "CSV dataset path, overrides dataset.csv_path")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddCommand(indicatorCmd(opts))
	root.AddCommand(tradeBalanceCmd(opts))
	root.AddCommand(cacheDemoCmd(opts))
	return root
}

func indicatorCmd(opts *rootOptions) *cobra.Command {
	var (
		horizon int
		method  string
	)
	cmd := &cobra.Command{
		Use:   "indicator NAME",
		Short: "Forecast one indicator",
		Example: `  forecast indicator "GDP Growth" --horizon 4 --method linear
  forecast indicator inflation --csv data/indicators.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			res, err := svc.ForecastIndicator(cmd.Context(), args[0], horizon, method)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntVar(&horizon, "horizon", 6, "periods to forecast")
	cmd.Flags().StringVar(&method, "method", "ensemble", "linear|growth|smoothing|moving_average|ensemble")
	return cmd
}

func tradeBalanceCmd(opts *rootOptions) *cobra.Command {
	var (
		exportIndicator string
		importIndicator string
		horizon         int
		method          string
	)
	cmd := &cobra.Command{
		Use:   "trade-balance",
		Short: "Forecast exports minus imports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := buildService(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			res, err := svc.ForecastTradeBalanceWithMethod(cmd.Context(), exportIndicator, importIndicator, horizon, method)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&exportIndicator, "export", "Exports", "export indicator")
	cmd.Flags().StringVar(&importIndicator, "import", "Imports", "import indicator")
	cmd.Flags().IntVar(&horizon, "horizon", 6, "periods to forecast")
	cmd.Flags().StringVar(&method, "method", "ensemble", "method used for both sides")
	return cmd
}

// cacheDemoCmd runs the same forecast twice and reports timings and cache
// statistics.
func cacheDemoCmd(opts *rootOptions) *cobra.Command {
	var (
		horizon int
		method  string
	)
	cmd := &cobra.Command{
		Use:   "cache-demo NAME",
		Short: "Show forecast cache behaviour for one indicator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i := 1; i <= 2; i++ {
				start := time.Now()
				if _, err := svc.ForecastIndicator(cmd.Context(), args[0], horizon, method); err != nil {
					return err
				}
				fmt.Fprintf(out, "call %d: %s\n", i, time.Since(start))
			}
			return writeJSON(out, svc.CacheStats())
		},
	}
	cmd.Flags().IntVar(&horizon, "horizon", 6, "periods to forecast")
	cmd.Flags().StringVar(&method, "method", "ensemble", "forecasting method")
	return cmd
}

func buildService(opts *rootOptions, stderr io.Writer) (*usecase.ForecastService, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		c, err := config.LoadWithEnv(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	if opts.csvPath != "" {
		cfg.Dataset.CSVPath = opts.csvPath
	}

	l := applogger.Nop()
	if opts.verbose {
		var err error
		if l, err = applogger.New(&applogger.Config{Level: "debug", Format: "console", Output: "stderr"}); err != nil {
			return nil, err
		}
	}
	fmt.Fprintf(stderr, "dataset: %s\n", cfg.Dataset.CSVPath)

	ds := internalrepo.NewCSVDataset(cfg.Dataset.CSVPath)
	ds.SetLogger(l)
	return usecase.NewForecastService(ds, di.ProvideEngine(cfg), di.ProvideForecastCache(cfg),
		usecase.WithFlowColumn(cfg.Dataset.FlowColumn),
		usecase.WithDatasetSource("csv"),
		usecase.WithLogger(l),
	), nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
