package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kl8-predictor/internal/api"
	"kl8-predictor/internal/backtest"
	"kl8-predictor/internal/config"
	"kl8-predictor/internal/database"
	"kl8-predictor/internal/draw"
	"kl8-predictor/internal/logger"
	"kl8-predictor/internal/predictor"
	"kl8-predictor/internal/report"
)

const defaultConfigPath = "configs/config.yaml"

// cli 命令行共享状态
type cli struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func main() {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "kl8",
		Short:         "KL8 (快乐8) draw analysis, prediction and backtesting",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}
	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", defaultConfigPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(
		c.newFetchCmd(),
		c.newImportCmd(),
		c.newPredictCmd(),
		c.newBacktestCmd(),
		c.newRunCmd(),
		c.newHealthCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// load 加载配置并初始化日志，默认配置文件不存在时使用内置默认值
func (c *cli) load(cmd *cobra.Command) error {
	path := c.configPath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		path = ""
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.logLevel != "" {
		cfg.App.LogLevel = c.logLevel
	}

	logger.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	c.cfg = cfg
	return nil
}

func (c *cli) openStore() (database.DrawStore, func() error, error) {
	store, closeStore, err := database.OpenStore(c.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, closeStore, nil
}

func (c *cli) newFetchCmd() *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download draw history from the lottery API into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := c.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			if since == "" {
				since = c.cfg.API.StartDate
			}
			records, err := api.NewClient(&c.cfg.API).FetchDraws(cmd.Context(), since)
			if err != nil {
				return err
			}
			if err := store.Save(records); err != nil {
				return fmt.Errorf("failed to save draws: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "fetched %d draws since %s\n", len(records), since)
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "Start date (YYYY-MM-DD), defaults to api.start_date")
	return cmd
}

func (c *cli) newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [csv-file]",
		Short: "Import draws from a CSV file (期号,开奖日期,开奖号码) into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			records, err := database.ReadCSV(f)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			store, closeStore, err := c.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Save(records); err != nil {
				return fmt.Errorf("failed to save draws: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d draws from %s\n", len(records), args[0])
			return nil
		},
	}
}

func (c *cli) newPredictCmd() *cobra.Command {
	var groups int
	var seed int64
	var save bool

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score all numbers on the full history and print predicted groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := c.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			set, err := store.Load()
			if err != nil {
				return err
			}
			if groups <= 0 {
				groups = c.cfg.Predictor.Groups
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}

			engine := predictor.NewEngine(set,
				predictor.WithWeights(c.cfg.Predictor.Weights),
				predictor.WithRand(rand.New(rand.NewSource(seed))))
			r, err := report.BuildPrediction(set, engine, report.BuildOptions{
				Groups:    groups,
				PickCount: c.cfg.Predictor.PickCount,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.RenderPrediction(r))

			if !save {
				return nil
			}
			ledger, ok := store.(predictionLedger)
			if !ok {
				return fmt.Errorf("--save requires the mysql store, current driver is %q", c.cfg.Store.Driver)
			}
			for _, g := range r.Groups {
				p := &database.Prediction{
					TargetDate:   r.NextDrawDate,
					PredictedNum: draw.FormatNumbers(g),
					Predictor:    "composite",
					PredictedAt:  r.PredictedAt,
				}
				if err := ledger.SavePrediction(p); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&groups, "groups", 0, "Number of groups to predict, defaults to predictor.groups")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed, 0 uses the current time")
	cmd.Flags().BoolVar(&save, "save", false, "Record the predictions for later verification (mysql only)")
	return cmd
}

func (c *cli) newBacktestCmd() *cobra.Command {
	var trials, workers int
	var seed int64
	var predictorName, xlsxPath string
	var detail, save bool

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the most recent draws and measure prediction hits",
		Long: `Replay the most recent N draws. Each draw is predicted using only the
history strictly before its date, then scored against the actual numbers.

Example: kl8 backtest --trials 100 --workers 4 --seed 42 --xlsx backtest.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := c.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			set, err := store.Load()
			if err != nil {
				return err
			}

			p, err := predictor.NewManager(c.cfg.Predictor.Weights).Get(predictorName)
			if err != nil {
				return err
			}

			opts := backtest.OptionsFromConfig(c.cfg.Backtest)
			if cmd.Flags().Changed("trials") {
				opts.Trials = trials
			}
			if cmd.Flags().Changed("workers") {
				opts.Workers = workers
			}
			if cmd.Flags().Changed("seed") {
				opts.Seed = seed
			}

			r, err := backtest.NewHarness(p, opts).Run(cmd.Context(), set)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.RenderBacktest(r, detail))

			if xlsxPath != "" {
				if err := report.ExportBacktestXLSX(r, xlsxPath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", xlsxPath)
			}
			if save {
				runs, ok := store.(interface {
					SaveBacktestRun(r *backtest.Report) error
				})
				if !ok {
					return fmt.Errorf("--save requires the mysql store, current driver is %q", c.cfg.Store.Driver)
				}
				return runs.SaveBacktestRun(r)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&trials, "trials", 0, "Number of most recent draws to replay")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent trials")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Base random seed, 0 uses the current time")
	cmd.Flags().StringVar(&predictorName, "predictor", "composite", "Predictor to evaluate: composite|random")
	cmd.Flags().BoolVar(&detail, "detail", false, "Print per-draw details")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also export the report to an Excel workbook")
	cmd.Flags().BoolVar(&save, "save", false, "Store the run in the database (mysql only)")
	return cmd
}

func (c *cli) newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll for new draws, verify and broadcast predictions until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(c.cfg)
			if err != nil {
				return err
			}
			if err := app.Start(cmd.Context()); err != nil {
				return err
			}

			<-cmd.Context().Done()
			logger.Info("Shutdown signal received")
			return app.Stop()
		},
	}
}

func (c *cli) newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the lottery API, cache and telegram bot, print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(c.cfg)
			if err != nil {
				return err
			}
			defer app.Stop()

			out, err := json.MarshalIndent(app.HealthCheck(cmd.Context()), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode health report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
