package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/launchpad/internal/bonding"
	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/export"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/platform"
	"github.com/rovshanmuradov/launchpad/internal/runner"
	"github.com/rovshanmuradov/launchpad/internal/storage/models"
	"github.com/rovshanmuradov/launchpad/internal/task"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"github.com/rovshanmuradov/launchpad/internal/utils/logger"
	"github.com/rovshanmuradov/launchpad/internal/wallet"
)

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		path = ""
	}
	return config.LoadConfig(path)
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	lcfg := logger.DefaultConfig()
	lcfg.LogFile = cfg.LogFile
	lcfg.Development = cfg.DebugLogging
	return logger.New(lcfg)
}

func newRunCmd(configPath *string) *cobra.Command {
	var tasksFile, exportDir string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Deploy a platform and execute the tasks file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if tasksFile != "" {
				cfg.TasksFile = tasksFile
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, log, exportDir)
		},
	}
	cmd.Flags().StringVarP(&tasksFile, "tasks", "t", "", "tasks file, overrides tasks_file")
	cmd.Flags().StringVar(&exportDir, "export-dir", "", "write the trades of launched tokens to a CSV file in this directory")
	return cmd
}

var errTasksFailed = errors.New("tasks failed")

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, exportDir string) error {
	end := log.TrackPerformance("run")
	defer end()

	tasks, err := task.NewManager(log.WithComponent("tasks")).LoadTasks(cfg.TasksFile)
	if err != nil {
		return err
	}

	r, err := runner.New(ctx, cfg, runner.Options{}, log.Logger)
	if err != nil {
		return err
	}

	shutdown := runner.NewShutdownHandler(log.Logger, 10*time.Second)
	shutdown.Add("runner", r)

	g, gctx := errgroup.WithContext(ctx)
	metricsCtx, stopMetrics := context.WithCancel(gctx)
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return r.Metrics().Serve(metricsCtx, cfg.MetricsAddr, log.WithComponent("metrics"))
		})
	}
	g.Go(func() error {
		defer stopMetrics()
		summary, err := r.Run(gctx, tasks)
		if err != nil {
			return err
		}
		log.Info("📊 Run summary",
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed),
			zap.Int("tokens", len(summary.Tokens)))
		for symbol, addr := range summary.Tokens {
			log.Info("Token", zap.String("symbol", symbol), zap.String("address", addr.String()))
		}
		if exportDir != "" {
			if err := exportTrades(gctx, r, summary, exportDir, log.WithComponent("export")); err != nil {
				return err
			}
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%w: %d of %d", errTasksFailed, summary.Failed, summary.Failed+summary.Succeeded)
		}
		return nil
	})

	runErr := g.Wait()
	stopMetrics()
	if err := shutdown.Shutdown(context.Background()); err != nil {
		log.Warn("Shutdown finished with errors", zap.Error(err))
	}
	return runErr
}

func exportTrades(ctx context.Context, r *runner.Runner, summary *runner.Summary, dir string, logger *zap.Logger) error {
	var trades []*models.Trade
	for _, addr := range summary.Tokens {
		got, err := r.Store().ListTrades(ctx, addr.String(), 0)
		if err != nil {
			return fmt.Errorf("failed to list trades: %w", err)
		}
		trades = append(trades, got...)
	}
	if len(trades) == 0 {
		logger.Info("No trades to export")
		return nil
	}
	_, err := export.NewTradeExporter(logger).ExportTrades(trades, export.ExportOptions{
		Format:    export.FormatCSV,
		OutputDir: dir,
	})
	return err
}

func newDeployCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a platform with the configured parameters and print its addresses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			admin, err := wallet.Generate(runner.AdminWallet)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			r, err := runner.New(cmd.Context(), cfg, runner.Options{
				Wallets: map[string]*wallet.Wallet{runner.AdminWallet: admin},
			}, log.Logger)
			if err != nil {
				return err
			}
			defer r.Close()

			printPlatform(cmd, r.Platform())
			return nil
		},
	}
}

func printPlatform(cmd *cobra.Command, p *platform.Platform) {
	out := cmd.OutOrStdout()
	rows := [][2]string{
		{"admin", p.Admin().String()},
		{"treasury", p.Treasury().String()},
		{"asset", p.Asset.Address().String() + " (" + p.Asset.Symbol() + ")"},
		{"factory", p.Factory.Address().String()},
		{"router", p.Router.Address().String()},
		{"bonding", p.Bonding.Address().String()},
		{"veToken", p.VeToken.Address().String()},
		{"graduation", types.FormatUnits(p.Bonding.Params().GraduationThreshold)},
	}
	for _, row := range rows {
		fmt.Fprintf(out, "%-10s %s\n", row[0], row[1])
	}
}

func newQuoteCmd(configPath *string) *cobra.Command {
	var sell bool
	cmd := &cobra.Command{
		Use:   "quote <amount>",
		Short: "Quote a trade against a freshly launched curve with the configured parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := types.ParseUnits(args[0])
			if err != nil || amount.Sign() <= 0 {
				return fmt.Errorf("invalid amount %q", args[0])
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			admin, err := wallet.Generate(runner.AdminWallet)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			r, err := runner.New(cmd.Context(), cfg, runner.Options{
				Wallets: map[string]*wallet.Wallet{runner.AdminWallet: admin},
			}, log.Logger)
			if err != nil {
				return err
			}
			defer r.Close()

			p := r.Platform()
			var tokenAddr types.Address
			_, err = p.Ledger.Execute(cmd.Context(), "quoteLaunch", p.Admin(), func(tx *ledger.Tx) error {
				if err := p.ApproveAll(tx, p.Admin(), p.Asset); err != nil {
					return err
				}
				tokenAddr, err = p.Bonding.Launch(tx, p.Admin(), bonding.LaunchParams{
					Name: "Quote", Symbol: "QUOTE", Cores: []uint8{0},
				}, p.Bonding.Params().LaunchFee)
				return err
			})
			if err != nil {
				return fmt.Errorf("failed to launch reference token: %w", err)
			}

			var out *big.Int
			p.Ledger.View(func() {
				out, err = p.Bonding.Quote(tokenAddr, amount, !sell)
			})
			if err != nil {
				return err
			}
			side, unitIn, unitOut := "buy", p.Asset.Symbol(), "QUOTE"
			if sell {
				side, unitIn, unitOut = "sell", "QUOTE", p.Asset.Symbol()
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-10s %s\n", "side", side)
			fmt.Fprintf(w, "%-10s %s %s\n", "in", types.FormatUnits(amount), unitIn)
			fmt.Fprintf(w, "%-10s %s %s\n", "out", types.FormatUnits(out), unitOut)
			if out.Sign() > 0 {
				fmt.Fprintf(w, "%-10s %g\n", "rate", types.ToFloat(out)/types.ToFloat(amount))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&sell, "sell", false, "quote a sale of tokens instead of a purchase")
	return cmd
}

func newWalletsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallets",
		Short: "Manage the wallets file",
	}
	var out string
	gen := &cobra.Command{
		Use:   "generate <count>",
		Short: "Write count fresh wallets plus an admin wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.Atoi(args[0])
			if err != nil || count <= 0 {
				return fmt.Errorf("invalid wallet count %q", args[0])
			}
			wallets := make(map[string]*wallet.Wallet, count+1)
			for i := 0; i <= count; i++ {
				name := fmt.Sprintf("wallet%d", i)
				if i == 0 {
					name = runner.AdminWallet
				}
				w, err := wallet.Generate(name)
				if err != nil {
					return err
				}
				wallets[name] = w
			}
			if err := wallet.SaveWallets(out, wallets); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d wallets to %s\n", len(wallets), out)
			return nil
		},
	}
	gen.Flags().StringVarP(&out, "out", "o", "configs/wallets.csv", "output CSV file")
	cmd.AddCommand(gen)
	return cmd
}
