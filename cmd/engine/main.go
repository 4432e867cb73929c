package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"poolbridge/internal/audit"
	"poolbridge/internal/config"
	"poolbridge/internal/engine"
	"poolbridge/internal/httpapi"
	"poolbridge/internal/model"
	"poolbridge/internal/snapshot"
	"poolbridge/internal/storage"
	"poolbridge/internal/storage/postgres"
	"poolbridge/internal/token"
	"poolbridge/internal/vault"
)

func main() {
	root := &cobra.Command{
		Use:          "engine",
		Short:        "Liquidity pool settlement engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the settlement engine and its HTTP API",
		RunE:  runServe,
	}

	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("owner", "", "owner address")
	serveCmd.Flags().String("venue", "", "external venue address")
	serveCmd.Flags().String("fee-sink", "", "withdrawal fee sink address")
	serveCmd.Flags().String("operator-payout", "", "processing fee payout address")
	serveCmd.Flags().String("operator", "", "settlement operator address")
	serveCmd.Flags().Uint32("withdraw-fee-bps", 50, "withdrawal fee in basis points")
	serveCmd.Flags().String("processing-fee", "0", "flat submission fee in gas token units")
	serveCmd.Flags().String("journal", "./data/settlements.jsonl", "settlement journal JSONL path")
	serveCmd.Flags().String("state", "./data/state.json", "queue counter state file")
	serveCmd.Flags().String("postgres-dsn", "", "optional Postgres DSN for snapshots")
	serveCmd.Flags().Duration("snapshot-interval", 30*time.Second, "snapshot flush interval")
	serveCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	serveCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	serveCmd.Flags().StringSlice("dev-accounts", nil, "accounts to fund at startup (comma-separated)")
	serveCmd.Flags().String("dev-mint-amount", "0", "token amount minted to each dev account")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Replay a settlement journal and check its invariants",
		RunE:  runVerify,
	}

	verifyCmd.Flags().String("journal", "./data/settlements.jsonl", "settlement journal JSONL path")
	verifyCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(verifyCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	processingFee, err := model.ParseAmount(cfg.ProcessingFee)
	if err != nil {
		return fmt.Errorf("processing-fee: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolBook := token.NewBook("POOL")
	gasBook := token.NewBook("GAS")
	if err := fundDevAccounts(cfg, poolBook, gasBook); err != nil {
		return err
	}

	venue := common.HexToAddress(cfg.Venue)
	operator := common.HexToAddress(cfg.Operator)
	factory := func(id model.PoolID) vault.Vault {
		return vault.NewMemory(vault.DeriveAddress(uint64(id)), venue, operator, poolBook)
	}

	eng := engine.New(engine.Config{
		Owner:          common.HexToAddress(cfg.Owner),
		Self:           treasuryAddress(),
		Venue:          venue,
		FeeSink:        common.HexToAddress(cfg.FeeSink),
		OperatorPayout: common.HexToAddress(cfg.OperatorPayout),
		WithdrawFeeBps: cfg.WithdrawFeeBps,
		ProcessingFee:  processingFee,
	}, poolBook, gasBook, factory, storage.NewJsonlSink(cfg.JournalPath), logger)

	snapshotDone := make(chan struct{})
	if cfg.PostgresDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()

		runner := snapshot.NewRunner(snapshot.Config{
			Interval:     cfg.SnapshotInterval,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			StateStore:   &storage.FileStateStore{Path: cfg.StatePath},
		}, eng, store, logger)

		go func() {
			defer close(snapshotDone)
			if err := runner.Run(ctx, eng.Events()); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("snapshot runner stopped", zap.Error(err))
			}
		}()
	} else {
		close(snapshotDone)
	}

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: httpapi.NewRouter(httpapi.NewHandler(eng), logger),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("engine start",
			zap.String("listen", cfg.ListenAddr),
			zap.String("owner", cfg.Owner),
			zap.String("venue", cfg.Venue),
			zap.Uint32("withdraw_fee_bps", cfg.WithdrawFeeBps),
			zap.String("processing_fee", cfg.ProcessingFee),
			zap.String("journal", cfg.JournalPath),
			zap.Bool("postgres", cfg.PostgresDSN != ""),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	<-snapshotDone
	logger.Info("engine stopped")
	return nil
}

func runVerify(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	records, err := storage.ReadAll(cfg.JournalPath)
	if err != nil {
		return err
	}

	report := audit.NewVerifier(logger).Verify(records)
	logger.Info("verify complete",
		zap.Uint64("submitted", report.Submitted),
		zap.Uint64("processed", report.Processed),
		zap.Uint64("executed", report.Executed),
		zap.Uint64("skipped", report.Skipped),
		zap.Uint64("claims", report.Claims),
		zap.Int("violations", len(report.Violations)),
	)
	if !report.OK() {
		return fmt.Errorf("journal failed verification: %d violation(s)", len(report.Violations))
	}
	return nil
}

func fundDevAccounts(cfg config.Config, poolBook, gasBook *token.Book) error {
	amount, err := model.ParseAmount(cfg.DevMintAmount)
	if err != nil {
		return fmt.Errorf("dev-mint-amount: %w", err)
	}
	if amount.Sign() == 0 || len(cfg.DevAccounts) == 0 {
		return nil
	}
	for _, raw := range cfg.DevAccounts {
		account := common.HexToAddress(raw)
		if err := poolBook.Mint(account, amount); err != nil {
			return err
		}
		if err := gasBook.Mint(account, amount); err != nil {
			return err
		}
	}
	return nil
}

// treasuryAddress is the engine's own custody address for claims in flight.
func treasuryAddress() common.Address {
	digest := crypto.Keccak256([]byte("poolbridge/treasury"))
	return common.BytesToAddress(digest[12:])
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
