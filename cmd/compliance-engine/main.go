/*
main.go - Application entry point

PURPOSE:
  Initializes and runs the department compliance engine. Three subcommands
  share one wiring path:

    serve    HTTP API plus the background alert sweeper
    sweep    one certification alert sweep, then exit (for cron)
    matrix   evaluate the full compliance matrix and print it as JSON

STARTUP SEQUENCE (serve):
  1. Load YAML config (defaults apply when the file is absent)
  2. Open the SQLite store
  3. Wire evaluator, ledger, mediator, and alert scheduler
  4. Start the HTTP server and the background sweeper
  5. On SIGINT/SIGTERM: stop the sweeper, drain requests (30s), close DB

EXAMPLES:
  compliance-engine serve --config config.yaml
  compliance-engine serve --db ":memory:" --demo
  compliance-engine sweep --db compliance.db
  compliance-engine matrix --db compliance.db --as-of 2026-06-30

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration schema
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stationops/compliance-engine/alerts"
	"github.com/stationops/compliance-engine/api"
	"github.com/stationops/compliance-engine/config"
	"github.com/stationops/compliance-engine/engine"
	"github.com/stationops/compliance-engine/leave"
	"github.com/stationops/compliance-engine/store/sqlite"
)

var (
	configPath string
	dbPath     string
	port       int
	demo       bool
	asOfFlag   string
)

func main() {
	root := &cobra.Command{
		Use:          "compliance-engine",
		Short:        "Department compliance and requirement evaluation engine",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config (optional)")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background alert sweeper",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides config)")
	serveCmd.Flags().BoolVar(&demo, "demo", false, "seed demo data on startup")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one certification alert sweep and exit",
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&asOfFlag, "as-of", "", "evaluation date YYYY-MM-DD (default today)")

	matrixCmd := &cobra.Command{
		Use:   "matrix",
		Short: "Evaluate the compliance matrix and print it as JSON",
		RunE:  runMatrix,
	}
	matrixCmd.Flags().StringVar(&asOfFlag, "as-of", "", "evaluation date YYYY-MM-DD (default today)")

	root.AddCommand(serveCmd, sweepCmd, matrixCmd)

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// wiring holds the fully connected application.
type wiring struct {
	cfg       config.Config
	store     *sqlite.Store
	evaluator *engine.Evaluator
	mediator  *leave.Mediator
	sweeper   *alerts.Scheduler
}

func wire() (*wiring, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	ledger := leave.NewLedger(store)
	evaluator := engine.NewEvaluator(store, ledger, store)
	evaluator.Rounding = cfg.Rounding()
	evaluator.Thresholds = cfg.Thresholds()
	evaluator.MatrixWorkers = cfg.Evaluation.MatrixWorkers

	notifier := &alerts.LogNotifier{Log: logrus.WithField("package", "alerts.notifier")}
	sweeper := alerts.NewScheduler(store, store, notifier)

	return &wiring{
		cfg:       cfg,
		store:     store,
		evaluator: evaluator,
		mediator:  leave.NewMediator(store),
		sweeper:   sweeper,
	}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	w, err := wire()
	if err != nil {
		return err
	}
	defer w.store.Close()
	log := logrus.WithField("package", "main")

	if demo {
		if err := api.SeedDemo(cmd.Context(), w.store, w.mediator, engine.Today()); err != nil {
			return fmt.Errorf("failed to seed demo data: %w", err)
		}
		log.Info("demo data loaded")
	}

	handler := api.NewHandler(w.store, w.evaluator, w.mediator, w.sweeper)
	router := api.NewRouter(handler)

	sweeper := api.NewSweepRunner(w.sweeper, w.cfg.Alerts.SweepInterval.Duration)
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", w.cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", w.cfg.Server.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func runSweep(cmd *cobra.Command, _ []string) error {
	w, err := wire()
	if err != nil {
		return err
	}
	defer w.store.Close()

	asOf, err := parseAsOf()
	if err != nil {
		return err
	}
	summary, err := w.sweeper.RunSweep(cmd.Context(), asOf)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(summary)
}

func runMatrix(cmd *cobra.Command, _ []string) error {
	w, err := wire()
	if err != nil {
		return err
	}
	defer w.store.Close()

	asOf, err := parseAsOf()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	members, err := w.store.ActiveMembers(ctx)
	if err != nil {
		return err
	}
	reqs, err := w.store.ListRequirements(ctx)
	if err != nil {
		return err
	}
	results, err := w.evaluator.EvaluateMatrix(ctx, members, reqs, asOf)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	type row struct {
		Member      string `json:"member"`
		Requirement string `json:"requirement"`
		Percentage  string `json:"percentage"`
		Status      string `json:"status"`
	}
	rows := make([]row, 0, len(results))
	for _, r := range results {
		rows = append(rows, row{
			Member:      string(r.MemberID),
			Requirement: string(r.RequirementID),
			Percentage:  r.Percentage.Round(2).String(),
			Status:      string(r.Status),
		})
	}
	return enc.Encode(rows)
}

func parseAsOf() (engine.Date, error) {
	if asOfFlag == "" {
		return engine.Today(), nil
	}
	return engine.ParseDate(asOfFlag)
}
