package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rendis/stencil/internal/builtin"
	"github.com/rendis/stencil/internal/engine"
	"github.com/rendis/stencil/internal/expressions"
	"github.com/rendis/stencil/internal/logging"
	"github.com/rendis/stencil/internal/store"
	"github.com/rendis/stencil/internal/telemetry"
	"github.com/rendis/stencil/internal/validation"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

var rootCmd = &cobra.Command{
	Use:   "stencil",
	Short: "Stencil renders templates through an action pipeline",
	Long: `Stencil renders YAML or JSON templates made of text, expression and action
nodes. Actions are resolved from libraries and shaped by contributions before
they run.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")
	flags.String("journal", "", "libSQL database path for the render journal")
	flags.String("locale", "", "default locale for formatting actions (BCP 47)")
	flags.String("lang", "", "default expression language: expr, cel or jq")
	flags.String("metrics-addr", "", "expose Prometheus metrics on this address")
	flags.String("include-dir", "", "directory the include action reads from")
	flags.Int("concurrency", 0, "maximum concurrent renders")
}

// app is the wired set of components shared by the subcommands.
type app struct {
	cfg       Config
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	journal   store.Journal
	driver    *engine.Driver
	validator *validation.TemplateValidator

	metricsSrv *http.Server
}

// newApp resolves configuration for cmd and wires the engine.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg := loadConfig()
	applyFlags(&cfg, cmd.Flags())
	return buildApp(cmd.Context(), cfg)
}

func buildApp(ctx context.Context, cfg Config) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logging.New(os.Stderr, logging.ParseLevel(cfg.LogLevel), cfg.LogFormat),
	}

	locale, err := language.Parse(cfg.Locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", cfg.Locale, err)
	}

	if cfg.JournalPath != "" {
		j, err := store.OpenLibSQLJournal(ctx, cfg.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.journal = j
	}

	a.metrics = telemetry.New(telemetry.Config{Enabled: cfg.MetricsAddr != ""})
	if cfg.MetricsAddr != "" {
		srv, errc := a.metrics.Serve(cfg.MetricsAddr)
		a.metricsSrv = srv
		go func() {
			if err := <-errc; err != nil {
				a.logger.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		a.logger.Info("metrics listening", slog.String("addr", cfg.MetricsAddr))
	}

	schemas, err := validation.NewSchemaValidator()
	if err != nil {
		a.close()
		return nil, err
	}
	reg, err := builtin.NewRegistry(builtin.Options{
		Locale:    locale,
		Journal:   a.journal,
		Validator: schemas,
		Files:     os.DirFS(cfg.IncludeDir),
	})
	if err != nil {
		a.close()
		return nil, err
	}

	ev, err := expressions.NewDefaultEvaluator(cfg.ExprLang)
	if err != nil {
		a.close()
		return nil, err
	}

	a.driver = engine.NewDriver(reg, ev, engine.Options{
		Logger:  a.logger,
		Metrics: a.metrics,
		Journal: a.journal,
	})
	a.validator, err = validation.NewTemplateValidator(validation.RegistryLookup(reg), ev.Languages())
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// close releases the journal and stops the metrics server.
func (a *app) close() {
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metricsSrv.Shutdown(ctx)
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("close journal", slog.Any("error", err))
		}
	}
}
