// Package app assembles and runs the monitor: configuration, storage,
// sampling pipeline, optional telemetry endpoint, and the headless or TUI
// frontend.
package app

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/datamon/datamon/internal/advisor"
	"github.com/datamon/datamon/internal/attributor"
	"github.com/datamon/datamon/internal/config"
	apperrors "github.com/datamon/datamon/internal/errors"
	"github.com/datamon/datamon/internal/format"
	"github.com/datamon/datamon/internal/logging"
	"github.com/datamon/datamon/internal/pipeline"
	"github.com/datamon/datamon/internal/query"
	"github.com/datamon/datamon/internal/sampler"
	"github.com/datamon/datamon/internal/store"
	"github.com/datamon/datamon/internal/telemetry"
	"github.com/datamon/datamon/internal/tui"
	"github.com/datamon/datamon/internal/ui"
)

// Application represents the datamon application instance.
type Application struct {
	Config    config.AppConfig
	ErrWriter io.Writer
}

// New creates an Application by parsing command-line arguments.
func New(args []string, errWriter io.Writer) (*Application, error) {
	programName := "datamon"
	var cmdArgs []string
	if len(args) > 0 {
		programName = args[0]
		cmdArgs = args[1:]
	}

	cfg, err := config.ParseConfig(programName, cmdArgs, errWriter)
	if err != nil {
		return nil, err
	}
	return &Application{Config: cfg, ErrWriter: errWriter}, nil
}

// IsHelpError checks if the error is a help flag error (--help was used).
func IsHelpError(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}

// Run executes the monitor until the context is canceled or a signal
// arrives. It returns the process exit code.
func (a *Application) Run(ctx context.Context, out io.Writer) int {
	switch {
	case a.Config.Verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case a.Config.Quiet:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	ui.InitTheme(false)

	logger := a.buildLogger()

	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	st, err := store.Open(a.Config.DBPath, store.Options{
		RetentionDays: a.Config.RetentionDays,
		BufferCap:     a.Config.BufferCap,
		FlushRetries:  a.Config.FlushRetries,
	}, logger)
	if err != nil {
		logger.Error("opening usage store failed", err, logging.String("path", a.Config.DBPath))
		return apperrors.ExitErrorStorage
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Error("closing usage store failed", cerr)
		}
	}()

	metrics := telemetry.NewMetrics()
	smp := sampler.New(sampler.WithLogger(logger))
	attr := attributor.New(attributor.WithLogger(logger))
	pl := pipeline.New(smp, attr, st, metrics, logger, pipeline.Options{
		SampleInterval:  a.Config.SampleInterval,
		FlushInterval:   a.Config.FlushInterval,
		MaintenanceHour: a.Config.MaintenanceHour,
	})
	facade := query.New(st)
	adv := advisor.New(advisor.WithRateThreshold(uint64(a.Config.AlertRateBytes())))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pl.Run(ctx) })

	if a.Config.MetricsAddr != "" {
		srv := telemetry.NewServer(a.Config.MetricsAddr, metrics, logger)
		g.Go(func() error { return srv.Run(ctx) })
	}

	exitCode := apperrors.ExitSuccess
	if a.Config.TUI {
		exitCode = tui.Run(ctx, pl, facade, adv, Version)
		stopSignals() // unblock the pipeline group
	} else {
		g.Go(func() error {
			a.headlessLoop(ctx, pl, adv, logger)
			return nil
		})
		logger.Info("monitor started",
			logging.String("db", a.Config.DBPath),
			logging.Int("retention_days", a.Config.RetentionDays))
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("monitor stopped", err)
		if exitCode == apperrors.ExitSuccess {
			exitCode = apperrors.ExitErrorGeneric
		}
	}
	return exitCode
}

// buildLogger picks the log format: structured JSON on a pipe, console when
// attached to a terminal.
func (a *Application) buildLogger() logging.Logger {
	if f, ok := a.ErrWriter.(*os.File); ok {
		if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
			return logging.NewDefaultLogger()
		}
	}
	return logging.NewLogger(a.ErrWriter, "datamon")
}

// headlessLoop periodically logs the top consumers and any advisory hints.
// Quiet mode suppresses it via the global log level.
func (a *Application) headlessLoop(ctx context.Context, pl *pipeline.Pipeline, adv *advisor.Advisor, logger logging.Logger) {
	tick := time.NewTicker(a.Config.FlushInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		snap := pl.Latest()
		if snap == nil || len(snap.Rows) == 0 {
			continue
		}

		limit := a.Config.TopK
		if limit > len(snap.Rows) {
			limit = len(snap.Rows)
		}
		for _, row := range snap.Rows[:limit] {
			logger.Info("usage",
				logging.String("app", row.AppName),
				logging.Int("pid", int(row.PID)),
				logging.String("sent", format.Rate(row.BytesSent)),
				logging.String("recv", format.Rate(row.BytesRecv)),
				logging.String("estimated", boolWord(snap.Degraded)))
		}
		for _, hint := range adv.Advise(liveUsage(snap)) {
			logger.Warn("suggestion", logging.String("hint", hint))
		}
	}
}

// liveUsage converts the latest snapshot rows into the advisor's input.
func liveUsage(snap *pipeline.LiveSnapshot) []query.AppUsage {
	var total uint64
	for _, r := range snap.Rows {
		total += r.TotalBytes()
	}
	usage := make([]query.AppUsage, 0, len(snap.Rows))
	for _, r := range snap.Rows {
		u := query.AppUsage{AppName: r.AppName, BytesSent: r.BytesSent, BytesRecv: r.BytesRecv}
		if total > 0 {
			u.Share = float64(u.TotalBytes()) / float64(total) * 100
		}
		usage = append(usage, u)
	}
	return usage
}

func boolWord(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
