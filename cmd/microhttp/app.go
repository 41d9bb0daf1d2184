// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/z5labs/microhttp/config"
	"github.com/z5labs/microhttp/lifecycle"
	"github.com/z5labs/microhttp/pkg/maskslog"
	"github.com/z5labs/microhttp/pkg/otelconfig"
	"github.com/z5labs/microhttp/pkg/otelslog"
	"github.com/z5labs/microhttp/pkg/slogfield"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type app struct {
	stdout io.Writer
	stderr io.Writer

	cfgPath string
	cfg     config.Config

	logHandler slog.Handler
	log        *slog.Logger
	zap        *zap.Logger

	lc lifecycle.Context
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
	}
}

// Execute runs the command selected by args. Hooks registered during
// setup always run before it returns.
func (a *app) Execute(ctx context.Context, args ...string) error {
	cmd := a.command()
	cmd.SetArgs(args)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	err := cmd.ExecuteContext(lifecycle.NewContext(ctx, &a.lc))

	// ctx may already be cancelled but spans still need flushing
	perr := a.lc.PostRun().Run(context.Background())
	if perr != nil && a.log != nil {
		a.log.Error("failed to run post run hooks", slogfield.Error(perr))
	}
	return errors.Join(err, perr)
}

func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:               "microhttp",
		Short:             "Minimal HTTP server which dispatches requests by their first path segment",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "path to a YAML config file")

	root.AddCommand(
		a.serveCommand(),
		a.probeCommand(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	ctx := cmd.Context()
	lc, ok := lifecycle.FromContext(ctx)
	if !ok {
		lc = &a.lc
	}

	a.logHandler = newLogHandler(a.stderr, cfg.Log)
	a.log = slog.New(a.logHandler)

	a.zap = newZapLogger(a.stderr, cfg.Log.Level)
	lc.OnPostRun(lifecycle.HookFunc(func(ctx context.Context) error {
		// syncing a terminal fails with EINVAL on some platforms
		a.zap.Sync()
		return nil
	}))

	tp, err := tracerInitializer(cfg.Otel).Init(ctx)
	if err != nil {
		return err
	}
	lc.OnPostRun(lifecycle.HookFunc(tp.Shutdown))

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

func newLogHandler(w io.Writer, cfg config.Log) slog.Handler {
	opts := &slog.HandlerOptions{
		AddSource: cfg.Level <= slog.LevelDebug,
		Level:     cfg.Level,
	}

	var h slog.Handler
	switch cfg.Format {
	case config.FormatText:
		h = slog.NewTextHandler(w, opts)
	default:
		h = slog.NewJSONHandler(w, opts)
	}
	if len(cfg.Mask) > 0 {
		h = maskslog.NewHandler(h, cfg.Mask...)
	}
	return otelslog.NewHandler(h)
}

func newZapLogger(w io.Writer, lvl slog.Level) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(w),
		zapLevel(lvl),
	)
	return zap.New(core).Named("client")
}

func zapLevel(lvl slog.Level) zapcore.Level {
	switch {
	case lvl < slog.LevelInfo:
		return zapcore.DebugLevel
	case lvl < slog.LevelWarn:
		return zapcore.InfoLevel
	case lvl < slog.LevelError:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func tracerInitializer(cfg config.Otel) otelconfig.Initializer {
	switch cfg.Exporter {
	case config.ExporterStdout:
		return otelconfig.Local(otelconfig.ServiceName(cfg.ServiceName))
	case config.ExporterOTLP:
		return otelconfig.OTLP(
			otelconfig.ServiceName(cfg.ServiceName),
			otelconfig.Target(cfg.Target),
		)
	case config.ExporterGCP:
		return otelconfig.GoogleCloud(
			otelconfig.ServiceName(cfg.ServiceName),
			otelconfig.GoogleCloudProjectID(cfg.ProjectID),
		)
	default:
		return otelconfig.Noop
	}
}
