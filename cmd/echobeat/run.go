package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vinayprograms/echobeat/config"
	"github.com/vinayprograms/echobeat/logging"
	"github.com/vinayprograms/echobeat/shutdown"
)

// roleFunc runs a role until ctx is cancelled or it fails.
type roleFunc func(ctx context.Context, cfg config.Config, logger *logging.Logger) error

// runRole opens the role's log sink, runs the role and tears both down
// through the shutdown coordinator, on a signal or when the role returns.
func runRole(cmd *cobra.Command, cfg config.Config, role string, run roleFunc) error {
	sink, err := logging.OpenSink(logging.SinkConfig{
		Dir:     cfg.LogDir,
		Prefix:  "echobeat-" + role,
		Console: cfg.Console,
		Stdout:  cmd.OutOrStdout(),
		Banner:  fmt.Sprintf("echobeat %s v%s", role, Version),
	})
	if err != nil {
		return err
	}

	logger := logging.New(sink)
	level, _ := logging.ParseLevel(cfg.LogLevel)
	logger.SetLevel(level)
	logger.Info("log file opened", map[string]interface{}{"path": sink.Path()})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	stopped := make(chan struct{})
	var runErr error

	shutlog := logger.WithComponent("shutdown")
	coord, err := shutdown.NewCoordinator(shutdown.Config{
		Timeout: 10 * time.Second,
		OnProgress: func(hr shutdown.HandlerResult) {
			if hr.Err != nil {
				shutlog.Warn(hr.Name+" stopped with error", map[string]interface{}{"error": hr.Err})
				return
			}
			if hr.Phase < shutdown.PhaseSink {
				shutlog.Debug(hr.Name+" stopped", map[string]interface{}{"took": hr.Duration.Round(time.Millisecond)})
			}
		},
	})
	if err != nil {
		_ = sink.Close()
		return err
	}
	coord.Register(role, shutdown.PhaseRole, func(sctx context.Context) error {
		cancel()
		select {
		case <-stopped:
			return nil
		case <-sctx.Done():
			return sctx.Err()
		}
	})
	coord.Register("log-sink", shutdown.PhaseSink, func(context.Context) error {
		return sink.Close()
	})
	stopSignals := coord.HandleSignals()
	defer stopSignals()

	go func() {
		defer close(stopped)
		runErr = run(ctx, cfg, logger)
		if runErr != nil {
			logger.Error(role+" stopped", map[string]interface{}{"error": runErr})
		}
	}()

	<-stopped
	if err := coord.ShutdownWithTimeout(0); err != nil && runErr == nil {
		return err
	}
	return runErr
}
