package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/vinayprograms/echobeat/config"
	"github.com/vinayprograms/echobeat/echo"
	"github.com/vinayprograms/echobeat/heartbeat"
	"github.com/vinayprograms/echobeat/logging"
)

// endpointFlags are shared by both roles.
type endpointFlags struct {
	port   int
	period time.Duration
}

func (e *endpointFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&e.port, "port", config.DefaultPort, "TCP port")
	cmd.Flags().DurationVar(&e.period, "period", config.DefaultConfig().Period.Std(), "heartbeat period")
}

func (e *endpointFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Port = e.port
	}
	if cmd.Flags().Changed("period") {
		cfg.Period = config.Duration(e.period)
	}
}

func newInitiatorCmd(opts *rootOptions) *cobra.Command {
	var (
		ep            endpointFlags
		host          string
		retryInterval time.Duration
		maxAttempts   int
	)
	cmd := &cobra.Command{
		Use:   "initiator",
		Short: "Connect to a responder and send heartbeats until stopped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd, func(cfg *config.Config) {
				ep.apply(cmd, cfg)
				if cmd.Flags().Changed("host") {
					cfg.Host = host
				}
				if cmd.Flags().Changed("retry-interval") {
					cfg.RetryInterval = config.Duration(retryInterval)
				}
				if cmd.Flags().Changed("max-attempts") {
					cfg.MaxConnectAttempts = maxAttempts
				}
			})
			if err != nil {
				return err
			}
			return runRole(cmd, cfg, "initiator", runInitiator)
		},
	}
	ep.register(cmd)
	cmd.Flags().StringVar(&host, "host", config.DefaultConfig().Host, "responder host")
	cmd.Flags().DurationVar(&retryInterval, "retry-interval", config.DefaultConfig().RetryInterval.Std(), "pause between connect attempts")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "connect attempts per cycle, 0 for unlimited")
	return cmd
}

func newResponderCmd(opts *rootOptions) *cobra.Command {
	var (
		ep   endpointFlags
		bind string
	)
	cmd := &cobra.Command{
		Use:   "responder",
		Short: "Accept initiators one at a time and echo their heartbeats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd, func(cfg *config.Config) {
				ep.apply(cmd, cfg)
				if cmd.Flags().Changed("bind") {
					cfg.BindAddress = bind
				}
			})
			if err != nil {
				return err
			}
			return runRole(cmd, cfg, "responder", runResponder)
		},
	}
	ep.register(cmd)
	cmd.Flags().StringVar(&bind, "bind", "", "interface to listen on, empty for all")
	return cmd
}

func runInitiator(ctx context.Context, cfg config.Config, logger *logging.Logger) error {
	i, err := heartbeat.NewInitiator(cfg, logger)
	if err != nil {
		return err
	}
	return i.Run(ctx)
}

func runResponder(ctx context.Context, cfg config.Config, logger *logging.Logger) error {
	r, err := echo.NewResponder(cfg, logger)
	if err != nil {
		return err
	}
	if err := r.Listen(); err != nil {
		return err
	}
	return r.Serve(ctx)
}
