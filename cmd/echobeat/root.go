package main

import (
	"github.com/spf13/cobra"

	"github.com/vinayprograms/echobeat/config"
)

// rootOptions holds the flags shared by every role.
type rootOptions struct {
	configPath string
	logDir     string
	logLevel   string
	noConsole  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "echobeat",
		Short:         "Heartbeat echo initiator and responder",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "TOML configuration file")
	root.PersistentFlags().StringVar(&opts.logDir, "log-dir", "", "directory for the log file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "minimum log level (DEBUG, INFO, WARN, ERROR)")
	root.PersistentFlags().BoolVar(&opts.noConsole, "quiet", false, "do not mirror the log to stdout")

	root.AddCommand(
		newInitiatorCmd(opts),
		newResponderCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load reads the configuration file, then applies the shared flags and the
// role-specific overrides. Flags win over the file.
func (o *rootOptions) load(cmd *cobra.Command, override func(*config.Config)) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-dir") {
		cfg.LogDir = o.logDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if o.noConsole {
		cfg.Console = false
	}
	if override != nil {
		override(&cfg)
	}
	return cfg, cfg.Validate()
}
