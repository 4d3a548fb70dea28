package cli

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/getmockd/statemock/pkg/engine"
)

type serveFlags struct {
	port      int
	adminPort int
	bind      string
	config    string
	watch     bool
	logLevel  string
	logFormat string
	logFile   string
}

func newServeCmd() *cobra.Command {
	envCfg, envErr := LoadEnv()

	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mock server (foreground)",
		Long: `Start the mock server in the foreground.

The mock listener serves every configured path pattern. The admin listener
serves /state, /state/configs, /state/resources, /state/reset, /state/reload,
/metrics and /health. Set --admin-port 0 to disable it.`,
		Example: `  # Serve every document under mocks/ and reload on change
  statemock serve --config mocks/ --watch

  # Custom ports, JSON logs
  statemock serve -c orders.yaml --port 8080 --admin-port 8081 --log-format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if envErr != nil {
				return envErr
			}
			return runServe(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&f.port, "port", "p", envCfg.Port, "Mock server port")
	flags.IntVar(&f.adminPort, "admin-port", envCfg.AdminPort, "Admin API port (0 disables)")
	flags.StringVar(&f.bind, "bind", envCfg.Bind, "Address to bind to")
	flags.StringVarP(&f.config, "config", "c", envCfg.Config, "Config file, directory or glob")
	flags.BoolVarP(&f.watch, "watch", "w", envCfg.Watch, "Reload the config when files change")
	flags.StringVar(&f.logLevel, "log-level", envCfg.LogLevel, "Log level (debug, info, warn, error)")
	flags.StringVar(&f.logFormat, "log-format", envCfg.LogFormat, "Log format (text, json)")
	flags.StringVar(&f.logFile, "log-file", envCfg.LogFile, "Also write JSON logs to this file")
	return cmd
}

func runServe(cmd *cobra.Command, f serveFlags) error {
	if f.watch && f.config == "" {
		return errors.New("--watch requires --config")
	}
	if f.port < 0 || f.port > 65535 {
		return fmt.Errorf("invalid --port %d", f.port)
	}

	log, closer, err := newLogger(cmd.ErrOrStderr(), f.logLevel, f.logFormat, f.logFile)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	cfg := engine.DefaultConfig()
	cfg.Addr = net.JoinHostPort(f.bind, strconv.Itoa(f.port))
	cfg.AdminAddr = ""
	if f.adminPort > 0 {
		cfg.AdminAddr = net.JoinHostPort(f.bind, strconv.Itoa(f.adminPort))
	}
	cfg.ConfigPath = f.config
	cfg.Watch = f.watch

	srv, err := engine.NewServer(cfg, engine.WithLogger(log))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		select {
		case <-srv.Ready():
		case <-ctx.Done():
			return
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "statemock listening on http://%s\n", srv.Addr())
		if a := srv.AdminAddr(); a != nil {
			fmt.Fprintf(out, "admin API on http://%s\n", a)
		}
	}()

	return srv.Run(ctx)
}
