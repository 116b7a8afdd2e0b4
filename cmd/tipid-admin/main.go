package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tipid/internal/backend"
	"tipid/internal/cli"
	"tipid/internal/config"
	"tipid/internal/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "tipid-admin",
		Short:         "Administrative tasks for a tipid deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			cli.LoadEnvFile()
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(addUserCmd())
	root.AddCommand(sweepCmd())
	root.AddCommand(migrateCmd())
	return root
}

// env is what a subcommand runs against. close releases the backend.
type env struct {
	cfg    *config.Config
	logger *log.Logger
	res    *backend.BackendResult
	app    *cli.App
}

func (e *env) close() {
	if err := e.res.Cleanup(); err != nil {
		e.logger.Error("Backend cleanup error", log.FieldError, err)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, *log.Logger, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	lc := log.DefaultConfig()
	lc.Level = log.ParseLevel(cfg.LogLevel)
	lc.Format = cfg.LogFormat
	lc.Component = log.ComponentAdmin
	lc.Output = cmd.ErrOrStderr()
	return cfg, log.New(lc), nil
}

func openEnv(cmd *cobra.Command) (*env, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(cmd.Context(), bcfg)
	if err != nil {
		return nil, err
	}
	app, err := cli.NewApp(res, cfg, logger)
	if err != nil {
		_ = res.Cleanup()
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, res: res, app: app}, nil
}
