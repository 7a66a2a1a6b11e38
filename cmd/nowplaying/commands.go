package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/genricoloni/nowplaying/internal/manager"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Version information (set via ldflags during build)
var version = "dev"

const defaultTimeout = 5 * time.Second

// newRootCmd builds the command tree. extra is appended to every fx
// application the commands create.
func newRootCmd(extra ...fx.Option) *cobra.Command {
	var (
		cfgFile string
		timeout time.Duration
	)

	root := &cobra.Command{
		Use:   "nowplaying",
		Short: "Show what media is playing on this machine",
		Long: `nowplaying reads the active media session of the platform's media
service (MPRIS on Linux, GSMTC on Windows) and prints it as JSON.

Configuration is read from $XDG_CONFIG_HOME/nowplaying/config.yaml and
NOWPLAYING_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/nowplaying/config.yaml)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", defaultTimeout, "timeout for one-shot queries")

	options := func(base fx.Option) fx.Option {
		opts := []fx.Option{base}
		if cfgFile != "" {
			opts = append(opts, fx.Replace(configPath(cfgFile)))
		}
		return fx.Options(append(opts, extra...)...)
	}

	// query runs fn against a manager built from coreOptions
	query := func(cmd *cobra.Command, fn func(ctx context.Context, mgr *manager.Manager) (any, error)) error {
		var (
			mgr    *manager.Manager
			logger *zap.Logger
		)
		app := fx.New(
			options(coreOptions),
			fx.Replace(oneShot(true)),
			fx.NopLogger,
			fx.Populate(&mgr, &logger),
		)
		if err := app.Err(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		if err := app.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), app.StopTimeout())
			defer stopCancel()
			if err := app.Stop(stopCtx); err != nil {
				logger.Warn("Failed to stop query application", zap.Error(err))
			}
		}()

		v, err := fn(ctx, mgr)
		if err != nil {
			return describe(err)
		}
		return writeJSON(cmd.OutOrStdout(), v)
	}

	var withStatus bool
	nowCmd := &cobra.Command{
		Use:   "now",
		Short: "Print the metadata of the current media",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return query(cmd, func(ctx context.Context, mgr *manager.Manager) (any, error) {
				if !withStatus {
					return mgr.CurrentlyPlayingAsync(ctx).Await(ctx)
				}
				return manager.Go(ctx, func(ctx context.Context) (snapshot, error) {
					props, st, err := mgr.Snapshot(ctx)
					return snapshot{Media: props, Status: st}, err
				}).Await(ctx)
			})
		},
	}
	nowCmd.Flags().BoolVar(&withStatus, "status", false, "include playback status and timeline")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the playback status and timeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return query(cmd, func(ctx context.Context, mgr *manager.Manager) (any, error) {
				return mgr.PlayerStatusAsync(ctx).Await(ctx)
			})
		},
	}

	timelineCmd := &cobra.Command{
		Use:   "timeline",
		Short: "Print the timeline of the current media",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return query(cmd, func(ctx context.Context, mgr *manager.Manager) (any, error) {
				return mgr.TimelineAsync(ctx).Await(ctx)
			})
		},
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print a JSON line every time the current media changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runApp(ctx, options(AppOptions))
		},
	}

	root.AddCommand(nowCmd, statusCmd, timelineCmd, watchCmd)
	return root
}

// runApp starts the fx application and blocks until ctx ends or the
// application asks to shut down
func runApp(ctx context.Context, opts fx.Option) error {
	app := fx.New(
		// Logger configuration
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		opts,
	)
	if err := app.Err(); err != nil {
		return err
	}

	// Start the application
	if err := app.Start(ctx); err != nil {
		return err
	}

	var exitCode int
	select {
	case <-ctx.Done():
	case sig := <-app.Wait():
		exitCode = sig.ExitCode
	}

	// Stop the application gracefully
	stopCtx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		return err
	}
	if exitCode != 0 {
		return fmt.Errorf("watcher stopped with exit code %d", exitCode)
	}
	return nil
}

// describe turns taxonomy errors into messages for the terminal
func describe(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnsupportedPlatform):
		return fmt.Errorf("media sessions are not supported on this system: %w", err)
	case errors.Is(err, domain.ErrNoActiveSession):
		return fmt.Errorf("nothing is playing: %w", err)
	case errors.Is(err, domain.ErrBackendUnavailable):
		return fmt.Errorf("media service not reachable: %w", err)
	case errors.Is(err, domain.ErrNoTimeline):
		return fmt.Errorf("current media has no timeline: %w", err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("media service did not answer in time: %w", err)
	default:
		return err
	}
}
