package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amaumene/seenarr/internal/api"
	"github.com/amaumene/seenarr/internal/scheduler"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "seenarr",
		Short:         "Keeps a local watchlist and watched library in sync with a TMDB account",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCommand(),
		newSyncCommand(),
		newSweepCommand(),
		newBackupCommand(),
		newLoginCommand(),
		newLogoutCommand(),
	)
	return root
}

// withApp runs fn with a wired app and a context cancelled on SIGINT/SIGTERM
func withApp(fn func(ctx context.Context, a *app) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx, a)
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(serve)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	a.logger.Info("Starting seenarr")

	var exporter scheduler.Exporter
	if a.exporter != nil {
		exporter = a.exporter
	}

	sched := scheduler.NewScheduler(a.engine, exporter, a.cfg, a.logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	server := api.NewServer(a.cfg, a.engine, a.auth, exporter, a.logger)

	a.logger.Info("seenarr is running")
	if err := server.Start(ctx); err != nil {
		return err
	}

	a.logger.Info("seenarr stopped")
	return nil
}

func newSyncCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push pending changes, then pull the account lists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if _, err := a.engine.DrainIntents(ctx); err != nil {
					return err
				}

				result, err := a.engine.Resync(ctx, force)
				if err != nil {
					return err
				}
				if result.Skipped {
					fmt.Println("Resync skipped, last one is too recent (use --force)")
					return nil
				}
				fmt.Printf("Watchlist: %d, watched: %d\n", result.Watchlist, result.Watched)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "ignore the debounce window")
	return cmd
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Move watched shows with an episode airing soon back to the watchlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				result, err := a.engine.Sweep(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Checked: %d, moved: %d, failed: %d\n", result.Checked, result.Migrated, result.Failed)
				return nil
			})
		},
	}
}

func newBackupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write the library to the backup document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if a.exporter == nil {
					return errors.New("backup is not configured: set BACKUP_DOCUMENT_ID and BACKUP_TOKEN")
				}
				return a.exporter.Export(ctx)
			})
		},
	}
}

func newLoginCommand() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Link a TMDB account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				token, approveURL, err := a.auth.Start(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Approve access at: %s\n", approveURL)

				waitCtx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()

				session, err := a.auth.WaitForApproval(waitCtx, token, 3*time.Second)
				if err != nil {
					return fmt.Errorf("failed to authenticate: %w", err)
				}
				if err := a.engine.Login(ctx, *session); err != nil {
					return err
				}
				fmt.Printf("Linked account %d\n", session.AccountID)

				_, err = a.engine.Resync(ctx, true)
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "how long to wait for approval")
	return cmd
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Unlink the account and clear both lists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				a.revokeSession(ctx)
				return a.engine.Logout(ctx)
			})
		},
	}
}
