package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"eventbot/internal/app"
	logx "eventbot/pkg/logx"

	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "eventbot",
		Short:         "Telegram bot for time-bound events, memos and reminders",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runBot,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config.yaml", "path to config file (yaml or json)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the reaper, reminder dispatchers, digest and ops server",
			RunE:  runBot,
		},
		&cobra.Command{
			Use:   "reap",
			Short: "Run a single reaper pass and exit",
			RunE:  reapOnce,
		},
		&cobra.Command{
			Use:   "dispatch",
			Short: "Deliver due event and memo reminders once and exit",
			RunE:  dispatchOnce,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or upgrade the database schema",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return app.Migrate(cmd.Context(), cfgPath)
			},
		},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func runBot(cmd *cobra.Command, _ []string) error {
	a, err := app.New(cmd.Context(), cfgPath)
	if err != nil {
		return err
	}
	return a.Run(cmd.Context())
}

func reapOnce(cmd *cobra.Command, _ []string) error {
	a, err := app.New(cmd.Context(), cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ReapOnce(cmd.Context())
	if err != nil {
		return err
	}
	a.Logger().Info("reap done",
		logx.Int("expired", res.Expired),
		logx.Int("cleaned", res.Cleaned),
		logx.Int("cleanup_failed", res.CleanupFailed),
		logx.Int64("deleted", res.Deleted),
	)
	return nil
}

func dispatchOnce(cmd *cobra.Command, _ []string) error {
	a, err := app.New(cmd.Context(), cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	events, memos, err := a.DispatchOnce(cmd.Context())
	if err != nil {
		return err
	}
	a.Logger().Info("dispatch done",
		logx.Int("events_sent", events.Sent),
		logx.Int("events_pending", events.Pending),
		logx.Int("memos_sent", memos.Sent),
		logx.Int("memos_pending", memos.Pending),
	)
	return nil
}
