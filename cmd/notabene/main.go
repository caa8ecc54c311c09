// Command notabene runs the note-taking service and offers a few direct
// subcommands for working with the stores from a terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/notabene-app/notabene/pkg/models"
	"github.com/notabene-app/notabene/pkg/notabene"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp loads config, builds the app, runs fn, and tears everything down.
func withApp(fn func(ctx context.Context, app *notabene.App, log *zap.SugaredLogger) error) error {
	cfg, err := notabene.LoadConfig()
	if err != nil {
		return err
	}
	log, err := notabene.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := notabene.NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(ctx, app, log)
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "notabene",
		Short:         "Offline-first note taking with cloud sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newSyncCommand(),
		newCaptureCommand(),
		newListCommand(),
	)
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *notabene.App, log *zap.SugaredLogger) error {
				if err := app.Bootstrap(ctx); err != nil {
					return err
				}
				return app.Run(ctx)
			})
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run the local-to-remote bootstrap without serving",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *notabene.App, log *zap.SugaredLogger) error {
				return app.Bootstrap(ctx)
			})
		},
	}
}

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Flush pending remote writes and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *notabene.App, log *zap.SugaredLogger) error {
				dispatcher := app.Outbox()
				if dispatcher == nil {
					return fmt.Errorf("remote store is not enabled")
				}
				if err := dispatcher.Flush(ctx); err != nil {
					return err
				}
				pending, err := dispatcher.Pending(ctx)
				if err != nil {
					return err
				}
				log.Infow("sync finished", "pending", pending)
				return nil
			})
		},
	}
}

func newCaptureCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "capture <text>",
		Short: "Classify a line of text and store it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, app *notabene.App, log *zap.SugaredLogger) error {
				text := ""
				for i, arg := range args {
					if i > 0 {
						text += " "
					}
					text += arg
				}
				note, err := app.Notes().Capture(ctx, text)
				if err != nil {
					return err
				}
				fmt.Printf("%s  %s  %q\n", note.Kind, note.ID, note.Content)
				return nil
			})
		},
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <kind>",
		Short: "List notes of one kind, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := models.ParseKind(args[0])
			if !ok {
				return fmt.Errorf("unknown kind %q", args[0])
			}
			return withApp(func(ctx context.Context, app *notabene.App, log *zap.SugaredLogger) error {
				notes, err := app.Notes().List(ctx, kind)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				for _, n := range notes {
					due := ""
					if n.DueDate != nil {
						due = n.DueDate.Format("2006-01-02")
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.ID, n.CreatedAt.Format("2006-01-02 15:04"), due, n.Content)
				}
				return tw.Flush()
			})
		},
	}
}
