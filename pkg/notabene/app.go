// Package notabene wires the stores, the outbox dispatcher, the calendar
// client, and the notes facade into a runnable application, and serves the
// HTTP API in front of it.
package notabene

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/notabene-app/notabene/pkg/calendar"
	"github.com/notabene-app/notabene/pkg/notes"
	"github.com/notabene-app/notabene/pkg/store/local"
	"github.com/notabene-app/notabene/pkg/store/outbox"
	"github.com/notabene-app/notabene/pkg/store/remote"
)

// App owns every long-lived component of one running instance.
type App struct {
	cfg *Config
	log *zap.SugaredLogger

	local      *local.Store
	remote     *remote.Store // nil when the remote store is disabled
	dispatcher *outbox.Dispatcher
	notes      *notes.Service
}

// NewApp constructs the application: opens the local store, connects the
// remote store when enabled, and builds the facade on top. Call Bootstrap
// before serving traffic and Close when done.
func NewApp(ctx context.Context, cfg *Config, log *zap.SugaredLogger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	localStore, err := local.Open(cfg.Local.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	a.local = localStore
	if err := localStore.Migrate(ctx); err != nil {
		localStore.Close()
		return nil, fmt.Errorf("failed to migrate local store: %w", err)
	}

	var cal calendar.Calendar = calendar.Disabled{}
	if cfg.Calendar.Enabled {
		cal = calendar.NewHTTPClient(cfg.Calendar.BaseURL, cfg.Calendar.Token)
	}

	opts := []notes.Option{notes.WithRetention(cfg.Notes.UndoRetention)}

	if cfg.Remote.Enabled {
		remoteStore, err := remote.Connect(ctx, remote.Config{
			URL:       cfg.Remote.URL,
			Namespace: cfg.Remote.Namespace,
			Database:  cfg.Remote.Database,
			Username:  cfg.Remote.Username,
			Password:  cfg.Remote.Password,
		}, log)
		if err != nil {
			localStore.Close()
			return nil, fmt.Errorf("failed to connect remote store: %w", err)
		}
		a.remote = remoteStore

		a.dispatcher = outbox.New(localStore.DB(), remoteStore, log,
			outbox.WithPollInterval(cfg.Notes.OutboxPollInterval))
		if err := a.dispatcher.Migrate(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to migrate outbox: %w", err)
		}
		opts = append(opts, notes.WithRemote(remoteStore, a.dispatcher))
	}

	a.notes = notes.New(localStore, cal, log, opts...)
	return a, nil
}

// Bootstrap runs the one-time migration check for the configured user.
func (a *App) Bootstrap(ctx context.Context) error {
	state, err := a.notes.Bootstrap(ctx, a.cfg.Remote.UserID)
	if err != nil {
		return fmt.Errorf("bootstrap failed in state %s: %w", state, err)
	}
	a.log.Infow("bootstrap finished", "state", state)
	return nil
}

// Notes exposes the facade, mainly for the CLI commands.
func (a *App) Notes() *notes.Service { return a.notes }

// Outbox exposes the dispatcher; nil when the remote store is disabled.
func (a *App) Outbox() *outbox.Dispatcher { return a.dispatcher }

// Close releases every component. Safe to call with partially constructed
// state.
func (a *App) Close() {
	if a.notes != nil {
		a.notes.Close()
	}
	if a.remote != nil {
		if err := a.remote.Close(); err != nil {
			a.log.Warnw("failed to close remote store", "error", err)
		}
	}
	if a.local != nil {
		if err := a.local.Close(); err != nil {
			a.log.Warnw("failed to close local store", "error", err)
		}
	}
}
