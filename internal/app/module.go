// Package app composes the sync core into a runnable application: one
// session, one connection, one engine, wired through fx.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/gfranca/papo/internal/bus"
	"github.com/gfranca/papo/internal/channel"
	"github.com/gfranca/papo/internal/chat"
	"github.com/gfranca/papo/internal/lock"
	"github.com/gfranca/papo/internal/logging"
	"github.com/gfranca/papo/internal/outbox"
	"github.com/gfranca/papo/internal/session"
	"github.com/gfranca/papo/internal/status"
	"github.com/gfranca/papo/internal/store"
	intsync "github.com/gfranca/papo/internal/sync"
)

// Params holds the resolved session configuration passed to the fx
// module. UserID/Token are only set on explicit login; otherwise the
// persisted snapshot supplies the identity.
type Params struct {
	SessionName string
	ServerURL   string

	UserID   string
	Token    string
	FullName string
}

// Module returns the fx module for the client core, composing all
// providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("papo",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideChannel,
			provideReconciler,
			provideLedger,
			provideComposer,
			provideUser,
			provideEngine,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideChannel(p Params, machine *status.Machine, logger *zap.Logger) *channel.Channel {
	return channel.New(p.ServerURL, machine, logger)
}

func provideReconciler(b *bus.Bus, logger *zap.Logger) *intsync.Reconciler {
	return intsync.NewReconciler(b, logger)
}

func provideLedger(b *bus.Bus) *intsync.Ledger {
	return intsync.NewLedger(b)
}

func provideComposer(ch *channel.Channel, rec *intsync.Reconciler, db *store.DB, logger *zap.Logger) *outbox.Composer {
	return outbox.NewComposer(ch, rec, db, logger)
}

// provideUser resolves the local identity. Explicit login credentials
// replace the snapshot; otherwise the snapshot is the identity, and a
// session without either cannot start.
func provideUser(p Params, db *store.DB, logger *zap.Logger) (chat.User, error) {
	if p.UserID != "" {
		snap := &store.SessionSnapshot{
			UserID:   p.UserID,
			Token:    p.Token,
			FullName: p.FullName,
		}
		if err := db.SaveSnapshot(snap); err != nil {
			return chat.User{}, fmt.Errorf("persist session: %w", err)
		}
		logger.Info("session saved", zap.String("user_id", p.UserID))
		return chat.User{ID: p.UserID, FullName: p.FullName}, nil
	}

	snap, err := db.LoadSnapshot()
	if err != nil {
		return chat.User{}, fmt.Errorf("load session: %w", err)
	}
	if snap == nil {
		return chat.User{}, fmt.Errorf("no saved session for %q: log in with -user and -token", p.SessionName)
	}
	if session.TokenExpired(snap.Token, time.Now()) {
		logger.Warn("saved token is expired, server may reject the connection",
			zap.String("user_id", snap.UserID))
	}
	return chat.User{
		ID:       snap.UserID,
		Username: snap.Username,
		FullName: snap.FullName,
		Email:    snap.Email,
	}, nil
}

func provideEngine(
	user chat.User,
	ch *channel.Channel,
	rec *intsync.Reconciler,
	ledger *intsync.Ledger,
	composer *outbox.Composer,
	db *store.DB,
	b *bus.Bus,
	logger *zap.Logger,
) *intsync.Engine {
	return intsync.NewEngine(user, ch, ch.Events(), rec, ledger, composer, db, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, ch *channel.Channel, engine *intsync.Engine, db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Engine first so the synthesized connected event has a
			// consumer, then the channel begins dialing.
			engine.Start(context.Background())
			ch.Start(context.Background())

			if pending, err := db.PendingSends(); err == nil && len(pending) > 0 {
				logger.Warn("unresolved sends from previous run",
					zap.Int("count", len(pending)))
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			engine.Stop()
			ch.Close()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("session stopped")
			return nil
		},
	})
}
