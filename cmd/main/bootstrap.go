package main

import (
	"context"
	"runtime/debug"
	"time"

	datasource "options-observer/src/data_source"
	"options-observer/src/helpers"
	"options-observer/src/interfaces"
	"options-observer/src/logger"
	"options-observer/src/models"
	"options-observer/src/session"

	"go.uber.org/fx"
)

// warmupTimeout bounds the background scrip-master download at startup.
const warmupTimeout = 2 * time.Minute

// -----------------------------------------------------------------------------

// registerBootstrap prepares the instrument store and the session before the
// servers start, and closes the store after they stop.
func registerBootstrap(
	lc fx.Lifecycle,
	cfg *models.MConfig,
	store interfaces.IInstrumentStore,
	scrips *datasource.ScripMasterCache,
	sess *session.Manager,
	cal interfaces.IMarketCalendar,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			memLimit := helpers.RecommendedMemoryLimitMB()
			debug.SetMemoryLimit(int64(memLimit) << 20)
			log.Info("Memory limit set to %d MB", memLimit)

			if err := store.Initialize(); err != nil {
				return err
			}

			today := time.Now().Format("2006-01-02")
			if _, err := store.CleanupExpired(today); err != nil {
				log.Warning("Expired contract cleanup failed: %v", err)
			}

			// the first chain request would otherwise pay for the download
			go func() {
				wctx, cancel := context.WithTimeout(context.Background(), warmupTimeout)
				defer cancel()
				if snap, err := scrips.Snapshot(wctx); err != nil {
					log.Warning("Scrip master warmup failed: %v", err)
				} else {
					log.Info("Scrip master loaded: %d instruments", snap.Len())
				}
			}()

			restoreSession(ctx, cfg, sess, log)

			dates := cal.ExpiryDates(time.Now())
			if len(dates) > 0 {
				log.Info("Next expiry %s, %d candidates", dates[0].Value, len(dates))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})
}

// -----------------------------------------------------------------------------

// restoreSession reuses persisted tokens, else logs in when auto login is on.
// A failure leaves the service up and unauthenticated.
func restoreSession(ctx context.Context, cfg *models.MConfig, sess *session.Manager, log *logger.Logger) {
	if _, err := sess.EnsureValid(ctx); err == nil {
		log.Info("Restored persisted session")
		return
	}
	if !cfg.Broker.AutoLogin {
		log.Info("No session; waiting for POST /api/login")
		return
	}

	_, err := sess.Login(ctx, models.MCredential{
		ClientID: cfg.Broker.ClientCode,
		Password: cfg.Broker.Password,
	})
	if err != nil {
		log.Error("Auto login failed: %v", err)
		return
	}
	log.Info("Auto login succeeded for %s", cfg.Broker.ClientCode)
}
