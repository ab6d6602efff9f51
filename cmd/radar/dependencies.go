package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	remindersvc "github.com/FACorreiaa/subscription-radar/internal/domain/reminders/service"
	"github.com/FACorreiaa/subscription-radar/internal/domain/subscriptions/repository"
	subscriptionsvc "github.com/FACorreiaa/subscription-radar/internal/domain/subscriptions/service"
	"github.com/FACorreiaa/subscription-radar/pkg/config"
	"github.com/FACorreiaa/subscription-radar/pkg/cron"
	"github.com/FACorreiaa/subscription-radar/pkg/mail"
	"github.com/FACorreiaa/subscription-radar/pkg/metrics"
	"github.com/FACorreiaa/subscription-radar/pkg/notify"
	"github.com/FACorreiaa/subscription-radar/pkg/push"
	"github.com/FACorreiaa/subscription-radar/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Location *time.Location

	// Persistence
	BlobStore         storage.BlobStore
	SubscriptionsRepo repository.SubscriptionRepository

	// Services
	Facility    *notify.LocalFacility
	Reminders   *remindersvc.Scheduler
	Store       *subscriptionsvc.Store
	PushService *push.Service
	Mailer      *mail.Mailer
	Digest      *cron.Scheduler

	ownsReminders bool
}

// InitDependencies initializes all application dependencies. Only a process
// that owns reminders runs the facility; the others leave reminder handles
// empty for it to fill in on its next sync.
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger, ownsReminders bool) (*Dependencies, error) {
	deps := &Dependencies{
		Config:        cfg,
		Logger:        logger,
		Metrics:       metrics.New(),
		ownsReminders: ownsReminders,
	}

	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}
	deps.Location = loc

	if err := deps.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	if err := deps.initServices(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	if err := deps.initJobs(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init jobs: %w", err)
	}

	logger.Debug("all dependencies initialized successfully")
	return deps, nil
}

// initStorage opens the configured blob store and the repository over it
func (d *Dependencies) initStorage(ctx context.Context) error {
	store, err := storage.New(ctx, d.Config.Storage.StorageOptions())
	if err != nil {
		return err
	}
	d.BlobStore = store
	d.SubscriptionsRepo = repository.NewBlobSubscriptionRepository(store)

	d.Logger.Debug("storage initialized", slog.String("type", d.Config.Storage.Type))
	return nil
}

// initServices wires the facility, the reminder scheduler, the store and the
// outbound transports
func (d *Dependencies) initServices() error {
	cfg := d.Config

	permission := notify.PermissionUndetermined
	if !cfg.Notifications.Enabled {
		permission = notify.PermissionDenied
	}
	d.Facility = notify.NewLocalFacility(d.Logger,
		notify.WithLocation(d.Location),
		notify.WithPermission(permission),
	)

	d.Reminders = remindersvc.NewScheduler(d.Facility,
		remindersvc.WithLogger(d.Logger),
		remindersvc.WithMetrics(d.Metrics),
		remindersvc.WithLocation(d.Location),
		remindersvc.WithReminderTime(cfg.App.ReminderHour, cfg.App.ReminderMinute),
		remindersvc.WithDefaultOffsets(cfg.App.ReminderOffsets...),
		remindersvc.WithCurrency(cfg.App.Currency),
		remindersvc.WithRetry(uint64(cfg.Notifications.RetryAttempts), cfg.Notifications.RetryBase),
	)

	var port subscriptionsvc.ReminderPort
	if d.ownsReminders {
		port = d.Reminders
	}
	d.Store = subscriptionsvc.NewStore(d.SubscriptionsRepo, port,
		subscriptionsvc.WithLogger(d.Logger),
		subscriptionsvc.WithMetrics(d.Metrics),
		subscriptionsvc.WithLocation(d.Location),
		subscriptionsvc.WithCurrency(cfg.App.Currency),
	)

	if cfg.Push.Enabled {
		d.PushService = push.NewService(d.Logger,
			push.WithEndpoint(cfg.Push.Endpoint),
			push.WithMetrics(d.Metrics),
			push.WithRateLimit(cfg.Push.RateLimitPerSecond, cfg.Push.RateLimitBurst),
			push.WithCircuitBreaker(uint32(cfg.Push.BreakerFailures), cfg.Push.BreakerTimeout),
		)
	}

	mailer, err := mail.New(mail.Config{
		APIKey:  cfg.Mail.APIKey,
		From:    cfg.Mail.From,
		To:      cfg.Mail.To,
		BaseURL: cfg.Mail.BaseURL,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.Mailer = mailer

	// Route facility callbacks to push and the log
	adapter := newDeliveryAdapter(d.PushService, cfg.Push.Token, d.Logger)
	d.Facility.OnDelivered(adapter.Delivered)
	d.Facility.OnTapped(adapter.Tapped)

	d.Logger.Debug("services initialized",
		slog.Bool("push", d.PushService != nil),
		slog.Bool("mail", d.Mailer.Enabled()),
	)
	return nil
}

// initJobs builds the digest and sync scheduler; it only runs under serve
func (d *Dependencies) initJobs() error {
	cfg := d.Config

	opts := []cron.Option{
		cron.WithMetrics(d.Metrics),
		cron.WithLocation(d.Location),
		cron.WithCurrency(cfg.App.Currency),
		cron.WithSchedules(cfg.Digest.DailySpec, cfg.Digest.MonthlySpec),
		cron.WithWindow(cfg.Digest.WindowFrom, cfg.Digest.WindowTo),
		cron.WithMailer(d.Mailer),
		cron.WithDigestJobs(cfg.Digest.Enabled),
	}
	if d.ownsReminders {
		opts = append(opts, cron.WithSync(d.Store, cfg.Notifications.SyncSpec))
	}
	if d.PushService != nil {
		opts = append(opts, cron.WithPusher(d.PushService, cfg.Push.Token))
	}

	d.Digest = cron.NewScheduler(d.Store, d.Logger, opts...)
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.BlobStore != nil {
		if err := d.BlobStore.Close(); err != nil {
			d.Logger.Warn("failed to close storage", slog.Any("error", err))
		}
	}
	d.Logger.Debug("cleanup completed")
}
