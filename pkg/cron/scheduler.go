// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/subscription-radar/internal/domain/subscriptions/repository"
	"github.com/FACorreiaa/subscription-radar/pkg/mail"
	"github.com/FACorreiaa/subscription-radar/pkg/metrics"
	"github.com/FACorreiaa/subscription-radar/pkg/money"
	"github.com/FACorreiaa/subscription-radar/pkg/push"
)

const (
	DefaultDailySpec   = "0 9 * * *"
	DefaultMonthlySpec = "0 9 1 * *"
	DefaultSyncSpec    = "@every 1m"

	jobRenewals = "renewals"
	jobMonthly  = "monthly_summary"
	jobSync     = "sync"
)

// Source is the read side of the subscription store the jobs report on.
type Source interface {
	GetDueBetween(ctx context.Context, from, to repository.Date) []*repository.Subscription
	GetActive(ctx context.Context) []*repository.Subscription
	MonthlyTotal(ctx context.Context) *money.Money
}

// Syncer refreshes cached subscriptions from storage.
type Syncer interface {
	Reload(ctx context.Context) error
}

type Mailer interface {
	Enabled() bool
	Send(ctx context.Context, msg mail.Message) (string, error)
}

type Pusher interface {
	Send(ctx context.Context, msg *push.Message) error
}

// Digest is the result of one renewal digest run.
type Digest struct {
	From  repository.Date
	To    repository.Date
	Items []*repository.Subscription
	Total *money.Money
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron     *cron.Cron
	source   Source
	mailer   Mailer
	pusher   Pusher
	token    string
	logger   *slog.Logger
	metrics  *metrics.Metrics
	clock    func() time.Time
	location *time.Location
	currency string

	dailySpec   string
	monthlySpec string
	windowFrom  int
	windowTo    int
	digest      bool

	syncer   Syncer
	syncSpec string
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithMailer enables the renewal email digest.
func WithMailer(m Mailer) Option {
	return func(s *Scheduler) { s.mailer = m }
}

// WithPusher enables the monthly summary push to token.
func WithPusher(p Pusher, token string) Option {
	return func(s *Scheduler) {
		s.pusher = p
		s.token = token
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) { s.clock = clock }
}

func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithCurrency(code string) Option {
	return func(s *Scheduler) { s.currency = code }
}

// WithSchedules overrides the cron specs. Empty specs keep the defaults.
func WithSchedules(daily, monthly string) Option {
	return func(s *Scheduler) {
		if daily != "" {
			s.dailySpec = daily
		}
		if monthly != "" {
			s.monthlySpec = monthly
		}
	}
}

// WithDigestJobs turns the renewal digest and monthly summary jobs on or off.
func WithDigestJobs(enabled bool) Option {
	return func(s *Scheduler) { s.digest = enabled }
}

// WithSync reloads syncer on spec so writes from other processes get reminders.
// An empty spec uses DefaultSyncSpec.
func WithSync(syncer Syncer, spec string) Option {
	return func(s *Scheduler) {
		s.syncer = syncer
		if spec != "" {
			s.syncSpec = spec
		}
	}
}

// WithWindow sets the renewal window in days from today, inclusive.
func WithWindow(fromDays, toDays int) Option {
	return func(s *Scheduler) {
		if fromDays >= 0 && toDays >= fromDays {
			s.windowFrom, s.windowTo = fromDays, toDays
		}
	}
}

// NewScheduler creates a new job scheduler.
func NewScheduler(source Source, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:      source,
		logger:      logger,
		clock:       time.Now,
		location:    time.Local,
		currency:    money.DefaultCurrency,
		dailySpec:   DefaultDailySpec,
		monthlySpec: DefaultMonthlySpec,
		windowFrom:  3,
		windowTo:    5,
		digest:      true,
		syncSpec:    DefaultSyncSpec,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "digest"))

	// Create cron with seconds disabled (standard 5-field format)
	s.cron = cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))),
	)
	return s
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if s.digest {
		if _, err := s.cron.AddFunc(s.dailySpec, s.runRenewals); err != nil {
			return fmt.Errorf("failed to schedule renewal digest: %w", err)
		}
		if _, err := s.cron.AddFunc(s.monthlySpec, s.runMonthly); err != nil {
			return fmt.Errorf("failed to schedule monthly summary: %w", err)
		}
	}
	if s.syncer != nil {
		if _, err := s.cron.AddFunc(s.syncSpec, s.runSync); err != nil {
			return fmt.Errorf("failed to schedule subscription sync: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the renewal digest.
func (s *Scheduler) RunNow() {
	go s.runRenewals()
}

// RenewalDigest collects active subscriptions renewing inside the window, logs
// each one and emails the digest when a mailer is configured.
func (s *Scheduler) RenewalDigest(ctx context.Context) (*Digest, error) {
	today := repository.DateOf(s.clock().In(s.location))
	d := &Digest{
		From: today.AddDays(s.windowFrom),
		To:   today.AddDays(s.windowTo),
	}
	d.Items = s.source.GetDueBetween(ctx, d.From, d.To)

	prices := make([]decimal.Decimal, 0, len(d.Items))
	for _, sub := range d.Items {
		prices = append(prices, sub.Price)
		s.logger.Info("upcoming renewal",
			slog.String("subscription_id", sub.ID),
			slog.String("name", sub.Name),
			slog.String("price", sub.Price.StringFixed(2)),
			slog.String("next_payment", sub.NextPayment.String()),
		)
	}
	d.Total = money.Sum(s.currency, prices...)

	if len(d.Items) == 0 {
		return d, nil
	}
	if s.mailer == nil || !s.mailer.Enabled() {
		return d, nil
	}

	if _, err := s.mailer.Send(ctx, renderDigest(d)); err != nil {
		return d, fmt.Errorf("failed to email renewal digest: %w", err)
	}
	return d, nil
}

// MonthlySummary pushes the current monthly spend to the configured device.
func (s *Scheduler) MonthlySummary(ctx context.Context) error {
	if s.pusher == nil || s.token == "" {
		return nil
	}

	active := s.source.GetActive(ctx)
	total := s.source.MonthlyTotal(ctx)

	err := s.pusher.Send(ctx, &push.Message{
		To:    s.token,
		Title: "Monthly summary",
		Body:  fmt.Sprintf("%d active subscriptions, %s this month", len(active), total.Display()),
		Data: map[string]any{
			"type":  jobMonthly,
			"total": total.String(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to push monthly summary: %w", err)
	}
	return nil
}

func (s *Scheduler) runRenewals() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s.logger.Info("starting renewal digest")
	d, err := s.RenewalDigest(ctx)
	if err != nil {
		s.metrics.IncDigestRun(jobRenewals, "error")
		s.logger.Error("renewal digest failed", slog.Any("error", err))
		return
	}

	s.metrics.IncDigestRun(jobRenewals, "ok")
	s.logger.Info("renewal digest completed",
		slog.Int("renewals", len(d.Items)),
		slog.String("total", d.Total.String()),
	)
}

func (s *Scheduler) runMonthly() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.MonthlySummary(ctx); err != nil {
		result := "error"
		if errors.Is(err, push.ErrCircuitOpen) {
			result = "circuit_open"
		}
		s.metrics.IncDigestRun(jobMonthly, result)
		s.logger.Error("monthly summary failed", slog.Any("error", err))
		return
	}
	s.metrics.IncDigestRun(jobMonthly, "ok")
}

func (s *Scheduler) runSync() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.syncer.Reload(ctx); err != nil {
		s.metrics.IncDigestRun(jobSync, "error")
		s.logger.Warn("subscription sync failed", slog.Any("error", err))
		return
	}
	s.metrics.IncDigestRun(jobSync, "ok")
}

func renderDigest(d *Digest) mail.Message {
	var text, body strings.Builder

	fmt.Fprintf(&text, "Renewals between %s and %s:\n\n", d.From, d.To)
	body.WriteString("<h2>Upcoming renewals</h2><ul>")
	for _, sub := range d.Items {
		fmt.Fprintf(&text, "- %s: %s on %s\n", sub.Name, sub.Price.StringFixed(2), sub.NextPayment)
		fmt.Fprintf(&body, "<li><strong>%s</strong> %s on %s</li>",
			html.EscapeString(sub.Name), sub.Price.StringFixed(2), sub.NextPayment)
	}
	fmt.Fprintf(&text, "\nTotal: %s\n", d.Total.Display())
	fmt.Fprintf(&body, "</ul><p>Total: %s</p>", html.EscapeString(d.Total.Display()))

	return mail.Message{
		Subject: fmt.Sprintf("%d subscriptions renew soon", len(d.Items)),
		HTML:    body.String(),
		Text:    text.String(),
	}
}
