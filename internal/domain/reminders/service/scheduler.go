// Package service schedules subscription reminders on a notification facility.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/FACorreiaa/subscription-radar/internal/domain/subscriptions/repository"
	"github.com/FACorreiaa/subscription-radar/pkg/metrics"
	"github.com/FACorreiaa/subscription-radar/pkg/money"
	"github.com/FACorreiaa/subscription-radar/pkg/notify"
)

// Payload types carried in notify.Payload.Data["type"].
const (
	PayloadTypeReminder       = "subscription_reminder"
	PayloadTypeMonthlySummary = "monthly_summary"
)

// Payload data keys
const (
	DataSubscriptionID = "subscriptionId"
	DataType           = "type"
	DataOffsetDays     = "offsetDays"
)

// DefaultOffsets are the days before a payment at which reminders fire.
var DefaultOffsets = []int{7, 3, 1}

// MonthlySummarySpec fires on the first day of every month at 09:00.
const MonthlySummarySpec = "0 9 1 * *"

// RecurringFacility is implemented by facilities that support repeating triggers.
type RecurringFacility interface {
	ScheduleRecurring(ctx context.Context, spec string, payload notify.Payload) (notify.Handle, error)
}

// Scheduler maps subscription due dates to one-shot triggers. It never reads the
// subscription store; records come in as arguments.
type Scheduler struct {
	facility notify.Facility
	logger   *slog.Logger
	metrics  *metrics.Metrics
	clock    func() time.Time
	location *time.Location
	hour     int
	minute   int
	offsets  []int
	currency string

	retryAttempts uint64
	retryBase     time.Duration

	mu      sync.Mutex
	granted bool
}

// Option configures a Scheduler
type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithLocation sets the zone reminder times are computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithReminderTime sets the time of day reminders fire.
func WithReminderTime(hour, minute int) Option {
	return func(s *Scheduler) {
		s.hour, s.minute = hour, minute
	}
}

// WithDefaultOffsets replaces DefaultOffsets for calls that pass none.
func WithDefaultOffsets(offsets ...int) Option {
	return func(s *Scheduler) {
		if len(offsets) > 0 {
			s.offsets = append([]int(nil), offsets...)
		}
	}
}

func WithCurrency(code string) Option {
	return func(s *Scheduler) { s.currency = code }
}

// WithRetry bounds how often a facility call is retried, with exponential
// backoff starting at base.
func WithRetry(attempts uint64, base time.Duration) Option {
	return func(s *Scheduler) {
		s.retryAttempts = attempts
		if base > 0 {
			s.retryBase = base
		}
	}
}

// NewScheduler creates a new reminder scheduler
func NewScheduler(facility notify.Facility, opts ...Option) *Scheduler {
	s := &Scheduler{
		facility:      facility,
		logger:        slog.Default(),
		clock:         time.Now,
		location:      time.Local,
		hour:          9,
		offsets:       DefaultOffsets,
		currency:      money.DefaultCurrency,
		retryAttempts: 3,
		retryBase:     100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "reminders"))
	return s
}

// ScheduleReminders submits one trigger per offset whose time is still in the
// future and returns the pairs that were actually scheduled.
func (s *Scheduler) ScheduleReminders(ctx context.Context, sub *repository.Subscription, offsets ...int) ([]repository.ReminderHandle, error) {
	const op = "ScheduleReminders"

	if len(offsets) == 0 {
		offsets = s.offsets
	}
	handles := []repository.ReminderHandle{}

	if err := s.ensurePermission(ctx, sub.ID); err != nil {
		s.metrics.IncReminderFailure("permission")
		return handles, err
	}

	now := s.clock()
	var errs []error
	for _, offset := range offsets {
		trigger := s.TriggerTime(sub.NextPayment, offset)
		if !trigger.After(now) {
			s.logger.Debug("skipping reminder in the past",
				slog.String("subscription_id", sub.ID),
				slog.Int("offset", offset),
				slog.Time("trigger", trigger),
			)
			continue
		}

		var handle notify.Handle
		err := s.withRetry(ctx, func(ctx context.Context) error {
			h, err := s.facility.ScheduleOneShot(ctx, s.reminderPayload(sub, offset), trigger)
			if err != nil {
				return retryable(err)
			}
			handle = h
			return nil
		})
		if err != nil {
			s.logger.Warn("failed to schedule reminder",
				slog.String("subscription_id", sub.ID),
				slog.Int("offset", offset),
				slog.Any("error", err),
			)
			s.metrics.IncReminderFailure("schedule")
			errs = append(errs, &NotificationError{Op: op, SubscriptionID: sub.ID, Err: err})
			continue
		}

		handles = append(handles, repository.ReminderHandle{Offset: offset, Handle: string(handle)})
	}

	s.metrics.AddRemindersScheduled(len(handles))
	s.logger.Debug("scheduled reminders",
		slog.String("subscription_id", sub.ID),
		slog.Int("count", len(handles)),
	)
	return handles, errors.Join(errs...)
}

// CancelAll cancels every outstanding reminder whose payload references
// subscriptionID. Individual failures do not stop the remaining cancellations.
func (s *Scheduler) CancelAll(ctx context.Context, subscriptionID string) error {
	return s.cancelMatching(ctx, "CancelAll", subscriptionID, func(p notify.Payload) bool {
		return p.String(DataSubscriptionID) == subscriptionID
	})
}

// CancelEverything cancels every outstanding subscription reminder.
func (s *Scheduler) CancelEverything(ctx context.Context) error {
	return s.cancelMatching(ctx, "CancelEverything", "", func(p notify.Payload) bool {
		return p.String(DataType) == PayloadTypeReminder
	})
}

// Reschedule cancels the subscription's reminders and, when it is active,
// schedules fresh ones.
func (s *Scheduler) Reschedule(ctx context.Context, sub *repository.Subscription, offsets ...int) ([]repository.ReminderHandle, error) {
	cancelErr := s.CancelAll(ctx, sub.ID)
	if !sub.IsActive() {
		return []repository.ReminderHandle{}, cancelErr
	}

	handles, err := s.ScheduleReminders(ctx, sub, offsets...)
	return handles, errors.Join(cancelErr, err)
}

// ScheduleMonthlySummary registers the monthly spend summary once. A summary
// already pending at the facility is reused.
func (s *Scheduler) ScheduleMonthlySummary(ctx context.Context) (notify.Handle, error) {
	const op = "ScheduleMonthlySummary"

	recurring, ok := s.facility.(RecurringFacility)
	if !ok {
		return "", &NotificationError{Op: op, Err: errors.New("facility does not support recurring triggers")}
	}
	if err := s.ensurePermission(ctx, ""); err != nil {
		return "", err
	}

	pending, err := s.facility.ListScheduled(ctx)
	if err != nil {
		return "", &NotificationError{Op: op, Err: err}
	}
	for _, p := range pending {
		if p.Payload.String(DataType) == PayloadTypeMonthlySummary {
			return p.Handle, nil
		}
	}

	handle, err := recurring.ScheduleRecurring(ctx, MonthlySummarySpec, notify.Payload{
		Title: "Monthly summary",
		Body:  "Check your monthly subscription spending report",
		Data:  map[string]any{DataType: PayloadTypeMonthlySummary},
	})
	if err != nil {
		return "", &NotificationError{Op: op, Err: err}
	}
	return handle, nil
}

// TriggerTime returns when the reminder offset days before due fires.
func (s *Scheduler) TriggerTime(due repository.Date, offset int) time.Time {
	return due.AddDays(-offset).At(s.hour, s.minute, s.location)
}

func (s *Scheduler) cancelMatching(ctx context.Context, op, subscriptionID string, match func(notify.Payload) bool) error {
	var pending []notify.Scheduled
	err := s.withRetry(ctx, func(ctx context.Context) error {
		list, err := s.facility.ListScheduled(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		pending = list
		return nil
	})
	if err != nil {
		s.metrics.IncReminderFailure("list")
		return &NotificationError{Op: op, SubscriptionID: subscriptionID, Err: fmt.Errorf("failed to list scheduled: %w", err)}
	}

	var errs []error
	cancelled := 0
	for _, p := range pending {
		if !match(p.Payload) {
			continue
		}

		err := s.withRetry(ctx, func(ctx context.Context) error {
			err := s.facility.Cancel(ctx, p.Handle)
			if errors.Is(err, notify.ErrHandleNotFound) {
				// Already fired or cancelled
				return nil
			}
			return retryable(err)
		})
		if err != nil {
			s.logger.Warn("failed to cancel reminder",
				slog.String("subscription_id", p.Payload.String(DataSubscriptionID)),
				slog.String("handle", string(p.Handle)),
				slog.Any("error", err),
			)
			s.metrics.IncReminderFailure("cancel")
			errs = append(errs, &NotificationError{
				Op:             op,
				SubscriptionID: p.Payload.String(DataSubscriptionID),
				Handle:         string(p.Handle),
				Err:            err,
			})
			continue
		}
		cancelled++
		s.metrics.IncRemindersCancelled()
	}

	if cancelled > 0 || len(errs) > 0 {
		s.logger.Debug("cancelled reminders",
			slog.String("op", op),
			slog.String("subscription_id", subscriptionID),
			slog.Int("cancelled", cancelled),
			slog.Int("failed", len(errs)),
		)
	}
	return errors.Join(errs...)
}

// ensurePermission asks the facility until it grants permission once.
func (s *Scheduler) ensurePermission(ctx context.Context, subscriptionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.granted {
		return nil
	}

	p, err := s.facility.RequestPermission(ctx)
	if err != nil {
		return &NotificationError{Op: "RequestPermission", SubscriptionID: subscriptionID, Err: err}
	}
	if p != notify.PermissionGranted {
		s.logger.Warn("notification permission not granted", slog.String("permission", string(p)))
		return &NotificationError{Op: "RequestPermission", SubscriptionID: subscriptionID, Err: notify.ErrPermissionDenied}
	}
	s.granted = true
	return nil
}

func (s *Scheduler) reminderPayload(sub *repository.Subscription, offset int) notify.Payload {
	price := money.NewFromDecimal(sub.Price, s.currency)

	days := fmt.Sprintf("%d days", offset)
	if offset == 1 {
		days = "1 day"
	}

	return notify.Payload{
		Title: "Subscription due soon",
		Body:  fmt.Sprintf("Your %s subscription is due in %s (%s)", sub.Name, days, price.Display()),
		Data: map[string]any{
			DataSubscriptionID: sub.ID,
			DataType:           PayloadTypeReminder,
			DataOffsetDays:     offset,
		},
	}
}

func (s *Scheduler) withRetry(ctx context.Context, fn retry.RetryFunc) error {
	backoff := retry.WithMaxRetries(s.retryAttempts, retry.NewExponential(s.retryBase))
	return retry.Do(ctx, backoff, fn)
}

// retryable marks transient facility errors for retry. Permission and
// past-trigger errors will not change on a second attempt.
func retryable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, notify.ErrPermissionDenied) || errors.Is(err, notify.ErrPastTrigger) {
		return err
	}
	return retry.RetryableError(err)
}
