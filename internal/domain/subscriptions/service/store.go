// Package service provides the subscription store: lifecycle, aggregation and
// reminder reconciliation over a persisted collection.
package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/subscription-radar/internal/domain/subscriptions/repository"
	"github.com/FACorreiaa/subscription-radar/pkg/metrics"
	"github.com/FACorreiaa/subscription-radar/pkg/money"
)

const tracerName = "github.com/FACorreiaa/subscription-radar/internal/domain/subscriptions/service"

// ReminderPort is the store's view of the reminder scheduler.
type ReminderPort interface {
	ScheduleReminders(ctx context.Context, sub *repository.Subscription, offsets ...int) ([]repository.ReminderHandle, error)
	CancelAll(ctx context.Context, subscriptionID string) error
	Reschedule(ctx context.Context, sub *repository.Subscription, offsets ...int) ([]repository.ReminderHandle, error)
	CancelEverything(ctx context.Context) error
}

// CategoryStat aggregates the active subscriptions of one category.
type CategoryStat struct {
	Category      repository.Category
	Count         int
	Total         *money.Money
	Subscriptions []*repository.Subscription
}

// Store is the single source of truth for the subscription collection. Every
// operation holds one mutex across memory and storage, and always mutates
// memory before persisting.
type Store struct {
	mu        sync.Mutex
	repo      repository.SubscriptionRepository
	reminders ReminderPort
	validate  *validator.Validate
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	clock     func() time.Time
	location  *time.Location
	currency  string
	offsets   []int

	loaded   bool
	fallback bool
	subs     []*repository.Subscription
	lastID   int64
}

// Option configures a Store
type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Store) { s.tracer = t }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// WithLocation sets the zone "today" is evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithCurrency sets the currency totals are computed in.
func WithCurrency(code string) Option {
	return func(s *Store) { s.currency = code }
}

// WithReminderOffsets overrides the scheduler's default offsets.
func WithReminderOffsets(offsets ...int) Option {
	return func(s *Store) { s.offsets = append([]int(nil), offsets...) }
}

// NewStore creates a new subscription store. reminders may be nil, in which
// case no reminders are scheduled.
func NewStore(repo repository.SubscriptionRepository, reminders ReminderPort, opts ...Option) *Store {
	if reminders == nil {
		reminders = noopReminders{}
	}
	s := &Store{
		repo:      repo,
		reminders: reminders,
		validate:  newValidator(),
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
		clock:     time.Now,
		location:  time.Local,
		currency:  money.DefaultCurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "subscriptions"))
	return s
}

// Load reads the persisted collection and caches it after the first successful
// read. Missing data is replaced by the demonstration dataset, which is then
// persisted. Unreadable data is served as the same dataset while every later
// call reads storage again; until a read succeeds nothing is written back.
func (s *Store) Load(ctx context.Context) []*repository.Subscription {
	ctx, span := s.tracer.Start(ctx, "subscriptions.Load")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureLoadedLocked(ctx)
	return cloneAll(s.subs)
}

// Add validates draft, stores the new subscription and schedules its reminders.
func (s *Store) Add(ctx context.Context, draft Draft) (_ *repository.Subscription, err error) {
	const op = "Add"
	ctx, span := s.tracer.Start(ctx, "subscriptions."+op)
	defer func() { endSpan(span, err) }()

	sub, err := s.newFromDraft(op, draft)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)

	now := s.clock()
	sub.ID = s.newIDLocked(now)
	sub.CreatedAt = now
	sub.UpdatedAt = now
	span.SetAttributes(attribute.String("subscription.id", sub.ID))

	s.subs = append(s.subs, sub)
	// Persist the record before scheduling; Resync rebuilds lost reminders.
	_ = s.persistLocked(ctx, op)

	handles, rerr := s.reminders.ScheduleReminders(ctx, sub.Clone(), s.offsets...)
	if rerr != nil {
		s.logger.Warn("failed to schedule reminders",
			slog.String("subscription_id", sub.ID),
			slog.Any("error", rerr),
		)
	}
	sub.ReminderHandles = nonNilHandles(handles)

	err = s.persistLocked(ctx, op)
	s.afterMutationLocked(op)

	s.logger.Info("subscription added",
		slog.String("subscription_id", sub.ID),
		slog.String("name", sub.Name),
		slog.Int("reminders", len(sub.ReminderHandles)),
	)
	return sub.Clone(), err
}

// Update merges patch onto the subscription. Changing the next payment date or
// the status reconciles reminders.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (_ *repository.Subscription, err error) {
	const op = "Update"
	ctx, span := s.tracer.Start(ctx, "subscriptions."+op, trace.WithAttributes(attribute.String("subscription.id", id)))
	defer func() { endSpan(span, err) }()

	parsed, err := s.parsePatch(op, patch)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)

	sub, err := s.findLocked(op, id)
	if err != nil {
		return nil, err
	}

	if parsed.name != nil {
		sub.Name = *parsed.name
	}
	if parsed.price != nil {
		sub.Price = *parsed.price
	}
	if parsed.category != nil {
		sub.Category = *parsed.category
	}
	if parsed.nextPayment != nil {
		sub.NextPayment = *parsed.nextPayment
	}
	if parsed.status != nil {
		sub.Status = *parsed.status
	}
	sub.UpdatedAt = s.clock()

	err = s.persistLocked(ctx, op)
	if parsed.nextPayment != nil || parsed.status != nil {
		s.reconcileLocked(ctx, sub)
		err = s.persistLocked(ctx, op)
	}
	s.afterMutationLocked(op)

	return sub.Clone(), err
}

// Remove cancels the subscription's reminders and deletes it.
func (s *Store) Remove(ctx context.Context, id string) (err error) {
	const op = "Remove"
	ctx, span := s.tracer.Start(ctx, "subscriptions."+op, trace.WithAttributes(attribute.String("subscription.id", id)))
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)

	idx := s.indexLocked(id)
	if idx < 0 {
		return &NotFoundError{Op: op, ID: id}
	}

	if cerr := s.reminders.CancelAll(ctx, id); cerr != nil {
		s.logger.Warn("failed to cancel reminders",
			slog.String("subscription_id", id),
			slog.Any("error", cerr),
		)
	}

	s.subs = append(s.subs[:idx], s.subs[idx+1:]...)
	err = s.persistLocked(ctx, op)
	s.afterMutationLocked(op)

	s.logger.Info("subscription removed", slog.String("subscription_id", id))
	return err
}

// ToggleStatus flips active and paused. An expired subscription becomes active.
// Returns the new status.
func (s *Store) ToggleStatus(ctx context.Context, id string) (_ repository.Status, err error) {
	const op = "ToggleStatus"
	ctx, span := s.tracer.Start(ctx, "subscriptions."+op, trace.WithAttributes(attribute.String("subscription.id", id)))
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)

	sub, err := s.findLocked(op, id)
	if err != nil {
		return "", err
	}

	if sub.Status == repository.StatusActive {
		sub.Status = repository.StatusPaused
	} else {
		sub.Status = repository.StatusActive
	}
	sub.UpdatedAt = s.clock()

	_ = s.persistLocked(ctx, op)
	s.reconcileLocked(ctx, sub)
	err = s.persistLocked(ctx, op)
	s.afterMutationLocked(op)

	return sub.Status, err
}

// RecordPayment appends a completed payment and advances the next payment date
// by one calendar month. A zero date means today.
func (s *Store) RecordPayment(ctx context.Context, id string, amount decimal.Decimal, date repository.Date) (_ *repository.Payment, err error) {
	const op = "RecordPayment"
	ctx, span := s.tracer.Start(ctx, "subscriptions."+op, trace.WithAttributes(attribute.String("subscription.id", id)))
	defer func() { endSpan(span, err) }()

	amount, err = s.checkAmount(op, "amount", amount)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)

	sub, err := s.findLocked(op, id)
	if err != nil {
		return nil, err
	}

	if date.IsZero() {
		date = s.today()
	}
	payment := repository.Payment{
		ID:     uuid.NewString(),
		Amount: amount,
		Date:   date,
		Status: repository.PaymentStatusCompleted,
	}
	sub.PaymentHistory = append(sub.PaymentHistory, payment)
	sub.NextPayment = sub.NextPayment.AddMonths(1)
	sub.UpdatedAt = s.clock()

	_ = s.persistLocked(ctx, op)
	s.reconcileLocked(ctx, sub)
	err = s.persistLocked(ctx, op)
	s.afterMutationLocked(op)

	s.logger.Info("payment recorded",
		slog.String("subscription_id", id),
		slog.String("amount", amount.StringFixed(2)),
		slog.String("next_payment", sub.NextPayment.String()),
	)
	return &payment, err
}

// ClearAll cancels every reminder, empties the collection and erases the blob.
func (s *Store) ClearAll(ctx context.Context) (err error) {
	const op = "ClearAll"
	ctx, span := s.tracer.Start(ctx, "subscriptions."+op)
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if cerr := s.reminders.CancelEverything(ctx); cerr != nil {
		s.logger.Warn("failed to cancel reminders", slog.Any("error", cerr))
	}

	s.subs = []*repository.Subscription{}
	s.loaded, s.fallback = true, false
	s.afterMutationLocked(op)

	if rerr := s.repo.Clear(ctx); rerr != nil {
		s.metrics.IncPersistenceFailure(op)
		s.logger.Error("failed to clear subscriptions", slog.Any("error", rerr))
		return &PersistenceError{Op: op, Key: repository.SubscriptionsKey, Err: rerr}
	}
	return nil
}

// Resync rebuilds the reminders of every subscription. The local facility keeps
// no state across restarts, so this runs once after start-up.
func (s *Store) Resync(ctx context.Context) (err error) {
	const op = "Resync"
	ctx, span := s.tracer.Start(ctx, "subscriptions."+op)
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)

	for _, sub := range s.subs {
		s.reconcileLocked(ctx, sub)
	}
	err = s.persistLocked(ctx, op)
	s.afterMutationLocked(op)
	return err
}

// Reload replaces the cached collection with the stored one so writes made by
// other processes are picked up. Subscriptions whose next payment or status
// changed, and new ones, get their reminders reconciled; removed ones have
// theirs cancelled; unchanged ones keep the handles this process scheduled.
// Storage is written only when handles differ from the stored ones. A read
// error leaves the cache untouched.
func (s *Store) Reload(ctx context.Context) (err error) {
	const op = "Reload"
	ctx, span := s.tracer.Start(ctx, "subscriptions."+op)
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		s.ensureLoadedLocked(ctx)
		if !s.loaded {
			return &PersistenceError{Op: op, Key: repository.SubscriptionsKey, Err: ErrUnreadableStorage}
		}
		for _, sub := range s.subs {
			s.reconcileLocked(ctx, sub)
		}
		err = s.persistLocked(ctx, op)
		s.afterMutationLocked(op)
		return err
	}

	stored, rerr := s.repo.LoadAll(ctx)
	switch {
	case errors.Is(rerr, repository.ErrNoData):
		stored = []*repository.Subscription{}
	case rerr != nil:
		s.logger.Warn("failed to reload subscriptions", slog.Any("error", rerr))
		return &PersistenceError{Op: op, Key: repository.SubscriptionsKey, Err: rerr}
	}
	normalizeAll(stored)

	prev := make(map[string]*repository.Subscription, len(s.subs))
	for _, sub := range s.subs {
		prev[sub.ID] = sub
	}

	dirty, changed := false, 0
	for _, sub := range stored {
		old, ok := prev[sub.ID]
		delete(prev, sub.ID)

		if ok && old.NextPayment.Equal(sub.NextPayment) && old.Status == sub.Status {
			if !slices.Equal(old.ReminderHandles, sub.ReminderHandles) {
				sub.ReminderHandles = old.ReminderHandles
				dirty = true
			}
			continue
		}

		before := sub.ReminderHandles
		s.reconcileLocked(ctx, sub)
		if !slices.Equal(before, sub.ReminderHandles) {
			dirty = true
		}
		changed++
	}

	for id := range prev {
		if cerr := s.reminders.CancelAll(ctx, id); cerr != nil {
			s.logger.Warn("failed to cancel reminders",
				slog.String("subscription_id", id),
				slog.Any("error", cerr),
			)
		}
	}

	s.subs = stored
	s.refreshGaugeLocked()

	if changed > 0 || len(prev) > 0 {
		s.logger.Info("subscriptions reloaded",
			slog.Int("changed", changed),
			slog.Int("removed", len(prev)),
		)
	}
	if !dirty {
		return nil
	}
	err = s.persistLocked(ctx, op)
	s.afterMutationLocked(op)
	return err
}

// GetAll returns every subscription in insertion order.
func (s *Store) GetAll(ctx context.Context) []*repository.Subscription {
	return s.query(ctx, func(*repository.Subscription) bool { return true })
}

// GetByID returns the subscription with id, or a *NotFoundError.
func (s *Store) GetByID(ctx context.Context, id string) (*repository.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)

	sub, err := s.findLocked("GetByID", id)
	if err != nil {
		return nil, err
	}
	return sub.Clone(), nil
}

func (s *Store) GetByCategory(ctx context.Context, category repository.Category) []*repository.Subscription {
	return s.query(ctx, func(sub *repository.Subscription) bool { return sub.Category == category })
}

func (s *Store) GetActive(ctx context.Context) []*repository.Subscription {
	return s.query(ctx, (*repository.Subscription).IsActive)
}

// GetUpcoming returns active subscriptions due between today and today+withinDays
// inclusive, soonest first.
func (s *Store) GetUpcoming(ctx context.Context, withinDays int) []*repository.Subscription {
	today := s.today()
	return s.GetDueBetween(ctx, today, today.AddDays(withinDays))
}

// GetDueBetween returns active subscriptions whose next payment falls in
// [from, to], soonest first.
func (s *Store) GetDueBetween(ctx context.Context, from, to repository.Date) []*repository.Subscription {
	out := s.query(ctx, func(sub *repository.Subscription) bool {
		return sub.IsActive() && !sub.NextPayment.Before(from) && !sub.NextPayment.After(to)
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NextPayment.Before(out[j].NextPayment)
	})
	return out
}

// MonthlyTotal sums the price of active subscriptions.
func (s *Store) MonthlyTotal(ctx context.Context) *money.Money {
	active := s.GetActive(ctx)
	prices := make([]decimal.Decimal, len(active))
	for i, sub := range active {
		prices[i] = sub.Price
	}
	return money.Sum(s.currency, prices...)
}

// YearlyTotal is twelve times the monthly total.
func (s *Store) YearlyTotal(ctx context.Context) *money.Money {
	return s.MonthlyTotal(ctx).Multiply(12)
}

// CategoryBreakdown groups active subscriptions by category. Categories without
// active subscriptions are omitted.
func (s *Store) CategoryBreakdown(ctx context.Context) []CategoryStat {
	byCategory := make(map[repository.Category]*CategoryStat)
	for _, sub := range s.GetActive(ctx) {
		stat, ok := byCategory[sub.Category]
		if !ok {
			stat = &CategoryStat{Category: sub.Category, Total: money.Zero(s.currency)}
			byCategory[sub.Category] = stat
		}
		stat.Count++
		stat.Total = stat.Total.MustAdd(money.NewFromDecimal(sub.Price, s.currency))
		stat.Subscriptions = append(stat.Subscriptions, sub)
	}

	out := make([]CategoryStat, 0, len(byCategory))
	for _, c := range repository.Categories {
		if stat, ok := byCategory[c]; ok {
			out = append(out, *stat)
		}
	}
	return out
}

// Search ranks subscriptions whose name fuzzily contains query, best match
// first. An empty query returns everything.
func (s *Store) Search(ctx context.Context, query string) []*repository.Subscription {
	all := s.GetAll(ctx)
	query = strings.TrimSpace(query)
	if query == "" {
		return all
	}

	names := make([]string, len(all))
	for i, sub := range all {
		names[i] = sub.Name
	}

	ranks := fuzzy.RankFindFold(query, names)
	sort.Stable(ranks)

	out := make([]*repository.Subscription, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, all[r.OriginalIndex])
	}
	return out
}

// LoadPreferences returns the stored preferences, or the defaults when they
// cannot be read.
func (s *Store) LoadPreferences(ctx context.Context) *repository.Preferences {
	prefs, err := s.repo.LoadPreferences(ctx)
	if err != nil {
		s.logger.Warn("failed to load preferences, using defaults", slog.Any("error", err))
		return repository.DefaultPreferences()
	}
	return prefs
}

// SavePreferences validates and persists prefs.
func (s *Store) SavePreferences(ctx context.Context, prefs *repository.Preferences) error {
	const op = "SavePreferences"
	if prefs == nil {
		return &ValidationError{Op: op, Field: "preferences", Reason: "is required"}
	}
	if prefs.ReminderDays < 0 {
		return &ValidationError{Op: op, Field: "reminderDays", Reason: "must not be negative"}
	}

	if err := s.repo.SavePreferences(ctx, prefs); err != nil {
		s.metrics.IncPersistenceFailure(op)
		return &PersistenceError{Op: op, Key: repository.PreferencesKey, Err: err}
	}
	return nil
}

func (s *Store) query(ctx context.Context, keep func(*repository.Subscription) bool) []*repository.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)

	out := []*repository.Subscription{}
	for _, sub := range s.subs {
		if keep(sub) {
			out = append(out, sub.Clone())
		}
	}
	return out
}

func (s *Store) ensureLoadedLocked(ctx context.Context) {
	if s.loaded {
		return
	}

	subs, err := s.repo.LoadAll(ctx)
	switch {
	case errors.Is(err, repository.ErrNoData):
		s.logger.Info("no saved subscriptions, seeding demo data")
		s.subs = repository.DemoSubscriptions()
		s.loaded, s.fallback = true, false
		_ = s.persistLocked(ctx, "Load")
	case err != nil:
		s.logger.Warn("failed to load subscriptions, using demo data", slog.Any("error", err))
		// Mutations made on the fallback set survive until a read succeeds
		if !s.fallback {
			s.subs = repository.DemoSubscriptions()
			s.fallback = true
		}
	default:
		if s.fallback {
			s.dropFallbackRemindersLocked(ctx, subs)
		}
		s.subs = subs
		s.loaded, s.fallback = true, false
	}

	normalizeAll(s.subs)
	s.refreshGaugeLocked()
}

// dropFallbackRemindersLocked cancels reminders scheduled for fallback records
// that the stored collection does not contain.
func (s *Store) dropFallbackRemindersLocked(ctx context.Context, stored []*repository.Subscription) {
	keep := make(map[string]bool, len(stored))
	for _, sub := range stored {
		keep[sub.ID] = true
	}
	for _, sub := range s.subs {
		if keep[sub.ID] || len(sub.ReminderHandles) == 0 {
			continue
		}
		if err := s.reminders.CancelAll(ctx, sub.ID); err != nil {
			s.logger.Warn("failed to cancel fallback reminders",
				slog.String("subscription_id", sub.ID),
				slog.Any("error", err),
			)
		}
	}
}

func normalizeAll(subs []*repository.Subscription) {
	for _, sub := range subs {
		sub.PaymentHistory = nonNilPayments(sub.PaymentHistory)
		sub.ReminderHandles = nonNilHandles(sub.ReminderHandles)
		if !sub.Status.Valid() {
			sub.Status = repository.StatusActive
		}
	}
}

// reconcileLocked makes sub.ReminderHandles match the facility: active
// subscriptions get a fresh set, anything else gets none.
func (s *Store) reconcileLocked(ctx context.Context, sub *repository.Subscription) {
	if !sub.IsActive() {
		if err := s.reminders.CancelAll(ctx, sub.ID); err != nil {
			s.logger.Warn("failed to cancel reminders",
				slog.String("subscription_id", sub.ID),
				slog.Any("error", err),
			)
		}
		sub.ReminderHandles = []repository.ReminderHandle{}
		return
	}

	handles, err := s.reminders.Reschedule(ctx, sub.Clone(), s.offsets...)
	if err != nil {
		s.logger.Warn("failed to reschedule reminders",
			slog.String("subscription_id", sub.ID),
			slog.Any("error", err),
		)
	}
	sub.ReminderHandles = nonNilHandles(handles)
}

func (s *Store) persistLocked(ctx context.Context, op string) error {
	if s.fallback {
		s.metrics.IncPersistenceFailure(op)
		s.logger.Warn("not saving subscriptions until storage can be read", slog.String("op", op))
		return &PersistenceError{Op: op, Key: repository.SubscriptionsKey, Err: ErrUnreadableStorage}
	}
	if err := s.repo.SaveAll(ctx, s.subs); err != nil {
		s.metrics.IncPersistenceFailure(op)
		s.logger.Error("failed to persist subscriptions",
			slog.String("op", op),
			slog.Any("error", err),
		)
		return &PersistenceError{Op: op, Key: repository.SubscriptionsKey, Err: err}
	}
	return nil
}

func (s *Store) afterMutationLocked(op string) {
	s.metrics.IncMutation(op)
	s.refreshGaugeLocked()
}

func (s *Store) refreshGaugeLocked() {
	active := 0
	for _, sub := range s.subs {
		if sub.IsActive() {
			active++
		}
	}
	s.metrics.SetActiveSubscriptions(active)
}

func (s *Store) findLocked(op, id string) (*repository.Subscription, error) {
	idx := s.indexLocked(id)
	if idx < 0 {
		return nil, &NotFoundError{Op: op, ID: id}
	}
	return s.subs[idx], nil
}

func (s *Store) indexLocked(id string) int {
	for i, sub := range s.subs {
		if sub.ID == id {
			return i
		}
	}
	return -1
}

// newIDLocked returns a time based id, bumped past the last one issued and any
// id already present.
func (s *Store) newIDLocked(now time.Time) string {
	n := now.UnixNano()
	if n <= s.lastID {
		n = s.lastID + 1
	}
	for s.indexLocked(strconv.FormatInt(n, 10)) >= 0 {
		n++
	}
	s.lastID = n
	return strconv.FormatInt(n, 10)
}

// today is the current calendar day in the store's location.
func (s *Store) today() repository.Date {
	return repository.DateOf(s.clock().In(s.location))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func cloneAll(subs []*repository.Subscription) []*repository.Subscription {
	out := make([]*repository.Subscription, len(subs))
	for i, sub := range subs {
		out[i] = sub.Clone()
	}
	return out
}

func nonNilHandles(h []repository.ReminderHandle) []repository.ReminderHandle {
	if h == nil {
		return []repository.ReminderHandle{}
	}
	return h
}

func nonNilPayments(p []repository.Payment) []repository.Payment {
	if p == nil {
		return []repository.Payment{}
	}
	return p
}

// noopReminders is used when the store runs without a scheduler.
type noopReminders struct{}

func (noopReminders) ScheduleReminders(context.Context, *repository.Subscription, ...int) ([]repository.ReminderHandle, error) {
	return nil, nil
}

func (noopReminders) CancelAll(context.Context, string) error { return nil }

func (noopReminders) Reschedule(context.Context, *repository.Subscription, ...int) ([]repository.ReminderHandle, error) {
	return nil, nil
}

func (noopReminders) CancelEverything(context.Context) error { return nil }
