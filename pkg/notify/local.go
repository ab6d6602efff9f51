package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// recentLimit bounds how many delivered notifications are kept for Tap.
const recentLimit = 64

type entry struct {
	id        cron.EntryID
	schedule  cron.Schedule
	scheduled Scheduled
}

// LocalFacility implements Facility in process. Pending triggers live only in
// memory; anything pending when the process exits is lost.
type LocalFacility struct {
	mu         sync.Mutex
	cron       *cron.Cron
	logger     *slog.Logger
	clock      func() time.Time
	permission Permission
	pending    map[Handle]*entry
	recent     []Notification
	delivered  []Callback
	tapped     []Callback
}

// Option configures a LocalFacility.
type Option func(*LocalFacility)

// WithLocation sets the time zone recurring specs are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(f *LocalFacility) {
		f.cron = newCron(f.logger, loc)
	}
}

// WithPermission fixes the answer RequestPermission gives.
func WithPermission(p Permission) Option {
	return func(f *LocalFacility) { f.permission = p }
}

// WithClock overrides the clock used to reject past triggers.
func WithClock(clock func() time.Time) Option {
	return func(f *LocalFacility) { f.clock = clock }
}

// NewLocalFacility creates a new cron backed facility. Call Start to begin firing.
func NewLocalFacility(logger *slog.Logger, opts ...Option) *LocalFacility {
	f := &LocalFacility{
		logger:     logger.With(slog.String("component", "notify")),
		clock:      time.Now,
		permission: PermissionUndetermined,
		pending:    make(map[Handle]*entry),
	}
	f.cron = newCron(f.logger, time.Local)

	for _, opt := range opts {
		opt(f)
	}
	return f
}

func newCron(logger *slog.Logger, loc *time.Location) *cron.Cron {
	return cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))),
	)
}

// Start begins firing triggers.
func (f *LocalFacility) Start() {
	f.cron.Start()
	f.logger.Info("notification facility started")
}

// Stop stops firing. The returned context is done once running callbacks finish.
func (f *LocalFacility) Stop() context.Context {
	f.logger.Info("notification facility stopping")
	return f.cron.Stop()
}

// RequestPermission grants permission unless the facility was built denied.
func (f *LocalFacility) RequestPermission(ctx context.Context) (Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.permission == PermissionUndetermined {
		f.permission = PermissionGranted
	}
	return f.permission, nil
}

// ScheduleOneShot registers payload to fire once at the given time.
func (f *LocalFacility) ScheduleOneShot(ctx context.Context, payload Payload, at time.Time) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.permission != PermissionGranted {
		return "", ErrPermissionDenied
	}
	if !at.After(f.clock()) {
		return "", fmt.Errorf("%w: %s", ErrPastTrigger, at.Format(time.RFC3339))
	}

	handle := Handle(uuid.NewString())
	// f.mu is held until the entry is recorded, so fire cannot observe a
	// half-registered handle.
	id := f.cron.Schedule(oneShot{at: at}, cron.FuncJob(func() { f.fire(handle) }))
	f.pending[handle] = &entry{
		id:        id,
		scheduled: Scheduled{Handle: handle, Payload: payload, Trigger: at},
	}

	f.logger.Debug("scheduled notification",
		slog.String("handle", string(handle)),
		slog.Time("trigger", at),
	)
	return handle, nil
}

// ScheduleRecurring registers payload on a standard five-field cron spec.
func (f *LocalFacility) ScheduleRecurring(ctx context.Context, spec string, payload Payload) (Handle, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return "", fmt.Errorf("failed to parse schedule %q: %w", spec, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.permission != PermissionGranted {
		return "", ErrPermissionDenied
	}

	handle := Handle(uuid.NewString())
	id := f.cron.Schedule(schedule, cron.FuncJob(func() { f.fire(handle) }))
	f.pending[handle] = &entry{
		id:       id,
		schedule: schedule,
		scheduled: Scheduled{
			Handle:    handle,
			Payload:   payload,
			Trigger:   schedule.Next(f.clock()),
			Recurring: true,
		},
	}
	return handle, nil
}

// ListScheduled returns pending triggers ordered by trigger time.
func (f *LocalFacility) ListScheduled(ctx context.Context) ([]Scheduled, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Scheduled, 0, len(f.pending))
	for _, e := range f.pending {
		out = append(out, e.scheduled)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Trigger.Before(out[j].Trigger)
	})
	return out, nil
}

// Cancel removes a pending trigger.
func (f *LocalFacility) Cancel(ctx context.Context, handle Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.pending[handle]
	if !ok {
		return fmt.Errorf("%w: %s", ErrHandleNotFound, handle)
	}
	f.cron.Remove(e.id)
	delete(f.pending, handle)
	return nil
}

// OnDelivered registers fn to run whenever a trigger fires.
func (f *LocalFacility) OnDelivered(fn Callback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, fn)
}

// OnTapped registers fn to run when the user opens a delivered notification.
func (f *LocalFacility) OnTapped(fn Callback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tapped = append(f.tapped, fn)
}

// Tap reports that the user opened the delivered notification with handle.
func (f *LocalFacility) Tap(handle Handle) error {
	f.mu.Lock()
	var (
		found bool
		n     Notification
	)
	for i := len(f.recent) - 1; i >= 0; i-- {
		if f.recent[i].Handle == handle {
			n, found = f.recent[i], true
			break
		}
	}
	callbacks := append([]Callback(nil), f.tapped...)
	f.mu.Unlock()

	if !found {
		return fmt.Errorf("%w: %s", ErrHandleNotFound, handle)
	}
	for _, fn := range callbacks {
		fn(n)
	}
	return nil
}

// fire delivers the trigger. Callbacks run without f.mu held.
func (f *LocalFacility) fire(handle Handle) {
	f.mu.Lock()
	e, ok := f.pending[handle]
	if !ok {
		f.mu.Unlock()
		return
	}
	now := f.clock()
	if e.scheduled.Recurring {
		e.scheduled.Trigger = e.schedule.Next(now)
	} else {
		f.cron.Remove(e.id)
		delete(f.pending, handle)
	}

	n := Notification{Handle: handle, Payload: e.scheduled.Payload, DeliveredAt: now}
	f.recent = append(f.recent, n)
	if len(f.recent) > recentLimit {
		f.recent = f.recent[len(f.recent)-recentLimit:]
	}
	callbacks := append([]Callback(nil), f.delivered...)
	f.mu.Unlock()

	f.logger.Info("notification delivered",
		slog.String("handle", string(handle)),
		slog.String("title", n.Payload.Title),
	)
	for _, fn := range callbacks {
		fn(n)
	}
}

// oneShot is a cron.Schedule that activates once. A zero Next time tells cron
// never to run the entry again.
type oneShot struct {
	at time.Time
}

func (s oneShot) Next(t time.Time) time.Time {
	if t.Before(s.at) {
		return s.at
	}
	return time.Time{}
}
