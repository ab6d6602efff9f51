package main

import (
	"log/slog"

	remindersvc "github.com/FACorreiaa/subscription-radar/internal/domain/reminders/service"
	"github.com/FACorreiaa/subscription-radar/pkg/notify"
	"github.com/FACorreiaa/subscription-radar/pkg/push"
)

// deliveryAdapter adapts facility callbacks to the push forwarder
type deliveryAdapter struct {
	forward notify.Callback
	logger  *slog.Logger
}

// newDeliveryAdapter creates a new adapter. A nil push service only logs.
func newDeliveryAdapter(svc *push.Service, token string, logger *slog.Logger) *deliveryAdapter {
	a := &deliveryAdapter{logger: logger.With(slog.String("component", "delivery"))}
	if svc != nil && token != "" {
		a.forward = svc.Forwarder(token)
	}
	return a
}

// Delivered implements notify.Callback for fired triggers
func (a *deliveryAdapter) Delivered(n notify.Notification) {
	kind := n.Payload.String(remindersvc.DataType)
	a.logger.Info("notification delivered",
		slog.String("type", kind),
		slog.String("subscription_id", n.Payload.String(remindersvc.DataSubscriptionID)),
		slog.String("title", n.Payload.Title),
		slog.String("body", n.Payload.Body),
	)

	// The monthly digest job pushes the summary with real totals
	if kind == remindersvc.PayloadTypeMonthlySummary || a.forward == nil {
		return
	}
	a.forward(n)
}

// Tapped implements notify.Callback for opened notifications
func (a *deliveryAdapter) Tapped(n notify.Notification) {
	if id := n.Payload.String(remindersvc.DataSubscriptionID); id != "" {
		a.logger.Info("open subscription", slog.String("subscription_id", id))
	}
}
