// Package notify defines the local notification facility the reminder scheduler
// talks to, and an in-process implementation backed by robfig/cron.
package notify

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPermissionDenied = errors.New("notification permission denied")
	ErrPastTrigger      = errors.New("trigger time is not in the future")
	ErrHandleNotFound   = errors.New("scheduled notification not found")
)

// Permission is the user's answer to the notification prompt.
type Permission string

const (
	PermissionUndetermined Permission = "undetermined"
	PermissionGranted      Permission = "granted"
	PermissionDenied       Permission = "denied"
)

// Handle identifies a scheduled trigger. Handles are opaque to callers.
type Handle string

// Payload is the content delivered with a notification. Data carries routing
// fields such as the subscription id the UI navigates to on tap.
type Payload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// String returns Data[key] when it holds a string.
func (p Payload) String(key string) string {
	if p.Data == nil {
		return ""
	}
	v, _ := p.Data[key].(string)
	return v
}

// Scheduled describes a trigger that has not fired yet.
type Scheduled struct {
	Handle    Handle    `json:"handle"`
	Payload   Payload   `json:"payload"`
	Trigger   time.Time `json:"trigger"`
	Recurring bool      `json:"recurring"`
}

// Notification is a fired trigger.
type Notification struct {
	Handle      Handle    `json:"handle"`
	Payload     Payload   `json:"payload"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

// Callback receives delivered or tapped notifications.
type Callback func(Notification)

// Facility is the operating-system style notification service: it accepts
// one-shot triggers and fires them at (or after) their time.
type Facility interface {
	RequestPermission(ctx context.Context) (Permission, error)
	ScheduleOneShot(ctx context.Context, payload Payload, at time.Time) (Handle, error)
	ListScheduled(ctx context.Context) ([]Scheduled, error)
	Cancel(ctx context.Context, handle Handle) error
	OnDelivered(fn Callback)
	OnTapped(fn Callback)
}
