package service

import (
	"errors"
	"fmt"
)

// ErrNotification matches every *NotificationError via errors.Is.
var ErrNotification = errors.New("notification error")

// NotificationError reports a permission denial or a failed submit/cancel call.
type NotificationError struct {
	Op             string
	SubscriptionID string
	Handle         string
	Err            error
}

func (e *NotificationError) Error() string {
	msg := "reminders." + e.Op
	if e.SubscriptionID != "" {
		msg += fmt.Sprintf(": subscription %s", e.SubscriptionID)
	}
	if e.Handle != "" {
		msg += fmt.Sprintf(": handle %s", e.Handle)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

func (e *NotificationError) Is(target error) bool { return target == ErrNotification }
