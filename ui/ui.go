// Package ui defines the user-facing surfaces the session drives:
// notifications, dialogs, and navigation. The terminal implementation renders
// them with lipgloss for headless deployments.
package ui

import (
	"context"
	"time"
)

// DefaultNotificationTime is how long a notification stays visible when the
// caller does not say otherwise.
const DefaultNotificationTime = 3 * time.Second

// Notifier shows localized messages to the user.
type Notifier interface {
	// ShowNotification displays a passive message for the given duration.
	// A zero duration selects DefaultNotificationTime.
	ShowNotification(ctx context.Context, msg string, d time.Duration)
	ShowError(ctx context.Context, heading, msg string)
	// ShowOKDialog blocks until the dialog is dismissed.
	ShowOKDialog(ctx context.Context, heading, msg string)
}

// Navigator moves the frontend to another location.
type Navigator interface {
	ContainerUpdate(ctx context.Context, path string, replace bool)
}
