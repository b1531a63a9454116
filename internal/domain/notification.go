package domain

import "time"

// NotificationType classifies a stored notification.
type NotificationType string

const (
	NotificationVoiceCommandProcessed NotificationType = "voice_command_processed"
	NotificationVoiceCommandFailed    NotificationType = "voice_command_failed"
)

// NotificationPriority orders notifications for delivery.
type NotificationPriority string

const (
	NotificationPriorityMedium NotificationPriority = "medium"
	NotificationPriorityHigh   NotificationPriority = "high"
)

// Notification is a persisted user-facing alert. Delivery transports
// (email, push) live outside this service; rows here are the record.
type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	Priority  NotificationPriority
	Title     string
	Message   string
	DataJSON  string
	CreatedAt time.Time
}
