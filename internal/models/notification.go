// internal/models/notification.go
package models

import "time"

// Notification event types emitted around the automation lifecycle.
const (
	EventRecordCreated       = "record.created"
	EventRecordStatusChanged = "record.status_changed"
)

// NotificationEvent is the payload handed to notifiers. Delivery is best effort.
type NotificationEvent struct {
	Type             string            `json:"type"`
	SubmissionID     string            `json:"submissionId"`
	JobID            string            `json:"jobId,omitempty"`
	RegistrationType string            `json:"registrationType"`
	Status           ApplicationStatus `json:"status"`
	Message          string            `json:"message,omitempty"`
	OccurredAt       time.Time         `json:"occurredAt"`
}
