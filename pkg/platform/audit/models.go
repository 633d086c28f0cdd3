// Package audit captures compliance-relevant actions as append-only events.
// Domain services emit events; stores persist them and an optional Kafka
// publisher fans them out for long-retention storage.
package audit

import (
	"context"
	"time"
)

// Action names key compliance actions. DBS and reference lifecycle events
// carry regulatory significance and are never sampled.
type Action string

const (
	ActionApplicationSubmitted Action = "application_submitted"
	ActionApplicationApproved  Action = "application_approved"
	ActionApplicationRejected  Action = "application_rejected"
	ActionEmployeeDeleted      Action = "employee_deleted"
	ActionDBSRequested         Action = "dbs_requested"
	ActionDBSReminderSent      Action = "dbs_reminder_sent"
	ActionDBSStatusUpdated     Action = "dbs_status_updated"
	ActionFormSubmitted        Action = "household_form_submitted"
	ActionFormResubmitted      Action = "household_form_resubmitted"
	ActionReferenceCreated     Action = "reference_request_created"
	ActionReferenceCompleted   Action = "reference_completed"
	ActionBirthdayAlertSent    Action = "birthday_alert_sent"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	// Subject identifies the entity acted on (member, application,
	// reference request) as a string ID.
	Subject string `json:"subject"`
	// Actor is the admin who performed the action, empty for
	// member/referee self-service and scheduled runs.
	Actor string `json:"actor,omitempty"`
	// Recipient is the email address notified, when the action involved
	// a notification.
	Recipient string `json:"recipient,omitempty"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
