package model

import "time"

// ReminderType is the lead time of a scheduled event reminder.
type ReminderType string

const (
	ReminderOneDay  ReminderType = "1_day"
	ReminderOneHour ReminderType = "1_hour"
)

// Offset is how far before the event start the reminder is due.
func (t ReminderType) Offset() time.Duration {
	switch t {
	case ReminderOneDay:
		return 24 * time.Hour
	case ReminderOneHour:
		return time.Hour
	}
	return 0
}

// ReminderRow is an event_reminders row. One opt-in creates two rows, one per
// reminder type; (user_id, event_id, reminder_type) is unique.
type ReminderRow struct {
	ID           string
	UserID       string
	EventID      string
	ReminderType ReminderType
	Sent         bool
	SentAt       *time.Time
	ProcessingAt *time.Time // claim marker; non-null means locked
	LastError    *string
	CreatedAt    time.Time
}

// ClaimedReminder is what the atomic claim returns: the row identity plus the
// denormalized fields needed to render the email without further queries.
type ClaimedReminder struct {
	ID           string
	UserID       string
	EventID      string
	ReminderType ReminderType
	Email        string
	EventTitle   string
	StartTime    time.Time
	Location     string
}
