// Package mq holds the payload contracts shared by publishers and consumers.
package mq

import "time"

// RoutingKeyReminderSent is published once per successfully delivered reminder.
const RoutingKeyReminderSent = "reminder.sent"

// ReminderSentPayload fans out into a notification row and a realtime nudge
// on the recipient's channel.
type ReminderSentPayload struct {
	UserID       string    `json:"user_id"`
	EventID      string    `json:"event_id"`
	ReminderType string    `json:"reminder_type"`
	EventTitle   string    `json:"event_title"`
	StartTime    time.Time `json:"start_time"`
}
