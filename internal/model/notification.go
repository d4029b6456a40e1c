package model

import "time"

// NotificationType tells the client which page a notification links to.
type NotificationType string

const (
	NotificationEvent  NotificationType = "event"
	NotificationNews   NotificationType = "news"
	NotificationSystem NotificationType = "system"
)

// Notification is a notifications row, owned by one user.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	RelatedID *string          `json:"related_id,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
