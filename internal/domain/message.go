package domain

import "time"

// Category is the closed set of message kinds the agent sends.
type Category string

const (
	// CategoryFlirty covers automated engagement messages.
	CategoryFlirty Category = "flirty"
	// CategoryUtility covers reminders and broadcasts.
	CategoryUtility Category = "utility"
)

// Priority of a utility message.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Channel is the delivery channel hint attached to a payload.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

// Message status values.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
)

// Payload is a ready-to-dispatch message. It is not persisted by the core;
// the host hands it to whatever delivers messages.
type Payload struct {
	UserID    string         `json:"user_id"`
	Category  Category       `json:"category"`
	Type      string         `json:"type"`
	Channel   Channel        `json:"channel"`
	Priority  Priority       `json:"priority"`
	Message   string         `json:"message"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata"`
}

// MessageLog is a sent message together with its observed outcome. The
// analytics engine reads it as the outcome record.
type MessageLog struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	Category    Category   `json:"category" db:"category"`
	Type        string     `json:"type" db:"type"`
	Channel     Channel    `json:"channel,omitempty" db:"channel"`
	Content     string     `json:"content" db:"content"`
	Status      string     `json:"status" db:"status"`
	SentAt      time.Time  `json:"sent_at" db:"sent_at"`
	Opened      bool       `json:"opened" db:"opened"`
	OpenedAt    *time.Time `json:"opened_at,omitempty" db:"opened_at"`
	Clicked     bool       `json:"clicked" db:"clicked"`
	ClickedAt   *time.Time `json:"clicked_at,omitempty" db:"clicked_at"`
	Reactivated bool       `json:"reactivated" db:"reactivated"`
}

// MarkOpened records an open. An earlier open time is never overwritten.
func (m *MessageLog) MarkOpened(at time.Time) {
	if m.Opened && m.OpenedAt != nil {
		return
	}
	m.Opened = true
	m.OpenedAt = &at
}

// MarkClicked records a click. A click implies an open.
func (m *MessageLog) MarkClicked(at time.Time) {
	m.MarkOpened(at)
	if m.Clicked && m.ClickedAt != nil {
		return
	}
	m.Clicked = true
	m.ClickedAt = &at
}
