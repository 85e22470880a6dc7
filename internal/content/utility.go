package content

import (
	"fmt"
	"sort"
	"time"

	"github.com/ignite/engagement-agent/internal/domain"
)

// ReminderConfig describes one reminder type.
type ReminderConfig struct {
	Type     string
	Template *Template
	Priority domain.Priority
	Cooldown time.Duration
}

// BroadcastConfig describes one broadcast type.
type BroadcastConfig struct {
	Type     string
	Template *Template
	Priority domain.Priority
}

type reminderSource struct {
	template string
	priority domain.Priority
	cooldown time.Duration
}

var defaultReminders = map[string]reminderSource{
	"appointment": {
		template: "Reminder: Your appointment is scheduled on {{ date }} at {{ time }}.",
		priority: domain.PriorityHigh,
		cooldown: 12 * time.Hour,
	},
	"payment_due": {
		template: "Reminder: Your payment of ₹{{ amount }} is due on {{ date }}.",
		priority: domain.PriorityHigh,
		cooldown: 24 * time.Hour,
	},
	"subscription_expiry": {
		template: "Your subscription will expire on {{ date }}. Renew to continue services.",
		priority: domain.PriorityMedium,
		cooldown: 48 * time.Hour,
	},
	"cart_abandonment": {
		template: "You left items in your cart. Complete your purchase before they sell out.",
		priority: domain.PriorityLow,
		cooldown: 72 * time.Hour,
	},
}

var defaultBroadcasts = map[string]struct {
	template string
	priority domain.Priority
}{
	"system_update":   {"We've updated our system to improve your experience.", domain.PriorityMedium},
	"policy_update":   {"Our privacy policy has been updated. Please review the latest version.", domain.PriorityHigh},
	"maintenance":     {"Scheduled maintenance on {{ date }} from {{ start_time }} to {{ end_time }}.", domain.PriorityHigh},
	"feature_release": {"New feature released: {{ feature_name }}. Update your app to explore.", domain.PriorityMedium},
}

// ReminderCatalog is the fixed set of reminder types.
type ReminderCatalog struct {
	byType map[string]ReminderConfig
}

// NewReminderCatalog compiles the default reminder templates.
func NewReminderCatalog(engine *Engine) (*ReminderCatalog, error) {
	c := &ReminderCatalog{byType: make(map[string]ReminderConfig, len(defaultReminders))}
	for name, src := range defaultReminders {
		tpl, err := engine.Compile(src.template)
		if err != nil {
			return nil, fmt.Errorf("reminder %s: %w", name, err)
		}
		c.byType[name] = ReminderConfig{Type: name, Template: tpl, Priority: src.priority, Cooldown: src.cooldown}
	}
	return c, nil
}

// Lookup returns the config for a reminder type.
func (c *ReminderCatalog) Lookup(reminderType string) (ReminderConfig, bool) {
	cfg, ok := c.byType[reminderType]
	return cfg, ok
}

// Types lists the known reminder types in sorted order.
func (c *ReminderCatalog) Types() []string {
	return sortedKeys(c.byType)
}

// BroadcastCatalog is the fixed set of broadcast types.
type BroadcastCatalog struct {
	byType map[string]BroadcastConfig
}

// NewBroadcastCatalog compiles the default broadcast templates.
func NewBroadcastCatalog(engine *Engine) (*BroadcastCatalog, error) {
	c := &BroadcastCatalog{byType: make(map[string]BroadcastConfig, len(defaultBroadcasts))}
	for name, src := range defaultBroadcasts {
		tpl, err := engine.Compile(src.template)
		if err != nil {
			return nil, fmt.Errorf("broadcast %s: %w", name, err)
		}
		c.byType[name] = BroadcastConfig{Type: name, Template: tpl, Priority: src.priority}
	}
	return c, nil
}

// Lookup returns the config for a broadcast type.
func (c *BroadcastCatalog) Lookup(broadcastType string) (BroadcastConfig, bool) {
	cfg, ok := c.byType[broadcastType]
	return cfg, ok
}

// Types lists the known broadcast types in sorted order.
func (c *BroadcastCatalog) Types() []string {
	return sortedKeys(c.byType)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
