package cache

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/dapoalex/AjoPool/internal/reminder"
)

// ReminderMarks suppresses duplicate reminder deliveries across scheduled
// runs. A key exists per (group, cycle, member, urgency) for the TTL, so a
// member is reminded again only when their urgency tier escalates or the TTL
// lapses.
type ReminderMarks struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewReminderMarks(rdb *redis.Client, ttl time.Duration) *ReminderMarks {
	return &ReminderMarks{rdb: rdb, ttl: ttl}
}

// Mark claims the reminder slot. It returns false when an equivalent reminder
// was already delivered within the TTL.
func (m *ReminderMarks) Mark(ctx context.Context, r reminder.Reminder) (bool, error) {
	key := fmt.Sprintf("reminder:%s:%d:%s:%s", r.GroupID, r.CycleNumber, r.UserID, r.Urgency)
	ok, err := m.rdb.SetNX(ctx, key, "1", m.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache: mark reminder %s: %w", key, err)
	}
	return ok, nil
}
