// Package reminder derives payment reminders from the ledger's read model and
// hands them to a Notifier for delivery. It never mutates group state.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dapoalex/AjoPool/internal/ledger"
	"github.com/dapoalex/AjoPool/internal/models"
	"github.com/dapoalex/AjoPool/internal/schedule"
	"github.com/dapoalex/AjoPool/pkg/logger"
)

// Urgency tier of a reminder.
type Urgency string

const (
	UrgencyOverdue  Urgency = "overdue"  // past the due date
	UrgencyDue      Urgency = "due"      // within one day of the due date
	UrgencyUpcoming Urgency = "upcoming" // everything earlier
)

// Reminder is one member's pending obligation, ready for delivery.
type Reminder struct {
	GroupID     string    `json:"group_id"`
	GroupName   string    `json:"group_name"`
	CycleNumber int       `json:"cycle_number"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Amount      int64     `json:"amount"`
	DueDate     time.Time `json:"due_date"`
	DaysOverdue int       `json:"days_overdue"`
	Urgency     Urgency   `json:"urgency"`
}

// Notifier delivers a reminder to one member. Implementations decide the
// transport; a Kafka publisher and a log-only notifier ship with the service.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// Marker suppresses repeat deliveries across scheduled runs. Mark returns
// false when an equivalent reminder was already sent within the TTL.
type Marker interface {
	Mark(ctx context.Context, r Reminder) (bool, error)
}

// DispatchReport aggregates one reminder run.
type DispatchReport struct {
	Sent      int        `json:"sent"`
	Failed    int        `json:"failed"`
	Skipped   int        `json:"skipped"`
	Reminders []Reminder `json:"reminders"`
}

// Scheduler builds and dispatches reminders for a group's current cycle.
type Scheduler struct {
	ledger   *ledger.Ledger
	notifier Notifier
	marks    Marker // optional
	log      *logger.Logger
	now      func() time.Time
}

func New(l *ledger.Ledger, n Notifier, log *logger.Logger, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{ledger: l, notifier: n, log: log, now: now}
}

// WithMarker enables cross-run de-duplication.
func (s *Scheduler) WithMarker(m Marker) *Scheduler {
	s.marks = m
	return s
}

// BuildReminders classifies every unpaid member of the group's current cycle
// into an urgency tier. It sends nothing.
func (s *Scheduler) BuildReminders(ctx context.Context, group *models.Group) ([]Reminder, error) {
	status, err := s.ledger.PaymentStatus(ctx, group, group.CurrentCycle)
	if err != nil {
		return nil, fmt.Errorf("reminder: payment status for group %s: %w", group.ID, err)
	}

	now := s.now()
	unpaid := make([]ledger.MemberStanding, 0, len(status.PendingMembers)+len(status.OverdueMembers))
	unpaid = append(unpaid, status.PendingMembers...)
	unpaid = append(unpaid, status.OverdueMembers...)

	reminders := make([]Reminder, 0, len(unpaid))
	for _, m := range unpaid {
		reminders = append(reminders, Reminder{
			GroupID:     group.ID,
			GroupName:   group.Name,
			CycleNumber: group.CurrentCycle,
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			Amount:      m.Amount,
			DueDate:     m.DueDate,
			DaysOverdue: max(schedule.DaysOverdue(m.DueDate, now), 0),
			Urgency:     classify(m.DueDate, now),
		})
	}
	return reminders, nil
}

// Send builds and delivers reminders, one goroutine per member. A failed
// delivery never aborts the others; the report carries the counts.
func (s *Scheduler) Send(ctx context.Context, group *models.Group) (*DispatchReport, error) {
	reminders, err := s.BuildReminders(ctx, group)
	if err != nil {
		return nil, err
	}

	report := &DispatchReport{Reminders: reminders}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, r := range reminders {
		wg.Add(1)
		go func(r Reminder) {
			defer wg.Done()

			if s.marks != nil {
				fresh, err := s.marks.Mark(ctx, r)
				if err != nil {
					s.log.WarnContext(ctx, "reminder mark failed, sending anyway",
						zap.String("group_id", r.GroupID), zap.String("user_id", r.UserID), zap.Error(err))
				} else if !fresh {
					mu.Lock()
					report.Skipped++
					mu.Unlock()
					return
				}
			}

			if err := s.notifier.Notify(ctx, r); err != nil {
				s.log.ErrorContext(ctx, "reminder delivery failed",
					zap.String("group_id", r.GroupID), zap.String("user_id", r.UserID),
					zap.String("urgency", string(r.Urgency)), zap.Error(err))
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return
			}
			mu.Lock()
			report.Sent++
			mu.Unlock()
		}(r)
	}
	wg.Wait()

	s.log.InfoContext(ctx, "reminder run finished",
		zap.String("group_id", group.ID), zap.Int("cycle", group.CurrentCycle),
		zap.Int("sent", report.Sent), zap.Int("failed", report.Failed), zap.Int("skipped", report.Skipped))
	return report, nil
}

// classify picks the urgency tier: overdue past the due date, due within one
// calendar day either side, upcoming otherwise.
func classify(dueDate, now time.Time) Urgency {
	overdue := schedule.DaysOverdue(dueDate, now)
	switch {
	case overdue > 0:
		return UrgencyOverdue
	case overdue >= -1:
		return UrgencyDue
	default:
		return UrgencyUpcoming
	}
}
