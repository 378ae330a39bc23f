// Package ledger aggregates contribution records into per-cycle completion
// statistics. It is read-only and always queries the store fresh so the cycle
// engine's 100%-paid gate sees every write issued before it runs.
package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dapoalex/AjoPool/internal/models"
	"github.com/dapoalex/AjoPool/internal/schedule"
	"github.com/dapoalex/AjoPool/internal/store"
)

// MemberStanding is one member's position against a cycle's contribution.
type MemberStanding struct {
	UserID        string    `json:"user_id"`
	DisplayName   string    `json:"display_name"`
	Amount        int64     `json:"amount"`
	DueDate       time.Time `json:"due_date"`
	DaysOverdue   int       `json:"days_overdue,omitempty"`
	MissingRecord bool      `json:"missing_record,omitempty"`
}

// PaymentStatus is the completion picture for one group cycle. Every active
// member lands in exactly one bucket; a member with no contribution record is
// reported pending with MissingRecord set, never dropped.
type PaymentStatus struct {
	GroupID           string           `json:"group_id"`
	CycleNumber       int              `json:"cycle_number"`
	ExpectedTotal     int64            `json:"expected_total"`
	PaidTotal         int64            `json:"paid_total"`
	PendingTotal      int64            `json:"pending_total"`
	CompletionPercent int              `json:"completion_percent"`
	PaidMembers       []MemberStanding `json:"paid_members"`
	PendingMembers    []MemberStanding `json:"pending_members"`
	OverdueMembers    []MemberStanding `json:"overdue_members"`
}

// Complete reports whether every expected contribution is paid.
func (p *PaymentStatus) Complete() bool {
	return p.CompletionPercent >= 100
}

// Ledger reads contribution state through the store port.
type Ledger struct {
	store store.Store
	now   func() time.Time
}

func New(st store.Store, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: st, now: now}
}

// PaymentStatus classifies every active member of the group against the given
// cycle. Expected = active members x contribution amount; paid sums paid
// contributions plus late penalties; completion is round(paid/expected*100),
// zero when nothing is expected.
func (l *Ledger) PaymentStatus(ctx context.Context, group *models.Group, cycleNumber int) (*PaymentStatus, error) {
	var members []models.GroupMember
	err := l.store.Query(ctx, models.CollectionGroupMembers,
		[]store.Filter{
			store.Eq("group_id", group.ID),
			store.Eq("active", true),
		},
		store.Options{OrderBy: "joined_at"},
		&members,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: load members for group %s: %w", group.ID, err)
	}

	var contributions []models.Contribution
	err = l.store.Query(ctx, models.CollectionContributions,
		[]store.Filter{
			store.Eq("group_id", group.ID),
			store.Eq("cycle_number", cycleNumber),
		},
		store.Options{},
		&contributions,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: load contributions for group %s cycle %d: %w", group.ID, cycleNumber, err)
	}

	byUser := make(map[string]*models.Contribution, len(contributions))
	for i := range contributions {
		byUser[contributions[i].UserID] = &contributions[i]
	}

	window, err := schedule.CycleDates(group.StartDate, group.Frequency, cycleNumber)
	if err != nil {
		return nil, fmt.Errorf("ledger: cycle window: %w", err)
	}
	now := l.now()

	status := &PaymentStatus{
		GroupID:       group.ID,
		CycleNumber:   cycleNumber,
		ExpectedTotal: int64(len(members)) * group.ContributionAmount,
	}

	for _, m := range members {
		c, ok := byUser[m.UserID]
		if !ok {
			status.PendingMembers = append(status.PendingMembers, MemberStanding{
				UserID:        m.UserID,
				DisplayName:   m.DisplayName,
				Amount:        group.ContributionAmount,
				DueDate:       window.PaymentDue,
				MissingRecord: true,
			})
			status.PendingTotal += group.ContributionAmount
			continue
		}

		standing := MemberStanding{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			Amount:      c.Amount,
			DueDate:     c.DueDate,
		}
		switch c.Status {
		case models.ContributionPaid:
			status.PaidTotal += c.PaidValue()
			status.PaidMembers = append(status.PaidMembers, standing)
		case models.ContributionOverdue:
			standing.DaysOverdue = schedule.DaysOverdue(c.DueDate, now)
			status.PendingTotal += c.Amount
			status.OverdueMembers = append(status.OverdueMembers, standing)
		default:
			if d := schedule.DaysOverdue(c.DueDate, now); d > 0 {
				standing.DaysOverdue = d
			}
			status.PendingTotal += c.Amount
			status.PendingMembers = append(status.PendingMembers, standing)
		}
	}

	status.CompletionPercent = Percent(status.PaidTotal, status.ExpectedTotal)
	return status, nil
}

// Percent is round(paid/expected*100), defined as 0 for an empty expectation.
func Percent(paid, expected int64) int {
	if expected <= 0 {
		return 0
	}
	return int(math.Round(float64(paid) / float64(expected) * 100))
}
