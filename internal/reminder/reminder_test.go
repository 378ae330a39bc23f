package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapoalex/AjoPool/internal/ledger"
	"github.com/dapoalex/AjoPool/internal/models"
	"github.com/dapoalex/AjoPool/internal/store/memstore"
	"github.com/dapoalex/AjoPool/pkg/logger"
)

var testNow = time.Date(2024, time.June, 20, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	sent   []Reminder
	failFor map[string]error
}

func (n *recordingNotifier) Notify(ctx context.Context, r Reminder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err, ok := n.failFor[r.UserID]; ok {
		return err
	}
	n.sent = append(n.sent, r)
	return nil
}

type staticMarker struct {
	fresh map[string]bool
}

func (m *staticMarker) Mark(ctx context.Context, r Reminder) (bool, error) {
	fresh, ok := m.fresh[r.UserID]
	if !ok {
		return true, nil
	}
	return fresh, nil
}

func seed(t *testing.T, dueDates map[string]time.Time, paid map[string]bool) (*memstore.Store, *models.Group) {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()

	group := &models.Group{
		ID:                 "group-1",
		Name:               "Okada Riders Esusu",
		AdminID:            "admin",
		ContributionAmount: 5000,
		Frequency:          models.FrequencyMonthly,
		Status:             models.GroupStatusActive,
		StartDate:          time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
		CurrentCycle:       1,
		TotalCycles:        len(dueDates),
	}
	_, err := st.Create(ctx, models.CollectionGroups, group)
	require.NoError(t, err)

	pos := 0
	for userID, due := range dueDates {
		_, err := st.Create(ctx, models.CollectionGroupMembers, &models.GroupMember{
			GroupID:     group.ID,
			UserID:      userID,
			DisplayName: userID,
			JoinedAt:    group.StartDate,
			Position:    pos,
			Active:      true,
		})
		require.NoError(t, err)
		pos++

		c := &models.Contribution{
			GroupID:     group.ID,
			CycleNumber: 1,
			UserID:      userID,
			Amount:      group.ContributionAmount,
			DueDate:     due,
			Status:      models.ContributionPending,
		}
		if paid[userID] {
			c.Status = models.ContributionPaid
			p := testNow
			c.PaidDate = &p
		}
		_, err = st.Create(ctx, models.CollectionContributions, c)
		require.NoError(t, err)
	}
	return st, group
}

func newScheduler(st *memstore.Store, n Notifier) *Scheduler {
	clock := func() time.Time { return testNow }
	return New(ledger.New(st, clock), n, logger.NewNop(), clock)
}

func TestBuildRemindersClassifiesUrgency(t *testing.T) {
	st, group := seed(t, map[string]time.Time{
		"late-user":     testNow.AddDate(0, 0, -3), // overdue
		"due-today":     testNow,                   // due
		"due-tomorrow":  testNow.AddDate(0, 0, 1),  // due
		"relaxed-user":  testNow.AddDate(0, 0, 6),  // upcoming
		"paid-user":     testNow,
	}, map[string]bool{"paid-user": true})

	s := newScheduler(st, &recordingNotifier{})
	reminders, err := s.BuildReminders(context.Background(), group)
	require.NoError(t, err)
	require.Len(t, reminders, 4) // paid member gets no reminder

	byUser := make(map[string]Reminder, len(reminders))
	for _, r := range reminders {
		byUser[r.UserID] = r
	}

	assert.Equal(t, UrgencyOverdue, byUser["late-user"].Urgency)
	assert.Equal(t, 3, byUser["late-user"].DaysOverdue)
	assert.Equal(t, UrgencyDue, byUser["due-today"].Urgency)
	assert.Equal(t, UrgencyDue, byUser["due-tomorrow"].Urgency)
	assert.Equal(t, UrgencyUpcoming, byUser["relaxed-user"].Urgency)
	assert.Equal(t, 0, byUser["relaxed-user"].DaysOverdue)
}

func TestSendIsolatesPerMemberFailures(t *testing.T) {
	st, group := seed(t, map[string]time.Time{
		"a-user": testNow,
		"b-user": testNow,
		"c-user": testNow,
	}, nil)

	notifier := &recordingNotifier{failFor: map[string]error{"b-user": errors.New("push token expired")}}
	s := newScheduler(st, notifier)

	report, err := s.Send(context.Background(), group)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 1, report.Failed)
	assert.Len(t, report.Reminders, 3)
	assert.Len(t, notifier.sent, 2)
}

func TestSendSkipsAlreadyMarkedReminders(t *testing.T) {
	st, group := seed(t, map[string]time.Time{
		"a-user": testNow,
		"b-user": testNow,
	}, nil)

	notifier := &recordingNotifier{}
	s := newScheduler(st, notifier).WithMarker(&staticMarker{fresh: map[string]bool{"a-user": false}})

	report, err := s.Send(context.Background(), group)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Failed)
}
