// Package engine orchestrates the cycle lifecycle of a rotating savings
// group: opening cycles, recording contributions, advancing cycles, and
// moving payouts through their states. All persistence goes through the
// store port; cycle advancement is guarded by a compare-and-swap on the
// group's cycle number plus the store's payout uniqueness constraint.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dapoalex/AjoPool/config"
	"github.com/dapoalex/AjoPool/internal/ledger"
	"github.com/dapoalex/AjoPool/internal/models"
	"github.com/dapoalex/AjoPool/internal/reminder"
	"github.com/dapoalex/AjoPool/internal/rotation"
	"github.com/dapoalex/AjoPool/internal/schedule"
	"github.com/dapoalex/AjoPool/internal/store"
	"github.com/dapoalex/AjoPool/internal/validation"
	"github.com/dapoalex/AjoPool/pkg/logger"
)

// Publisher emits cycle events to a message topic. A nil publisher disables
// event emission without affecting correctness.
type Publisher interface {
	Publish(topic string, key string, message any) error
}

// Event types published to the event topic.
const (
	EventCycleOpened          = "cycle_opened"
	EventContributionRecorded = "contribution_recorded"
	EventCycleAdvanced        = "cycle_advanced"
	EventGroupCompleted       = "group_completed"
	EventPayoutProcessing     = "payout_processing"
	EventPayoutCompleted      = "payout_completed"
	EventPayoutFailed         = "payout_failed"
)

// Event is the payload published for every state change worth broadcasting.
type Event struct {
	Type        string    `json:"type"`
	GroupID     string    `json:"group_id"`
	CycleNumber int       `json:"cycle_number"`
	UserID      string    `json:"user_id,omitempty"`
	Amount      int64     `json:"amount,omitempty"`
	At          time.Time `json:"at"`
}

// Engine is the orchestrator. Construct with New; all dependencies are
// explicit, nothing reaches for globals.
type Engine struct {
	store          store.Store
	ledger         *ledger.Ledger
	validator      *validation.Validator
	reminders      *reminder.Scheduler
	rules          config.RulesConfig
	events         Publisher
	eventTopic     string
	log            *logger.Logger
	now            func() time.Time
	advanceRetries int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(log *logger.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithPublisher enables event emission to the given topic.
func WithPublisher(p Publisher, topic string) Option {
	return func(e *Engine) {
		e.events = p
		e.eventTopic = topic
	}
}

// WithReminders wires the reminder scheduler behind SendPaymentReminders.
func WithReminders(s *reminder.Scheduler) Option {
	return func(e *Engine) { e.reminders = s }
}

func New(st store.Store, ldg *ledger.Ledger, val *validation.Validator, rules config.RulesConfig, opts ...Option) *Engine {
	e := &Engine{
		store:          st,
		ledger:         ldg,
		validator:      val,
		rules:          rules,
		log:            logger.NewNop(),
		now:            time.Now,
		advanceRetries: rules.AdvanceRetries,
	}
	if e.advanceRetries < 1 {
		e.advanceRetries = 1
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RecipientInfo identifies a rotation recipient.
type RecipientInfo struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// CycleResult is the outcome of a successful ProcessCycle.
type CycleResult struct {
	GroupID        string         `json:"group_id"`
	ProcessedCycle int            `json:"processed_cycle"`
	NewCycle       int            `json:"new_cycle"`
	Completed      bool           `json:"completed"`
	Recipient      RecipientInfo  `json:"recipient"`
	Payout         *models.Payout `json:"payout"`
	Warnings       []string       `json:"warnings,omitempty"`
}

// ProcessCycle advances the group from its current cycle to the next one.
// Preconditions are checked in order: admin authorization, group active,
// 100% of contributions paid, a resolvable recipient. The payout creation and
// the cycle advance commit as one atomic batch; a lost compare-and-swap on
// the cycle number is retried a bounded number of times before surfacing
// ErrConcurrentModification.
func (e *Engine) ProcessCycle(ctx context.Context, groupID, adminID string) (*CycleResult, error) {
	for attempt := 1; ; attempt++ {
		result, err := e.processCycleOnce(ctx, groupID, adminID)
		if errors.Is(err, store.ErrPreconditionFailed) {
			if attempt >= e.advanceRetries {
				return nil, ErrConcurrentModification
			}
			e.log.WarnContext(ctx, "cycle advance lost compare-and-swap, retrying",
				zap.String("group_id", groupID), zap.Int("attempt", attempt))
			continue
		}
		return result, err
	}
}

func (e *Engine) processCycleOnce(ctx context.Context, groupID, adminID string) (*CycleResult, error) {
	group, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if adminID != group.AdminID {
		return nil, ErrUnauthorized
	}
	if !group.IsActive() {
		return nil, ErrInactiveGroup
	}

	cycle := group.CurrentCycle
	status, err := e.ledger.PaymentStatus(ctx, group, cycle)
	if err != nil {
		return nil, err
	}
	if !status.Complete() {
		return nil, &IncompletePaymentsError{Percent: status.CompletionPercent}
	}

	ordered, err := e.rotationOrder(ctx, groupID)
	if err != nil {
		return nil, err
	}
	recipient, err := rotation.CurrentRecipient(ordered, cycle)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRecipient, err)
	}

	var warnings []string
	if v := e.validator.ValidateCycleProcessing(group, adminID, status.CompletionPercent); v.Valid {
		warnings = append(warnings, v.Warnings...)
	}
	if v := e.validator.ValidatePayoutEligibility(group, &recipient, status.PaidTotal, status.ExpectedTotal); v.Valid {
		warnings = append(warnings, v.Warnings...)
	}

	window, err := schedule.CycleDates(group.StartDate, group.Frequency, cycle)
	if err != nil {
		return nil, err
	}

	gross := status.PaidTotal
	fee := gross * e.rules.ProcessingFeeBps / 10000
	payout := &models.Payout{
		GroupID:       groupID,
		CycleNumber:   cycle,
		RecipientID:   recipient.UserID,
		GrossAmount:   gross,
		ProcessingFee: fee,
		NetAmount:     gross - fee,
		Status:        models.PayoutScheduled,
		ScheduledAt:   window.PayoutDate,
		MaxRetries:    e.rules.PayoutMaxRetries,
	}

	nextCycle := cycle + 1
	completed := nextCycle > group.TotalCycles
	patch := map[string]any{"current_cycle": nextCycle}
	if completed {
		patch["status"] = models.GroupStatusCompleted
		patch["end_date"] = e.now()
	}

	err = e.store.BatchWrite(ctx, []store.WriteOp{
		store.CreateOp(models.CollectionPayouts, payout),
		store.UpdateOp(models.CollectionGroups, groupID, patch,
			store.Precondition{Field: "current_cycle", Equals: cycle}),
	})
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return nil, ErrDuplicatePayout
	case err != nil:
		return nil, err
	}

	e.log.InfoContext(ctx, "cycle processed",
		zap.String("group_id", groupID), zap.Int("cycle", cycle),
		zap.String("recipient_id", recipient.UserID), zap.Int64("gross", gross),
		zap.Bool("completed", completed))

	e.publish(ctx, Event{Type: EventCycleAdvanced, GroupID: groupID, CycleNumber: cycle,
		UserID: recipient.UserID, Amount: payout.NetAmount, At: e.now()})
	if completed {
		e.publish(ctx, Event{Type: EventGroupCompleted, GroupID: groupID, CycleNumber: cycle, At: e.now()})
	}

	return &CycleResult{
		GroupID:        groupID,
		ProcessedCycle: cycle,
		NewCycle:       nextCycle,
		Completed:      completed,
		Recipient:      RecipientInfo{UserID: recipient.UserID, DisplayName: recipient.DisplayName},
		Payout:         payout,
		Warnings:       warnings,
	}, nil
}

// TurnOrder is the rotation view for a group.
type TurnOrder struct {
	GroupID              string          `json:"group_id"`
	CycleNumber          int             `json:"cycle_number"`
	TotalCycles          int             `json:"total_cycles"`
	CycleProgressPercent int             `json:"cycle_progress_percent"`
	CurrentRecipient     RecipientInfo   `json:"current_recipient"`
	NextRecipient        *RecipientInfo  `json:"next_recipient,omitempty"`
	Order                []RecipientInfo `json:"order"`
}

// CalculateTurnOrder resolves the current and next recipients and the
// progress through the rotation. Progress counts completed cycles, so a
// group at cycle 1 of 4 reports 0%.
func (e *Engine) CalculateTurnOrder(ctx context.Context, groupID string) (*TurnOrder, error) {
	group, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	ordered, err := e.rotationOrder(ctx, groupID)
	if err != nil {
		return nil, err
	}

	current, err := rotation.CurrentRecipient(ordered, group.CurrentCycle)
	if err != nil {
		return nil, err
	}

	result := &TurnOrder{
		GroupID:              groupID,
		CycleNumber:          group.CurrentCycle,
		TotalCycles:          group.TotalCycles,
		CycleProgressPercent: progressPercent(group.CurrentCycle, group.TotalCycles),
		CurrentRecipient:     RecipientInfo{UserID: current.UserID, DisplayName: current.DisplayName},
	}
	for _, m := range ordered {
		result.Order = append(result.Order, RecipientInfo{UserID: m.UserID, DisplayName: m.DisplayName})
	}
	if next, ok, err := rotation.NextRecipient(ordered, group.CurrentCycle); err == nil && ok {
		result.NextRecipient = &RecipientInfo{UserID: next.UserID, DisplayName: next.DisplayName}
	}
	return result, nil
}

func progressPercent(currentCycle, totalCycles int) int {
	if totalCycles <= 0 {
		return 0
	}
	completed := currentCycle - 1
	if completed > totalCycles {
		completed = totalCycles
	}
	if completed < 0 {
		completed = 0
	}
	return completed * 100 / totalCycles
}

// CheckPaymentStatus returns the ledger view for the given cycle, or for the
// group's current cycle when cycleNumber is zero. A just-completed group
// reports its final cycle.
func (e *Engine) CheckPaymentStatus(ctx context.Context, groupID string, cycleNumber int) (*ledger.PaymentStatus, error) {
	group, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if cycleNumber <= 0 {
		cycleNumber = group.CurrentCycle
		if cycleNumber > group.TotalCycles {
			cycleNumber = group.TotalCycles
		}
	}
	return e.ledger.PaymentStatus(ctx, group, cycleNumber)
}

// Completion is the pure derivation of a group's progress to completion.
type Completion struct {
	IsCompleted       bool `json:"is_completed"`
	CompletedCycles   int  `json:"completed_cycles"`
	RemainingCycles   int  `json:"remaining_cycles"`
	CompletionPercent int  `json:"completion_percent"`
}

// CompletionOf derives completion state from the group's counters alone.
func CompletionOf(group *models.Group) Completion {
	completed := group.CurrentCycle - 1
	if completed > group.TotalCycles {
		completed = group.TotalCycles
	}
	if completed < 0 {
		completed = 0
	}
	c := Completion{
		IsCompleted:     group.Status == models.GroupStatusCompleted || group.CurrentCycle > group.TotalCycles,
		CompletedCycles: completed,
		RemainingCycles: group.TotalCycles - completed,
	}
	if group.TotalCycles > 0 {
		c.CompletionPercent = completed * 100 / group.TotalCycles
	}
	return c
}

// ValidateGroupCompletion loads the group and derives its completion state.
func (e *Engine) ValidateGroupCompletion(ctx context.Context, groupID string) (*Completion, error) {
	group, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	c := CompletionOf(group)
	return &c, nil
}

// OpenCycle batch-creates a pending contribution for every active member that
// does not yet have a record for the group's current cycle. It is idempotent:
// reopening an already-open cycle creates nothing.
func (e *Engine) OpenCycle(ctx context.Context, groupID, adminID string) (int, error) {
	group, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return 0, err
	}
	if adminID != group.AdminID {
		return 0, ErrUnauthorized
	}
	if !group.IsActive() {
		return 0, ErrInactiveGroup
	}

	cycle := group.CurrentCycle
	window, err := schedule.CycleDates(group.StartDate, group.Frequency, cycle)
	if err != nil {
		return 0, err
	}

	var members []models.GroupMember
	err = e.store.Query(ctx, models.CollectionGroupMembers,
		[]store.Filter{store.Eq("group_id", groupID), store.Eq("active", true)},
		store.Options{OrderBy: "joined_at"}, &members)
	if err != nil {
		return 0, err
	}

	var existing []models.Contribution
	err = e.store.Query(ctx, models.CollectionContributions,
		[]store.Filter{store.Eq("group_id", groupID), store.Eq("cycle_number", cycle)},
		store.Options{}, &existing)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c.UserID] = true
	}

	var ops []store.WriteOp
	for _, m := range members {
		if have[m.UserID] {
			continue
		}
		ops = append(ops, store.CreateOp(models.CollectionContributions, &models.Contribution{
			GroupID:     groupID,
			CycleNumber: cycle,
			UserID:      m.UserID,
			Amount:      group.ContributionAmount,
			DueDate:     window.PaymentDue,
			Status:      models.ContributionPending,
		}))
	}
	if len(ops) == 0 {
		return 0, nil
	}
	if err := e.store.BatchWrite(ctx, ops); err != nil {
		return 0, err
	}

	e.log.InfoContext(ctx, "cycle opened",
		zap.String("group_id", groupID), zap.Int("cycle", cycle), zap.Int("contributions", len(ops)))
	e.publish(ctx, Event{Type: EventCycleOpened, GroupID: groupID, CycleNumber: cycle, At: e.now()})
	return len(ops), nil
}

// RecordContribution settles a pending contribution: flips it to paid, sets
// the paid date and late flag, and updates the member and group aggregate
// counters in the same atomic batch.
func (e *Engine) RecordContribution(ctx context.Context, groupID, contributionID, callerID string, amount int64) (*models.Contribution, error) {
	group, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	var contribution models.Contribution
	if err := e.store.Get(ctx, models.CollectionContributions, contributionID, &contribution); err != nil {
		return nil, e.translate(err, "contribution "+contributionID)
	}
	if contribution.GroupID != groupID {
		return nil, fmt.Errorf("%w: contribution %s", ErrNotFound, contributionID)
	}
	if callerID != contribution.UserID && callerID != group.AdminID {
		return nil, ErrUnauthorized
	}
	if contribution.Status == models.ContributionPaid {
		return nil, ErrAlreadyPaid
	}

	member, err := e.findMember(ctx, groupID, contribution.UserID)
	if err != nil {
		return nil, err
	}

	if v := e.validator.ValidateContribution(group, member, &contribution, amount); !v.Valid {
		return nil, &ValidationError{Result: v}
	}

	now := e.now()
	late := now.After(contribution.DueDate)

	err = e.store.BatchWrite(ctx, []store.WriteOp{
		store.UpdateOp(models.CollectionContributions, contributionID, map[string]any{
			"status":    models.ContributionPaid,
			"paid_date": now,
			"late":      late,
			"amount":    amount,
		}, store.Precondition{Field: "status", Equals: contribution.Status}),
		store.UpdateOp(models.CollectionGroupMembers, member.ID, map[string]any{
			"total_contributed": member.TotalContributed + amount,
		}),
		store.UpdateOp(models.CollectionGroups, groupID, map[string]any{
			"total_contributed": group.TotalContributed + amount,
		}),
	})
	switch {
	case errors.Is(err, store.ErrPreconditionFailed):
		return nil, ErrConcurrentModification
	case err != nil:
		return nil, err
	}

	contribution.Status = models.ContributionPaid
	contribution.PaidDate = &now
	contribution.Late = late
	contribution.Amount = amount

	e.log.InfoContext(ctx, "contribution recorded",
		zap.String("group_id", groupID), zap.Int("cycle", contribution.CycleNumber),
		zap.String("user_id", contribution.UserID), zap.Int64("amount", amount), zap.Bool("late", late))
	e.publish(ctx, Event{Type: EventContributionRecorded, GroupID: groupID,
		CycleNumber: contribution.CycleNumber, UserID: contribution.UserID, Amount: amount, At: now})

	return &contribution, nil
}

// SweepOverdue flips pending contributions past their grace period to overdue
// and increments the owners' missed-payment counters. Each record is swept
// independently; a concurrent payment simply drops that record from the sweep.
func (e *Engine) SweepOverdue(ctx context.Context, groupID, adminID string) (int, error) {
	group, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return 0, err
	}
	if adminID != group.AdminID {
		return 0, ErrUnauthorized
	}

	var pending []models.Contribution
	err = e.store.Query(ctx, models.CollectionContributions,
		[]store.Filter{store.Eq("group_id", groupID), store.Eq("status", models.ContributionPending)},
		store.Options{}, &pending)
	if err != nil {
		return 0, err
	}

	now := e.now()
	swept := 0
	for _, c := range pending {
		if schedule.WithinGracePeriod(c.DueDate, e.rules.GraceDays, now) {
			continue
		}
		err := e.store.Update(ctx, models.CollectionContributions, c.ID,
			map[string]any{"status": models.ContributionOverdue},
			store.Precondition{Field: "status", Equals: models.ContributionPending})
		if errors.Is(err, store.ErrPreconditionFailed) {
			continue // paid while we were sweeping
		}
		if err != nil {
			return swept, err
		}

		member, err := e.findMember(ctx, groupID, c.UserID)
		if err == nil {
			_ = e.store.Update(ctx, models.CollectionGroupMembers, member.ID,
				map[string]any{"missed_payments": member.MissedPayments + 1})
		}
		swept++
	}

	if swept > 0 {
		e.log.InfoContext(ctx, "overdue sweep finished",
			zap.String("group_id", groupID), zap.Int("swept", swept))
	}
	return swept, nil
}

// SendPaymentReminders runs the reminder scheduler for the group's current
// cycle. Admin only.
func (e *Engine) SendPaymentReminders(ctx context.Context, groupID, callerID string) (*reminder.DispatchReport, error) {
	group, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if callerID != group.AdminID {
		return nil, ErrUnauthorized
	}
	if e.reminders == nil {
		return nil, errors.New("engine: reminder scheduler not configured")
	}
	return e.reminders.Send(ctx, group)
}

// ListPayouts returns the group's payouts, newest cycle first.
func (e *Engine) ListPayouts(ctx context.Context, groupID string) ([]models.Payout, error) {
	var payouts []models.Payout
	err := e.store.Query(ctx, models.CollectionPayouts,
		[]store.Filter{store.Eq("group_id", groupID)},
		store.Options{OrderBy: "cycle_number", Desc: true}, &payouts)
	if err != nil {
		return nil, err
	}
	return payouts, nil
}

// MarkPayoutProcessing moves a scheduled payout into processing.
func (e *Engine) MarkPayoutProcessing(ctx context.Context, groupID, payoutID, adminID string) (*models.Payout, error) {
	payout, err := e.authPayout(ctx, groupID, payoutID, adminID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	err = e.store.Update(ctx, models.CollectionPayouts, payoutID,
		map[string]any{"status": models.PayoutProcessing, "processed_at": now},
		store.Precondition{Field: "status", Equals: models.PayoutScheduled})
	if errors.Is(err, store.ErrPreconditionFailed) {
		return nil, ErrConcurrentModification
	}
	if err != nil {
		return nil, err
	}
	payout.Status = models.PayoutProcessing
	payout.ProcessedAt = &now
	e.publish(ctx, Event{Type: EventPayoutProcessing, GroupID: groupID,
		CycleNumber: payout.CycleNumber, UserID: payout.RecipientID, Amount: payout.NetAmount, At: now})
	return payout, nil
}

// CompletePayout confirms disbursement: the payout completes and the group's
// paid-out counter advances, atomically.
func (e *Engine) CompletePayout(ctx context.Context, groupID, payoutID, adminID string) (*models.Payout, error) {
	payout, err := e.authPayout(ctx, groupID, payoutID, adminID)
	if err != nil {
		return nil, err
	}
	group, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	err = e.store.BatchWrite(ctx, []store.WriteOp{
		store.UpdateOp(models.CollectionPayouts, payoutID,
			map[string]any{"status": models.PayoutCompleted, "completed_at": now},
			store.Precondition{Field: "status", Equals: models.PayoutProcessing}),
		store.UpdateOp(models.CollectionGroups, groupID,
			map[string]any{"total_paid_out": group.TotalPaidOut + payout.NetAmount}),
	})
	if errors.Is(err, store.ErrPreconditionFailed) {
		return nil, ErrConcurrentModification
	}
	if err != nil {
		return nil, err
	}

	payout.Status = models.PayoutCompleted
	payout.CompletedAt = &now
	e.log.InfoContext(ctx, "payout completed",
		zap.String("group_id", groupID), zap.Int("cycle", payout.CycleNumber),
		zap.String("recipient_id", payout.RecipientID), zap.Int64("net", payout.NetAmount))
	e.publish(ctx, Event{Type: EventPayoutCompleted, GroupID: groupID,
		CycleNumber: payout.CycleNumber, UserID: payout.RecipientID, Amount: payout.NetAmount, At: now})
	return payout, nil
}

// FailPayout marks a processing payout as failed with a reason.
func (e *Engine) FailPayout(ctx context.Context, groupID, payoutID, adminID, reason string) (*models.Payout, error) {
	payout, err := e.authPayout(ctx, groupID, payoutID, adminID)
	if err != nil {
		return nil, err
	}
	err = e.store.Update(ctx, models.CollectionPayouts, payoutID,
		map[string]any{"status": models.PayoutFailed, "failure_reason": reason},
		store.Precondition{Field: "status", Equals: models.PayoutProcessing})
	if errors.Is(err, store.ErrPreconditionFailed) {
		return nil, ErrConcurrentModification
	}
	if err != nil {
		return nil, err
	}
	payout.Status = models.PayoutFailed
	payout.FailureReason = reason
	e.log.WarnContext(ctx, "payout failed",
		zap.String("group_id", groupID), zap.Int("cycle", payout.CycleNumber), zap.String("reason", reason))
	e.publish(ctx, Event{Type: EventPayoutFailed, GroupID: groupID,
		CycleNumber: payout.CycleNumber, UserID: payout.RecipientID, At: e.now()})
	return payout, nil
}

// RetryPayout reschedules a failed payout, consuming one retry.
func (e *Engine) RetryPayout(ctx context.Context, groupID, payoutID, adminID string) (*models.Payout, error) {
	payout, err := e.authPayout(ctx, groupID, payoutID, adminID)
	if err != nil {
		return nil, err
	}
	if !payout.CanRetry() {
		return nil, ErrPayoutNotRetryable
	}
	err = e.store.Update(ctx, models.CollectionPayouts, payoutID,
		map[string]any{"status": models.PayoutScheduled, "retry_count": payout.RetryCount + 1},
		store.Precondition{Field: "status", Equals: models.PayoutFailed})
	if errors.Is(err, store.ErrPreconditionFailed) {
		return nil, ErrConcurrentModification
	}
	if err != nil {
		return nil, err
	}
	payout.Status = models.PayoutScheduled
	payout.RetryCount++
	return payout, nil
}

func (e *Engine) authPayout(ctx context.Context, groupID, payoutID, adminID string) (*models.Payout, error) {
	group, err := e.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if adminID != group.AdminID {
		return nil, ErrUnauthorized
	}
	var payout models.Payout
	if err := e.store.Get(ctx, models.CollectionPayouts, payoutID, &payout); err != nil {
		return nil, e.translate(err, "payout "+payoutID)
	}
	if payout.GroupID != groupID {
		return nil, fmt.Errorf("%w: payout %s", ErrNotFound, payoutID)
	}
	return &payout, nil
}

func (e *Engine) loadGroup(ctx context.Context, groupID string) (*models.Group, error) {
	var group models.Group
	if err := e.store.Get(ctx, models.CollectionGroups, groupID, &group); err != nil {
		return nil, e.translate(err, "group "+groupID)
	}
	return &group, nil
}

func (e *Engine) findMember(ctx context.Context, groupID, userID string) (*models.GroupMember, error) {
	var members []models.GroupMember
	err := e.store.Query(ctx, models.CollectionGroupMembers,
		[]store.Filter{store.Eq("group_id", groupID), store.Eq("user_id", userID)},
		store.Options{Limit: 1}, &members)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: member %s in group %s", ErrNotFound, userID, groupID)
	}
	return &members[0], nil
}

func (e *Engine) rotationOrder(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	var members []models.GroupMember
	err := e.store.Query(ctx, models.CollectionGroupMembers,
		[]store.Filter{store.Eq("group_id", groupID), store.Eq("active", true)},
		store.Options{OrderBy: "joined_at"}, &members)
	if err != nil {
		return nil, err
	}
	return rotation.Order(members), nil
}

func (e *Engine) translate(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

func (e *Engine) publish(ctx context.Context, event Event) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(e.eventTopic, event.GroupID, event); err != nil {
		e.log.WarnContext(ctx, "event publish failed",
			zap.String("type", event.Type), zap.String("group_id", event.GroupID), zap.Error(err))
	}
}
