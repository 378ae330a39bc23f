package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/dapoalex/AjoPool/internal/ledger"
	"github.com/dapoalex/AjoPool/internal/models"
	"github.com/dapoalex/AjoPool/internal/store"
)

// Property: for any group and any subset of paid members, every active member
// lands in exactly one ledger bucket and the completion percentage hits 100
// exactly when everyone paid.
func TestProperty_LedgerBucketsPartitionMembers(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property test in short mode")
	}

	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		memberCount := rapid.IntRange(1, 12).Draw(rt, "memberCount")

		st := newStore()
		group := &models.Group{
			ID:                 "group-prop",
			Name:               "Property Ajo",
			AdminID:            "member-0",
			ContributionAmount: int64(rapid.IntRange(1000, 100000).Draw(rt, "amount")),
			Frequency:          models.FrequencyWeekly,
			Status:             models.GroupStatusActive,
			StartDate:          time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
			CurrentCycle:       1,
			TotalCycles:        memberCount,
			MemberCount:        memberCount,
		}
		if _, err := st.Create(ctx, models.CollectionGroups, group); err != nil {
			rt.Fatalf("seed group: %v", err)
		}
		for i := 0; i < memberCount; i++ {
			userID := fmt.Sprintf("member-%d", i)
			_, err := st.Create(ctx, models.CollectionGroupMembers, &models.GroupMember{
				GroupID: group.ID, UserID: userID, DisplayName: userID,
				JoinedAt: group.StartDate.AddDate(0, 0, -i), Position: i, Active: true,
			})
			if err != nil {
				rt.Fatalf("seed member: %v", err)
			}
		}

		eng := newEngine(st)
		if _, err := eng.OpenCycle(ctx, group.ID, "member-0"); err != nil {
			rt.Fatalf("open cycle: %v", err)
		}

		// pay a random subset; records without a payment stay pending
		paidCount := 0
		for i := 0; i < memberCount; i++ {
			if !rapid.Bool().Draw(rt, fmt.Sprintf("pays_%d", i)) {
				continue
			}
			userID := fmt.Sprintf("member-%d", i)
			var cs []models.Contribution
			err := st.Query(ctx, models.CollectionContributions,
				[]store.Filter{store.Eq("group_id", group.ID), store.Eq("user_id", userID)},
				store.Options{}, &cs)
			if err != nil || len(cs) != 1 {
				rt.Fatalf("load contribution for %s: %v", userID, err)
			}
			if _, err := eng.RecordContribution(ctx, group.ID, cs[0].ID, userID, cs[0].Amount); err != nil {
				rt.Fatalf("record contribution: %v", err)
			}
			paidCount++
		}

		status, err := eng.CheckPaymentStatus(ctx, group.ID, 1)
		if err != nil {
			rt.Fatalf("payment status: %v", err)
		}

		total := len(status.PaidMembers) + len(status.PendingMembers) + len(status.OverdueMembers)
		if total != memberCount {
			rt.Fatalf("buckets hold %d members, want %d", total, memberCount)
		}
		seen := make(map[string]int)
		for _, bucket := range [][]string{userIDs(status.PaidMembers), userIDs(status.PendingMembers), userIDs(status.OverdueMembers)} {
			for _, id := range bucket {
				seen[id]++
			}
		}
		for id, n := range seen {
			if n != 1 {
				rt.Fatalf("member %s appears in %d buckets", id, n)
			}
		}
		if len(status.PaidMembers) != paidCount {
			rt.Fatalf("paid bucket has %d members, want %d", len(status.PaidMembers), paidCount)
		}
		if (status.CompletionPercent == 100) != (paidCount == memberCount) {
			rt.Fatalf("completion %d%% with %d/%d paid", status.CompletionPercent, paidCount, memberCount)
		}
	})
}

func userIDs(standings []ledger.MemberStanding) []string {
	ids := make([]string, 0, len(standings))
	for _, s := range standings {
		ids = append(ids, s.UserID)
	}
	return ids
}

// Property: across any sequence of successful ProcessCycle calls the cycle
// counter increases by exactly one each time and never moves otherwise.
func TestProperty_MonotonicCycleAdvance(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property test in short mode")
	}

	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		memberCount := rapid.IntRange(1, 6).Draw(rt, "memberCount")
		totalCycles := memberCount + rapid.IntRange(0, 3).Draw(rt, "extraCycles")

		st := newStore()
		group := &models.Group{
			ID:                 "group-mono",
			Name:               "Monotonic Ajo",
			AdminID:            "member-0",
			ContributionAmount: 5000,
			Frequency:          models.FrequencyDaily,
			Status:             models.GroupStatusActive,
			StartDate:          time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
			CurrentCycle:       1,
			TotalCycles:        totalCycles,
			MemberCount:        memberCount,
		}
		if _, err := st.Create(ctx, models.CollectionGroups, group); err != nil {
			rt.Fatalf("seed group: %v", err)
		}
		for i := 0; i < memberCount; i++ {
			userID := fmt.Sprintf("member-%d", i)
			_, err := st.Create(ctx, models.CollectionGroupMembers, &models.GroupMember{
				GroupID: group.ID, UserID: userID, DisplayName: userID,
				JoinedAt: group.StartDate, Position: i, Active: true,
			})
			if err != nil {
				rt.Fatalf("seed member: %v", err)
			}
		}

		eng := newEngine(st)
		lastCycle := 1
		steps := rapid.IntRange(1, 2*totalCycles+4).Draw(rt, "steps")

		for step := 0; step < steps; step++ {
			var current models.Group
			if err := st.Get(ctx, models.CollectionGroups, group.ID, &current); err != nil {
				rt.Fatalf("read group: %v", err)
			}
			if current.CurrentCycle < lastCycle {
				rt.Fatalf("cycle decreased from %d to %d", lastCycle, current.CurrentCycle)
			}
			if !current.IsActive() {
				break
			}

			if rapid.Bool().Draw(rt, fmt.Sprintf("open_%d", step)) {
				if _, err := eng.OpenCycle(ctx, group.ID, "member-0"); err != nil {
					rt.Fatalf("open cycle: %v", err)
				}
			}
			if rapid.Bool().Draw(rt, fmt.Sprintf("pay_%d", step)) {
				payEveryone(rt, st, eng, group.ID, current.CurrentCycle)
			}

			_, err := eng.ProcessCycle(ctx, group.ID, "member-0")
			var incomplete *IncompletePaymentsError
			switch {
			case err == nil:
				if err := st.Get(ctx, models.CollectionGroups, group.ID, &current); err != nil {
					rt.Fatalf("read group: %v", err)
				}
				if current.CurrentCycle != lastCycle+1 {
					rt.Fatalf("cycle skipped: %d -> %d", lastCycle, current.CurrentCycle)
				}
				lastCycle = current.CurrentCycle
			case errors.As(err, &incomplete):
				// payments not done, cycle must not move
				if err := st.Get(ctx, models.CollectionGroups, group.ID, &current); err != nil {
					rt.Fatalf("read group: %v", err)
				}
				if current.CurrentCycle != lastCycle {
					rt.Fatalf("cycle moved on rejected advance: %d -> %d", lastCycle, current.CurrentCycle)
				}
			case errors.Is(err, ErrInactiveGroup):
				// completed between the read and the call
			default:
				rt.Fatalf("unexpected ProcessCycle error: %v", err)
			}
		}
	})
}

func payEveryone(rt *rapid.T, st store.Store, eng *Engine, groupID string, cycle int) {
	ctx := context.Background()
	var cs []models.Contribution
	err := st.Query(ctx, models.CollectionContributions,
		[]store.Filter{store.Eq("group_id", groupID), store.Eq("cycle_number", cycle)},
		store.Options{}, &cs)
	if err != nil {
		rt.Fatalf("load contributions: %v", err)
	}
	for _, c := range cs {
		if c.Status == models.ContributionPaid {
			continue
		}
		if _, err := eng.RecordContribution(ctx, groupID, c.ID, c.UserID, c.Amount); err != nil {
			rt.Fatalf("pay contribution: %v", err)
		}
	}
}
