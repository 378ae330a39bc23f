package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapoalex/AjoPool/internal/models"
	"github.com/dapoalex/AjoPool/internal/store"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore() *Store {
	return New(WithClock(func() time.Time { return testNow }))
}

func seedMember(t *testing.T, s *Store, groupID, userID string, position int) models.GroupMember {
	t.Helper()
	member := models.GroupMember{
		GroupID:     groupID,
		UserID:      userID,
		DisplayName: userID,
		Role:        models.RoleMember,
		JoinedAt:    testNow.AddDate(0, 0, position),
		Position:    position,
		Active:      true,
	}
	id, err := s.Create(context.Background(), models.CollectionGroupMembers, &member)
	require.NoError(t, err)
	member.ID = id
	return member
}

func TestCreateAssignsIDAndTimestamps(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	group := models.Group{Name: "Market Women Ajo", AdminID: "admin-1", TotalCycles: 6}
	id, err := s.Create(ctx, models.CollectionGroups, &group)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, group.ID)
	assert.Equal(t, testNow, group.CreatedAt)
	assert.Equal(t, testNow, group.UpdatedAt)

	var loaded models.Group
	require.NoError(t, s.Get(ctx, models.CollectionGroups, id, &loaded))
	assert.Equal(t, "Market Women Ajo", loaded.Name)
}

func TestCreateKeepsCallerID(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	group := models.Group{ID: "group-fixed", Name: "Ajo", AdminID: "admin-1"}
	id, err := s.Create(ctx, models.CollectionGroups, &group)
	require.NoError(t, err)
	assert.Equal(t, "group-fixed", id)

	_, err = s.Create(ctx, models.CollectionGroups, &models.Group{ID: "group-fixed"})
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore()
	var group models.Group
	err := s.Get(context.Background(), models.CollectionGroups, "nope", &group)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestQueryFilters(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	seedMember(t, s, "group-1", "user-a", 0)
	seedMember(t, s, "group-1", "user-b", 1)
	inactive := seedMember(t, s, "group-1", "user-c", 2)
	seedMember(t, s, "group-2", "user-d", 0)

	require.NoError(t, s.Update(ctx, models.CollectionGroupMembers, inactive.ID,
		map[string]any{"active": false}))

	tests := []struct {
		name    string
		filters []store.Filter
		want    []string
	}{
		{
			name:    "equality on group",
			filters: []store.Filter{store.Eq("group_id", "group-1")},
			want:    []string{"user-a", "user-b", "user-c"},
		},
		{
			name:    "two conjunctive filters",
			filters: []store.Filter{store.Eq("group_id", "group-1"), store.Eq("active", true)},
			want:    []string{"user-a", "user-b"},
		},
		{
			name:    "gte on position",
			filters: []store.Filter{store.Eq("group_id", "group-1"), store.Gte("position", 1)},
			want:    []string{"user-b", "user-c"},
		},
		{
			name:    "lt on position",
			filters: []store.Filter{store.Eq("group_id", "group-1"), store.Lt("position", 1)},
			want:    []string{"user-a"},
		},
		{
			name:    "contains on display name",
			filters: []store.Filter{store.Contains("display_name", "user-b")},
			want:    []string{"user-b"},
		},
		{
			name:    "no match",
			filters: []store.Filter{store.Eq("group_id", "group-9")},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var members []models.GroupMember
			require.NoError(t, s.Query(ctx, models.CollectionGroupMembers, tt.filters, store.Options{}, &members))
			got := make([]string, 0, len(members))
			for _, m := range members {
				got = append(got, m.UserID)
			}
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestQueryOrderingAndPagination(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	seedMember(t, s, "group-1", "user-a", 2)
	seedMember(t, s, "group-1", "user-b", 0)
	seedMember(t, s, "group-1", "user-c", 1)

	var asc []models.GroupMember
	require.NoError(t, s.Query(ctx, models.CollectionGroupMembers, nil,
		store.Options{OrderBy: "position"}, &asc))
	assert.Equal(t, []int{0, 1, 2}, positions(asc))

	var desc []models.GroupMember
	require.NoError(t, s.Query(ctx, models.CollectionGroupMembers, nil,
		store.Options{OrderBy: "position", Desc: true}, &desc))
	assert.Equal(t, []int{2, 1, 0}, positions(desc))

	var page []models.GroupMember
	require.NoError(t, s.Query(ctx, models.CollectionGroupMembers, nil,
		store.Options{OrderBy: "position", Limit: 1, Offset: 1}, &page))
	require.Len(t, page, 1)
	assert.Equal(t, 1, page[0].Position)

	var beyond []models.GroupMember
	require.NoError(t, s.Query(ctx, models.CollectionGroupMembers, nil,
		store.Options{Offset: 10}, &beyond))
	assert.Empty(t, beyond)
}

func TestUniqueIndex(t *testing.T) {
	s := newTestStore()
	s.AddUniqueIndex(models.CollectionGroupMembers, "group_id", "user_id")
	ctx := context.Background()

	seedMember(t, s, "group-1", "user-a", 0)

	dup := models.GroupMember{GroupID: "group-1", UserID: "user-a", DisplayName: "again", Active: true}
	_, err := s.Create(ctx, models.CollectionGroupMembers, &dup)
	assert.ErrorIs(t, err, store.ErrDuplicate)

	// same user in another group is fine
	other := models.GroupMember{GroupID: "group-2", UserID: "user-a", DisplayName: "elsewhere", Active: true}
	_, err = s.Create(ctx, models.CollectionGroupMembers, &other)
	assert.NoError(t, err)
}

func TestUpdatePatchAndPreconditions(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	group := models.Group{Name: "Ajo", AdminID: "admin-1", CurrentCycle: 1, TotalCycles: 4}
	id, err := s.Create(ctx, models.CollectionGroups, &group)
	require.NoError(t, err)

	err = s.Update(ctx, models.CollectionGroups, id,
		map[string]any{"current_cycle": 2},
		store.Precondition{Field: "current_cycle", Equals: 1})
	require.NoError(t, err)

	var loaded models.Group
	require.NoError(t, s.Get(ctx, models.CollectionGroups, id, &loaded))
	assert.Equal(t, 2, loaded.CurrentCycle)
	assert.Equal(t, "Ajo", loaded.Name) // untouched fields survive a patch

	// stale precondition loses the swap
	err = s.Update(ctx, models.CollectionGroups, id,
		map[string]any{"current_cycle": 2},
		store.Precondition{Field: "current_cycle", Equals: 1})
	assert.ErrorIs(t, err, store.ErrPreconditionFailed)

	err = s.Update(ctx, models.CollectionGroups, "missing", map[string]any{"current_cycle": 2})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBatchWriteAtomicity(t *testing.T) {
	s := newTestStore()
	s.AddUniqueIndex(models.CollectionPayouts, "group_id", "cycle_number")
	ctx := context.Background()

	group := models.Group{Name: "Ajo", AdminID: "admin-1", CurrentCycle: 1, TotalCycles: 4}
	groupID, err := s.Create(ctx, models.CollectionGroups, &group)
	require.NoError(t, err)

	existing := models.Payout{GroupID: groupID, CycleNumber: 1, RecipientID: "user-a"}
	_, err = s.Create(ctx, models.CollectionPayouts, &existing)
	require.NoError(t, err)

	// second op violates the unique index, so the cycle bump must roll back
	err = s.BatchWrite(ctx, []store.WriteOp{
		store.UpdateOp(models.CollectionGroups, groupID,
			map[string]any{"current_cycle": 2},
			store.Precondition{Field: "current_cycle", Equals: 1}),
		store.CreateOp(models.CollectionPayouts,
			&models.Payout{GroupID: groupID, CycleNumber: 1, RecipientID: "user-b"}),
	})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	var loaded models.Group
	require.NoError(t, s.Get(ctx, models.CollectionGroups, groupID, &loaded))
	assert.Equal(t, 1, loaded.CurrentCycle)

	var payouts []models.Payout
	require.NoError(t, s.Query(ctx, models.CollectionPayouts,
		[]store.Filter{store.Eq("group_id", groupID)}, store.Options{}, &payouts))
	assert.Len(t, payouts, 1)
}

func TestBatchWriteAppliesInOrder(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	group := models.Group{Name: "Ajo", AdminID: "admin-1", CurrentCycle: 3, TotalCycles: 3}
	groupID, err := s.Create(ctx, models.CollectionGroups, &group)
	require.NoError(t, err)

	err = s.BatchWrite(ctx, []store.WriteOp{
		store.CreateOp(models.CollectionPayouts,
			&models.Payout{GroupID: groupID, CycleNumber: 3, RecipientID: "user-a"}),
		store.UpdateOp(models.CollectionGroups, groupID,
			map[string]any{"current_cycle": 4, "status": models.GroupStatusCompleted},
			store.Precondition{Field: "current_cycle", Equals: 3}),
	})
	require.NoError(t, err)

	var loaded models.Group
	require.NoError(t, s.Get(ctx, models.CollectionGroups, groupID, &loaded))
	assert.Equal(t, 4, loaded.CurrentCycle)
	assert.Equal(t, models.GroupStatusCompleted, loaded.Status)
}

func TestUpdateBumpsUpdatedAtOnly(t *testing.T) {
	now := testNow
	s := New(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	group := models.Group{Name: "Ajo", AdminID: "admin-1"}
	id, err := s.Create(ctx, models.CollectionGroups, &group)
	require.NoError(t, err)

	now = now.Add(time.Hour)
	require.NoError(t, s.Update(ctx, models.CollectionGroups, id, map[string]any{"name": "Ajo Renamed"}))

	var loaded models.Group
	require.NoError(t, s.Get(ctx, models.CollectionGroups, id, &loaded))
	assert.Equal(t, testNow, loaded.CreatedAt)
	assert.Equal(t, testNow.Add(time.Hour), loaded.UpdatedAt)
}

func positions(members []models.GroupMember) []int {
	out := make([]int, 0, len(members))
	for _, m := range members {
		out = append(out, m.Position)
	}
	return out
}
