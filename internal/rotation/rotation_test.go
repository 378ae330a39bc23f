package rotation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapoalex/AjoPool/internal/models"
)

func member(userID string, joined time.Time, position int, active bool) models.GroupMember {
	return models.GroupMember{
		UserID:   userID,
		JoinedAt: joined,
		Position: position,
		Active:   active,
	}
}

func TestOrder(t *testing.T) {
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	t.Run("sorts by joined-at ascending", func(t *testing.T) {
		members := []models.GroupMember{
			member("c", base.AddDate(0, 0, 2), 2, true),
			member("a", base, 0, true),
			member("b", base.AddDate(0, 0, 1), 1, true),
		}
		ordered := Order(members)
		require.Len(t, ordered, 3)
		assert.Equal(t, "a", ordered[0].UserID)
		assert.Equal(t, "b", ordered[1].UserID)
		assert.Equal(t, "c", ordered[2].UserID)
	})

	t.Run("breaks joined-at ties by position", func(t *testing.T) {
		members := []models.GroupMember{
			member("second", base, 1, true),
			member("first", base, 0, true),
		}
		ordered := Order(members)
		require.Len(t, ordered, 2)
		assert.Equal(t, "first", ordered[0].UserID)
		assert.Equal(t, "second", ordered[1].UserID)
	})

	t.Run("drops inactive members", func(t *testing.T) {
		members := []models.GroupMember{
			member("a", base, 0, true),
			member("gone", base.AddDate(0, 0, 1), 1, false),
			member("b", base.AddDate(0, 0, 2), 2, true),
		}
		ordered := Order(members)
		require.Len(t, ordered, 2)
		assert.Equal(t, "a", ordered[0].UserID)
		assert.Equal(t, "b", ordered[1].UserID)
	})
}

func TestRecipients(t *testing.T) {
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	ordered := Order([]models.GroupMember{
		member("a", base, 0, true),
		member("b", base.AddDate(0, 0, 1), 1, true),
		member("c", base.AddDate(0, 0, 2), 2, true),
	})

	tests := []struct {
		cycle       int
		wantCurrent string
		wantNext    string
	}{
		{1, "a", "b"},
		{2, "b", "c"},
		{3, "c", "a"},
		{4, "a", "b"}, // second rotation wraps around
	}

	for _, tt := range tests {
		current, err := CurrentRecipient(ordered, tt.cycle)
		require.NoError(t, err)
		assert.Equal(t, tt.wantCurrent, current.UserID, "cycle %d current", tt.cycle)

		next, ok, err := NextRecipient(ordered, tt.cycle)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, tt.wantNext, next.UserID, "cycle %d next", tt.cycle)
	}
}

func TestSingleMemberRotationHasNoNext(t *testing.T) {
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	ordered := Order([]models.GroupMember{member("only", base, 0, true)})

	current, err := CurrentRecipient(ordered, 5)
	require.NoError(t, err)
	assert.Equal(t, "only", current.UserID)

	_, ok, err := NextRecipient(ordered, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmptyRotation(t *testing.T) {
	_, err := CurrentRecipient(nil, 1)
	assert.ErrorIs(t, err, ErrEmptyRotation)

	_, _, err = NextRecipient(nil, 1)
	assert.ErrorIs(t, err, ErrEmptyRotation)
}
