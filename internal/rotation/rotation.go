// Package rotation resolves which member receives the payout for a given
// cycle. It is a pure function of the ordered member list and the cycle
// number; preventing a double payout is the engine's job, not this package's.
package rotation

import (
	"errors"
	"sort"

	"github.com/dapoalex/AjoPool/internal/models"
)

// ErrEmptyRotation is returned when no active members are available.
var ErrEmptyRotation = errors.New("rotation: no active members in rotation")

// Order returns the payout order: active members sorted by joined-at
// ascending, ties broken by insertion position so the order is total and
// stable across calls.
func Order(members []models.GroupMember) []models.GroupMember {
	ordered := make([]models.GroupMember, 0, len(members))
	for _, m := range members {
		if m.Active {
			ordered = append(ordered, m)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].JoinedAt.Equal(ordered[j].JoinedAt) {
			return ordered[i].JoinedAt.Before(ordered[j].JoinedAt)
		}
		return ordered[i].Position < ordered[j].Position
	})
	return ordered
}

// CurrentRecipient returns the member entitled to the payout for the given
// 1-indexed cycle.
func CurrentRecipient(ordered []models.GroupMember, cycleNumber int) (models.GroupMember, error) {
	if len(ordered) == 0 {
		return models.GroupMember{}, ErrEmptyRotation
	}
	return ordered[(cycleNumber-1)%len(ordered)], nil
}

// NextRecipient returns the member after the current one. The second return
// is false for a single-member rotation, where next would equal current.
func NextRecipient(ordered []models.GroupMember, cycleNumber int) (models.GroupMember, bool, error) {
	if len(ordered) == 0 {
		return models.GroupMember{}, false, ErrEmptyRotation
	}
	if len(ordered) == 1 {
		return models.GroupMember{}, false, nil
	}
	return ordered[cycleNumber%len(ordered)], true, nil
}
