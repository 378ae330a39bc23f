package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dapoalex/AjoPool/internal/engine"
	"github.com/dapoalex/AjoPool/internal/models"
	"github.com/dapoalex/AjoPool/internal/store"
	"github.com/dapoalex/AjoPool/internal/validation"
	"github.com/dapoalex/AjoPool/pkg/logger"
)

var (
	ErrNotAMember       = errors.New("user is not an active member of this group")
	ErrAdminCannotLeave = errors.New("the admin cannot leave their own group")
	ErrMembershipRace   = errors.New("membership changed concurrently, retry")
)

type GroupService struct {
	store     store.Store
	validator *validation.Validator
	log       *logger.Logger
	now       func() time.Time
}

func NewGroupService(st store.Store, val *validation.Validator, log *logger.Logger) *GroupService {
	if log == nil {
		log = logger.NewNop()
	}
	return &GroupService{store: st, validator: val, log: log, now: time.Now}
}

type CreateGroupRequest struct {
	Name               string                      `json:"name" binding:"required"`
	Description        string                      `json:"description"`
	ContributionAmount int64                       `json:"contribution_amount" binding:"required"`
	Frequency          models.Frequency            `json:"frequency" binding:"required"`
	PayoutSchedule     models.PayoutSchedule       `json:"payout_schedule"`
	StartDate          time.Time                   `json:"start_date" binding:"required"`
	TotalCycles        int                         `json:"total_cycles" binding:"required"`
	MaxMembers         int                         `json:"max_members"`
	Members            []validation.ProposedMember `json:"members" binding:"required"`
}

type GroupResponse struct {
	Group    *models.Group        `json:"group"`
	Members  []models.GroupMember `json:"members,omitempty"`
	Summary  *engine.Completion   `json:"summary,omitempty"`
	Warnings []string             `json:"warnings,omitempty"`
}

// CreateGroup validates the proposal and persists the group together with
// every founding membership in one atomic batch. Rotation positions follow
// the order of the member list.
func (s *GroupService) CreateGroup(ctx context.Context, adminID string, req *CreateGroupRequest) (*GroupResponse, error) {
	result := s.validator.ValidateGroupCreation(validation.GroupCreationInput{
		Name:               req.Name,
		AdminID:            adminID,
		ContributionAmount: req.ContributionAmount,
		TotalCycles:        req.TotalCycles,
		StartDate:          req.StartDate,
		Members:            req.Members,
	})
	if !result.Valid {
		return nil, &engine.ValidationError{Result: result}
	}

	now := s.now()
	payoutSchedule := req.PayoutSchedule
	if payoutSchedule == "" {
		payoutSchedule = models.PayoutScheduleMonthly
	}
	group := models.Group{
		ID:                 uuid.NewString(),
		Name:               req.Name,
		Description:        req.Description,
		AdminID:            adminID,
		ContributionAmount: req.ContributionAmount,
		Frequency:          req.Frequency,
		PayoutSchedule:     payoutSchedule,
		Status:             models.GroupStatusActive,
		StartDate:          req.StartDate,
		CurrentCycle:       1,
		TotalCycles:        req.TotalCycles,
		MaxMembers:         req.MaxMembers,
		MemberCount:        len(req.Members),
	}

	ops := []store.WriteOp{store.CreateOp(models.CollectionGroups, &group)}
	members := make([]models.GroupMember, 0, len(req.Members))
	for i, m := range req.Members {
		role := m.Role
		if role == "" {
			role = models.RoleMember
		}
		member := models.GroupMember{
			ID:          uuid.NewString(),
			GroupID:     group.ID,
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			Role:        role,
			JoinedAt:    now,
			Position:    i,
			Active:      true,
		}
		members = append(members, member)
		ops = append(ops, store.CreateOp(models.CollectionGroupMembers, &members[i]))
	}

	if err := s.store.BatchWrite(ctx, ops); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "group created",
		zap.String("group_id", group.ID), zap.String("admin_id", adminID),
		zap.Int("members", len(members)), zap.Int("total_cycles", group.TotalCycles))

	return &GroupResponse{Group: &group, Members: members, Warnings: result.Warnings}, nil
}

// JoinGroup adds the user to the group, or reactivates an old membership if
// they left before. The member count is advanced with a compare-and-swap so
// concurrent joins cannot blow past the capacity check.
func (s *GroupService) JoinGroup(ctx context.Context, groupID, userID, displayName string) (*models.GroupMember, []string, error) {
	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}

	var memberships []models.GroupMember
	err = s.store.Query(ctx, models.CollectionGroupMembers,
		[]store.Filter{store.Eq("group_id", groupID)}, store.Options{}, &memberships)
	if err != nil {
		return nil, nil, err
	}

	result := s.validator.ValidateMemberJoin(group, memberships, userID, displayName)
	if !result.Valid {
		return nil, nil, &engine.ValidationError{Result: result}
	}

	countPatch := store.UpdateOp(models.CollectionGroups, groupID,
		map[string]any{"member_count": group.MemberCount + 1},
		store.Precondition{Field: "member_count", Equals: group.MemberCount})

	var member *models.GroupMember
	for i := range memberships {
		if memberships[i].UserID == userID && !memberships[i].Active {
			member = &memberships[i]
			break
		}
	}

	var ops []store.WriteOp
	if member != nil {
		member.Active = true
		ops = []store.WriteOp{
			store.UpdateOp(models.CollectionGroupMembers, member.ID,
				map[string]any{"active": true},
				store.Precondition{Field: "active", Equals: false}),
			countPatch,
		}
	} else {
		position := 0
		for _, m := range memberships {
			if m.Position >= position {
				position = m.Position + 1
			}
		}
		member = &models.GroupMember{
			ID:          uuid.NewString(),
			GroupID:     groupID,
			UserID:      userID,
			DisplayName: displayName,
			Role:        models.RoleMember,
			JoinedAt:    s.now(),
			Position:    position,
			Active:      true,
		}
		ops = []store.WriteOp{store.CreateOp(models.CollectionGroupMembers, member), countPatch}
	}

	if err := s.store.BatchWrite(ctx, ops); err != nil {
		if errors.Is(err, store.ErrPreconditionFailed) {
			return nil, nil, ErrMembershipRace
		}
		return nil, nil, err
	}

	s.log.InfoContext(ctx, "member joined",
		zap.String("group_id", groupID), zap.String("user_id", userID),
		zap.Int("position", member.Position))
	return member, result.Warnings, nil
}

// LeaveGroup deactivates the membership rather than deleting it, preserving
// the payment history and the member's rotation slot should they rejoin.
func (s *GroupService) LeaveGroup(ctx context.Context, groupID, userID string) error {
	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.AdminID == userID {
		return ErrAdminCannotLeave
	}

	var memberships []models.GroupMember
	err = s.store.Query(ctx, models.CollectionGroupMembers,
		[]store.Filter{store.Eq("group_id", groupID), store.Eq("user_id", userID), store.Eq("active", true)},
		store.Options{Limit: 1}, &memberships)
	if err != nil {
		return err
	}
	if len(memberships) == 0 {
		return ErrNotAMember
	}

	ops := []store.WriteOp{
		store.UpdateOp(models.CollectionGroupMembers, memberships[0].ID,
			map[string]any{"active": false},
			store.Precondition{Field: "active", Equals: true}),
		store.UpdateOp(models.CollectionGroups, groupID,
			map[string]any{"member_count": group.MemberCount - 1},
			store.Precondition{Field: "member_count", Equals: group.MemberCount}),
	}
	if err := s.store.BatchWrite(ctx, ops); err != nil {
		if errors.Is(err, store.ErrPreconditionFailed) {
			return ErrMembershipRace
		}
		return err
	}

	s.log.InfoContext(ctx, "member left",
		zap.String("group_id", groupID), zap.String("user_id", userID))
	return nil
}

// GetGroup returns the group, its active members in rotation order, and a
// completion summary.
func (s *GroupService) GetGroup(ctx context.Context, groupID string) (*GroupResponse, error) {
	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	var members []models.GroupMember
	err = s.store.Query(ctx, models.CollectionGroupMembers,
		[]store.Filter{store.Eq("group_id", groupID), store.Eq("active", true)},
		store.Options{OrderBy: "joined_at"}, &members)
	if err != nil {
		return nil, err
	}

	summary := engine.CompletionOf(group)
	return &GroupResponse{Group: group, Members: members, Summary: &summary}, nil
}

// ListGroups returns every group the user is an active member of.
func (s *GroupService) ListGroups(ctx context.Context, userID string) ([]models.Group, error) {
	var memberships []models.GroupMember
	err := s.store.Query(ctx, models.CollectionGroupMembers,
		[]store.Filter{store.Eq("user_id", userID), store.Eq("active", true)},
		store.Options{}, &memberships)
	if err != nil {
		return nil, err
	}

	groups := make([]models.Group, 0, len(memberships))
	for _, m := range memberships {
		var group models.Group
		if err := s.store.Get(ctx, models.CollectionGroups, m.GroupID, &group); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// PauseGroup and ResumeGroup flip the group between active and paused. Only
// the admin may do either.
func (s *GroupService) PauseGroup(ctx context.Context, groupID, adminID string) error {
	return s.setStatus(ctx, groupID, adminID, models.GroupStatusActive, models.GroupStatusPaused)
}

func (s *GroupService) ResumeGroup(ctx context.Context, groupID, adminID string) error {
	return s.setStatus(ctx, groupID, adminID, models.GroupStatusPaused, models.GroupStatusActive)
}

func (s *GroupService) setStatus(ctx context.Context, groupID, adminID string, from, to models.GroupStatus) error {
	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.AdminID != adminID {
		return engine.ErrUnauthorized
	}
	if group.Status != from {
		return engine.ErrInactiveGroup
	}
	err = s.store.Update(ctx, models.CollectionGroups, groupID,
		map[string]any{"status": to},
		store.Precondition{Field: "status", Equals: from})
	if errors.Is(err, store.ErrPreconditionFailed) {
		return ErrMembershipRace
	}
	return err
}

func (s *GroupService) loadGroup(ctx context.Context, groupID string) (*models.Group, error) {
	var group models.Group
	if err := s.store.Get(ctx, models.CollectionGroups, groupID, &group); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, engine.ErrNotFound
		}
		return nil, err
	}
	return &group, nil
}
