package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dapoalex/AjoPool/config"
	"github.com/dapoalex/AjoPool/internal/models"
)

var testNow = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

func testRules() config.RulesConfig {
	return config.RulesConfig{
		MinMembers:           2,
		MaxMembers:           10,
		MinContribution:      1000,
		MaxContribution:      1000000,
		GraceDays:            2,
		MissedPaymentWarning: 2,
	}
}

func newValidator() *Validator {
	return New(testRules(), func() time.Time { return testNow })
}

func validCreation() GroupCreationInput {
	return GroupCreationInput{
		Name:               "Market Women Ajo",
		AdminID:            "admin-1",
		ContributionAmount: 5000,
		TotalCycles:        3,
		StartDate:          testNow.AddDate(0, 0, 7),
		Members: []ProposedMember{
			{UserID: "admin-1", DisplayName: "Ada", Role: models.RoleAdmin},
			{UserID: "user-2", DisplayName: "Bola", Role: models.RoleMember},
			{UserID: "user-3", DisplayName: "Chidi", Role: models.RoleMember},
		},
	}
}

func TestValidateGroupCreation(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name         string
		mutate       func(*GroupCreationInput)
		wantValid    bool
		wantWarnings int
	}{
		{"valid input", func(in *GroupCreationInput) {}, true, 0},
		{"name too short", func(in *GroupCreationInput) { in.Name = "ab" }, false, 0},
		{"name too long", func(in *GroupCreationInput) { in.Name = string(make([]byte, 51)) }, false, 0},
		{"amount below minimum", func(in *GroupCreationInput) { in.ContributionAmount = 500 }, false, 0},
		{"amount above maximum", func(in *GroupCreationInput) { in.ContributionAmount = 2000000 }, false, 0},
		{"too few members", func(in *GroupCreationInput) { in.Members = in.Members[:1] }, false, 0},
		{"cycles below member count", func(in *GroupCreationInput) { in.TotalCycles = 2 }, false, 0},
		{"cycles above double member count warns", func(in *GroupCreationInput) { in.TotalCycles = 7 }, true, 1},
		{"past start date warns", func(in *GroupCreationInput) { in.StartDate = testNow.AddDate(0, 0, -1) }, true, 1},
		{"admin missing from member list", func(in *GroupCreationInput) { in.Members = in.Members[1:] }, false, 0},
		{"admin listed without admin role", func(in *GroupCreationInput) { in.Members[0].Role = models.RoleMember }, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validCreation()
			tt.mutate(&in)
			r := v.ValidateGroupCreation(in)
			assert.Equal(t, tt.wantValid, r.Valid, "errors: %v", r.Errors)
			assert.Len(t, r.Warnings, tt.wantWarnings)
		})
	}
}

func TestValidateMemberJoin(t *testing.T) {
	v := newValidator()

	group := &models.Group{
		ID:           "group-1",
		Name:         "Market Women Ajo",
		Status:       models.GroupStatusActive,
		MaxMembers:   3,
		MemberCount:  2,
		CurrentCycle: 1,
	}
	memberships := []models.GroupMember{
		{GroupID: "group-1", UserID: "user-1", Active: true},
		{GroupID: "group-1", UserID: "user-2", Active: false},
	}

	t.Run("fresh join passes", func(t *testing.T) {
		r := v.ValidateMemberJoin(group, memberships, "user-9", "Ngozi")
		assert.True(t, r.Valid)
		assert.Empty(t, r.Warnings)
	})

	t.Run("already an active member", func(t *testing.T) {
		r := v.ValidateMemberJoin(group, memberships, "user-1", "Ada")
		assert.False(t, r.Valid)
	})

	t.Run("rejoin warns but passes", func(t *testing.T) {
		r := v.ValidateMemberJoin(group, memberships, "user-2", "Bola")
		assert.True(t, r.Valid)
		assert.Len(t, r.Warnings, 1)
	})

	t.Run("inactive group rejects", func(t *testing.T) {
		paused := *group
		paused.Status = models.GroupStatusPaused
		r := v.ValidateMemberJoin(&paused, memberships, "user-9", "Ngozi")
		assert.False(t, r.Valid)
	})

	t.Run("full group rejects", func(t *testing.T) {
		full := *group
		full.MemberCount = 3
		r := v.ValidateMemberJoin(&full, memberships, "user-9", "Ngozi")
		assert.False(t, r.Valid)
	})

	t.Run("missing identity rejects", func(t *testing.T) {
		r := v.ValidateMemberJoin(group, memberships, "", "")
		assert.False(t, r.Valid)
		assert.Len(t, r.Errors, 2)
	})

	t.Run("mid-cycle join warns", func(t *testing.T) {
		mid := *group
		mid.CurrentCycle = 2
		r := v.ValidateMemberJoin(&mid, memberships, "user-9", "Ngozi")
		assert.True(t, r.Valid)
		assert.Len(t, r.Warnings, 1)
	})
}

func TestValidateContribution(t *testing.T) {
	v := newValidator()

	group := &models.Group{
		ID:           "group-1",
		Name:         "Market Women Ajo",
		Status:       models.GroupStatusActive,
		CurrentCycle: 2,
	}
	member := &models.GroupMember{GroupID: "group-1", UserID: "user-1", Active: true}
	contribution := &models.Contribution{
		GroupID:     "group-1",
		CycleNumber: 2,
		UserID:      "user-1",
		Amount:      5000,
		DueDate:     testNow.AddDate(0, 0, 5),
		Status:      models.ContributionPending,
	}

	t.Run("exact amount passes", func(t *testing.T) {
		r := v.ValidateContribution(group, member, contribution, 5000)
		assert.True(t, r.Valid)
		assert.Empty(t, r.Warnings)
	})

	t.Run("underpayment rejects", func(t *testing.T) {
		r := v.ValidateContribution(group, member, contribution, 4999)
		assert.False(t, r.Valid)
	})

	t.Run("overpayment warns", func(t *testing.T) {
		r := v.ValidateContribution(group, member, contribution, 6000)
		assert.True(t, r.Valid)
		assert.Len(t, r.Warnings, 1)
	})

	t.Run("inactive group rejects", func(t *testing.T) {
		done := *group
		done.Status = models.GroupStatusCompleted
		r := v.ValidateContribution(&done, member, contribution, 5000)
		assert.False(t, r.Valid)
	})

	t.Run("inactive member rejects", func(t *testing.T) {
		gone := *member
		gone.Active = false
		r := v.ValidateContribution(group, &gone, contribution, 5000)
		assert.False(t, r.Valid)
	})

	t.Run("future cycle rejects", func(t *testing.T) {
		future := *contribution
		future.CycleNumber = 3
		r := v.ValidateContribution(group, member, &future, 5000)
		assert.False(t, r.Valid)
	})

	t.Run("past cycle warns", func(t *testing.T) {
		past := *contribution
		past.CycleNumber = 1
		r := v.ValidateContribution(group, member, &past, 5000)
		assert.True(t, r.Valid)
		assert.Len(t, r.Warnings, 1)
	})

	t.Run("past due date warns", func(t *testing.T) {
		late := *contribution
		late.DueDate = testNow.AddDate(0, 0, -1)
		r := v.ValidateContribution(group, member, &late, 5000)
		assert.True(t, r.Valid)
		assert.Len(t, r.Warnings, 1)
	})
}

func TestValidateCycleProcessing(t *testing.T) {
	v := newValidator()

	group := &models.Group{
		ID:           "group-1",
		Name:         "Market Women Ajo",
		AdminID:      "admin-1",
		Status:       models.GroupStatusActive,
		CurrentCycle: 1,
		TotalCycles:  3,
	}

	t.Run("admin with full payment passes", func(t *testing.T) {
		r := v.ValidateCycleProcessing(group, "admin-1", 100)
		assert.True(t, r.Valid)
	})

	t.Run("non-admin rejects", func(t *testing.T) {
		r := v.ValidateCycleProcessing(group, "user-2", 100)
		assert.False(t, r.Valid)
	})

	t.Run("incomplete payments reject with percentage", func(t *testing.T) {
		r := v.ValidateCycleProcessing(group, "admin-1", 67)
		assert.False(t, r.Valid)
		assert.Contains(t, r.Errors[0], "67%")
	})

	t.Run("beyond total cycles rejects", func(t *testing.T) {
		over := *group
		over.CurrentCycle = 4
		r := v.ValidateCycleProcessing(&over, "admin-1", 100)
		assert.False(t, r.Valid)
	})

	t.Run("final cycle warns", func(t *testing.T) {
		last := *group
		last.CurrentCycle = 3
		r := v.ValidateCycleProcessing(&last, "admin-1", 100)
		assert.True(t, r.Valid)
		assert.Len(t, r.Warnings, 1)
	})
}

func TestValidatePayoutEligibility(t *testing.T) {
	v := newValidator()

	group := &models.Group{ID: "group-1", Name: "Market Women Ajo"}
	recipient := &models.GroupMember{GroupID: "group-1", UserID: "user-1", Active: true}

	t.Run("eligible recipient passes", func(t *testing.T) {
		r := v.ValidatePayoutEligibility(group, recipient, 15000, 15000)
		assert.True(t, r.Valid)
		assert.Empty(t, r.Warnings)
	})

	t.Run("non-member rejects", func(t *testing.T) {
		stranger := *recipient
		stranger.GroupID = "group-2"
		r := v.ValidatePayoutEligibility(group, &stranger, 15000, 15000)
		assert.False(t, r.Valid)
	})

	t.Run("inactive recipient rejects", func(t *testing.T) {
		gone := *recipient
		gone.Active = false
		r := v.ValidatePayoutEligibility(group, &gone, 15000, 15000)
		assert.False(t, r.Valid)
	})

	t.Run("amount mismatch warns", func(t *testing.T) {
		r := v.ValidatePayoutEligibility(group, recipient, 14000, 15000)
		assert.True(t, r.Valid)
		assert.Len(t, r.Warnings, 1)
	})

	t.Run("missed payments above threshold warn", func(t *testing.T) {
		flaky := *recipient
		flaky.MissedPayments = 3
		r := v.ValidatePayoutEligibility(group, &flaky, 15000, 15000)
		assert.True(t, r.Valid)
		assert.Len(t, r.Warnings, 1)
	})
}
