// Package validation gatekeeps engine operations. Errors block the operation;
// warnings are advisory and never block. Rule bounds come from configuration,
// injected at construction.
package validation

import (
	"fmt"
	"time"

	"github.com/dapoalex/AjoPool/config"
	"github.com/dapoalex/AjoPool/internal/models"
)

// Result of running a validator.
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func newResult() *Result {
	return &Result{Valid: true}
}

func (r *Result) addError(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validator applies the configured business rules. All methods are pure;
// callers load whatever state the check needs and pass it in.
type Validator struct {
	rules config.RulesConfig
	now   func() time.Time
}

func New(rules config.RulesConfig, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{rules: rules, now: now}
}

// GroupCreationInput is the proposed group before any persistence.
type GroupCreationInput struct {
	Name               string
	AdminID            string
	ContributionAmount int64
	TotalCycles        int
	StartDate          time.Time
	Members            []ProposedMember
}

// ProposedMember is a member entry in a creation request.
type ProposedMember struct {
	UserID      string
	DisplayName string
	Role        models.MemberRole
}

func (v *Validator) ValidateGroupCreation(in GroupCreationInput) *Result {
	r := newResult()

	if n := len(in.Name); n < 3 || n > 50 {
		r.addError("group name must be between 3 and 50 characters, got %d", n)
	}
	if in.ContributionAmount < v.rules.MinContribution {
		r.addError("contribution amount %d is below the minimum %d", in.ContributionAmount, v.rules.MinContribution)
	}
	if in.ContributionAmount > v.rules.MaxContribution {
		r.addError("contribution amount %d exceeds the maximum %d", in.ContributionAmount, v.rules.MaxContribution)
	}
	if n := len(in.Members); n < v.rules.MinMembers {
		r.addError("group needs at least %d members, got %d", v.rules.MinMembers, n)
	} else if n > v.rules.MaxMembers {
		r.addError("group exceeds the maximum of %d members, got %d", v.rules.MaxMembers, n)
	}

	memberCount := len(in.Members)
	if in.TotalCycles < memberCount {
		r.addError("total cycles %d is fewer than member count %d; every member must receive one payout", in.TotalCycles, memberCount)
	} else if memberCount > 0 && in.TotalCycles > 2*memberCount {
		r.addWarning("total cycles %d is more than double the member count %d", in.TotalCycles, memberCount)
	}

	if in.StartDate.Before(v.now()) {
		r.addWarning("start date is in the past")
	}

	adminListed := false
	for _, m := range in.Members {
		if m.UserID == in.AdminID && m.Role == models.RoleAdmin {
			adminListed = true
			break
		}
	}
	if !adminListed {
		r.addError("admin must appear in the member list with the admin role")
	}

	return r
}

// ValidateMemberJoin checks a join request against the group and its current
// membership rows, including inactive ones.
func (v *Validator) ValidateMemberJoin(group *models.Group, memberships []models.GroupMember, userID, displayName string) *Result {
	r := newResult()

	if userID == "" {
		r.addError("user id is required")
	}
	if displayName == "" {
		r.addError("display name is required")
	}
	if !group.IsActive() {
		r.addError("group %s is not active", group.Name)
	}
	if group.IsFull() {
		r.addError("group %s is at its capacity of %d members", group.Name, group.MaxMembers)
	}

	for _, m := range memberships {
		if m.UserID != userID {
			continue
		}
		if m.Active {
			r.addError("user is already an active member of this group")
		} else {
			r.addWarning("user previously left this group; rejoining reactivates the old membership")
		}
		break
	}

	if group.CurrentCycle > 1 {
		r.addWarning("joining mid-rotation at cycle %d; earlier payouts are not owed to new members", group.CurrentCycle)
	}

	return r
}

// ValidateContribution checks a payment against its group, the paying member,
// and the contribution record being settled.
func (v *Validator) ValidateContribution(group *models.Group, member *models.GroupMember, contribution *models.Contribution, amount int64) *Result {
	r := newResult()

	if !group.IsActive() {
		r.addError("group %s is not active", group.Name)
	}
	if !member.Active {
		r.addError("member is not active in this group")
	}
	if amount < contribution.Amount {
		r.addError("amount %d is less than the required contribution %d", amount, contribution.Amount)
	} else if amount > contribution.Amount {
		r.addWarning("amount %d exceeds the required contribution %d", amount, contribution.Amount)
	}
	if contribution.CycleNumber > group.CurrentCycle {
		r.addError("contribution is for future cycle %d; current cycle is %d", contribution.CycleNumber, group.CurrentCycle)
	} else if contribution.CycleNumber < group.CurrentCycle {
		r.addWarning("contribution is for past cycle %d; current cycle is %d", contribution.CycleNumber, group.CurrentCycle)
	}
	if v.now().After(contribution.DueDate) {
		r.addWarning("contribution is past its due date of %s", contribution.DueDate.Format("2006-01-02"))
	}

	return r
}

// ValidateCycleProcessing checks the preconditions for advancing a cycle.
// completionPercent comes from the ledger for the current cycle.
func (v *Validator) ValidateCycleProcessing(group *models.Group, callerID string, completionPercent int) *Result {
	r := newResult()

	if callerID != group.AdminID {
		r.addError("only the group admin can process a cycle")
	}
	if !group.IsActive() {
		r.addError("group %s is not active", group.Name)
	}
	if group.CurrentCycle > group.TotalCycles {
		r.addError("group has already completed all %d cycles", group.TotalCycles)
	}
	if completionPercent < 100 {
		r.addError("cycle %d is only %d%% paid; 100%% is required to advance", group.CurrentCycle, completionPercent)
	}
	if group.CurrentCycle == group.TotalCycles {
		r.addWarning("this is the final cycle; processing it completes the group")
	}

	return r
}

// ValidatePayoutEligibility checks the cycle's recipient against the computed
// payout amount and their payment history.
func (v *Validator) ValidatePayoutEligibility(group *models.Group, recipient *models.GroupMember, grossAmount, expectedAmount int64) *Result {
	r := newResult()

	if recipient == nil || recipient.GroupID != group.ID {
		r.addError("recipient is not a member of this group")
		return r
	}
	if !recipient.Active {
		r.addError("recipient is not an active member of this group")
	}
	if grossAmount != expectedAmount {
		r.addWarning("payout amount %d does not match the expected %d", grossAmount, expectedAmount)
	}
	if recipient.MissedPayments > v.rules.MissedPaymentWarning {
		r.addWarning("recipient has %d missed payments, above the threshold of %d", recipient.MissedPayments, v.rules.MissedPaymentWarning)
	}

	return r
}
