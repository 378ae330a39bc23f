package models

import (
	"time"
)

// Collection names shared by the document store and the gorm table mapping.
const (
	CollectionGroups        = "groups"
	CollectionGroupMembers  = "group_members"
	CollectionContributions = "contributions"
	CollectionPayouts       = "payouts"
	CollectionUsers         = "users"
)

// GroupStatus lifecycle of an ajo group.
type GroupStatus string

const (
	GroupStatusActive    GroupStatus = "active"
	GroupStatusPaused    GroupStatus = "paused"
	GroupStatusCompleted GroupStatus = "completed"
)

// Frequency is how often members contribute.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// PayoutSchedule is how often payouts are disbursed.
type PayoutSchedule string

const (
	PayoutScheduleWeekly  PayoutSchedule = "weekly"
	PayoutScheduleMonthly PayoutSchedule = "monthly"
)

// Group is a rotating savings group. Cycles are 1-indexed; CurrentCycle may
// reach TotalCycles+1, which marks "just completed, not yet archived".
// Memberships live in the group_members collection, referenced by group_id.
type Group struct {
	ID                 string         `gorm:"primaryKey" json:"id"`
	Name               string         `gorm:"not null" json:"name"`
	Description        string         `json:"description"`
	AdminID            string         `gorm:"not null;index" json:"admin_id"`
	ContributionAmount int64          `gorm:"not null" json:"contribution_amount"` // kobo
	Frequency          Frequency      `gorm:"not null" json:"frequency"`
	PayoutSchedule     PayoutSchedule `gorm:"not null" json:"payout_schedule"`
	Status             GroupStatus    `gorm:"default:active;index" json:"status"`
	StartDate          time.Time      `gorm:"not null" json:"start_date"`
	EndDate            *time.Time     `json:"end_date,omitempty"`
	CurrentCycle       int            `gorm:"default:1" json:"current_cycle"`
	TotalCycles        int            `gorm:"not null" json:"total_cycles"`
	MaxMembers         int            `json:"max_members"`
	MemberCount        int            `gorm:"default:0" json:"member_count"`
	TotalContributed   int64          `gorm:"default:0" json:"total_contributed"`
	TotalPaidOut       int64          `gorm:"default:0" json:"total_paid_out"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Group) TableName() string {
	return CollectionGroups
}

// IsActive reports whether the group is accepting contributions and advances.
func (g *Group) IsActive() bool {
	return g.Status == GroupStatusActive
}

// IsFull reports whether the group has reached its member capacity.
func (g *Group) IsFull() bool {
	return g.MaxMembers > 0 && g.MemberCount >= g.MaxMembers
}

// MemberRole within a group. Treasurer is an optional extension role treated
// like a regular member everywhere except display.
type MemberRole string

const (
	RoleAdmin     MemberRole = "admin"
	RoleMember    MemberRole = "member"
	RoleTreasurer MemberRole = "treasurer"
)

// GroupMember is a membership record owned by its group. Aggregate counters
// are mutated only through named engine operations, never ad hoc patches.
// Position records insertion order and breaks joined-at ties so the rotation
// order is total and deterministic.
type GroupMember struct {
	ID               string     `gorm:"primaryKey" json:"id"`
	GroupID          string     `gorm:"not null;uniqueIndex:idx_group_user" json:"group_id"`
	UserID           string     `gorm:"not null;uniqueIndex:idx_group_user" json:"user_id"`
	DisplayName      string     `gorm:"not null" json:"display_name"`
	Role             MemberRole `gorm:"default:member" json:"role"`
	JoinedAt         time.Time  `gorm:"not null" json:"joined_at"`
	Position         int        `gorm:"not null" json:"position"`
	Active           bool       `gorm:"default:true" json:"active"`
	TotalContributed int64      `gorm:"default:0" json:"total_contributed"`
	MissedPayments   int        `gorm:"default:0" json:"missed_payments"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (GroupMember) TableName() string {
	return CollectionGroupMembers
}
