package models

import (
	"time"
)

// ContributionStatus lifecycle of a single cycle contribution.
type ContributionStatus string

const (
	ContributionPending ContributionStatus = "pending"
	ContributionPaid    ContributionStatus = "paid"
	ContributionOverdue ContributionStatus = "overdue"
)

// Contribution is one member's obligation for one cycle. The
// (group_id, cycle_number, user_id) triple is unique: a cycle opens with one
// pending record per active member, and payment confirmation flips it to paid.
type Contribution struct {
	ID          string             `gorm:"primaryKey" json:"id"`
	GroupID     string             `gorm:"not null;uniqueIndex:idx_group_cycle_user" json:"group_id"`
	CycleNumber int                `gorm:"not null;uniqueIndex:idx_group_cycle_user" json:"cycle_number"`
	UserID      string             `gorm:"not null;uniqueIndex:idx_group_cycle_user" json:"user_id"`
	Amount      int64              `gorm:"not null" json:"amount"` // kobo
	DueDate     time.Time          `gorm:"not null" json:"due_date"`
	PaidDate    *time.Time         `json:"paid_date,omitempty"`
	Status      ContributionStatus `gorm:"default:pending;index" json:"status"`
	Late        bool               `gorm:"default:false" json:"late"`
	LatePenalty int64              `gorm:"default:0" json:"late_penalty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Contribution) TableName() string {
	return CollectionContributions
}

// PaidValue is the amount this contribution adds to a cycle's paid total.
func (c *Contribution) PaidValue() int64 {
	if c.Status != ContributionPaid {
		return 0
	}
	return c.Amount + c.LatePenalty
}
