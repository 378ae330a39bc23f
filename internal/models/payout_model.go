package models

import (
	"time"
)

// PayoutStatus lifecycle: scheduled -> processing -> completed, or
// -> failed -> (retry: scheduled again, bounded) -> failed terminally.
type PayoutStatus string

const (
	PayoutScheduled  PayoutStatus = "scheduled"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
)

// Payout is the pooled disbursement for one cycle. The (group_id,
// cycle_number) pair is unique; that store-level constraint is the
// idempotency guard against double payouts on retried cycle processing.
type Payout struct {
	ID            string       `gorm:"primaryKey" json:"id"`
	GroupID       string       `gorm:"not null;uniqueIndex:idx_group_cycle" json:"group_id"`
	CycleNumber   int          `gorm:"not null;uniqueIndex:idx_group_cycle" json:"cycle_number"`
	RecipientID   string       `gorm:"not null;index" json:"recipient_id"`
	GrossAmount   int64        `gorm:"not null" json:"gross_amount"` // kobo
	ProcessingFee int64        `gorm:"default:0" json:"processing_fee"`
	NetAmount     int64        `gorm:"not null" json:"net_amount"`
	Status        PayoutStatus `gorm:"default:scheduled;index" json:"status"`
	ScheduledAt   time.Time    `gorm:"not null" json:"scheduled_at"`
	ProcessedAt   *time.Time   `json:"processed_at,omitempty"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
	RetryCount    int          `gorm:"default:0" json:"retry_count"`
	MaxRetries    int          `gorm:"default:3" json:"max_retries"`
	FailureReason string       `json:"failure_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Payout) TableName() string {
	return CollectionPayouts
}

// CanRetry reports whether a failed payout may be rescheduled.
func (p *Payout) CanRetry() bool {
	return p.Status == PayoutFailed && p.RetryCount < p.MaxRetries
}
