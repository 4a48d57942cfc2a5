package model

import "time"

// Sequence names
const (
	SequenceContract = "CONTRACT"
	SequenceInvoice  = "INVOICE"
	SequenceNCF      = "NCF"
	SequenceReceipt  = "RECEIPT"
)

// DocumentSequence is a gap-free counter for human-facing document numbers.
// The row is locked while the next value is taken.
type DocumentSequence struct {
	Name      string    `gorm:"type:varchar(30);primaryKey" json:"name"`
	LastValue int64     `gorm:"not null" json:"last_value"`
	UpdatedAt time.Time `json:"updated_at"`
}
