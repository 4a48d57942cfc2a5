package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentStatus enum constants
const (
	PaymentPending   = "PENDING"
	PaymentPartial   = "PARTIAL"
	PaymentAllocated = "ALLOCATED"
)

// PaymentType enum constants
const (
	PaymentCash     = "CASH"
	PaymentTransfer = "TRANSFER"
	PaymentCheck    = "CHECK"
	PaymentCard     = "CARD"
)

// ReceiptStatus enum constants
const (
	ReceiptIssued = "ISSUED"
	ReceiptVoid   = "VOID"
)

// Payment is money received from a client, spread over invoices by allocation.
type Payment struct {
	ID              uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID        uuid.UUID           `gorm:"type:uuid;not null;index" json:"client_id"`
	Amount          decimal.Decimal     `gorm:"type:decimal(18,2);not null" json:"amount"`
	Currency        string              `gorm:"type:varchar(3);not null" json:"currency"`
	PaymentDate     time.Time           `gorm:"not null;index" json:"payment_date"`
	PaymentType     string              `gorm:"type:varchar(10);not null" json:"payment_type"`
	Reference       string              `gorm:"type:varchar(100)" json:"reference"`
	AmountAllocated decimal.Decimal     `gorm:"type:decimal(18,2);not null" json:"amount_allocated"`
	Status          string              `gorm:"type:varchar(12);not null;index" json:"status"`
	Notes           string              `gorm:"type:text" json:"notes"`
	Allocations     []PaymentAllocation `gorm:"foreignKey:PaymentID" json:"allocations,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// Unallocated is the part of the payment not yet applied to invoices.
func (p Payment) Unallocated() decimal.Decimal {
	return p.Amount.Sub(p.AmountAllocated)
}

// PaymentAllocation applies part of a payment to one invoice. Rows are append-only.
type PaymentAllocation struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PaymentID uuid.UUID       `gorm:"type:uuid;not null;index" json:"payment_id"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

func (a *PaymentAllocation) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}

// Receipt acknowledges a recorded payment.
type Receipt struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ReceiptNumber string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"receipt_number"`
	PaymentID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"payment_id"`
	ClientID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"client_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Currency      string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status        string          `gorm:"type:varchar(8);not null" json:"status"`
	IssuedAt      time.Time       `gorm:"not null" json:"issued_at"`
	VoidReason    string          `gorm:"type:text" json:"void_reason"`
	VoidedAt      *time.Time      `json:"voided_at"`
}

func (r *Receipt) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}
