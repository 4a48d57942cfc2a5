package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStatus enum constants
const (
	InvoiceDraft     = "DRAFT"
	InvoiceIssued    = "ISSUED"
	InvoicePartial   = "PARTIAL"
	InvoicePaid      = "PAID"
	InvoiceCancelled = "CANCELLED"
	InvoiceVoid      = "VOID"
)

// Invoice is a billing document. Totals are always derived from its lines;
// AmountPaid and Balance move only through payment allocation.
type Invoice struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceNumber      string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"invoice_number"`
	NCF                *string         `gorm:"column:ncf;type:varchar(19);uniqueIndex" json:"ncf"` // fiscal number, set on issue
	ClientID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"client_id"`
	ContractID         *uuid.UUID      `gorm:"type:uuid;index" json:"contract_id"`
	Status             string          `gorm:"type:varchar(12);not null;index" json:"status"`
	Currency           string          `gorm:"type:varchar(3);not null" json:"currency"`
	IssueDate          time.Time       `gorm:"not null;index" json:"issue_date"`
	DueDate            time.Time       `gorm:"not null;index" json:"due_date"`
	PeriodStart        *time.Time      `json:"period_start"`
	PeriodEnd          *time.Time      `json:"period_end"`
	Subtotal           decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"subtotal"`
	ItbisAmount        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"itbis_amount"`
	Total              decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total"`
	AmountPaid         decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount_paid"`
	Balance            decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"balance"`
	Notes              string          `gorm:"type:text" json:"notes"`
	IssuedAt           *time.Time      `json:"issued_at"`
	CancellationReason string          `gorm:"type:text" json:"cancellation_reason"`
	CancelledAt        *time.Time      `json:"cancelled_at"`
	VoidReason         string          `gorm:"type:text" json:"void_reason"`
	VoidedAt           *time.Time      `json:"voided_at"`
	Lines              []InvoiceLine   `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"lines"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// IsOverdue reports whether an open invoice is past its due date on the given day.
func (i Invoice) IsOverdue(today time.Time) bool {
	if i.Status != InvoiceIssued && i.Status != InvoicePartial {
		return false
	}
	return DateOnly(today).After(DateOnly(i.DueDate))
}

// InvoiceLine holds one billed service with its precomputed amounts.
type InvoiceLine struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Position        int             `gorm:"not null" json:"position"`
	ServiceID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"service_id"`
	ContractLineID  *uuid.UUID      `gorm:"type:uuid" json:"contract_line_id"`
	Description     string          `gorm:"type:text" json:"description"`
	Quantity        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	BillingUnit     string          `gorm:"type:varchar(30);not null" json:"billing_unit"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_price"`
	ItbisApplicable bool            `gorm:"not null" json:"itbis_applicable"`
	LineSubtotal    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"line_subtotal"`
	ItbisAmount     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"itbis_amount"`
	LineTotal       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"line_total"`
}

func (l *InvoiceLine) BeforeCreate(tx *gorm.DB) error {
	assignID(&l.ID)
	return nil
}
