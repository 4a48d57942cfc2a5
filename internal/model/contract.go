package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ContractStatus enum constants
const (
	ContractDraft      = "DRAFT"
	ContractActive     = "ACTIVE"
	ContractSuspended  = "SUSPENDED"
	ContractTerminated = "TERMINATED"
	ContractExpired    = "EXPIRED"
)

// AgreementType enum constants
const (
	AgreementWritten = "WRITTEN"
	AgreementVerbal  = "VERBAL"
)

// TermType enum constants
const (
	TermFixed     = "FIXED_TERM"
	TermEvergreen = "EVERGREEN"
	TermAutoRenew = "AUTO_RENEW"
)

// BillingType enum constants
const (
	BillingRecurring = "RECURRING"
	BillingOneTime   = "ONE_TIME"
)

// IntervalUnit enum constants
const (
	IntervalDay   = "DAY"
	IntervalWeek  = "WEEK"
	IntervalMonth = "MONTH"
	IntervalYear  = "YEAR"
)

// InvoiceTiming enum constants
const (
	TimingAdvance = "ADVANCE"
	TimingArrears = "ARREARS"
)

// ProrationPolicy enum constants
const (
	ProrationProrated   = "PRORATED"
	ProrationFullPeriod = "FULL_PERIOD"
	ProrationNoCharge   = "NO_CHARGE"
)

// Contract is a client agreement that drives recurring or one-time billing.
type Contract struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ContractNumber       string         `gorm:"type:varchar(30);uniqueIndex;not null" json:"contract_number"`
	ClientID             uuid.UUID      `gorm:"type:uuid;not null;index" json:"client_id"`
	AgreementType        string         `gorm:"type:varchar(10);not null" json:"agreement_type"`
	TermType             string         `gorm:"type:varchar(12);not null" json:"term_type"`
	StartDate            time.Time      `gorm:"not null" json:"start_date"`
	EndDate              *time.Time     `json:"end_date"` // inclusive, nil = open ended
	RenewalTermMonths    int            `gorm:"not null;default:0" json:"renewal_term_months"`
	BillingType          string         `gorm:"type:varchar(12);not null" json:"billing_type"`
	BillingIntervalUnit  string         `gorm:"type:varchar(8)" json:"billing_interval_unit"`
	BillingIntervalCount int            `gorm:"not null;default:1" json:"billing_interval_count"`
	BillingDayOfMonth    *int           `json:"billing_day_of_month"`
	AutoInvoicingEnabled bool           `gorm:"not null" json:"auto_invoicing_enabled"`
	InvoiceTiming        string         `gorm:"type:varchar(10);not null" json:"invoice_timing"`
	ProrationPolicy      string         `gorm:"type:varchar(12);not null" json:"proration_policy"`
	Currency             string         `gorm:"type:varchar(3);not null" json:"currency"`
	Status               string         `gorm:"type:varchar(12);not null;index" json:"status"`
	StatusReason         string         `gorm:"type:text" json:"status_reason"`
	HasCurrentDocument   bool           `gorm:"not null" json:"has_current_document"`
	NextInvoiceDate      *time.Time     `gorm:"index" json:"next_invoice_date"`
	LastInvoiceDate      *time.Time     `json:"last_invoice_date"`
	ActivatedAt          *time.Time     `json:"activated_at"`
	SuspendedAt          *time.Time     `json:"suspended_at"`
	TerminatedAt         *time.Time     `json:"terminated_at"`
	Notes                string         `gorm:"type:text" json:"notes"`
	Lines                []ContractLine `gorm:"foreignKey:ContractID;constraint:OnDelete:CASCADE" json:"lines"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

func (c *Contract) BeforeCreate(tx *gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// ContractLine is one priced service on a contract.
type ContractLine struct {
	ID                uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	ContractID        uuid.UUID           `gorm:"type:uuid;not null;index" json:"contract_id"`
	Position          int                 `gorm:"not null" json:"position"`
	ServiceID         uuid.UUID           `gorm:"type:uuid;not null;index" json:"service_id"`
	Service           *Service            `gorm:"foreignKey:ServiceID" json:"service,omitempty"`
	Description       string              `gorm:"type:text" json:"description"`
	Quantity          decimal.Decimal     `gorm:"type:decimal(18,4);not null" json:"quantity"`
	BillingUnit       string              `gorm:"type:varchar(30);not null" json:"billing_unit"`
	ManualUnitPrice   decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"manual_unit_price"`
	ResolvedUnitPrice decimal.Decimal     `gorm:"type:decimal(18,2);not null" json:"resolved_unit_price"`
	PriceSource       string              `gorm:"type:varchar(10);not null" json:"price_source"`
	ItbisApplicable   bool                `gorm:"not null" json:"itbis_applicable"`
	LineTotal         decimal.Decimal     `gorm:"type:decimal(18,2);not null" json:"line_total"`
}

func (l *ContractLine) BeforeCreate(tx *gorm.DB) error {
	assignID(&l.ID)
	return nil
}

// EffectiveUnitPrice prefers the manual override over the resolved price.
func (l ContractLine) EffectiveUnitPrice() decimal.Decimal {
	if l.ManualUnitPrice.Valid {
		return l.ManualUnitPrice.Decimal
	}
	return l.ResolvedUnitPrice
}

// ContractDocument is a signed agreement file attached to a contract.
type ContractDocument struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ContractID  uuid.UUID `gorm:"type:uuid;not null;index" json:"contract_id"`
	FileName    string    `gorm:"type:varchar(255);not null" json:"file_name"`
	StorageKey  string    `gorm:"type:varchar(500);not null" json:"storage_key"`
	ContentType string    `gorm:"type:varchar(100)" json:"content_type"`
	IsCurrent   bool      `gorm:"not null;index" json:"is_current"`
	UploadedBy  string    `gorm:"type:varchar(100)" json:"uploaded_by"`
	UploadedAt  time.Time `gorm:"not null" json:"uploaded_at"`
}

func (d *ContractDocument) BeforeCreate(tx *gorm.DB) error {
	assignID(&d.ID)
	return nil
}
