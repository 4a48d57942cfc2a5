package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PriceSource enum constants, in resolution priority order
const (
	PriceSourceManual = "MANUAL"
	PriceSourceClient = "CLIENT"
	PriceSourceGlobal = "GLOBAL"
)

// PriceScopeGlobal is the scope key of catalog-wide prices.
const PriceScopeGlobal = "GLOBAL"

// Price is one version of a service price, either global or for a single client.
// At most one row per (service, scope) has a nil EffectiveTo.
type Price struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ServiceID     uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_prices_current,where:effective_to IS NULL" json:"service_id"`
	ClientID      *uuid.UUID      `gorm:"type:uuid;index" json:"client_id"` // nil = global price
	ScopeKey      string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_prices_current,where:effective_to IS NULL" json:"-"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	EffectiveFrom time.Time       `gorm:"not null;index" json:"effective_from"`
	EffectiveTo   *time.Time      `gorm:"index" json:"effective_to"` // nil = current version
	Version       int             `gorm:"not null" json:"version"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (p *Price) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	if p.ScopeKey == "" {
		p.ScopeKey = PriceScopeKey(p.ClientID)
	}
	return nil
}

// PriceScopeKey maps an optional client to the scope column value.
func PriceScopeKey(clientID *uuid.UUID) string {
	if clientID == nil {
		return PriceScopeGlobal
	}
	return clientID.String()
}

// ResolvedPrice is the outcome of price resolution for one contract line.
type ResolvedPrice struct {
	UnitPrice decimal.Decimal `json:"unit_price"`
	Source    string          `json:"source"`
	PriceID   *uuid.UUID      `json:"price_id,omitempty"` // nil for MANUAL
	// ValidUntil is the next instant a price version of the service starts or
	// ends; the resolution may differ after it. Nil when none is scheduled.
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}
