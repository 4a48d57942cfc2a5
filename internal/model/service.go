package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service is a billable catalog entry referenced by contract and invoice lines.
type Service struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code               string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name               string    `gorm:"type:varchar(255);not null" json:"name"`
	Description        string    `gorm:"type:text" json:"description"`
	DefaultBillingUnit string    `gorm:"type:varchar(30);not null" json:"default_billing_unit"` // UNIT, HOUR, MONTH...
	ItbisApplicable    bool      `gorm:"not null" json:"itbis_applicable"`
	Active             bool      `gorm:"not null;index" json:"active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (s *Service) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}
