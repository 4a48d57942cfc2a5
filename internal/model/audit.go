package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreateService     = "CREATE_SERVICE"
	ActionUpdateService     = "UPDATE_SERVICE"
	ActionDeactivateService = "DEACTIVATE_SERVICE"
	ActionSetPrice          = "SET_PRICE"

	// Contract lifecycle
	ActionCreateContract    = "CREATE_CONTRACT"
	ActionUpdateContract    = "UPDATE_CONTRACT"
	ActionDeleteContract    = "DELETE_CONTRACT"
	ActionAttachDocument    = "ATTACH_CONTRACT_DOCUMENT"
	ActionActivateContract  = "ACTIVATE_CONTRACT"
	ActionSuspendContract   = "SUSPEND_CONTRACT"
	ActionReactivate        = "REACTIVATE_CONTRACT"
	ActionTerminateContract = "TERMINATE_CONTRACT"
	ActionExpireContract    = "EXPIRE_CONTRACT"
	ActionRenewContract     = "RENEW_CONTRACT"

	// Invoicing
	ActionCreateInvoice = "CREATE_INVOICE"
	ActionUpdateInvoice = "UPDATE_INVOICE"
	ActionIssueInvoice  = "ISSUE_INVOICE"
	ActionCancelInvoice = "CANCEL_INVOICE"
	ActionVoidInvoice   = "VOID_INVOICE"

	// Payments
	ActionRecordPayment   = "RECORD_PAYMENT"
	ActionAllocatePayment = "ALLOCATE_PAYMENT"
	ActionVoidReceipt     = "VOID_RECEIPT"
)

// AuditLog tracks who changed what and when in billing state.
type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Actor      string    `gorm:"type:varchar(100);index" json:"actor"` // user id from token, or "system"
	Action     string    `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string    `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string    `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string    `gorm:"type:text" json:"details"` // serialized JSON payload
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}
