package billing

import (
	"backoffice/internal/apperror"
	"backoffice/internal/model"
)

// Contract actions
const (
	ContractActivate   = "activate"
	ContractSuspend    = "suspend"
	ContractReactivate = "reactivate"
	ContractTerminate  = "terminate"
	ContractExpire     = "expire"
	ContractEdit       = "edit"
	ContractDelete     = "delete"
)

// Invoice actions
const (
	InvoiceIssue    = "issue"
	InvoiceCancel   = "cancel"
	InvoiceVoid     = "void"
	InvoiceEdit     = "edit"
	InvoiceAllocate = "allocate"
)

// contractTransitions is the single source of legal contract status changes.
// TERMINATED and EXPIRED have no outgoing edges.
var contractTransitions = map[string]map[string]string{
	model.ContractDraft: {
		ContractActivate: model.ContractActive,
	},
	model.ContractActive: {
		ContractSuspend:   model.ContractSuspended,
		ContractTerminate: model.ContractTerminated,
		ContractExpire:    model.ContractExpired,
	},
	model.ContractSuspended: {
		ContractReactivate: model.ContractActive,
		ContractTerminate:  model.ContractTerminated,
	},
}

// invoiceTransitions covers caller-driven invoice changes. PARTIAL and PAID are
// reached only through payment allocation, see InvoiceStatusForPaid.
var invoiceTransitions = map[string]map[string]string{
	model.InvoiceDraft: {
		InvoiceIssue:  model.InvoiceIssued,
		InvoiceCancel: model.InvoiceCancelled,
	},
	model.InvoiceIssued: {
		InvoiceVoid: model.InvoiceVoid,
	},
	model.InvoicePartial: {
		InvoiceVoid: model.InvoiceVoid,
	},
	model.InvoicePaid: {
		InvoiceVoid: model.InvoiceVoid,
	},
}

// NextContractStatus returns the status reached by applying action, or
// InvalidContractState when the edge does not exist.
func NextContractStatus(from, action string) (string, error) {
	if to, ok := contractTransitions[from][action]; ok {
		return to, nil
	}
	return "", apperror.InvalidContractState(from, action)
}

// CheckContractEditable rejects header, line and delete mutations outside DRAFT.
func CheckContractEditable(status, action string) error {
	if status != model.ContractDraft {
		return apperror.InvalidContractState(status, action)
	}
	return nil
}

// NextInvoiceStatus returns the status reached by applying action, or
// InvalidInvoiceState when the edge does not exist.
func NextInvoiceStatus(from, action string) (string, error) {
	if to, ok := invoiceTransitions[from][action]; ok {
		return to, nil
	}
	return "", apperror.InvalidInvoiceState(from, action)
}

// CheckInvoiceEditable rejects line changes once an invoice has left DRAFT.
func CheckInvoiceEditable(status string) error {
	if status != model.InvoiceDraft {
		return apperror.InvalidInvoiceState(status, InvoiceEdit)
	}
	return nil
}

// IsTerminalContract reports whether no transition can leave status.
func IsTerminalContract(status string) bool {
	return len(contractTransitions[status]) == 0
}

// IsTerminalInvoice reports whether no transition can leave status.
func IsTerminalInvoice(status string) bool {
	return status == model.InvoiceCancelled || status == model.InvoiceVoid
}
