// Package apperror defines the typed failures returned by services and their HTTP mapping.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to API clients.
const (
	CodeValidation              = "VALIDATION_ERROR"
	CodeInvalidPrice            = "INVALID_PRICE"
	CodeNotFound                = "NOT_FOUND"
	CodeInvalidContractState    = "INVALID_CONTRACT_STATE"
	CodeInvalidInvoiceState     = "INVALID_INVOICE_STATE"
	CodeMissingContractDocument = "MISSING_CONTRACT_DOCUMENT"
	CodeNoServiceLines          = "NO_SERVICE_LINES"
	CodeNoPriceConfigured       = "NO_PRICE_CONFIGURED"
	CodeOverAllocation          = "OVER_ALLOCATION"
	CodeInvalidAllocation       = "INVALID_ALLOCATION"
	CodeConflict                = "CONFLICT"
	CodeServiceInUse            = "SERVICE_IN_USE"
	CodeInternal                = "INTERNAL_ERROR"
)

// Error is a domain failure with a stable code and structured details.
type Error struct {
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newError(code, msg string, details map[string]any) *Error {
	return &Error{Code: code, Message: msg, Details: details}
}

// Sentinels for errors.Is checks.
var (
	ErrValidation              = &Error{Code: CodeValidation}
	ErrInvalidPrice            = &Error{Code: CodeInvalidPrice}
	ErrNotFound                = &Error{Code: CodeNotFound}
	ErrInvalidContractState    = &Error{Code: CodeInvalidContractState}
	ErrInvalidInvoiceState     = &Error{Code: CodeInvalidInvoiceState}
	ErrMissingContractDocument = &Error{Code: CodeMissingContractDocument}
	ErrNoServiceLines          = &Error{Code: CodeNoServiceLines}
	ErrNoPriceConfigured       = &Error{Code: CodeNoPriceConfigured}
	ErrOverAllocation          = &Error{Code: CodeOverAllocation}
	ErrInvalidAllocation       = &Error{Code: CodeInvalidAllocation}
	ErrConflict                = &Error{Code: CodeConflict}
	ErrServiceInUse            = &Error{Code: CodeServiceInUse}
)

func Validation(field, reason string) *Error {
	return newError(CodeValidation, fmt.Sprintf("%s: %s", field, reason),
		map[string]any{"field": field, "reason": reason})
}

func InvalidPrice(reason string) *Error {
	return newError(CodeInvalidPrice, "invalid price: "+reason, map[string]any{"reason": reason})
}

func NotFound(entity, id string) *Error {
	return newError(CodeNotFound, fmt.Sprintf("%s %s not found", entity, id),
		map[string]any{"entity": entity, "id": id})
}

func InvalidContractState(from, attempted string) *Error {
	return newError(CodeInvalidContractState,
		fmt.Sprintf("cannot %s contract in status %s", attempted, from),
		map[string]any{"from": from, "attempted": attempted})
}

func InvalidInvoiceState(from, attempted string) *Error {
	return newError(CodeInvalidInvoiceState,
		fmt.Sprintf("cannot %s invoice in status %s", attempted, from),
		map[string]any{"from": from, "attempted": attempted})
}

func MissingContractDocument(contractID string) *Error {
	return newError(CodeMissingContractDocument, "written contract has no current signed document",
		map[string]any{"contract_id": contractID})
}

func NoServiceLines(contractID string) *Error {
	return newError(CodeNoServiceLines, "contract has no service lines",
		map[string]any{"contract_id": contractID})
}

func NoPriceConfigured(serviceID, clientID string) *Error {
	return newError(CodeNoPriceConfigured, "no price configured for service",
		map[string]any{"service_id": serviceID, "client_id": clientID})
}

func OverAllocation(requested, available string) *Error {
	return newError(CodeOverAllocation,
		fmt.Sprintf("allocation %s exceeds available %s", requested, available),
		map[string]any{"requested": requested, "available": available})
}

func InvalidAllocation(reason string) *Error {
	return newError(CodeInvalidAllocation, "invalid allocation: "+reason, map[string]any{"reason": reason})
}

func Conflict(reason string) *Error {
	return newError(CodeConflict, reason, nil)
}

func ServiceInUse(serviceID string, contracts int64) *Error {
	return newError(CodeServiceInUse, "service is referenced by active contracts",
		map[string]any{"service_id": serviceID, "contracts": contracts})
}

// HTTPStatus maps an error to the response status code.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case CodeValidation, CodeInvalidPrice:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidContractState, CodeInvalidInvoiceState, CodeConflict, CodeServiceInUse:
		return http.StatusConflict
	case CodeMissingContractDocument, CodeNoServiceLines, CodeNoPriceConfigured,
		CodeOverAllocation, CodeInvalidAllocation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf returns the error code, or CodeInternal for untyped errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
