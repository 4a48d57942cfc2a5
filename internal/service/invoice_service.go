package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"backoffice/internal/apperror"
	"backoffice/internal/billing"
	"backoffice/internal/events"
	"backoffice/internal/external"
	"backoffice/internal/model"
	"backoffice/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type InvoiceLineRequest struct {
	ServiceID       string  `json:"service_id" binding:"required"`
	Description     string  `json:"description"`
	Quantity        string  `json:"quantity" binding:"required"`
	BillingUnit     string  `json:"billing_unit"`
	UnitPrice       *string `json:"unit_price"` // resolved for the client when omitted
	ItbisApplicable *bool   `json:"itbis_applicable"`
}

type CreateInvoiceRequest struct {
	ClientID    string               `json:"client_id" binding:"required"`
	ContractID  string               `json:"contract_id"`
	Currency    string               `json:"currency"`
	IssueDate   string               `json:"issue_date"` // YYYY-MM-DD, defaults to today
	DueDate     string               `json:"due_date"`   // YYYY-MM-DD, defaults to issue date + due days
	PeriodStart string               `json:"period_start"`
	PeriodEnd   string               `json:"period_end"`
	Notes       string               `json:"notes"`
	Lines       []InvoiceLineRequest `json:"lines" binding:"dive"`
}

type ReplaceInvoiceLinesRequest struct {
	Lines []InvoiceLineRequest `json:"lines" binding:"dive"`
}

type ReasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type InvoiceLineResponse struct {
	ID              string  `json:"id"`
	Position        int     `json:"position"`
	ServiceID       string  `json:"service_id"`
	ContractLineID  *string `json:"contract_line_id"`
	Description     string  `json:"description"`
	Quantity        string  `json:"quantity"`
	BillingUnit     string  `json:"billing_unit"`
	UnitPrice       string  `json:"unit_price"`
	ItbisApplicable bool    `json:"itbis_applicable"`
	LineSubtotal    string  `json:"line_subtotal"`
	ItbisAmount     string  `json:"itbis_amount"`
	LineTotal       string  `json:"line_total"`
}

type InvoiceResponse struct {
	ID                 string                `json:"id"`
	InvoiceNumber      string                `json:"invoice_number"`
	NCF                *string               `json:"ncf"`
	ClientID           string                `json:"client_id"`
	ContractID         *string               `json:"contract_id"`
	Status             string                `json:"status"`
	Currency           string                `json:"currency"`
	IssueDate          string                `json:"issue_date"`
	DueDate            string                `json:"due_date"`
	PeriodStart        *string               `json:"period_start"`
	PeriodEnd          *string               `json:"period_end"`
	Subtotal           string                `json:"subtotal"`
	ItbisAmount        string                `json:"itbis_amount"`
	Total              string                `json:"total"`
	AmountPaid         string                `json:"amount_paid"`
	Balance            string                `json:"balance"`
	IsOverdue          bool                  `json:"is_overdue"`
	Notes              string                `json:"notes"`
	IssuedAt           *string               `json:"issued_at"`
	CancellationReason string                `json:"cancellation_reason,omitempty"`
	CancelledAt        *string               `json:"cancelled_at"`
	VoidReason         string                `json:"void_reason,omitempty"`
	VoidedAt           *string               `json:"voided_at"`
	Lines              []InvoiceLineResponse `json:"lines"`
	CreatedAt          string                `json:"created_at"`
}

type AllocationResponse struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	InvoiceID string `json:"invoice_id"`
	Amount    string `json:"amount"`
	CreatedAt string `json:"created_at"`
}

type ListInvoicesQuery struct {
	Status      string
	ClientID    string
	ContractID  string
	OverdueOnly bool
	Page        int
	Limit       int
}

// --- Interface ---

type InvoiceService interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (InvoiceResponse, error)
	AddLine(ctx context.Context, id string, req InvoiceLineRequest) (InvoiceResponse, error)
	RemoveLine(ctx context.Context, id, lineID string) (InvoiceResponse, error)
	ReplaceLines(ctx context.Context, id string, req ReplaceInvoiceLinesRequest) (InvoiceResponse, error)

	Issue(ctx context.Context, id string) (InvoiceResponse, error)
	Cancel(ctx context.Context, id, reason string) (InvoiceResponse, error)
	Void(ctx context.Context, id, reason string) (InvoiceResponse, error)

	GetInvoice(ctx context.Context, id string) (InvoiceResponse, error)
	ListInvoices(ctx context.Context, q ListInvoicesQuery) ([]InvoiceResponse, int64, error)
	ListOpenInvoices(ctx context.Context, clientID string) ([]InvoiceResponse, error)
	ListAllocations(ctx context.Context, id string) ([]AllocationResponse, error)
}

// invoiceWriter holds the numbering and issuing steps shared by manual
// invoicing and the billing run. Callers supply the transaction.
type invoiceWriter struct {
	invoices  repository.InvoiceRepository
	sequences repository.SequenceRepository
	ncf       external.NCFIssuer
	publisher events.Publisher
}

// create numbers inv, derives its totals and stores it as DRAFT.
func (w *invoiceWriter) create(ctx context.Context, inv *model.Invoice) error {
	n, err := w.sequences.Next(ctx, model.SequenceInvoice)
	if err != nil {
		return fmt.Errorf("failed to allocate invoice number: %w", err)
	}
	inv.InvoiceNumber = fmt.Sprintf("INV-%06d", n)
	inv.Status = model.InvoiceDraft
	inv.AmountPaid = decimal.Zero
	billing.ApplyInvoiceTotals(inv)

	if err := w.invoices.Create(ctx, inv); err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	emit(ctx, w.publisher, events.Event{
		Action:     model.ActionCreateInvoice,
		EntityType: events.EntityInvoice,
		EntityID:   inv.ID.String(),
		EntityName: inv.InvoiceNumber,
		To:         inv.Status,
		Data:       map[string]any{"total": amount(inv.Total)},
	})
	return nil
}

// issue assigns the fiscal number and moves inv from DRAFT to ISSUED. inv must
// have been read under a row lock in the current transaction.
func (w *invoiceWriter) issue(ctx context.Context, inv *model.Invoice, now time.Time) error {
	to, err := billing.NextInvoiceStatus(inv.Status, billing.InvoiceIssue)
	if err != nil {
		return err
	}
	if len(inv.Lines) == 0 {
		return apperror.Validation("lines", "an invoice needs at least one line to be issued")
	}
	ncf, err := w.ncf.NextNCF(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain fiscal number: %w", err)
	}

	ok, err := w.invoices.CompareAndSetStatus(ctx, inv.ID, inv.Status, map[string]any{
		"status":    to,
		"ncf":       ncf,
		"issued_at": now,
	})
	if err != nil {
		return fmt.Errorf("failed to issue invoice: %w", err)
	}
	if !ok {
		return apperror.Conflict("invoice status changed concurrently")
	}

	from := inv.Status
	inv.Status = to
	inv.NCF = &ncf
	inv.IssuedAt = &now
	emit(ctx, w.publisher, events.Event{
		Action:     model.ActionIssueInvoice,
		EntityType: events.EntityInvoice,
		EntityID:   inv.ID.String(),
		EntityName: inv.InvoiceNumber,
		From:       from,
		To:         to,
		Data:       map[string]any{"ncf": ncf, "total": amount(inv.Total)},
	})
	return nil
}

type invoiceService struct {
	tm        repository.TransactionManager
	invoices  repository.InvoiceRepository
	payments  repository.PaymentRepository
	services  repository.ServiceRepository
	resolver  PriceResolver
	writer    *invoiceWriter
	publisher events.Publisher
	settings  InvoiceSettings
	now       func() time.Time
}

// InvoiceSettings are the defaults applied to new invoices.
type InvoiceSettings struct {
	DueDays         int
	DefaultCurrency string
}

func NewInvoiceService(
	tm repository.TransactionManager,
	invoices repository.InvoiceRepository,
	payments repository.PaymentRepository,
	services repository.ServiceRepository,
	sequences repository.SequenceRepository,
	resolver PriceResolver,
	ncf external.NCFIssuer,
	publisher events.Publisher,
	settings InvoiceSettings,
) InvoiceService {
	return &invoiceService{
		tm:        tm,
		invoices:  invoices,
		payments:  payments,
		services:  services,
		resolver:  resolver,
		writer:    &invoiceWriter{invoices: invoices, sequences: sequences, ncf: ncf, publisher: publisher},
		publisher: publisher,
		settings:  settings,
		now:       systemNow,
	}
}

// --- Implementation ---

func (s *invoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (InvoiceResponse, error) {
	clientID, err := parseID("client_id", req.ClientID)
	if err != nil {
		return InvoiceResponse{}, err
	}
	contractID, err := parseOptionalID("contract_id", req.ContractID)
	if err != nil {
		return InvoiceResponse{}, err
	}

	issueDate := model.DateOnly(s.now())
	if strings.TrimSpace(req.IssueDate) != "" {
		if issueDate, err = parseDate("issue_date", req.IssueDate); err != nil {
			return InvoiceResponse{}, err
		}
	}
	dueDate := issueDate.AddDate(0, 0, s.settings.DueDays)
	if strings.TrimSpace(req.DueDate) != "" {
		if dueDate, err = parseDate("due_date", req.DueDate); err != nil {
			return InvoiceResponse{}, err
		}
	}
	if dueDate.Before(issueDate) {
		return InvoiceResponse{}, apperror.Validation("due_date", "must not be before issue_date")
	}
	periodStart, err := parseOptionalDate("period_start", req.PeriodStart)
	if err != nil {
		return InvoiceResponse{}, err
	}
	periodEnd, err := parseOptionalDate("period_end", req.PeriodEnd)
	if err != nil {
		return InvoiceResponse{}, err
	}
	if periodStart != nil && periodEnd != nil && periodEnd.Before(*periodStart) {
		return InvoiceResponse{}, apperror.Validation("period_end", "must not be before period_start")
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.settings.DefaultCurrency
	}

	inv := &model.Invoice{
		ClientID:    clientID,
		ContractID:  contractID,
		Currency:    currency,
		IssueDate:   issueDate,
		DueDate:     dueDate,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Notes:       req.Notes,
	}
	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		lines, err := s.buildLines(txCtx, clientID, "lines", req.Lines)
		if err != nil {
			return err
		}
		inv.Lines = lines
		return s.writer.create(txCtx, inv)
	})
	if err != nil {
		return InvoiceResponse{}, err
	}
	return s.GetInvoice(ctx, inv.ID.String())
}

func (s *invoiceService) AddLine(ctx context.Context, id string, req InvoiceLineRequest) (InvoiceResponse, error) {
	return s.editLines(ctx, id, func(txCtx context.Context, inv *model.Invoice) error {
		lines, err := s.buildLines(txCtx, inv.ClientID, "line", []InvoiceLineRequest{req})
		if err != nil {
			return err
		}
		inv.Lines = append(inv.Lines, lines...)
		return nil
	})
}

func (s *invoiceService) RemoveLine(ctx context.Context, id, lineID string) (InvoiceResponse, error) {
	lID, err := parseID("line_id", lineID)
	if err != nil {
		return InvoiceResponse{}, err
	}
	return s.editLines(ctx, id, func(_ context.Context, inv *model.Invoice) error {
		kept := make([]model.InvoiceLine, 0, len(inv.Lines))
		for _, l := range inv.Lines {
			if l.ID != lID {
				kept = append(kept, l)
			}
		}
		if len(kept) == len(inv.Lines) {
			return apperror.NotFound("invoice line", lID.String())
		}
		inv.Lines = kept
		return nil
	})
}

func (s *invoiceService) ReplaceLines(ctx context.Context, id string, req ReplaceInvoiceLinesRequest) (InvoiceResponse, error) {
	return s.editLines(ctx, id, func(txCtx context.Context, inv *model.Invoice) error {
		lines, err := s.buildLines(txCtx, inv.ClientID, "lines", req.Lines)
		if err != nil {
			return err
		}
		inv.Lines = lines
		return nil
	})
}

// editLines applies mutate to a locked DRAFT invoice and stores the recomputed
// lines and totals.
func (s *invoiceService) editLines(ctx context.Context, id string, mutate func(txCtx context.Context, inv *model.Invoice) error) (InvoiceResponse, error) {
	invoiceID, err := parseID("id", id)
	if err != nil {
		return InvoiceResponse{}, err
	}
	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invoices.FindByIDForUpdate(txCtx, invoiceID)
		if err != nil {
			return notFoundOr(err, "invoice", invoiceID)
		}
		if err := billing.CheckInvoiceEditable(inv.Status); err != nil {
			return err
		}
		if err := mutate(txCtx, inv); err != nil {
			return err
		}

		billing.ApplyInvoiceTotals(inv)
		lines := inv.Lines
		if err := s.invoices.ReplaceLines(txCtx, inv.ID, lines); err != nil {
			return fmt.Errorf("failed to store invoice lines: %w", err)
		}
		if err := s.invoices.UpdateHeader(txCtx, inv); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		emit(txCtx, s.publisher, events.Event{
			Action:     model.ActionUpdateInvoice,
			EntityType: events.EntityInvoice,
			EntityID:   inv.ID.String(),
			EntityName: inv.InvoiceNumber,
			Data:       map[string]any{"lines": len(lines), "total": amount(inv.Total)},
		})
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}
	return s.GetInvoice(ctx, id)
}

func (s *invoiceService) Issue(ctx context.Context, id string) (InvoiceResponse, error) {
	invoiceID, err := parseID("id", id)
	if err != nil {
		return InvoiceResponse{}, err
	}
	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invoices.FindByIDForUpdate(txCtx, invoiceID)
		if err != nil {
			return notFoundOr(err, "invoice", invoiceID)
		}
		return s.writer.issue(txCtx, inv, s.now())
	})
	if err != nil {
		return InvoiceResponse{}, err
	}
	return s.GetInvoice(ctx, id)
}

func (s *invoiceService) Cancel(ctx context.Context, id, reason string) (InvoiceResponse, error) {
	reason, err := requireReason(reason)
	if err != nil {
		return InvoiceResponse{}, err
	}
	return s.transition(ctx, id, billing.InvoiceCancel, model.ActionCancelInvoice, map[string]any{
		"cancellation_reason": reason,
		"cancelled_at":        s.now(),
	}, reason)
}

// Void removes the fiscal standing of an issued invoice. Recorded allocations
// stay in place, so amount_paid keeps its value.
func (s *invoiceService) Void(ctx context.Context, id, reason string) (InvoiceResponse, error) {
	reason, err := requireReason(reason)
	if err != nil {
		return InvoiceResponse{}, err
	}
	return s.transition(ctx, id, billing.InvoiceVoid, model.ActionVoidInvoice, map[string]any{
		"void_reason": reason,
		"voided_at":   s.now(),
	}, reason)
}

func (s *invoiceService) transition(ctx context.Context, id, action, auditAction string, updates map[string]any, reason string) (InvoiceResponse, error) {
	invoiceID, err := parseID("id", id)
	if err != nil {
		return InvoiceResponse{}, err
	}
	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invoices.FindByIDForUpdate(txCtx, invoiceID)
		if err != nil {
			return notFoundOr(err, "invoice", invoiceID)
		}
		to, err := billing.NextInvoiceStatus(inv.Status, action)
		if err != nil {
			return err
		}
		updates["status"] = to
		ok, err := s.invoices.CompareAndSetStatus(txCtx, inv.ID, inv.Status, updates)
		if err != nil {
			return fmt.Errorf("failed to update invoice status: %w", err)
		}
		if !ok {
			return apperror.Conflict("invoice status changed concurrently")
		}
		emit(txCtx, s.publisher, events.Event{
			Action:     auditAction,
			EntityType: events.EntityInvoice,
			EntityID:   inv.ID.String(),
			EntityName: inv.InvoiceNumber,
			From:       inv.Status,
			To:         to,
			Data:       map[string]any{"reason": reason, "amount_paid": amount(inv.AmountPaid)},
		})
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}
	return s.GetInvoice(ctx, id)
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (InvoiceResponse, error) {
	invoiceID, err := parseID("id", id)
	if err != nil {
		return InvoiceResponse{}, err
	}
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return InvoiceResponse{}, notFoundOr(err, "invoice", invoiceID)
	}
	return toInvoiceResponse(*inv, s.now()), nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, q ListInvoicesQuery) ([]InvoiceResponse, int64, error) {
	clientID, err := parseOptionalID("client_id", q.ClientID)
	if err != nil {
		return nil, 0, err
	}
	contractID, err := parseOptionalID("contract_id", q.ContractID)
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	page, limit := normalizePage(q.Page, q.Limit)
	filter := repository.InvoiceFilter{
		Status:     strings.ToUpper(q.Status),
		ClientID:   clientID,
		ContractID: contractID,
		Page:       page,
		Limit:      limit,
	}
	if q.OverdueOnly {
		today := model.DateOnly(now)
		filter.OverdueAsOf = &today
	}

	invoices, total, err := s.invoices.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}
	res := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		res = append(res, toInvoiceResponse(inv, now))
	}
	return res, total, nil
}

func (s *invoiceService) ListOpenInvoices(ctx context.Context, clientID string) ([]InvoiceResponse, error) {
	cID, err := parseID("client_id", clientID)
	if err != nil {
		return nil, err
	}
	invoices, err := s.invoices.ListOpenByClient(ctx, cID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open invoices: %w", err)
	}
	now := s.now()
	res := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		res = append(res, toInvoiceResponse(inv, now))
	}
	return res, nil
}

func (s *invoiceService) ListAllocations(ctx context.Context, id string) ([]AllocationResponse, error) {
	invoiceID, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	if _, err := s.invoices.FindByID(ctx, invoiceID); err != nil {
		return nil, notFoundOr(err, "invoice", invoiceID)
	}
	allocations, err := s.payments.ListAllocationsByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	res := make([]AllocationResponse, 0, len(allocations))
	for _, a := range allocations {
		res = append(res, toAllocationResponse(a))
	}
	return res, nil
}

// buildLines turns requested lines into unpriced invoice lines. A line without
// a unit price takes the resolved price for the client.
func (s *invoiceService) buildLines(ctx context.Context, clientID uuid.UUID, field string, reqs []InvoiceLineRequest) ([]model.InvoiceLine, error) {
	lines := make([]model.InvoiceLine, 0, len(reqs))
	for i, r := range reqs {
		f := field
		if len(reqs) > 1 || field == "lines" {
			f = fmt.Sprintf("%s[%d]", field, i)
		}
		serviceID, err := parseID(f+".service_id", r.ServiceID)
		if err != nil {
			return nil, err
		}
		qty, err := parsePositive(f+".quantity", r.Quantity)
		if err != nil {
			return nil, err
		}
		svc, err := loadActiveService(ctx, s.services, f+".service_id", serviceID)
		if err != nil {
			return nil, err
		}

		var manual *decimal.Decimal
		if r.UnitPrice != nil && strings.TrimSpace(*r.UnitPrice) != "" {
			p, err := parseDecimal(f+".unit_price", *r.UnitPrice)
			if err != nil {
				return nil, err
			}
			if p.Sign() < 0 {
				return nil, apperror.Validation(f+".unit_price", "must not be negative")
			}
			manual = &p
		}
		resolved, err := resolveLinePrice(ctx, s.resolver, serviceID, clientID, manual)
		if err != nil {
			return nil, err
		}
		unitPrice := resolved.UnitPrice
		if manual != nil {
			unitPrice = *manual
		}

		line := model.InvoiceLine{
			ServiceID:       serviceID,
			Description:     strings.TrimSpace(r.Description),
			Quantity:        qty,
			BillingUnit:     strings.ToUpper(strings.TrimSpace(r.BillingUnit)),
			UnitPrice:       unitPrice,
			ItbisApplicable: svc.ItbisApplicable,
		}
		if line.Description == "" {
			line.Description = svc.Name
		}
		if line.BillingUnit == "" {
			line.BillingUnit = svc.DefaultBillingUnit
		}
		if r.ItbisApplicable != nil {
			line.ItbisApplicable = *r.ItbisApplicable
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func toInvoiceResponse(inv model.Invoice, now time.Time) InvoiceResponse {
	res := InvoiceResponse{
		ID:                 inv.ID.String(),
		InvoiceNumber:      inv.InvoiceNumber,
		NCF:                inv.NCF,
		ClientID:           inv.ClientID.String(),
		ContractID:         formatOptionalID(inv.ContractID),
		Status:             inv.Status,
		Currency:           inv.Currency,
		IssueDate:          formatDate(inv.IssueDate),
		DueDate:            formatDate(inv.DueDate),
		PeriodStart:        formatOptionalDate(inv.PeriodStart),
		PeriodEnd:          formatOptionalDate(inv.PeriodEnd),
		Subtotal:           amount(inv.Subtotal),
		ItbisAmount:        amount(inv.ItbisAmount),
		Total:              amount(inv.Total),
		AmountPaid:         amount(inv.AmountPaid),
		Balance:            amount(inv.Balance),
		IsOverdue:          inv.IsOverdue(now),
		Notes:              inv.Notes,
		IssuedAt:           formatOptionalTime(inv.IssuedAt),
		CancellationReason: inv.CancellationReason,
		CancelledAt:        formatOptionalTime(inv.CancelledAt),
		VoidReason:         inv.VoidReason,
		VoidedAt:           formatOptionalTime(inv.VoidedAt),
		Lines:              make([]InvoiceLineResponse, 0, len(inv.Lines)),
		CreatedAt:          inv.CreatedAt.UTC().Format(timestampLayout),
	}
	for _, l := range inv.Lines {
		res.Lines = append(res.Lines, InvoiceLineResponse{
			ID:              l.ID.String(),
			Position:        l.Position,
			ServiceID:       l.ServiceID.String(),
			ContractLineID:  formatOptionalID(l.ContractLineID),
			Description:     l.Description,
			Quantity:        l.Quantity.String(),
			BillingUnit:     l.BillingUnit,
			UnitPrice:       amount(l.UnitPrice),
			ItbisApplicable: l.ItbisApplicable,
			LineSubtotal:    amount(l.LineSubtotal),
			ItbisAmount:     amount(l.ItbisAmount),
			LineTotal:       amount(l.LineTotal),
		})
	}
	return res
}

func toAllocationResponse(a model.PaymentAllocation) AllocationResponse {
	return AllocationResponse{
		ID:        a.ID.String(),
		PaymentID: a.PaymentID.String(),
		InvoiceID: a.InvoiceID.String(),
		Amount:    amount(a.Amount),
		CreatedAt: a.CreatedAt.UTC().Format(timestampLayout),
	}
}
