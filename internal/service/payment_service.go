package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"backoffice/internal/apperror"
	"backoffice/internal/billing"
	"backoffice/internal/events"
	"backoffice/internal/model"
	"backoffice/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type RecordPaymentRequest struct {
	ClientID    string `json:"client_id" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Currency    string `json:"currency"`
	PaymentDate string `json:"payment_date"` // YYYY-MM-DD, defaults to today
	PaymentType string `json:"payment_type" binding:"required,oneof=CASH TRANSFER CHECK CARD"`
	Reference   string `json:"reference"`
	Notes       string `json:"notes"`
}

type AllocationItem struct {
	InvoiceID string `json:"invoice_id" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
}

type AllocatePaymentRequest struct {
	Allocations []AllocationItem `json:"allocations" binding:"required,min=1,dive"`
}

type ReceiptResponse struct {
	ID            string  `json:"id"`
	ReceiptNumber string  `json:"receipt_number"`
	PaymentID     string  `json:"payment_id"`
	ClientID      string  `json:"client_id"`
	Amount        string  `json:"amount"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
	IssuedAt      string  `json:"issued_at"`
	VoidReason    string  `json:"void_reason,omitempty"`
	VoidedAt      *string `json:"voided_at"`
}

type PaymentResponse struct {
	ID                string               `json:"id"`
	ClientID          string               `json:"client_id"`
	Amount            string               `json:"amount"`
	Currency          string               `json:"currency"`
	PaymentDate       string               `json:"payment_date"`
	PaymentType       string               `json:"payment_type"`
	Reference         string               `json:"reference"`
	AmountAllocated   string               `json:"amount_allocated"`
	AmountUnallocated string               `json:"amount_unallocated"`
	Status            string               `json:"status"`
	Notes             string               `json:"notes"`
	Allocations       []AllocationResponse `json:"allocations"`
	Receipt           *ReceiptResponse     `json:"receipt,omitempty"`
	CreatedAt         string               `json:"created_at"`
}

type ListPaymentsQuery struct {
	Status   string
	ClientID string
	Page     int
	Limit    int
}

// --- Interface ---

type PaymentService interface {
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (PaymentResponse, error)
	Allocate(ctx context.Context, paymentID string, req AllocatePaymentRequest) (PaymentResponse, error)
	GetPayment(ctx context.Context, id string) (PaymentResponse, error)
	ListPayments(ctx context.Context, q ListPaymentsQuery) ([]PaymentResponse, int64, error)
	VoidReceipt(ctx context.Context, receiptID, reason string) (ReceiptResponse, error)
}

type paymentService struct {
	tm              repository.TransactionManager
	payments        repository.PaymentRepository
	invoices        repository.InvoiceRepository
	sequences       repository.SequenceRepository
	publisher       events.Publisher
	defaultCurrency string
	now             func() time.Time
}

func NewPaymentService(
	tm repository.TransactionManager,
	payments repository.PaymentRepository,
	invoices repository.InvoiceRepository,
	sequences repository.SequenceRepository,
	publisher events.Publisher,
	defaultCurrency string,
) PaymentService {
	return &paymentService{
		tm:              tm,
		payments:        payments,
		invoices:        invoices,
		sequences:       sequences,
		publisher:       publisher,
		defaultCurrency: defaultCurrency,
		now:             systemNow,
	}
}

// --- Implementation ---

// RecordPayment stores an unallocated payment together with its receipt.
func (s *paymentService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (PaymentResponse, error) {
	clientID, err := parseID("client_id", req.ClientID)
	if err != nil {
		return PaymentResponse{}, err
	}
	amt, err := parsePositive("amount", req.Amount)
	if err != nil {
		return PaymentResponse{}, err
	}
	if amt.Exponent() < -2 {
		return PaymentResponse{}, apperror.Validation("amount", "must have at most 2 decimals")
	}
	paymentType := strings.ToUpper(strings.TrimSpace(req.PaymentType))
	switch paymentType {
	case model.PaymentCash, model.PaymentTransfer, model.PaymentCheck, model.PaymentCard:
	default:
		return PaymentResponse{}, apperror.Validation("payment_type", "must be one of CASH, TRANSFER, CHECK, CARD")
	}
	paymentDate := model.DateOnly(s.now())
	if strings.TrimSpace(req.PaymentDate) != "" {
		if paymentDate, err = parseDate("payment_date", req.PaymentDate); err != nil {
			return PaymentResponse{}, err
		}
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}

	payment := &model.Payment{
		ClientID:        clientID,
		Amount:          amt,
		Currency:        currency,
		PaymentDate:     paymentDate,
		PaymentType:     paymentType,
		Reference:       strings.TrimSpace(req.Reference),
		AmountAllocated: decimal.Zero,
		Status:          model.PaymentPending,
		Notes:           req.Notes,
	}
	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.payments.Create(txCtx, payment); err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}
		n, err := s.sequences.Next(txCtx, model.SequenceReceipt)
		if err != nil {
			return fmt.Errorf("failed to allocate receipt number: %w", err)
		}
		receipt := &model.Receipt{
			ReceiptNumber: fmt.Sprintf("REC-%06d", n),
			PaymentID:     payment.ID,
			ClientID:      clientID,
			Amount:        amt,
			Currency:      currency,
			Status:        model.ReceiptIssued,
			IssuedAt:      s.now(),
		}
		if err := s.payments.CreateReceipt(txCtx, receipt); err != nil {
			return fmt.Errorf("failed to create receipt: %w", err)
		}
		emit(txCtx, s.publisher, events.Event{
			Action:     model.ActionRecordPayment,
			EntityType: events.EntityPayment,
			EntityID:   payment.ID.String(),
			EntityName: receipt.ReceiptNumber,
			To:         payment.Status,
			Data:       map[string]any{"amount": amount(amt), "payment_type": paymentType},
		})
		return nil
	})
	if err != nil {
		return PaymentResponse{}, err
	}
	return s.GetPayment(ctx, payment.ID.String())
}

type allocationRequest struct {
	invoiceID uuid.UUID
	amount    decimal.Decimal
}

// Allocate applies parts of a payment to open invoices of the same client.
// The batch is all-or-nothing: every check runs before the first write. Locks
// are taken on the payment first, then on the invoices in ascending id order.
func (s *paymentService) Allocate(ctx context.Context, paymentID string, req AllocatePaymentRequest) (PaymentResponse, error) {
	pID, err := parseID("payment_id", paymentID)
	if err != nil {
		return PaymentResponse{}, err
	}
	if len(req.Allocations) == 0 {
		return PaymentResponse{}, apperror.Validation("allocations", "at least one allocation is required")
	}

	requested := make([]allocationRequest, 0, len(req.Allocations))
	ids := make([]uuid.UUID, 0, len(req.Allocations))
	seen := make(map[uuid.UUID]bool, len(req.Allocations))
	sum := decimal.Zero
	for i, item := range req.Allocations {
		field := fmt.Sprintf("allocations[%d]", i)
		invoiceID, err := parseID(field+".invoice_id", item.InvoiceID)
		if err != nil {
			return PaymentResponse{}, err
		}
		if seen[invoiceID] {
			return PaymentResponse{}, apperror.Validation(field+".invoice_id", "invoice appears more than once")
		}
		seen[invoiceID] = true
		amt, err := parseDecimal(field+".amount", item.Amount)
		if err != nil {
			return PaymentResponse{}, err
		}
		if amt.Sign() <= 0 {
			return PaymentResponse{}, apperror.InvalidAllocation(fmt.Sprintf("amount for invoice %s must be greater than zero", invoiceID))
		}
		if amt.Exponent() < -2 {
			return PaymentResponse{}, apperror.Validation(field+".amount", "must have at most 2 decimals")
		}
		requested = append(requested, allocationRequest{invoiceID: invoiceID, amount: amt})
		ids = append(ids, invoiceID)
		sum = sum.Add(amt)
	}

	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		payment, err := s.payments.FindByIDForUpdate(txCtx, pID)
		if err != nil {
			return notFoundOr(err, "payment", pID)
		}
		available := payment.Unallocated()
		if sum.GreaterThan(available) {
			return apperror.OverAllocation(amount(sum), amount(available))
		}

		locked, err := s.invoices.FindByIDsForUpdate(txCtx, ids)
		if err != nil {
			return fmt.Errorf("failed to lock invoices: %w", err)
		}
		byID := make(map[uuid.UUID]*model.Invoice, len(locked))
		for i := range locked {
			byID[locked[i].ID] = &locked[i]
		}

		for _, r := range requested {
			inv, ok := byID[r.invoiceID]
			if !ok {
				return apperror.NotFound("invoice", r.invoiceID.String())
			}
			if inv.ClientID != payment.ClientID {
				return apperror.InvalidAllocation(fmt.Sprintf("invoice %s belongs to another client", inv.InvoiceNumber))
			}
			if inv.Currency != payment.Currency {
				return apperror.InvalidAllocation(fmt.Sprintf("invoice %s is in %s, payment is in %s", inv.InvoiceNumber, inv.Currency, payment.Currency))
			}
			if inv.Status != model.InvoiceIssued && inv.Status != model.InvoicePartial {
				return apperror.InvalidAllocation(fmt.Sprintf("invoice %s is %s", inv.InvoiceNumber, inv.Status))
			}
			if r.amount.GreaterThan(inv.Balance) {
				return apperror.InvalidAllocation(fmt.Sprintf("amount %s exceeds balance %s of invoice %s",
					amount(r.amount), amount(inv.Balance), inv.InvoiceNumber))
			}
		}

		allocations := make([]model.PaymentAllocation, 0, len(requested))
		for _, r := range requested {
			inv := byID[r.invoiceID]
			paid := inv.AmountPaid.Add(r.amount)
			to := billing.InvoiceStatusForPaid(inv.Total, paid)
			ok, err := s.invoices.CompareAndSetStatus(txCtx, inv.ID, inv.Status, map[string]any{
				"amount_paid": paid,
				"balance":     inv.Total.Sub(paid),
				"status":      to,
			})
			if err != nil {
				return fmt.Errorf("failed to apply allocation: %w", err)
			}
			if !ok {
				return apperror.Conflict("invoice status changed concurrently")
			}
			if to != inv.Status {
				emit(txCtx, s.publisher, events.Event{
					Action:     model.ActionAllocatePayment,
					EntityType: events.EntityInvoice,
					EntityID:   inv.ID.String(),
					EntityName: inv.InvoiceNumber,
					From:       inv.Status,
					To:         to,
					Data:       map[string]any{"payment_id": payment.ID.String(), "amount_paid": amount(paid)},
				})
			}
			allocations = append(allocations, model.PaymentAllocation{
				PaymentID: payment.ID,
				InvoiceID: inv.ID,
				Amount:    r.amount,
			})
		}
		if err := s.payments.CreateAllocations(txCtx, allocations); err != nil {
			return fmt.Errorf("failed to store allocations: %w", err)
		}

		from := payment.Status
		payment.AmountAllocated = payment.AmountAllocated.Add(sum)
		payment.Status = billing.PaymentStatusFor(payment.Amount, payment.AmountAllocated)
		if err := s.payments.UpdateAllocation(txCtx, payment); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		emit(txCtx, s.publisher, events.Event{
			Action:     model.ActionAllocatePayment,
			EntityType: events.EntityPayment,
			EntityID:   payment.ID.String(),
			From:       from,
			To:         payment.Status,
			Data: map[string]any{
				"allocated":   amount(sum),
				"invoices":    len(allocations),
				"unallocated": amount(payment.Unallocated()),
			},
		})
		return nil
	})
	if err != nil {
		return PaymentResponse{}, err
	}
	return s.GetPayment(ctx, paymentID)
}

func (s *paymentService) GetPayment(ctx context.Context, id string) (PaymentResponse, error) {
	pID, err := parseID("id", id)
	if err != nil {
		return PaymentResponse{}, err
	}
	payment, err := s.payments.FindByID(ctx, pID)
	if err != nil {
		return PaymentResponse{}, notFoundOr(err, "payment", pID)
	}
	res := toPaymentResponse(*payment)

	receipt, err := s.payments.FindReceiptByPayment(ctx, pID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return PaymentResponse{}, fmt.Errorf("failed to load receipt: %w", err)
	}
	if receipt != nil {
		r := toReceiptResponse(*receipt)
		res.Receipt = &r
	}
	return res, nil
}

func (s *paymentService) ListPayments(ctx context.Context, q ListPaymentsQuery) ([]PaymentResponse, int64, error) {
	clientID, err := parseOptionalID("client_id", q.ClientID)
	if err != nil {
		return nil, 0, err
	}
	page, limit := normalizePage(q.Page, q.Limit)
	payments, total, err := s.payments.List(ctx, repository.PaymentFilter{
		Status:   strings.ToUpper(q.Status),
		ClientID: clientID,
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	res := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		res = append(res, toPaymentResponse(p))
	}
	return res, total, nil
}

// VoidReceipt marks a receipt VOID. The payment and its allocations are untouched.
func (s *paymentService) VoidReceipt(ctx context.Context, receiptID, reason string) (ReceiptResponse, error) {
	rID, err := parseID("id", receiptID)
	if err != nil {
		return ReceiptResponse{}, err
	}
	reason, err = requireReason(reason)
	if err != nil {
		return ReceiptResponse{}, err
	}

	var receipt *model.Receipt
	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.payments.FindReceiptByIDForUpdate(txCtx, rID)
		if err != nil {
			return notFoundOr(err, "receipt", rID)
		}
		receipt = found
		if receipt.Status == model.ReceiptVoid {
			return apperror.Conflict("receipt is already void")
		}
		now := s.now()
		receipt.Status = model.ReceiptVoid
		receipt.VoidReason = reason
		receipt.VoidedAt = &now
		if err := s.payments.UpdateReceipt(txCtx, receipt); err != nil {
			return fmt.Errorf("failed to void receipt: %w", err)
		}
		emit(txCtx, s.publisher, events.Event{
			Action:     model.ActionVoidReceipt,
			EntityType: events.EntityReceipt,
			EntityID:   receipt.ID.String(),
			EntityName: receipt.ReceiptNumber,
			From:       model.ReceiptIssued,
			To:         model.ReceiptVoid,
			Data:       map[string]any{"reason": reason, "payment_id": receipt.PaymentID.String()},
		})
		return nil
	})
	if err != nil {
		return ReceiptResponse{}, err
	}
	return toReceiptResponse(*receipt), nil
}

func toPaymentResponse(p model.Payment) PaymentResponse {
	res := PaymentResponse{
		ID:                p.ID.String(),
		ClientID:          p.ClientID.String(),
		Amount:            amount(p.Amount),
		Currency:          p.Currency,
		PaymentDate:       formatDate(p.PaymentDate),
		PaymentType:       p.PaymentType,
		Reference:         p.Reference,
		AmountAllocated:   amount(p.AmountAllocated),
		AmountUnallocated: amount(p.Unallocated()),
		Status:            p.Status,
		Notes:             p.Notes,
		Allocations:       make([]AllocationResponse, 0, len(p.Allocations)),
		CreatedAt:         p.CreatedAt.UTC().Format(timestampLayout),
	}
	for _, a := range p.Allocations {
		res.Allocations = append(res.Allocations, toAllocationResponse(a))
	}
	return res
}

func toReceiptResponse(r model.Receipt) ReceiptResponse {
	return ReceiptResponse{
		ID:            r.ID.String(),
		ReceiptNumber: r.ReceiptNumber,
		PaymentID:     r.PaymentID.String(),
		ClientID:      r.ClientID.String(),
		Amount:        amount(r.Amount),
		Currency:      r.Currency,
		Status:        r.Status,
		IssuedAt:      r.IssuedAt.UTC().Format(timestampLayout),
		VoidReason:    r.VoidReason,
		VoidedAt:      formatOptionalTime(r.VoidedAt),
	}
}
