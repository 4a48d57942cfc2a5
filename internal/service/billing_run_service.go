package service

import (
	"context"
	"fmt"
	"time"

	"backoffice/internal/apperror"
	"backoffice/internal/billing"
	"backoffice/internal/events"
	"backoffice/internal/external"
	"backoffice/internal/logger"
	"backoffice/internal/model"
	"backoffice/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	billingRunBatch = 500
	// maxCatchUp bounds how many missed dates one run invoices per contract.
	maxCatchUp = 36
)

type GeneratedInvoice struct {
	ContractID     string `json:"contract_id"`
	ContractNumber string `json:"contract_number"`
	InvoiceID      string `json:"invoice_id"`
	InvoiceNumber  string `json:"invoice_number"`
	InvoiceDate    string `json:"invoice_date"`
	Total          string `json:"total"`
}

type BillingFailure struct {
	ContractID string `json:"contract_id"`
	Code       string `json:"code"`
	Error      string `json:"error"`
}

type BillingRunResult struct {
	AsOf      string             `json:"as_of"`
	Contracts int                `json:"contracts"`
	Generated []GeneratedInvoice `json:"generated"`
	Skipped   int                `json:"skipped"` // dates with nothing to bill or already billed
	Failed    []BillingFailure   `json:"failed"`
}

type BillingRunService interface {
	// GenerateDueInvoices invoices every active auto-invoicing contract whose
	// next invoice date is on or before asOf.
	GenerateDueInvoices(ctx context.Context, asOf time.Time) (BillingRunResult, error)
}

type billingRunService struct {
	tm        repository.TransactionManager
	contracts repository.ContractRepository
	invoices  repository.InvoiceRepository
	writer    *invoiceWriter
	dueDays   int
	now       func() time.Time
}

func NewBillingRunService(
	tm repository.TransactionManager,
	contracts repository.ContractRepository,
	invoices repository.InvoiceRepository,
	sequences repository.SequenceRepository,
	ncf external.NCFIssuer,
	publisher events.Publisher,
	dueDays int,
) BillingRunService {
	return &billingRunService{
		tm:        tm,
		contracts: contracts,
		invoices:  invoices,
		writer:    &invoiceWriter{invoices: invoices, sequences: sequences, ncf: ncf, publisher: publisher},
		dueDays:   dueDays,
		now:       systemNow,
	}
}

func (s *billingRunService) GenerateDueInvoices(ctx context.Context, asOf time.Time) (BillingRunResult, error) {
	log := logger.WithComponent("billing-run")
	asOf = model.DateOnly(asOf)
	result := BillingRunResult{
		AsOf:      formatDate(asOf),
		Generated: []GeneratedInvoice{},
		Failed:    []BillingFailure{},
	}

	due, err := s.contracts.FindDueForInvoicing(ctx, asOf, billingRunBatch)
	if err != nil {
		return result, fmt.Errorf("failed to find contracts due for invoicing: %w", err)
	}
	result.Contracts = len(due)

	for _, candidate := range due {
		var generated []GeneratedInvoice
		var skipped int
		err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
			var err error
			generated, skipped, err = s.invoiceContract(txCtx, candidate.ID.String(), asOf)
			return err
		})
		if err != nil {
			log.Error().Err(err).
				Str("contract_id", candidate.ID.String()).
				Str("contract_number", candidate.ContractNumber).
				Msg("Failed to invoice contract")
			result.Failed = append(result.Failed, BillingFailure{
				ContractID: candidate.ID.String(),
				Code:       apperror.CodeOf(err),
				Error:      err.Error(),
			})
			continue
		}
		result.Generated = append(result.Generated, generated...)
		result.Skipped += skipped
	}

	log.Info().
		Str("as_of", result.AsOf).
		Int("contracts", result.Contracts).
		Int("generated", len(result.Generated)).
		Int("skipped", result.Skipped).
		Int("failed", len(result.Failed)).
		Msg("Billing run finished")
	return result, nil
}

// invoiceContract bills every due date of one contract inside the caller's
// transaction and moves its schedule pointers forward.
func (s *billingRunService) invoiceContract(ctx context.Context, id string, asOf time.Time) ([]GeneratedInvoice, int, error) {
	contractID, err := parseID("contract_id", id)
	if err != nil {
		return nil, 0, err
	}
	c, err := s.contracts.FindByIDForUpdate(ctx, contractID)
	if err != nil {
		return nil, 0, notFoundOr(err, "contract", contractID)
	}
	if c.Status != model.ContractActive || !c.AutoInvoicingEnabled || c.NextInvoiceDate == nil {
		return nil, 0, nil
	}

	var generated []GeneratedInvoice
	skipped := 0
	next := c.NextInvoiceDate
	last := c.LastInvoiceDate
	for i := 0; i < maxCatchUp && next != nil && !model.DateOnly(*next).After(asOf); i++ {
		date := model.DateOnly(*next)
		occ, ok, err := billing.OccurrenceOn(c, date, last == nil)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			inv, err := s.invoiceOccurrence(ctx, c, occ)
			if err != nil {
				return nil, 0, err
			}
			if inv == nil {
				skipped++
			} else {
				generated = append(generated, GeneratedInvoice{
					ContractID:     c.ID.String(),
					ContractNumber: c.ContractNumber,
					InvoiceID:      inv.ID.String(),
					InvoiceNumber:  inv.InvoiceNumber,
					InvoiceDate:    formatDate(date),
					Total:          amount(inv.Total),
				})
			}
			last = &date
		} else {
			skipped++
		}

		if c.BillingType == model.BillingOneTime {
			next = nil
		} else if next, err = billing.NextInvoiceDate(c, date); err != nil {
			return nil, 0, err
		}
	}

	ok, err := s.contracts.CompareAndSetStatus(ctx, c.ID, model.ContractActive, map[string]any{
		"next_invoice_date": next,
		"last_invoice_date": last,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to advance contract schedule: %w", err)
	}
	if !ok {
		return nil, 0, apperror.Conflict("contract status changed during billing")
	}
	return generated, skipped, nil
}

// invoiceOccurrence creates and issues the invoice for one occurrence. It
// returns nil when the period is already invoiced or every line prorates to zero.
func (s *billingRunService) invoiceOccurrence(ctx context.Context, c *model.Contract, occ billing.Occurrence) (*model.Invoice, error) {
	exists, err := s.invoices.ExistsForContractPeriod(ctx, c.ID, occ.BilledFrom)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing invoices: %w", err)
	}
	if exists {
		return nil, nil
	}

	lines := occurrenceLines(c, occ)
	if len(lines) == 0 {
		return nil, nil
	}

	contractID := c.ID
	periodStart, periodEnd := occ.BilledFrom, occ.BilledTo
	inv := &model.Invoice{
		ClientID:    c.ClientID,
		ContractID:  &contractID,
		Currency:    c.Currency,
		IssueDate:   occ.InvoiceDate,
		DueDate:     occ.InvoiceDate.AddDate(0, 0, s.dueDays),
		PeriodStart: &periodStart,
		PeriodEnd:   &periodEnd,
		Notes:       fmt.Sprintf("%s %s to %s", c.ContractNumber, formatDate(periodStart), formatDate(periodEnd)),
		Lines:       lines,
	}
	if err := s.writer.create(ctx, inv); err != nil {
		return nil, err
	}
	if err := s.writer.issue(ctx, inv, s.now()); err != nil {
		return nil, err
	}
	return inv, nil
}

// occurrenceLines copies contract lines onto an invoice. Full periods keep the
// contracted quantity and price; partial ones become a single prorated unit.
func occurrenceLines(c *model.Contract, occ billing.Occurrence) []model.InvoiceLine {
	covered, total := billing.CoverageRatio(occ.Start, occ.End, occ.BilledFrom, occ.BilledTo)
	lines := make([]model.InvoiceLine, 0, len(c.Lines))
	for _, cl := range c.Lines {
		contractLineID := cl.ID
		line := model.InvoiceLine{
			ServiceID:       cl.ServiceID,
			ContractLineID:  &contractLineID,
			Description:     cl.Description,
			Quantity:        cl.Quantity,
			BillingUnit:     cl.BillingUnit,
			UnitPrice:       cl.EffectiveUnitPrice(),
			ItbisApplicable: cl.ItbisApplicable,
		}

		if occ.Partial() {
			charged := billing.ProratedAmount(cl.LineTotal, occ.Start, occ.End, occ.BilledFrom, occ.BilledTo, c.ProrationPolicy)
			if charged.Sign() <= 0 {
				continue
			}
			if !charged.Equal(cl.LineTotal) {
				line.Quantity = decimal.NewFromInt(1)
				line.UnitPrice = charged
				line.Description = fmt.Sprintf("%s (prorated %d/%d days)", cl.Description, covered, total)
			}
		}
		if line.Quantity.Mul(line.UnitPrice).Sign() <= 0 {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
