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

type ContractLineRequest struct {
	ServiceID       string  `json:"service_id" binding:"required"`
	Description     string  `json:"description"`
	Quantity        string  `json:"quantity" binding:"required"`
	BillingUnit     string  `json:"billing_unit"`      // defaults to the service unit
	ManualUnitPrice *string `json:"manual_unit_price"` // overrides resolution when set
	ItbisApplicable *bool   `json:"itbis_applicable"`  // defaults to the service flag
}

type ContractRequest struct {
	ClientID             string                `json:"client_id" binding:"required"`
	AgreementType        string                `json:"agreement_type" binding:"required,oneof=WRITTEN VERBAL"`
	TermType             string                `json:"term_type" binding:"required,oneof=EVERGREEN FIXED_TERM AUTO_RENEW"`
	StartDate            string                `json:"start_date" binding:"required"` // YYYY-MM-DD
	EndDate              string                `json:"end_date"`                      // YYYY-MM-DD, inclusive
	RenewalTermMonths    int                   `json:"renewal_term_months"`
	BillingType          string                `json:"billing_type" binding:"required,oneof=RECURRING ONE_TIME"`
	BillingIntervalUnit  string                `json:"billing_interval_unit" binding:"omitempty,oneof=DAY WEEK MONTH YEAR"`
	BillingIntervalCount int                   `json:"billing_interval_count"`
	BillingDayOfMonth    *int                  `json:"billing_day_of_month"`
	AutoInvoicingEnabled bool                  `json:"auto_invoicing_enabled"`
	InvoiceTiming        string                `json:"invoice_timing" binding:"omitempty,oneof=ADVANCE ARREARS"`
	ProrationPolicy      string                `json:"proration_policy" binding:"omitempty,oneof=PRORATED FULL_PERIOD NO_CHARGE"`
	Currency             string                `json:"currency"`
	Notes                string                `json:"notes"`
	Lines                []ContractLineRequest `json:"lines" binding:"dive"`
}

type AttachDocumentRequest struct {
	FileName    string `json:"file_name" binding:"required"`
	StorageKey  string `json:"storage_key" binding:"required"` // location in the document store
	ContentType string `json:"content_type"`
}

type ContractLineResponse struct {
	ID                string  `json:"id"`
	Position          int     `json:"position"`
	ServiceID         string  `json:"service_id"`
	ServiceCode       string  `json:"service_code,omitempty"`
	Description       string  `json:"description"`
	Quantity          string  `json:"quantity"`
	BillingUnit       string  `json:"billing_unit"`
	ManualUnitPrice   *string `json:"manual_unit_price"`
	ResolvedUnitPrice string  `json:"resolved_unit_price"`
	PriceSource       string  `json:"price_source"`
	ItbisApplicable   bool    `json:"itbis_applicable"`
	LineTotal         string  `json:"line_total"`
}

type ContractResponse struct {
	ID                   string                 `json:"id"`
	ContractNumber       string                 `json:"contract_number"`
	ClientID             string                 `json:"client_id"`
	AgreementType        string                 `json:"agreement_type"`
	TermType             string                 `json:"term_type"`
	StartDate            string                 `json:"start_date"`
	EndDate              *string                `json:"end_date"`
	RenewalTermMonths    int                    `json:"renewal_term_months"`
	BillingType          string                 `json:"billing_type"`
	BillingIntervalUnit  string                 `json:"billing_interval_unit"`
	BillingIntervalCount int                    `json:"billing_interval_count"`
	BillingDayOfMonth    *int                   `json:"billing_day_of_month"`
	AutoInvoicingEnabled bool                   `json:"auto_invoicing_enabled"`
	InvoiceTiming        string                 `json:"invoice_timing"`
	ProrationPolicy      string                 `json:"proration_policy"`
	Currency             string                 `json:"currency"`
	Status               string                 `json:"status"`
	StatusReason         string                 `json:"status_reason"`
	HasCurrentDocument   bool                   `json:"has_current_document"`
	NextInvoiceDate      *string                `json:"next_invoice_date"`
	LastInvoiceDate      *string                `json:"last_invoice_date"`
	PeriodAmount         string                 `json:"period_amount"` // Σ line totals, before tax
	Notes                string                 `json:"notes"`
	Lines                []ContractLineResponse `json:"lines"`
	CreatedAt            string                 `json:"created_at"`
	UpdatedAt            string                 `json:"updated_at"`
}

type ScheduleEntry struct {
	InvoiceDate string `json:"invoice_date"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

type ScheduleResponse struct {
	ContractID string          `json:"contract_id"`
	Dates      []string        `json:"dates"`
	Periods    []ScheduleEntry `json:"periods"`
}

type DocumentResponse struct {
	ID          string `json:"id"`
	ContractID  string `json:"contract_id"`
	FileName    string `json:"file_name"`
	StorageKey  string `json:"storage_key"`
	ContentType string `json:"content_type"`
	IsCurrent   bool   `json:"is_current"`
	UploadedBy  string `json:"uploaded_by"`
	UploadedAt  string `json:"uploaded_at"`
}

type ListContractsQuery struct {
	Status   string
	ClientID string
	Page     int
	Limit    int
}

type ExpiryResult struct {
	AsOf    string   `json:"as_of"`
	Renewed []string `json:"renewed"`
	Expired []string `json:"expired"`
}

// --- Interface ---

type ContractService interface {
	CreateContract(ctx context.Context, req ContractRequest) (ContractResponse, error)
	UpdateDraftContract(ctx context.Context, id string, req ContractRequest) (ContractResponse, error)
	DeleteContract(ctx context.Context, id string) error
	GetContract(ctx context.Context, id string) (ContractResponse, error)
	ListContracts(ctx context.Context, q ListContractsQuery) ([]ContractResponse, int64, error)
	GetSchedule(ctx context.Context, id string, from string, count int) (ScheduleResponse, error)
	AttachDocument(ctx context.Context, id string, req AttachDocumentRequest) (DocumentResponse, error)

	Activate(ctx context.Context, id string) (ContractResponse, error)
	Suspend(ctx context.Context, id, reason string) (ContractResponse, error)
	Reactivate(ctx context.Context, id string) (ContractResponse, error)
	Terminate(ctx context.Context, id, reason string) (ContractResponse, error)
	ExpireContracts(ctx context.Context, asOf time.Time) (ExpiryResult, error)
}

type contractService struct {
	tm              repository.TransactionManager
	contracts       repository.ContractRepository
	services        repository.ServiceRepository
	sequences       repository.SequenceRepository
	resolver        PriceResolver
	documents       external.DocumentStore
	publisher       events.Publisher
	defaultCurrency string
	now             func() time.Time
}

func NewContractService(
	tm repository.TransactionManager,
	contracts repository.ContractRepository,
	services repository.ServiceRepository,
	sequences repository.SequenceRepository,
	resolver PriceResolver,
	documents external.DocumentStore,
	publisher events.Publisher,
	defaultCurrency string,
) ContractService {
	return &contractService{
		tm:              tm,
		contracts:       contracts,
		services:        services,
		sequences:       sequences,
		resolver:        resolver,
		documents:       documents,
		publisher:       publisher,
		defaultCurrency: defaultCurrency,
		now:             systemNow,
	}
}

// --- Implementation ---

func (s *contractService) CreateContract(ctx context.Context, req ContractRequest) (ContractResponse, error) {
	contract, err := s.contractFromRequest(req)
	if err != nil {
		return ContractResponse{}, err
	}
	contract.Status = model.ContractDraft

	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		lines, err := s.buildLines(txCtx, contract.ClientID, req.Lines)
		if err != nil {
			return err
		}
		contract.Lines = lines

		n, err := s.sequences.Next(txCtx, model.SequenceContract)
		if err != nil {
			return fmt.Errorf("failed to allocate contract number: %w", err)
		}
		contract.ContractNumber = fmt.Sprintf("CTR-%06d", n)

		if err := s.contracts.Create(txCtx, contract); err != nil {
			return fmt.Errorf("failed to create contract: %w", err)
		}
		emit(txCtx, s.publisher, events.Event{
			Action:     model.ActionCreateContract,
			EntityType: events.EntityContract,
			EntityID:   contract.ID.String(),
			EntityName: contract.ContractNumber,
			To:         contract.Status,
		})
		return nil
	})
	if err != nil {
		return ContractResponse{}, err
	}
	return s.GetContract(ctx, contract.ID.String())
}

func (s *contractService) UpdateDraftContract(ctx context.Context, id string, req ContractRequest) (ContractResponse, error) {
	contractID, err := parseID("id", id)
	if err != nil {
		return ContractResponse{}, err
	}
	input, err := s.contractFromRequest(req)
	if err != nil {
		return ContractResponse{}, err
	}

	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.contracts.FindByIDForUpdate(txCtx, contractID)
		if err != nil {
			return notFoundOr(err, "contract", contractID)
		}
		if err := billing.CheckContractEditable(current.Status, billing.ContractEdit); err != nil {
			return err
		}

		lines, err := s.buildLines(txCtx, input.ClientID, req.Lines)
		if err != nil {
			return err
		}

		input.ID = current.ID
		input.ContractNumber = current.ContractNumber
		input.Status = current.Status
		input.HasCurrentDocument = current.HasCurrentDocument
		input.CreatedAt = current.CreatedAt
		if err := s.contracts.UpdateHeader(txCtx, input); err != nil {
			return fmt.Errorf("failed to update contract: %w", err)
		}
		if err := s.contracts.ReplaceLines(txCtx, contractID, lines); err != nil {
			return fmt.Errorf("failed to replace contract lines: %w", err)
		}
		emit(txCtx, s.publisher, events.Event{
			Action:     model.ActionUpdateContract,
			EntityType: events.EntityContract,
			EntityID:   contractID.String(),
			EntityName: current.ContractNumber,
			Data:       map[string]any{"lines": len(lines)},
		})
		return nil
	})
	if err != nil {
		return ContractResponse{}, err
	}
	return s.GetContract(ctx, id)
}

func (s *contractService) DeleteContract(ctx context.Context, id string) error {
	contractID, err := parseID("id", id)
	if err != nil {
		return err
	}
	return s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.contracts.FindByIDForUpdate(txCtx, contractID)
		if err != nil {
			return notFoundOr(err, "contract", contractID)
		}
		if err := billing.CheckContractEditable(current.Status, billing.ContractDelete); err != nil {
			return err
		}
		if err := s.contracts.Delete(txCtx, contractID); err != nil {
			return fmt.Errorf("failed to delete contract: %w", err)
		}
		emit(txCtx, s.publisher, events.Event{
			Action:     model.ActionDeleteContract,
			EntityType: events.EntityContract,
			EntityID:   contractID.String(),
			EntityName: current.ContractNumber,
		})
		return nil
	})
}

func (s *contractService) GetContract(ctx context.Context, id string) (ContractResponse, error) {
	contractID, err := parseID("id", id)
	if err != nil {
		return ContractResponse{}, err
	}
	contract, err := s.contracts.FindByID(ctx, contractID)
	if err != nil {
		return ContractResponse{}, notFoundOr(err, "contract", contractID)
	}
	return toContractResponse(*contract), nil
}

func (s *contractService) ListContracts(ctx context.Context, q ListContractsQuery) ([]ContractResponse, int64, error) {
	clientID, err := parseOptionalID("client_id", q.ClientID)
	if err != nil {
		return nil, 0, err
	}
	page, limit := normalizePage(q.Page, q.Limit)
	contracts, total, err := s.contracts.List(ctx, repository.ContractFilter{
		Status:   strings.ToUpper(q.Status),
		ClientID: clientID,
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list contracts: %w", err)
	}
	res := make([]ContractResponse, 0, len(contracts))
	for _, c := range contracts {
		res = append(res, toContractResponse(c))
	}
	return res, total, nil
}

// GetSchedule previews upcoming invoice dates without touching state.
func (s *contractService) GetSchedule(ctx context.Context, id string, from string, count int) (ScheduleResponse, error) {
	contractID, err := parseID("id", id)
	if err != nil {
		return ScheduleResponse{}, err
	}
	contract, err := s.contracts.FindByID(ctx, contractID)
	if err != nil {
		return ScheduleResponse{}, notFoundOr(err, "contract", contractID)
	}

	fromDate := contract.StartDate
	if strings.TrimSpace(from) != "" {
		if fromDate, err = parseDate("from", from); err != nil {
			return ScheduleResponse{}, err
		}
	}
	if count == 0 {
		count = 12
	}
	if count > 120 {
		return ScheduleResponse{}, apperror.Validation("count", "must be at most 120")
	}

	periods, err := billing.SchedulePeriods(contract, fromDate, count)
	if err != nil {
		return ScheduleResponse{}, err
	}
	res := ScheduleResponse{
		ContractID: contractID.String(),
		Dates:      make([]string, 0, len(periods)),
		Periods:    make([]ScheduleEntry, 0, len(periods)),
	}
	for _, p := range periods {
		res.Dates = append(res.Dates, formatDate(p.InvoiceDate))
		res.Periods = append(res.Periods, ScheduleEntry{
			InvoiceDate: formatDate(p.InvoiceDate),
			PeriodStart: formatDate(p.Start),
			PeriodEnd:   formatDate(p.End),
		})
	}
	return res, nil
}

func (s *contractService) AttachDocument(ctx context.Context, id string, req AttachDocumentRequest) (DocumentResponse, error) {
	contractID, err := parseID("id", id)
	if err != nil {
		return DocumentResponse{}, err
	}
	if strings.TrimSpace(req.FileName) == "" {
		return DocumentResponse{}, apperror.Validation("file_name", "is required")
	}
	if strings.TrimSpace(req.StorageKey) == "" {
		return DocumentResponse{}, apperror.Validation("storage_key", "is required")
	}

	doc := &model.ContractDocument{
		ContractID:  contractID,
		FileName:    strings.TrimSpace(req.FileName),
		StorageKey:  strings.TrimSpace(req.StorageKey),
		ContentType: req.ContentType,
		UploadedBy:  events.ActorFrom(ctx),
		UploadedAt:  s.now(),
	}
	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		contract, err := s.contracts.FindByIDForUpdate(txCtx, contractID)
		if err != nil {
			return notFoundOr(err, "contract", contractID)
		}
		if billing.IsTerminalContract(contract.Status) {
			return apperror.InvalidContractState(contract.Status, "attach_document")
		}
		if err := s.contracts.AddDocument(txCtx, doc); err != nil {
			return fmt.Errorf("failed to attach document: %w", err)
		}
		emit(txCtx, s.publisher, events.Event{
			Action:     model.ActionAttachDocument,
			EntityType: events.EntityContract,
			EntityID:   contractID.String(),
			EntityName: contract.ContractNumber,
			Data:       map[string]any{"document_id": doc.ID.String(), "file_name": doc.FileName},
		})
		return nil
	})
	if err != nil {
		return DocumentResponse{}, err
	}
	return toDocumentResponse(*doc), nil
}

// Activate moves a DRAFT contract to ACTIVE once it has lines and, for written
// agreements, a current signed document. The first invoice date, a leading stub
// included, is stored when automatic invoicing is on.
func (s *contractService) Activate(ctx context.Context, id string) (ContractResponse, error) {
	return s.transition(ctx, id, billing.ContractActivate, "", func(txCtx context.Context, c *model.Contract, updates map[string]any) error {
		if len(c.Lines) == 0 {
			return apperror.NoServiceLines(c.ID.String())
		}
		if c.AgreementType == model.AgreementWritten {
			ok, err := s.documents.HasCurrentDocument(txCtx, c.ID)
			if err != nil {
				return fmt.Errorf("failed to check contract documents: %w", err)
			}
			if !ok {
				return apperror.MissingContractDocument(c.ID.String())
			}
		}

		now := s.now()
		updates["activated_at"] = now
		updates["status_reason"] = ""
		updates["next_invoice_date"] = nil
		if c.AutoInvoicingEnabled {
			first, err := billing.FirstInvoiceDate(c)
			if err != nil {
				return err
			}
			if first != nil {
				updates["next_invoice_date"] = *first
			}
		}
		return nil
	})
}

func (s *contractService) Suspend(ctx context.Context, id, reason string) (ContractResponse, error) {
	reason, err := requireReason(reason)
	if err != nil {
		return ContractResponse{}, err
	}
	return s.transition(ctx, id, billing.ContractSuspend, reason, func(_ context.Context, _ *model.Contract, updates map[string]any) error {
		updates["status_reason"] = reason
		updates["suspended_at"] = s.now()
		return nil
	})
}

// Reactivate resumes billing from the first scheduled date on or after today;
// periods that elapsed while suspended are skipped.
func (s *contractService) Reactivate(ctx context.Context, id string) (ContractResponse, error) {
	return s.transition(ctx, id, billing.ContractReactivate, "", func(_ context.Context, c *model.Contract, updates map[string]any) error {
		updates["status_reason"] = ""
		updates["suspended_at"] = nil
		if !c.AutoInvoicingEnabled || c.NextInvoiceDate == nil {
			return nil
		}
		from := model.DateOnly(s.now())
		if c.NextInvoiceDate.After(from) {
			from = model.DateOnly(*c.NextInvoiceDate)
		}
		periods, err := billing.SchedulePeriods(c, from, 1)
		if err != nil {
			return err
		}
		if len(periods) == 0 {
			updates["next_invoice_date"] = nil
		} else {
			updates["next_invoice_date"] = periods[0].InvoiceDate
		}
		return nil
	})
}

func (s *contractService) Terminate(ctx context.Context, id, reason string) (ContractResponse, error) {
	reason, err := requireReason(reason)
	if err != nil {
		return ContractResponse{}, err
	}
	return s.transition(ctx, id, billing.ContractTerminate, reason, func(_ context.Context, _ *model.Contract, updates map[string]any) error {
		updates["status_reason"] = reason
		updates["terminated_at"] = s.now()
		updates["next_invoice_date"] = nil
		return nil
	})
}

// transition runs one guarded status change. The row is locked, the edge is
// checked against the transition table, guard fills extra columns, and the
// write is a compare-and-set on the status read under the lock.
func (s *contractService) transition(
	ctx context.Context,
	id, action, reason string,
	guard func(txCtx context.Context, c *model.Contract, updates map[string]any) error,
) (ContractResponse, error) {
	contractID, err := parseID("id", id)
	if err != nil {
		return ContractResponse{}, err
	}

	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		c, err := s.contracts.FindByIDForUpdate(txCtx, contractID)
		if err != nil {
			return notFoundOr(err, "contract", contractID)
		}
		to, err := billing.NextContractStatus(c.Status, action)
		if err != nil {
			return err
		}

		updates := map[string]any{"status": to}
		if err := guard(txCtx, c, updates); err != nil {
			return err
		}
		ok, err := s.contracts.CompareAndSetStatus(txCtx, c.ID, c.Status, updates)
		if err != nil {
			return fmt.Errorf("failed to update contract status: %w", err)
		}
		if !ok {
			return apperror.Conflict("contract status changed concurrently")
		}

		data := map[string]any{}
		if reason != "" {
			data["reason"] = reason
		}
		emit(txCtx, s.publisher, events.Event{
			Action:     contractActionAudit[action],
			EntityType: events.EntityContract,
			EntityID:   c.ID.String(),
			EntityName: c.ContractNumber,
			From:       c.Status,
			To:         to,
			Data:       data,
		})
		return nil
	})
	if err != nil {
		return ContractResponse{}, err
	}
	return s.GetContract(ctx, id)
}

var contractActionAudit = map[string]string{
	billing.ContractActivate:   model.ActionActivateContract,
	billing.ContractSuspend:    model.ActionSuspendContract,
	billing.ContractReactivate: model.ActionReactivate,
	billing.ContractTerminate:  model.ActionTerminateContract,
	billing.ContractExpire:     model.ActionExpireContract,
}

// ExpireContracts handles ACTIVE contracts whose end date is before asOf.
// AUTO_RENEW contracts get their end date pushed by whole renewal terms; all
// others become EXPIRED once their final ARREARS invoice, if any, is issued.
func (s *contractService) ExpireContracts(ctx context.Context, asOf time.Time) (ExpiryResult, error) {
	asOf = model.DateOnly(asOf)
	result := ExpiryResult{AsOf: formatDate(asOf), Renewed: []string{}, Expired: []string{}}

	ended, err := s.contracts.FindEnded(ctx, asOf)
	if err != nil {
		return result, fmt.Errorf("failed to find ended contracts: %w", err)
	}

	for _, candidate := range ended {
		var renewed, expired bool
		err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
			c, err := s.contracts.FindByIDForUpdate(txCtx, candidate.ID)
			if err != nil {
				return notFoundOr(err, "contract", candidate.ID)
			}
			if c.Status != model.ContractActive || c.EndDate == nil || !model.DateOnly(*c.EndDate).Before(asOf) {
				return nil
			}
			if c.TermType == model.TermAutoRenew {
				renewed = true
				return s.renew(txCtx, c, asOf)
			}
			if owesFinalInvoice(c) {
				return nil
			}
			expired = true
			return s.expire(txCtx, c)
		})
		if err != nil {
			return result, err
		}
		if renewed {
			result.Renewed = append(result.Renewed, candidate.ID.String())
		}
		if expired {
			result.Expired = append(result.Expired, candidate.ID.String())
		}
	}
	return result, nil
}

func (s *contractService) renew(ctx context.Context, c *model.Contract, asOf time.Time) error {
	term := c.RenewalTermMonths
	if term < 1 {
		term = renewalTermMonths(c.StartDate, *c.EndDate)
	}
	oldEnd := model.DateOnly(*c.EndDate)
	newEnd := oldEnd
	for k := 1; newEnd.Before(asOf); k++ {
		newEnd = billing.AddMonths(oldEnd.AddDate(0, 0, 1), k*term).AddDate(0, 0, -1)
	}
	c.EndDate = &newEnd

	if c.AutoInvoicingEnabled && c.BillingType == model.BillingRecurring {
		var next *time.Time
		var err error
		if c.LastInvoiceDate == nil {
			next, err = billing.FirstInvoiceDate(c)
		} else {
			next, err = billing.NextInvoiceDate(c, *c.LastInvoiceDate)
		}
		if err != nil {
			return err
		}
		c.NextInvoiceDate = next
	}

	if err := s.contracts.UpdateHeader(ctx, c); err != nil {
		return fmt.Errorf("failed to renew contract: %w", err)
	}
	emit(ctx, s.publisher, events.Event{
		Action:     model.ActionRenewContract,
		EntityType: events.EntityContract,
		EntityID:   c.ID.String(),
		EntityName: c.ContractNumber,
		Data:       map[string]any{"previous_end_date": formatDate(oldEnd), "end_date": formatDate(newEnd)},
	})
	return nil
}

func (s *contractService) expire(ctx context.Context, c *model.Contract) error {
	to, err := billing.NextContractStatus(c.Status, billing.ContractExpire)
	if err != nil {
		return err
	}
	ok, err := s.contracts.CompareAndSetStatus(ctx, c.ID, c.Status, map[string]any{
		"status":            to,
		"next_invoice_date": nil,
	})
	if err != nil {
		return fmt.Errorf("failed to expire contract: %w", err)
	}
	if !ok {
		return apperror.Conflict("contract status changed concurrently")
	}
	emit(ctx, s.publisher, events.Event{
		Action:     model.ActionExpireContract,
		EntityType: events.EntityContract,
		EntityID:   c.ID.String(),
		EntityName: c.ContractNumber,
		From:       c.Status,
		To:         to,
	})
	return nil
}

// owesFinalInvoice reports whether an ARREARS invoice dated after the end date
// is still to be generated. Expiry waits for the billing run to issue it.
func owesFinalInvoice(c *model.Contract) bool {
	return c.AutoInvoicingEnabled && c.NextInvoiceDate != nil && c.EndDate != nil &&
		model.DateOnly(*c.NextInvoiceDate).After(model.DateOnly(*c.EndDate))
}

// renewalTermMonths is the whole number of months covered by [start, end], at least 1.
func renewalTermMonths(start, end time.Time) int {
	start = model.DateOnly(start)
	after := model.DateOnly(end).AddDate(0, 0, 1)
	months := (after.Year()-start.Year())*12 + int(after.Month()) - int(start.Month())
	if after.Day() < start.Day() {
		months--
	}
	if months < 1 {
		months = 1
	}
	return months
}

// contractFromRequest validates header fields. Lines are built separately
// because they need the database.
func (s *contractService) contractFromRequest(req ContractRequest) (*model.Contract, error) {
	clientID, err := parseID("client_id", req.ClientID)
	if err != nil {
		return nil, err
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseOptionalDate("end_date", req.EndDate)
	if err != nil {
		return nil, err
	}

	c := &model.Contract{
		ClientID:             clientID,
		AgreementType:        strings.ToUpper(req.AgreementType),
		TermType:             strings.ToUpper(req.TermType),
		StartDate:            start,
		EndDate:              end,
		RenewalTermMonths:    req.RenewalTermMonths,
		BillingType:          strings.ToUpper(req.BillingType),
		BillingIntervalUnit:  strings.ToUpper(req.BillingIntervalUnit),
		BillingIntervalCount: req.BillingIntervalCount,
		BillingDayOfMonth:    req.BillingDayOfMonth,
		AutoInvoicingEnabled: req.AutoInvoicingEnabled,
		InvoiceTiming:        strings.ToUpper(req.InvoiceTiming),
		ProrationPolicy:      strings.ToUpper(req.ProrationPolicy),
		Currency:             strings.ToUpper(strings.TrimSpace(req.Currency)),
		Notes:                req.Notes,
	}
	if c.InvoiceTiming == "" {
		c.InvoiceTiming = model.TimingAdvance
	}
	if c.ProrationPolicy == "" {
		c.ProrationPolicy = model.ProrationProrated
	}
	if c.Currency == "" {
		c.Currency = s.defaultCurrency
	}

	switch c.AgreementType {
	case model.AgreementWritten, model.AgreementVerbal:
	default:
		return nil, apperror.Validation("agreement_type", "must be WRITTEN or VERBAL")
	}
	switch c.TermType {
	case model.TermEvergreen:
	case model.TermFixed, model.TermAutoRenew:
		if end == nil {
			return nil, apperror.Validation("end_date", "is required for "+c.TermType+" contracts")
		}
	default:
		return nil, apperror.Validation("term_type", "must be EVERGREEN, FIXED_TERM or AUTO_RENEW")
	}
	if end != nil && end.Before(start) {
		return nil, apperror.Validation("end_date", "must not be before start_date")
	}
	if c.RenewalTermMonths < 0 {
		return nil, apperror.Validation("renewal_term_months", "must not be negative")
	}
	if c.TermType == model.TermAutoRenew && c.RenewalTermMonths == 0 {
		c.RenewalTermMonths = renewalTermMonths(start, *end)
	}

	switch c.BillingType {
	case model.BillingOneTime:
		if c.BillingIntervalCount == 0 {
			c.BillingIntervalCount = 1
		}
		if c.BillingIntervalUnit == "" {
			c.BillingIntervalUnit = model.IntervalMonth
		}
	case model.BillingRecurring:
		if c.BillingIntervalUnit == "" {
			return nil, apperror.Validation("billing_interval_unit", "is required for RECURRING contracts")
		}
	default:
		return nil, apperror.Validation("billing_type", "must be RECURRING or ONE_TIME")
	}
	if c.BillingIntervalCount < 1 {
		return nil, apperror.Validation("billing_interval_count", "must be at least 1")
	}
	switch c.BillingIntervalUnit {
	case model.IntervalDay, model.IntervalWeek, model.IntervalMonth, model.IntervalYear:
	default:
		return nil, apperror.Validation("billing_interval_unit", "must be one of DAY, WEEK, MONTH, YEAR")
	}
	if d := c.BillingDayOfMonth; d != nil {
		if *d < 1 || *d > 31 {
			return nil, apperror.Validation("billing_day_of_month", "must be between 1 and 31")
		}
		if c.BillingIntervalUnit != model.IntervalMonth && c.BillingIntervalUnit != model.IntervalYear {
			return nil, apperror.Validation("billing_day_of_month", "applies only to MONTH or YEAR intervals")
		}
	}
	switch c.InvoiceTiming {
	case model.TimingAdvance, model.TimingArrears:
	default:
		return nil, apperror.Validation("invoice_timing", "must be ADVANCE or ARREARS")
	}
	switch c.ProrationPolicy {
	case model.ProrationProrated, model.ProrationFullPeriod, model.ProrationNoCharge:
	default:
		return nil, apperror.Validation("proration_policy", "must be PRORATED, FULL_PERIOD or NO_CHARGE")
	}
	return c, nil
}

// buildLines resolves every requested line for the client. Positions follow
// request order.
func (s *contractService) buildLines(ctx context.Context, clientID uuid.UUID, reqs []ContractLineRequest) ([]model.ContractLine, error) {
	lines := make([]model.ContractLine, 0, len(reqs))
	for i, r := range reqs {
		field := fmt.Sprintf("lines[%d]", i)
		serviceID, err := parseID(field+".service_id", r.ServiceID)
		if err != nil {
			return nil, err
		}
		qty, err := parsePositive(field+".quantity", r.Quantity)
		if err != nil {
			return nil, err
		}
		svc, err := loadActiveService(ctx, s.services, field+".service_id", serviceID)
		if err != nil {
			return nil, err
		}

		var manual *decimal.Decimal
		if r.ManualUnitPrice != nil && strings.TrimSpace(*r.ManualUnitPrice) != "" {
			m, err := parseDecimal(field+".manual_unit_price", *r.ManualUnitPrice)
			if err != nil {
				return nil, err
			}
			if m.Sign() < 0 {
				return nil, apperror.Validation(field+".manual_unit_price", "must not be negative")
			}
			manual = &m
		}
		resolved, err := resolveLinePrice(ctx, s.resolver, serviceID, clientID, manual)
		if err != nil {
			return nil, err
		}

		line := model.ContractLine{
			Position:          i + 1,
			ServiceID:         serviceID,
			Description:       strings.TrimSpace(r.Description),
			Quantity:          qty,
			BillingUnit:       strings.ToUpper(strings.TrimSpace(r.BillingUnit)),
			ResolvedUnitPrice: resolved.UnitPrice,
			PriceSource:       resolved.Source,
			ItbisApplicable:   svc.ItbisApplicable,
		}
		if line.BillingUnit == "" {
			line.BillingUnit = svc.DefaultBillingUnit
		}
		if line.Description == "" {
			line.Description = svc.Name
		}
		if r.ItbisApplicable != nil {
			line.ItbisApplicable = *r.ItbisApplicable
		}
		if manual != nil {
			line.ManualUnitPrice = decimal.NewNullDecimal(*manual)
		}
		billing.PriceContractLine(&line)
		lines = append(lines, line)
	}
	return lines, nil
}

func toContractResponse(c model.Contract) ContractResponse {
	res := ContractResponse{
		ID:                   c.ID.String(),
		ContractNumber:       c.ContractNumber,
		ClientID:             c.ClientID.String(),
		AgreementType:        c.AgreementType,
		TermType:             c.TermType,
		StartDate:            formatDate(c.StartDate),
		EndDate:              formatOptionalDate(c.EndDate),
		RenewalTermMonths:    c.RenewalTermMonths,
		BillingType:          c.BillingType,
		BillingIntervalUnit:  c.BillingIntervalUnit,
		BillingIntervalCount: c.BillingIntervalCount,
		BillingDayOfMonth:    c.BillingDayOfMonth,
		AutoInvoicingEnabled: c.AutoInvoicingEnabled,
		InvoiceTiming:        c.InvoiceTiming,
		ProrationPolicy:      c.ProrationPolicy,
		Currency:             c.Currency,
		Status:               c.Status,
		StatusReason:         c.StatusReason,
		HasCurrentDocument:   c.HasCurrentDocument,
		NextInvoiceDate:      formatOptionalDate(c.NextInvoiceDate),
		LastInvoiceDate:      formatOptionalDate(c.LastInvoiceDate),
		Notes:                c.Notes,
		Lines:                make([]ContractLineResponse, 0, len(c.Lines)),
		CreatedAt:            c.CreatedAt.UTC().Format(timestampLayout),
		UpdatedAt:            c.UpdatedAt.UTC().Format(timestampLayout),
	}

	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.LineTotal)
		line := ContractLineResponse{
			ID:                l.ID.String(),
			Position:          l.Position,
			ServiceID:         l.ServiceID.String(),
			Description:       l.Description,
			Quantity:          l.Quantity.String(),
			BillingUnit:       l.BillingUnit,
			ResolvedUnitPrice: amount(l.ResolvedUnitPrice),
			PriceSource:       l.PriceSource,
			ItbisApplicable:   l.ItbisApplicable,
			LineTotal:         amount(l.LineTotal),
		}
		if l.Service != nil {
			line.ServiceCode = l.Service.Code
		}
		if l.ManualUnitPrice.Valid {
			m := amount(l.ManualUnitPrice.Decimal)
			line.ManualUnitPrice = &m
		}
		res.Lines = append(res.Lines, line)
	}
	res.PeriodAmount = amount(total)
	return res
}

func toDocumentResponse(d model.ContractDocument) DocumentResponse {
	return DocumentResponse{
		ID:          d.ID.String(),
		ContractID:  d.ContractID.String(),
		FileName:    d.FileName,
		StorageKey:  d.StorageKey,
		ContentType: d.ContentType,
		IsCurrent:   d.IsCurrent,
		UploadedBy:  d.UploadedBy,
		UploadedAt:  d.UploadedAt.UTC().Format(timestampLayout),
	}
}
