package repository

import (
	"context"
	"time"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InvoiceFilter struct {
	Status      string
	ClientID    *uuid.UUID
	ContractID  *uuid.UUID
	OverdueAsOf *time.Time
	Page        int
	Limit       int
}

// InvoiceRepository persists invoices and their lines.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	// FindByIDsForUpdate locks the invoices in ascending id order.
	FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]model.Invoice, error)
	UpdateHeader(ctx context.Context, invoice *model.Invoice) error
	ReplaceLines(ctx context.Context, invoiceID uuid.UUID, lines []model.InvoiceLine) error
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from string, updates map[string]any) (bool, error)
	List(ctx context.Context, f InvoiceFilter) ([]model.Invoice, int64, error)
	ListOpenByClient(ctx context.Context, clientID uuid.UUID) ([]model.Invoice, error)
	ExistsForContractPeriod(ctx context.Context, contractID uuid.UUID, periodStart time.Time) (bool, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Create(invoice).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).Preload("Lines", orderedLines).
		First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&invoice).Error; err != nil {
		return nil, err
	}
	if err := GetDB(ctx, r.db).Where("invoice_id = ?", id).Order("position asc").
		Find(&invoice.Lines).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]model.Invoice, error) {
	var invoices []model.Invoice
	if len(ids) == 0 {
		return invoices, nil
	}
	err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id asc").
		Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepository) UpdateHeader(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(invoice).Error
}

func (r *invoiceRepository) ReplaceLines(ctx context.Context, invoiceID uuid.UUID, lines []model.InvoiceLine) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("invoice_id = ?", invoiceID).Delete(&model.InvoiceLine{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		lines[i].InvoiceID = invoiceID
	}
	return db.Create(&lines).Error
}

func (r *invoiceRepository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from string, updates map[string]any) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *invoiceRepository) List(ctx context.Context, f InvoiceFilter) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Invoice{})
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.ClientID != nil {
		db = db.Where("client_id = ?", *f.ClientID)
	}
	if f.ContractID != nil {
		db = db.Where("contract_id = ?", *f.ContractID)
	}
	if f.OverdueAsOf != nil {
		db = db.Where("status IN ? AND due_date < ? AND balance > 0",
			[]string{model.InvoiceIssued, model.InvoicePartial}, *f.OverdueAsOf)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (f.Page - 1) * f.Limit
	if err := db.Preload("Lines", orderedLines).Order("issue_date desc, invoice_number desc").
		Offset(offset).Limit(f.Limit).Find(&invoices).Error; err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (r *invoiceRepository) ListOpenByClient(ctx context.Context, clientID uuid.UUID) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := GetDB(ctx, r.db).
		Where("client_id = ? AND status IN ? AND balance > 0", clientID,
			[]string{model.InvoiceIssued, model.InvoicePartial}).
		Order("due_date asc, invoice_number asc").
		Find(&invoices).Error
	return invoices, err
}

// ExistsForContractPeriod reports whether a non-cancelled invoice already bills the period.
func (r *invoiceRepository) ExistsForContractPeriod(ctx context.Context, contractID uuid.UUID, periodStart time.Time) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("contract_id = ? AND period_start = ? AND status <> ?", contractID, periodStart, model.InvoiceCancelled).
		Count(&count).Error
	return count > 0, err
}
