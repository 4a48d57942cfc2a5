package repository

import (
	"context"
	"time"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ContractFilter struct {
	Status   string
	ClientID *uuid.UUID
	Page     int
	Limit    int
}

// ContractRepository persists contracts with their lines and documents.
type ContractRepository interface {
	Create(ctx context.Context, contract *model.Contract) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Contract, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Contract, error)
	UpdateHeader(ctx context.Context, contract *model.Contract) error
	ReplaceLines(ctx context.Context, contractID uuid.UUID, lines []model.ContractLine) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ContractFilter) ([]model.Contract, int64, error)
	// CompareAndSetStatus applies updates only while the row is still in status from.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from string, updates map[string]any) (bool, error)
	FindDueForInvoicing(ctx context.Context, asOf time.Time, limit int) ([]model.Contract, error)
	FindEnded(ctx context.Context, asOf time.Time) ([]model.Contract, error)

	AddDocument(ctx context.Context, doc *model.ContractDocument) error
	ListDocuments(ctx context.Context, contractID uuid.UUID) ([]model.ContractDocument, error)
}

type contractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) ContractRepository {
	return &contractRepository{db: db}
}

func orderedLines(db *gorm.DB) *gorm.DB {
	return db.Order("position asc")
}

func (r *contractRepository) Create(ctx context.Context, contract *model.Contract) error {
	return GetDB(ctx, r.db).Create(contract).Error
}

func (r *contractRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	var contract model.Contract
	if err := GetDB(ctx, r.db).Preload("Lines", orderedLines).Preload("Lines.Service").
		First(&contract, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *contractRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	var contract model.Contract
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&contract).Error; err != nil {
		return nil, err
	}
	if err := GetDB(ctx, r.db).Where("contract_id = ?", id).Order("position asc").
		Find(&contract.Lines).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *contractRepository) UpdateHeader(ctx context.Context, contract *model.Contract) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(contract).Error
}

func (r *contractRepository) ReplaceLines(ctx context.Context, contractID uuid.UUID, lines []model.ContractLine) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("contract_id = ?", contractID).Delete(&model.ContractLine{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		lines[i].ContractID = contractID
	}
	return db.Omit("Service").Create(&lines).Error
}

func (r *contractRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("contract_id = ?", id).Delete(&model.ContractLine{}).Error; err != nil {
		return err
	}
	if err := db.Where("contract_id = ?", id).Delete(&model.ContractDocument{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Contract{}).Error
}

func (r *contractRepository) List(ctx context.Context, f ContractFilter) ([]model.Contract, int64, error) {
	var contracts []model.Contract
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Contract{})
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.ClientID != nil {
		db = db.Where("client_id = ?", *f.ClientID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (f.Page - 1) * f.Limit
	if err := db.Preload("Lines", orderedLines).Order("created_at desc").
		Offset(offset).Limit(f.Limit).Find(&contracts).Error; err != nil {
		return nil, 0, err
	}
	return contracts, total, nil
}

func (r *contractRepository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from string, updates map[string]any) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Contract{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *contractRepository) FindDueForInvoicing(ctx context.Context, asOf time.Time, limit int) ([]model.Contract, error) {
	var contracts []model.Contract
	err := GetDB(ctx, r.db).
		Where("status = ? AND auto_invoicing_enabled = ? AND next_invoice_date IS NOT NULL AND next_invoice_date <= ?",
			model.ContractActive, true, asOf).
		Order("next_invoice_date asc").
		Limit(limit).
		Find(&contracts).Error
	return contracts, err
}

func (r *contractRepository) FindEnded(ctx context.Context, asOf time.Time) ([]model.Contract, error) {
	var contracts []model.Contract
	err := GetDB(ctx, r.db).
		Where("status = ? AND end_date IS NOT NULL AND end_date < ?", model.ContractActive, asOf).
		Order("end_date asc").
		Find(&contracts).Error
	return contracts, err
}

// AddDocument stores doc as the only current document of its contract.
func (r *contractRepository) AddDocument(ctx context.Context, doc *model.ContractDocument) error {
	db := GetDB(ctx, r.db)
	if err := db.Model(&model.ContractDocument{}).
		Where("contract_id = ? AND is_current = ?", doc.ContractID, true).
		Update("is_current", false).Error; err != nil {
		return err
	}
	doc.IsCurrent = true
	if err := db.Create(doc).Error; err != nil {
		return err
	}
	return db.Model(&model.Contract{}).Where("id = ?", doc.ContractID).
		Update("has_current_document", true).Error
}

func (r *contractRepository) ListDocuments(ctx context.Context, contractID uuid.UUID) ([]model.ContractDocument, error) {
	var docs []model.ContractDocument
	err := GetDB(ctx, r.db).Where("contract_id = ?", contractID).
		Order("uploaded_at desc").Find(&docs).Error
	return docs, err
}
