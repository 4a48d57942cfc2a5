package repository

import (
	"context"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentFilter struct {
	Status   string
	ClientID *uuid.UUID
	Page     int
	Limit    int
}

// PaymentRepository persists payments, their allocations and receipts.
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	UpdateAllocation(ctx context.Context, payment *model.Payment) error
	List(ctx context.Context, f PaymentFilter) ([]model.Payment, int64, error)

	CreateAllocations(ctx context.Context, allocations []model.PaymentAllocation) error
	ListAllocationsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.PaymentAllocation, error)
	SumAllocationsByPayment(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error)

	CreateReceipt(ctx context.Context, receipt *model.Receipt) error
	FindReceiptByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Receipt, error)
	FindReceiptByPayment(ctx context.Context, paymentID uuid.UUID) (*model.Receipt, error)
	UpdateReceipt(ctx context.Context, receipt *model.Receipt) error
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func orderedAllocations(db *gorm.DB) *gorm.DB {
	return db.Order("created_at asc")
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return GetDB(ctx, r.db).Create(payment).Error
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	if err := GetDB(ctx, r.db).Preload("Allocations", orderedAllocations).
		First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) UpdateAllocation(ctx context.Context, payment *model.Payment) error {
	return GetDB(ctx, r.db).Model(&model.Payment{}).Where("id = ?", payment.ID).
		Updates(map[string]any{
			"amount_allocated": payment.AmountAllocated,
			"status":           payment.Status,
		}).Error
}

func (r *paymentRepository) List(ctx context.Context, f PaymentFilter) ([]model.Payment, int64, error) {
	var payments []model.Payment
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Payment{})
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
	if err := db.Order("payment_date desc, created_at desc").
		Offset(offset).Limit(f.Limit).Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

func (r *paymentRepository) CreateAllocations(ctx context.Context, allocations []model.PaymentAllocation) error {
	if len(allocations) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&allocations).Error
}

func (r *paymentRepository) ListAllocationsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.PaymentAllocation, error) {
	var allocations []model.PaymentAllocation
	err := GetDB(ctx, r.db).Where("invoice_id = ?", invoiceID).
		Order("created_at asc").Find(&allocations).Error
	return allocations, err
}

// SumAllocationsByPayment adds up the allocation rows of a payment in Go so the
// result keeps exact decimal precision on every driver.
func (r *paymentRepository) SumAllocationsByPayment(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	var allocations []model.PaymentAllocation
	if err := GetDB(ctx, r.db).Where("payment_id = ?", paymentID).Find(&allocations).Error; err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, a := range allocations {
		sum = sum.Add(a.Amount)
	}
	return sum, nil
}

func (r *paymentRepository) CreateReceipt(ctx context.Context, receipt *model.Receipt) error {
	return GetDB(ctx, r.db).Create(receipt).Error
}

func (r *paymentRepository) FindReceiptByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Receipt, error) {
	var receipt model.Receipt
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&receipt).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *paymentRepository) FindReceiptByPayment(ctx context.Context, paymentID uuid.UUID) (*model.Receipt, error) {
	var receipt model.Receipt
	if err := GetDB(ctx, r.db).Where("payment_id = ?", paymentID).First(&receipt).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *paymentRepository) UpdateReceipt(ctx context.Context, receipt *model.Receipt) error {
	return GetDB(ctx, r.db).Save(receipt).Error
}
