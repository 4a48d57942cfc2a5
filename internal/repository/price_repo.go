package repository

import (
	"context"
	"errors"
	"time"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PriceRepository persists versioned prices.
type PriceRepository interface {
	Create(ctx context.Context, price *model.Price) error
	// FindCurrent returns the open version for a scope, or nil when none exists.
	FindCurrent(ctx context.Context, serviceID uuid.UUID, scopeKey string) (*model.Price, error)
	Close(ctx context.Context, id uuid.UUID, effectiveTo time.Time) error
	// FindEffective returns the version in force at the instant, or nil.
	FindEffective(ctx context.Context, serviceID uuid.UUID, scopeKey string, at time.Time) (*model.Price, error)
	History(ctx context.Context, serviceID uuid.UUID, scopeKey string) ([]model.Price, error)
	CountCurrent(ctx context.Context, serviceID uuid.UUID, scopeKey string) (int64, error)
	MaxVersion(ctx context.Context, serviceID uuid.UUID, scopeKey string) (int, error)
	// NextChange returns the earliest effective_from or effective_to after the
	// instant across the given scopes, or nil.
	NextChange(ctx context.Context, serviceID uuid.UUID, scopeKeys []string, after time.Time) (*time.Time, error)
}

type priceRepository struct {
	db *gorm.DB
}

func NewPriceRepository(db *gorm.DB) PriceRepository {
	return &priceRepository{db: db}
}

func (r *priceRepository) Create(ctx context.Context, price *model.Price) error {
	return GetDB(ctx, r.db).Create(price).Error
}

func (r *priceRepository) FindCurrent(ctx context.Context, serviceID uuid.UUID, scopeKey string) (*model.Price, error) {
	var price model.Price
	err := GetDB(ctx, r.db).
		Where("service_id = ? AND scope_key = ? AND effective_to IS NULL", serviceID, scopeKey).
		First(&price).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &price, nil
}

func (r *priceRepository) Close(ctx context.Context, id uuid.UUID, effectiveTo time.Time) error {
	return GetDB(ctx, r.db).Model(&model.Price{}).Where("id = ?", id).
		Update("effective_to", effectiveTo).Error
}

func (r *priceRepository) FindEffective(ctx context.Context, serviceID uuid.UUID, scopeKey string, at time.Time) (*model.Price, error) {
	var price model.Price
	err := GetDB(ctx, r.db).
		Where("service_id = ? AND scope_key = ? AND effective_from <= ? AND (effective_to IS NULL OR effective_to > ?)",
			serviceID, scopeKey, at, at).
		Order("effective_from DESC").
		First(&price).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &price, nil
}

func (r *priceRepository) History(ctx context.Context, serviceID uuid.UUID, scopeKey string) ([]model.Price, error) {
	var prices []model.Price
	err := GetDB(ctx, r.db).
		Where("service_id = ? AND scope_key = ?", serviceID, scopeKey).
		Order("version DESC").
		Find(&prices).Error
	return prices, err
}

func (r *priceRepository) CountCurrent(ctx context.Context, serviceID uuid.UUID, scopeKey string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Price{}).
		Where("service_id = ? AND scope_key = ? AND effective_to IS NULL", serviceID, scopeKey).
		Count(&count).Error
	return count, err
}

func (r *priceRepository) MaxVersion(ctx context.Context, serviceID uuid.UUID, scopeKey string) (int, error) {
	var version int
	err := GetDB(ctx, r.db).Model(&model.Price{}).
		Where("service_id = ? AND scope_key = ?", serviceID, scopeKey).
		Select("COALESCE(MAX(version), 0)").
		Scan(&version).Error
	return version, err
}

func (r *priceRepository) NextChange(ctx context.Context, serviceID uuid.UUID, scopeKeys []string, after time.Time) (*time.Time, error) {
	var next *time.Time

	var starting model.Price
	err := GetDB(ctx, r.db).
		Where("service_id = ? AND scope_key IN ? AND effective_from > ?", serviceID, scopeKeys, after).
		Order("effective_from ASC").
		First(&starting).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err == nil {
		from := starting.EffectiveFrom
		next = &from
	}

	var ending model.Price
	err = GetDB(ctx, r.db).
		Where("service_id = ? AND scope_key IN ? AND effective_to > ?", serviceID, scopeKeys, after).
		Order("effective_to ASC").
		First(&ending).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err == nil && ending.EffectiveTo != nil && (next == nil || ending.EffectiveTo.Before(*next)) {
		to := *ending.EffectiveTo
		next = &to
	}
	return next, nil
}
