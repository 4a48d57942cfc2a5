package repository

import (
	"context"
	"strings"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ServiceFilter struct {
	ActiveOnly bool
	Search     string
	Page       int
	Limit      int
}

// ServiceRepository persists catalog services.
type ServiceRepository interface {
	Create(ctx context.Context, svc *model.Service) error
	Update(ctx context.Context, svc *model.Service) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Service, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Service, error)
	FindByCode(ctx context.Context, code string) (*model.Service, error)
	List(ctx context.Context, f ServiceFilter) ([]model.Service, int64, error)
	CountActiveContractUsage(ctx context.Context, serviceID uuid.UUID) (int64, error)
}

type serviceRepository struct {
	db *gorm.DB
}

func NewServiceRepository(db *gorm.DB) ServiceRepository {
	return &serviceRepository{db: db}
}

func (r *serviceRepository) Create(ctx context.Context, svc *model.Service) error {
	return GetDB(ctx, r.db).Create(svc).Error
}

func (r *serviceRepository) Update(ctx context.Context, svc *model.Service) error {
	return GetDB(ctx, r.db).Save(svc).Error
}

func (r *serviceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	var svc model.Service
	if err := GetDB(ctx, r.db).First(&svc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &svc, nil
}

// FindByIDForUpdate locks the service row; price writers serialize on it.
func (r *serviceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	var svc model.Service
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&svc).Error; err != nil {
		return nil, err
	}
	return &svc, nil
}

func (r *serviceRepository) FindByCode(ctx context.Context, code string) (*model.Service, error) {
	var svc model.Service
	if err := GetDB(ctx, r.db).Where("code = ?", code).First(&svc).Error; err != nil {
		return nil, err
	}
	return &svc, nil
}

func (r *serviceRepository) List(ctx context.Context, f ServiceFilter) ([]model.Service, int64, error) {
	var services []model.Service
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Service{})
	if f.ActiveOnly {
		db = db.Where("active = ?", true)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		db = db.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", like, like)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (f.Page - 1) * f.Limit
	if err := db.Order("code asc").Offset(offset).Limit(f.Limit).Find(&services).Error; err != nil {
		return nil, 0, err
	}
	return services, total, nil
}

// CountActiveContractUsage counts ACTIVE contracts with a line on the service.
func (r *serviceRepository) CountActiveContractUsage(ctx context.Context, serviceID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.ContractLine{}).
		Joins("JOIN contracts ON contracts.id = contract_lines.contract_id").
		Where("contract_lines.service_id = ? AND contracts.status = ?", serviceID, model.ContractActive).
		Distinct("contracts.id").
		Count(&count).Error
	return count, err
}
