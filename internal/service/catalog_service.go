package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"backoffice/internal/apperror"
	"backoffice/internal/events"
	"backoffice/internal/model"
	"backoffice/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateServiceRequest struct {
	Code               string `json:"code" binding:"required,max=50"`
	Name               string `json:"name" binding:"required,max=255"`
	Description        string `json:"description"`
	DefaultBillingUnit string `json:"default_billing_unit" binding:"required,max=30"`
	ItbisApplicable    *bool  `json:"itbis_applicable"` // defaults to true
}

type UpdateServiceRequest struct {
	Code               *string `json:"code"` // immutable, accepted only when unchanged
	Name               *string `json:"name"`
	Description        *string `json:"description"`
	DefaultBillingUnit *string `json:"default_billing_unit"`
	ItbisApplicable    *bool   `json:"itbis_applicable"`
}

type ServiceResponse struct {
	ID                 string `json:"id"`
	Code               string `json:"code"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	DefaultBillingUnit string `json:"default_billing_unit"`
	ItbisApplicable    bool   `json:"itbis_applicable"`
	Active             bool   `json:"active"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

type ListServicesQuery struct {
	ActiveOnly bool
	Search     string
	Page       int
	Limit      int
}

// --- Interface ---

type CatalogService interface {
	CreateService(ctx context.Context, req CreateServiceRequest) (ServiceResponse, error)
	UpdateService(ctx context.Context, id string, req UpdateServiceRequest) (ServiceResponse, error)
	DeactivateService(ctx context.Context, id string) (ServiceResponse, error)
	GetService(ctx context.Context, id string) (ServiceResponse, error)
	ListServices(ctx context.Context, q ListServicesQuery) ([]ServiceResponse, int64, error)
}

type catalogService struct {
	tm        repository.TransactionManager
	services  repository.ServiceRepository
	prices    repository.PriceRepository
	publisher events.Publisher
}

func NewCatalogService(
	tm repository.TransactionManager,
	services repository.ServiceRepository,
	prices repository.PriceRepository,
	publisher events.Publisher,
) CatalogService {
	return &catalogService{tm: tm, services: services, prices: prices, publisher: publisher}
}

// --- Implementation ---

func (s *catalogService) CreateService(ctx context.Context, req CreateServiceRequest) (ServiceResponse, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	name := strings.TrimSpace(req.Name)
	unit := strings.ToUpper(strings.TrimSpace(req.DefaultBillingUnit))
	switch {
	case code == "":
		return ServiceResponse{}, apperror.Validation("code", "is required")
	case name == "":
		return ServiceResponse{}, apperror.Validation("name", "is required")
	case unit == "":
		return ServiceResponse{}, apperror.Validation("default_billing_unit", "is required")
	}

	svc := &model.Service{
		Code:               code,
		Name:               name,
		Description:        req.Description,
		DefaultBillingUnit: unit,
		ItbisApplicable:    req.ItbisApplicable == nil || *req.ItbisApplicable,
		Active:             true,
	}

	err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		_, err := s.services.FindByCode(txCtx, code)
		if err == nil {
			return apperror.Validation("code", "already exists")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check service code: %w", err)
		}
		if err := s.services.Create(txCtx, svc); err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		emit(txCtx, s.publisher, events.Event{
			Action:     model.ActionCreateService,
			EntityType: events.EntityService,
			EntityID:   svc.ID.String(),
			EntityName: svc.Code,
		})
		return nil
	})
	if err != nil {
		return ServiceResponse{}, err
	}
	return toServiceResponse(*svc), nil
}

func (s *catalogService) UpdateService(ctx context.Context, id string, req UpdateServiceRequest) (ServiceResponse, error) {
	svcID, err := parseID("id", id)
	if err != nil {
		return ServiceResponse{}, err
	}

	var updated model.Service
	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		svc, err := s.services.FindByIDForUpdate(txCtx, svcID)
		if err != nil {
			return notFoundOr(err, "service", svcID)
		}
		if req.Code != nil && !strings.EqualFold(strings.TrimSpace(*req.Code), svc.Code) {
			return apperror.Validation("code", "is immutable")
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return apperror.Validation("name", "must not be empty")
			}
			svc.Name = name
		}
		if req.Description != nil {
			svc.Description = *req.Description
		}
		if req.DefaultBillingUnit != nil {
			unit := strings.ToUpper(strings.TrimSpace(*req.DefaultBillingUnit))
			if unit == "" {
				return apperror.Validation("default_billing_unit", "must not be empty")
			}
			svc.DefaultBillingUnit = unit
		}
		if req.ItbisApplicable != nil {
			svc.ItbisApplicable = *req.ItbisApplicable
		}
		if err := s.services.Update(txCtx, svc); err != nil {
			return fmt.Errorf("failed to update service: %w", err)
		}
		emit(txCtx, s.publisher, events.Event{
			Action:     model.ActionUpdateService,
			EntityType: events.EntityService,
			EntityID:   svc.ID.String(),
			EntityName: svc.Code,
		})
		updated = *svc
		return nil
	})
	if err != nil {
		return ServiceResponse{}, err
	}
	return toServiceResponse(updated), nil
}

// DeactivateService hides a service from new contracts. It is refused while a
// current global price exists or an ACTIVE contract still bills it.
func (s *catalogService) DeactivateService(ctx context.Context, id string) (ServiceResponse, error) {
	svcID, err := parseID("id", id)
	if err != nil {
		return ServiceResponse{}, err
	}

	var updated model.Service
	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		svc, err := s.services.FindByIDForUpdate(txCtx, svcID)
		if err != nil {
			return notFoundOr(err, "service", svcID)
		}
		if !svc.Active {
			updated = *svc
			return nil
		}

		current, err := s.prices.CountCurrent(txCtx, svcID, model.PriceScopeGlobal)
		if err != nil {
			return fmt.Errorf("failed to check prices: %w", err)
		}
		inUse, err := s.services.CountActiveContractUsage(txCtx, svcID)
		if err != nil {
			return fmt.Errorf("failed to check contract usage: %w", err)
		}
		if current > 0 || inUse > 0 {
			e := apperror.ServiceInUse(svcID.String(), inUse)
			e.Details["has_current_global_price"] = current > 0
			return e
		}

		svc.Active = false
		if err := s.services.Update(txCtx, svc); err != nil {
			return fmt.Errorf("failed to deactivate service: %w", err)
		}
		emit(txCtx, s.publisher, events.Event{
			Action:     model.ActionDeactivateService,
			EntityType: events.EntityService,
			EntityID:   svc.ID.String(),
			EntityName: svc.Code,
		})
		updated = *svc
		return nil
	})
	if err != nil {
		return ServiceResponse{}, err
	}
	return toServiceResponse(updated), nil
}

func (s *catalogService) GetService(ctx context.Context, id string) (ServiceResponse, error) {
	svcID, err := parseID("id", id)
	if err != nil {
		return ServiceResponse{}, err
	}
	svc, err := s.services.FindByID(ctx, svcID)
	if err != nil {
		return ServiceResponse{}, notFoundOr(err, "service", svcID)
	}
	return toServiceResponse(*svc), nil
}

func (s *catalogService) ListServices(ctx context.Context, q ListServicesQuery) ([]ServiceResponse, int64, error) {
	page, limit := normalizePage(q.Page, q.Limit)
	services, total, err := s.services.List(ctx, repository.ServiceFilter{
		ActiveOnly: q.ActiveOnly,
		Search:     strings.TrimSpace(q.Search),
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list services: %w", err)
	}

	res := make([]ServiceResponse, 0, len(services))
	for _, svc := range services {
		res = append(res, toServiceResponse(svc))
	}
	return res, total, nil
}

func toServiceResponse(s model.Service) ServiceResponse {
	return ServiceResponse{
		ID:                 s.ID.String(),
		Code:               s.Code,
		Name:               s.Name,
		Description:        s.Description,
		DefaultBillingUnit: s.DefaultBillingUnit,
		ItbisApplicable:    s.ItbisApplicable,
		Active:             s.Active,
		CreatedAt:          s.CreatedAt.UTC().Format(timestampLayout),
		UpdatedAt:          s.UpdatedAt.UTC().Format(timestampLayout),
	}
}

// loadActiveService fetches a service that may be put on a new line.
func loadActiveService(ctx context.Context, repo repository.ServiceRepository, field string, id uuid.UUID) (*model.Service, error) {
	svc, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Validation(field, "service does not exist")
		}
		return nil, fmt.Errorf("failed to load service: %w", err)
	}
	if !svc.Active {
		return nil, apperror.Validation(field, "service is inactive")
	}
	return svc, nil
}
