package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"backoffice/internal/apperror"
	"backoffice/internal/cache"
	"backoffice/internal/events"
	"backoffice/internal/model"
	"backoffice/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type SetPriceRequest struct {
	Amount        string `json:"amount" binding:"required"`
	EffectiveFrom string `json:"effective_from"` // RFC3339 or YYYY-MM-DD, defaults to now
	Notes         string `json:"notes"`
}

type PriceResponse struct {
	ID            string  `json:"id"`
	ServiceID     string  `json:"service_id"`
	ClientID      *string `json:"client_id"`
	Amount        string  `json:"amount"`
	EffectiveFrom string  `json:"effective_from"`
	EffectiveTo   *string `json:"effective_to"`
	Version       int     `json:"version"`
	Notes         string  `json:"notes"`
	CreatedAt     string  `json:"created_at"`
}

type ResolvedPriceResponse struct {
	ServiceID string  `json:"service_id"`
	ClientID  string  `json:"client_id,omitempty"`
	Price     string  `json:"price"`
	Source    string  `json:"source"`
	PriceID   *string `json:"price_id,omitempty"`
}

// --- Interface ---

// PriceResolver picks the price to charge a client for a service.
type PriceResolver interface {
	// Resolve returns the CLIENT price when one is in force, else the GLOBAL one.
	// A nil client skips the client tier.
	Resolve(ctx context.Context, serviceID uuid.UUID, clientID *uuid.UUID) (model.ResolvedPrice, error)
}

type PriceService interface {
	PriceResolver
	SetGlobalPrice(ctx context.Context, serviceID string, req SetPriceRequest) (PriceResponse, error)
	SetClientPrice(ctx context.Context, serviceID, clientID string, req SetPriceRequest) (PriceResponse, error)
	ClosePrice(ctx context.Context, serviceID, clientID string) error
	ResolvePrice(ctx context.Context, serviceID, clientID string) (ResolvedPriceResponse, error)
	PriceHistory(ctx context.Context, serviceID, clientID string) ([]PriceResponse, error)
}

type priceService struct {
	tm        repository.TransactionManager
	services  repository.ServiceRepository
	prices    repository.PriceRepository
	cache     cache.PriceCache
	publisher events.Publisher
	now       func() time.Time
}

func NewPriceService(
	tm repository.TransactionManager,
	services repository.ServiceRepository,
	prices repository.PriceRepository,
	priceCache cache.PriceCache,
	publisher events.Publisher,
) PriceService {
	return &priceService{
		tm:        tm,
		services:  services,
		prices:    prices,
		cache:     priceCache,
		publisher: publisher,
		now:       systemNow,
	}
}

// --- Implementation ---

func (s *priceService) SetGlobalPrice(ctx context.Context, serviceID string, req SetPriceRequest) (PriceResponse, error) {
	svcID, err := parseID("service_id", serviceID)
	if err != nil {
		return PriceResponse{}, err
	}
	return s.setPrice(ctx, svcID, nil, req)
}

func (s *priceService) SetClientPrice(ctx context.Context, serviceID, clientID string, req SetPriceRequest) (PriceResponse, error) {
	svcID, err := parseID("service_id", serviceID)
	if err != nil {
		return PriceResponse{}, err
	}
	cID, err := parseID("client_id", clientID)
	if err != nil {
		return PriceResponse{}, err
	}
	return s.setPrice(ctx, svcID, &cID, req)
}

// setPrice closes the open version of the scope at the new effectiveFrom and
// inserts the next version. Writers on a service serialize on its row lock.
func (s *priceService) setPrice(ctx context.Context, serviceID uuid.UUID, clientID *uuid.UUID, req SetPriceRequest) (PriceResponse, error) {
	amt, err := parseDecimal("amount", req.Amount)
	if err != nil {
		return PriceResponse{}, apperror.InvalidPrice("amount must be a decimal number")
	}
	if amt.Sign() <= 0 {
		return PriceResponse{}, apperror.InvalidPrice("amount must be greater than zero")
	}
	if amt.Exponent() < -2 {
		return PriceResponse{}, apperror.InvalidPrice("amount must have at most 2 decimals")
	}
	effectiveFrom := s.now()
	if strings.TrimSpace(req.EffectiveFrom) != "" {
		if effectiveFrom, err = parseInstant("effective_from", req.EffectiveFrom); err != nil {
			return PriceResponse{}, err
		}
	}

	scope := model.PriceScopeKey(clientID)
	var created model.Price
	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		svc, err := s.services.FindByIDForUpdate(txCtx, serviceID)
		if err != nil {
			return notFoundOr(err, "service", serviceID)
		}
		if !svc.Active {
			return apperror.Validation("service_id", "service is inactive")
		}

		current, err := s.prices.FindCurrent(txCtx, serviceID, scope)
		if err != nil {
			return fmt.Errorf("failed to load current price: %w", err)
		}
		if current != nil {
			if effectiveFrom.Before(current.EffectiveFrom) {
				return apperror.Validation("effective_from", "must not precede the current price")
			}
			if err := s.prices.Close(txCtx, current.ID, effectiveFrom); err != nil {
				return fmt.Errorf("failed to close current price: %w", err)
			}
		}
		lastVersion, err := s.prices.MaxVersion(txCtx, serviceID, scope)
		if err != nil {
			return fmt.Errorf("failed to read price version: %w", err)
		}

		created = model.Price{
			ServiceID:     serviceID,
			ClientID:      clientID,
			ScopeKey:      scope,
			Amount:        amt,
			EffectiveFrom: effectiveFrom,
			Version:       lastVersion + 1,
			Notes:         req.Notes,
		}
		if err := s.prices.Create(txCtx, &created); err != nil {
			return fmt.Errorf("failed to create price: %w", err)
		}

		data := map[string]any{"amount": amount(amt), "version": created.Version, "scope": scope}
		if current != nil {
			data["previous_amount"] = amount(current.Amount)
		}
		emit(txCtx, s.publisher, events.Event{
			Action:     model.ActionSetPrice,
			EntityType: events.EntityPrice,
			EntityID:   created.ID.String(),
			EntityName: svc.Code,
			Data:       data,
		})
		repository.AfterCommit(txCtx, func(ctx context.Context) {
			s.cache.InvalidateService(ctx, serviceID)
		})
		return nil
	})
	if err != nil {
		return PriceResponse{}, err
	}
	return toPriceResponse(created), nil
}

// ClosePrice ends the open version of a scope now without replacing it.
func (s *priceService) ClosePrice(ctx context.Context, serviceID, clientID string) error {
	svcID, err := parseID("service_id", serviceID)
	if err != nil {
		return err
	}
	cID, err := parseOptionalID("client_id", clientID)
	if err != nil {
		return err
	}
	scope := model.PriceScopeKey(cID)

	return s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.services.FindByIDForUpdate(txCtx, svcID); err != nil {
			return notFoundOr(err, "service", svcID)
		}
		current, err := s.prices.FindCurrent(txCtx, svcID, scope)
		if err != nil {
			return fmt.Errorf("failed to load current price: %w", err)
		}
		if current == nil {
			return apperror.NotFound("price", scope)
		}
		now := s.now()
		if now.Before(current.EffectiveFrom) {
			now = current.EffectiveFrom
		}
		if err := s.prices.Close(txCtx, current.ID, now); err != nil {
			return fmt.Errorf("failed to close price: %w", err)
		}
		repository.AfterCommit(txCtx, func(ctx context.Context) {
			s.cache.InvalidateService(ctx, svcID)
		})
		return nil
	})
}

// Resolve returns the price in force now. A cached resolution is served only
// until the next price version for the service starts or ends.
func (s *priceService) Resolve(ctx context.Context, serviceID uuid.UUID, clientID *uuid.UUID) (model.ResolvedPrice, error) {
	scope := model.PriceScopeKey(clientID)
	at := s.now()
	if cached, ok := s.cache.Get(ctx, serviceID, scope); ok {
		if cached.ValidUntil == nil || at.Before(*cached.ValidUntil) {
			return *cached, nil
		}
	}

	resolved, err := s.resolveAt(ctx, serviceID, clientID, at)
	if err != nil {
		return model.ResolvedPrice{}, err
	}
	scopes := []string{model.PriceScopeGlobal}
	if clientID != nil {
		scopes = append(scopes, scope)
	}
	if resolved.ValidUntil, err = s.prices.NextChange(ctx, serviceID, scopes, at); err != nil {
		return model.ResolvedPrice{}, fmt.Errorf("failed to load next price change: %w", err)
	}
	s.cache.Set(ctx, serviceID, scope, resolved)
	return resolved, nil
}

func (s *priceService) resolveAt(ctx context.Context, serviceID uuid.UUID, clientID *uuid.UUID, at time.Time) (model.ResolvedPrice, error) {
	if clientID != nil {
		p, err := s.prices.FindEffective(ctx, serviceID, clientID.String(), at)
		if err != nil {
			return model.ResolvedPrice{}, fmt.Errorf("failed to resolve client price: %w", err)
		}
		if p != nil {
			return model.ResolvedPrice{UnitPrice: p.Amount, Source: model.PriceSourceClient, PriceID: &p.ID}, nil
		}
	}

	p, err := s.prices.FindEffective(ctx, serviceID, model.PriceScopeGlobal, at)
	if err != nil {
		return model.ResolvedPrice{}, fmt.Errorf("failed to resolve global price: %w", err)
	}
	if p != nil {
		return model.ResolvedPrice{UnitPrice: p.Amount, Source: model.PriceSourceGlobal, PriceID: &p.ID}, nil
	}

	client := ""
	if clientID != nil {
		client = clientID.String()
	}
	return model.ResolvedPrice{}, apperror.NoPriceConfigured(serviceID.String(), client)
}

func (s *priceService) ResolvePrice(ctx context.Context, serviceID, clientID string) (ResolvedPriceResponse, error) {
	svcID, err := parseID("service_id", serviceID)
	if err != nil {
		return ResolvedPriceResponse{}, err
	}
	cID, err := parseOptionalID("client_id", clientID)
	if err != nil {
		return ResolvedPriceResponse{}, err
	}
	resolved, err := s.Resolve(ctx, svcID, cID)
	if err != nil {
		return ResolvedPriceResponse{}, err
	}
	res := ResolvedPriceResponse{
		ServiceID: svcID.String(),
		Price:     amount(resolved.UnitPrice),
		Source:    resolved.Source,
		PriceID:   formatOptionalID(resolved.PriceID),
	}
	if cID != nil {
		res.ClientID = cID.String()
	}
	return res, nil
}

func (s *priceService) PriceHistory(ctx context.Context, serviceID, clientID string) ([]PriceResponse, error) {
	svcID, err := parseID("service_id", serviceID)
	if err != nil {
		return nil, err
	}
	cID, err := parseOptionalID("client_id", clientID)
	if err != nil {
		return nil, err
	}
	if _, err := s.services.FindByID(ctx, svcID); err != nil {
		return nil, notFoundOr(err, "service", svcID)
	}

	prices, err := s.prices.History(ctx, svcID, model.PriceScopeKey(cID))
	if err != nil {
		return nil, fmt.Errorf("failed to load price history: %w", err)
	}
	res := make([]PriceResponse, 0, len(prices))
	for _, p := range prices {
		res = append(res, toPriceResponse(p))
	}
	return res, nil
}

func toPriceResponse(p model.Price) PriceResponse {
	return PriceResponse{
		ID:            p.ID.String(),
		ServiceID:     p.ServiceID.String(),
		ClientID:      formatOptionalID(p.ClientID),
		Amount:        amount(p.Amount),
		EffectiveFrom: p.EffectiveFrom.UTC().Format(timestampLayout),
		EffectiveTo:   formatOptionalTime(p.EffectiveTo),
		Version:       p.Version,
		Notes:         p.Notes,
		CreatedAt:     p.CreatedAt.UTC().Format(timestampLayout),
	}
}

// resolveLinePrice applies a manual override on top of resolution. With an
// override the resolver is still consulted for display, but a missing price
// is not an error.
func resolveLinePrice(ctx context.Context, resolver PriceResolver, serviceID uuid.UUID, clientID uuid.UUID, manual *decimal.Decimal) (model.ResolvedPrice, error) {
	resolved, err := resolver.Resolve(ctx, serviceID, &clientID)
	if manual != nil {
		if err != nil && !errors.Is(err, apperror.ErrNoPriceConfigured) {
			return model.ResolvedPrice{}, err
		}
		if err != nil {
			resolved = model.ResolvedPrice{UnitPrice: decimal.Zero}
		}
		resolved.Source = model.PriceSourceManual
		return resolved, nil
	}
	return resolved, err
}
