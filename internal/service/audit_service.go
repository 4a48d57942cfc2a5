package service

import (
	"context"
	"encoding/json"
	"fmt"

	"backoffice/internal/repository"
)

type AuditLogResponse struct {
	ID         string         `json:"id"`
	Actor      string         `json:"actor"`
	Action     string         `json:"action"`
	EntityID   string         `json:"entity_id"`
	EntityName string         `json:"entity_name,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

type AuditService interface {
	ListAuditLogs(ctx context.Context, page, limit int, entityID string) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

func (s *auditService) ListAuditLogs(ctx context.Context, page, limit int, entityID string) ([]AuditLogResponse, int64, error) {
	page, limit = normalizePage(page, limit)
	logs, total, err := s.repo.List(ctx, page, limit, entityID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		entry := AuditLogResponse{
			ID:         l.ID.String(),
			Actor:      l.Actor,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			CreatedAt:  l.CreatedAt.UTC().Format(timestampLayout),
		}
		if l.Details != "" {
			if err := json.Unmarshal([]byte(l.Details), &entry.Details); err != nil {
				entry.Details = map[string]any{"raw": l.Details}
			}
		}
		res = append(res, entry)
	}
	return res, total, nil
}
