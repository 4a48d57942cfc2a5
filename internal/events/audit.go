package events

import (
	"context"
	"encoding/json"

	"backoffice/internal/logger"
	"backoffice/internal/model"
	"backoffice/internal/repository"
)

// AuditPublisher persists every event as an audit log row.
type AuditPublisher struct {
	repo repository.AuditRepository
}

func NewAuditPublisher(repo repository.AuditRepository) *AuditPublisher {
	return &AuditPublisher{repo: repo}
}

func (p *AuditPublisher) Publish(ctx context.Context, evt Event) {
	details := map[string]any{"entity_type": evt.EntityType}
	if evt.From != "" {
		details["from"] = evt.From
	}
	if evt.To != "" {
		details["to"] = evt.To
	}
	for k, v := range evt.Data {
		details[k] = v
	}
	detailsJSON, _ := json.Marshal(details)

	entry := &model.AuditLog{
		Actor:      evt.Actor,
		Action:     evt.Action,
		EntityID:   evt.EntityID,
		EntityName: evt.EntityName,
		Details:    string(detailsJSON),
		CreatedAt:  evt.OccurredAt,
	}
	if err := p.repo.Log(ctx, entry); err != nil {
		log := logger.WithComponent("audit")
		log.Error().Err(err).Str("action", evt.Action).Str("entity_id", evt.EntityID).Msg("Failed to write audit log")
	}
}
