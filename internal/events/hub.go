package events

import (
	"context"
	"encoding/json"

	"backoffice/internal/logger"
)

// Broadcaster is the websocket side of the dashboard feed.
type Broadcaster interface {
	Publish(message []byte)
}

// HubPublisher pushes events to connected dashboard clients.
type HubPublisher struct {
	hub Broadcaster
}

func NewHubPublisher(hub Broadcaster) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, evt Event) {
	msg, err := json.Marshal(map[string]any{
		"type":    "BILLING_EVENT",
		"payload": evt,
	})
	if err != nil {
		log := logger.WithComponent("events")
		log.Error().Err(err).Msg("Failed to marshal websocket event")
		return
	}
	p.hub.Publish(msg)
}
