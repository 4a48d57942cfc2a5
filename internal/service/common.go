package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"backoffice/internal/apperror"
	"backoffice/internal/events"
	"backoffice/internal/model"
	"backoffice/internal/money"
	"backoffice/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const timestampLayout = time.RFC3339

func systemNow() time.Time {
	return time.Now().UTC()
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, apperror.Validation(field, "must be a valid UUID")
	}
	return id, nil
}

func parseOptionalID(field, raw string) (*uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := parseID(field, raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseDate(field, raw string) (time.Time, error) {
	t, err := time.Parse(model.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, apperror.Validation(field, "must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

func parseOptionalDate(field, raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := parseDate(field, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseInstant accepts RFC3339 timestamps or plain dates.
func parseInstant(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return parseDate(field, raw)
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	d, err := money.Parse(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, apperror.Validation(field, "must be a decimal number")
	}
	return d, nil
}

func parsePositive(field, raw string) (decimal.Decimal, error) {
	d, err := parseDecimal(field, raw)
	if err != nil {
		return decimal.Zero, err
	}
	if d.Sign() <= 0 {
		return decimal.Zero, apperror.Validation(field, "must be greater than zero")
	}
	return d, nil
}

func requireReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", apperror.Validation("reason", "is required")
	}
	return reason, nil
}

// notFoundOr maps a missing row to a typed NotFound and wraps anything else.
func notFoundOr(err error, entity string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(entity, id.String())
	}
	return fmt.Errorf("failed to load %s: %w", entity, err)
}

func formatDate(t time.Time) string {
	return model.DateOnly(t).Format(model.DateLayout)
}

func formatOptionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timestampLayout)
	return &s
}

func formatOptionalID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// emit queues evt for delivery after the surrounding transaction commits.
func emit(ctx context.Context, pub events.Publisher, evt events.Event) {
	evt.Actor = events.ActorFrom(ctx)
	evt.OccurredAt = systemNow()
	repository.AfterCommit(ctx, func(ctx context.Context) {
		pub.Publish(ctx, evt)
	})
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
