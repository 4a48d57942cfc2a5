package repository

import (
	"context"
	"errors"

	"backoffice/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceRepository hands out gap-free document numbers. Next must run inside
// a transaction so the increment rolls back with the document that used it.
type SequenceRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}

type sequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

func (r *sequenceRepository) Next(ctx context.Context, name string) (int64, error) {
	db := GetDB(ctx, r.db)

	var seq model.DocumentSequence
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("name = ?", name).First(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		seq = model.DocumentSequence{Name: name, LastValue: 1}
		if err := db.Create(&seq).Error; err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}

	seq.LastValue++
	if err := db.Model(&model.DocumentSequence{}).Where("name = ?", name).
		Update("last_value", seq.LastValue).Error; err != nil {
		return 0, err
	}
	return seq.LastValue, nil
}
