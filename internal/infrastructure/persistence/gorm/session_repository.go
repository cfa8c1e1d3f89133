package gorm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

// SessionRepository implements update.SessionRepository using GORM
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Save saves a session record
func (r *SessionRepository) Save(ctx context.Context, record *update.SessionRecord) error {
	if err := r.db.WithContext(ctx).Save(toSessionModel(record)).Error; err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// FindByID finds a session record by ID
func (r *SessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*update.SessionRecord, error) {
	var model SessionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, update.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return model.toDomain(), nil
}

// List returns the most recent session records, newest first. A limit of
// zero or less returns every record.
func (r *SessionRepository) List(ctx context.Context, limit int) ([]*update.SessionRecord, error) {
	query := r.db.WithContext(ctx).Order("ended_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []SessionModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	records := make([]*update.SessionRecord, 0, len(models))
	for i := range models {
		records = append(records, models[i].toDomain())
	}
	return records, nil
}
