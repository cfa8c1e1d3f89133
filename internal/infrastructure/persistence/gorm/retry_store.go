package gorm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// RetryStore implements update.RetryStore using GORM
type RetryStore struct {
	db *gorm.DB
}

// NewRetryStore creates a new retry store
func NewRetryStore(db *gorm.DB) *RetryStore {
	return &RetryStore{db: db}
}

// RetryCount returns the attempts recorded for url, zero when none.
func (s *RetryStore) RetryCount(ctx context.Context, url string) (int, error) {
	var model RetryCounterModel
	err := s.db.WithContext(ctx).First(&model, "url = ?", url).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read retry count: %w", err)
	}
	return model.Attempts, nil
}

// IncrementRetry adds one attempt for url and returns the new count.
func (s *RetryStore) IncrementRetry(ctx context.Context, url string) (int, error) {
	var model RetryCounterModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&model, "url = ?", url).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			model = RetryCounterModel{URL: url, Attempts: 1}
			return tx.Create(&model).Error
		case err != nil:
			return err
		}
		model.Attempts++
		return tx.Save(&model).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment retry count: %w", err)
	}
	return model.Attempts, nil
}

// ResetRetry forgets the attempts recorded for url.
func (s *RetryStore) ResetRetry(ctx context.Context, url string) error {
	if err := s.db.WithContext(ctx).Delete(&RetryCounterModel{}, "url = ?", url).Error; err != nil {
		return fmt.Errorf("failed to reset retry count: %w", err)
	}
	return nil
}
