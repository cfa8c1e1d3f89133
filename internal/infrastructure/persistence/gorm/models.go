package gorm

import (
	"time"

	"github.com/google/uuid"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

// SessionModel represents a finished update session in the database
type SessionModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	URL          string    `gorm:"not null;index"`
	File         string
	Outcome      string `gorm:"not null"`
	Error        string
	RetryCount   int  `gorm:"not null;default:0"`
	RetryAllowed bool `gorm:"not null;default:false"`
	FromCache    bool `gorm:"not null;default:false"`
	StartedAt    time.Time
	EndedAt      time.Time `gorm:"not null;index"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName specifies the table name
func (SessionModel) TableName() string {
	return "update_sessions"
}

// RetryCounterModel stores the retry attempts made for an artifact URL
type RetryCounterModel struct {
	URL       string    `gorm:"primary_key"`
	Attempts  int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name
func (RetryCounterModel) TableName() string {
	return "retry_counters"
}

func toSessionModel(r *update.SessionRecord) *SessionModel {
	return &SessionModel{
		ID:           r.ID,
		URL:          r.URL,
		File:         r.File,
		Outcome:      string(r.Outcome),
		Error:        r.Error,
		RetryCount:   r.RetryCount,
		RetryAllowed: r.RetryAllowed,
		FromCache:    r.FromCache,
		StartedAt:    r.StartedAt,
		EndedAt:      r.EndedAt,
	}
}

func (m *SessionModel) toDomain() *update.SessionRecord {
	return &update.SessionRecord{
		ID:           m.ID,
		URL:          m.URL,
		File:         m.File,
		Outcome:      update.OutcomeKind(m.Outcome),
		Error:        m.Error,
		RetryCount:   m.RetryCount,
		RetryAllowed: m.RetryAllowed,
		FromCache:    m.FromCache,
		StartedAt:    m.StartedAt,
		EndedAt:      m.EndedAt,
	}
}
