package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/atelier/internal/payment/domain"
	"github.com/smallbiznis/atelier/pkg/db"
	"gorm.io/gorm"
)

// eventLog persists processed gateway events so webhook redeliveries are
// applied to orders at most once.
type eventLog struct{}

func Provide() domain.Repository {
	return eventLog{}
}

// FindEvent returns nil without error when the event was never recorded.
func (eventLog) FindEvent(ctx context.Context, conn *gorm.DB, provider, providerEventID string) (*domain.EventRecord, error) {
	var rec domain.EventRecord
	err := conn.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// InsertEvent reports false when (provider, provider_event_id) is already
// stored.
func (eventLog) InsertEvent(ctx context.Context, conn *gorm.DB, rec *domain.EventRecord) (bool, error) {
	err := conn.WithContext(ctx).Create(rec).Error
	switch {
	case err == nil:
		return true, nil
	case db.IsDuplicateKeyErr(err):
		return false, nil
	default:
		return false, err
	}
}

func (eventLog) MarkProcessed(ctx context.Context, conn *gorm.DB, id int64, processedAt time.Time) error {
	return conn.WithContext(ctx).
		Model(&domain.EventRecord{}).
		Where("id = ?", id).
		Update("processed_at", processedAt).Error
}
