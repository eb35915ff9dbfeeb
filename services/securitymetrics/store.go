package securitymetrics

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type HistoryFilter struct {
	WindowHours *float64
	StartTime   *time.Time
	EndTime     *time.Time
}

type SnapshotStore interface {
	Create(ctx context.Context, snapshot *Snapshot) error
	// Newest returns up to limit snapshots ordered newest first.
	Newest(ctx context.Context, f HistoryFilter, limit int) ([]Snapshot, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormSnapshotStore struct {
	db *gorm.DB
}

func NewGormSnapshotStore(db *gorm.DB) *GormSnapshotStore {
	return &GormSnapshotStore{db: db}
}

func (s *GormSnapshotStore) Create(ctx context.Context, snapshot *Snapshot) error {
	return s.db.WithContext(ctx).Create(snapshot).Error
}

func (s *GormSnapshotStore) Newest(ctx context.Context, f HistoryFilter, limit int) ([]Snapshot, error) {
	tx := s.db.WithContext(ctx).Model(&Snapshot{})
	if f.WindowHours != nil {
		tx = tx.Where("window_hours = ?", *f.WindowHours)
	}
	if f.StartTime != nil {
		tx = tx.Where("generated_at >= ?", f.StartTime.UTC())
	}
	if f.EndTime != nil {
		tx = tx.Where("generated_at <= ?", f.EndTime.UTC())
	}

	var snapshots []Snapshot
	err := tx.Order("generated_at DESC").Order("id DESC").Limit(limit).Find(&snapshots).Error
	return snapshots, err
}

func (s *GormSnapshotStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("generated_at < ?", cutoff.UTC()).Delete(&Snapshot{})
	return res.RowsAffected, res.Error
}
