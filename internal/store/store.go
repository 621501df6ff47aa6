package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shutter-control-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	ListSchedules(ctx context.Context) ([]model.Schedule, error)
	ListEnabledSchedules(ctx context.Context) ([]model.Schedule, error)
	GetSchedule(ctx context.Context, id int64) (model.Schedule, error)
	CreateSchedule(ctx context.Context, schedule *model.Schedule) error
	UpdateSchedule(ctx context.Context, schedule *model.Schedule) (int64, error)
	DeleteSchedule(ctx context.Context, id int64) (int64, error)

	AppendLog(ctx context.Context, status, message string) error
	RecentLogs(ctx context.Context, limit int) ([]model.LogEntry, error)
	DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	ListPushSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
	GetPushSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error)
	SavePushSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeletePushSubscription(ctx context.Context, endpoint string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db, now: time.Now}
}

// ListSchedules returns every schedule definition ordered by time of day.
func (s *gormStore) ListSchedules(ctx context.Context) ([]model.Schedule, error) {
	var schedules []model.Schedule
	if err := s.db.WithContext(ctx).Order("time").Order("id").Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return schedules, nil
}

// ListEnabledSchedules returns the definitions that should have a live trigger.
func (s *gormStore) ListEnabledSchedules(ctx context.Context) ([]model.Schedule, error) {
	var schedules []model.Schedule
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("id").Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("failed to list enabled schedules: %w", err)
	}
	return schedules, nil
}

// GetSchedule returns a single definition or ErrNotFound.
func (s *gormStore) GetSchedule(ctx context.Context, id int64) (model.Schedule, error) {
	var schedule model.Schedule
	err := s.db.WithContext(ctx).First(&schedule, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Schedule{}, ErrNotFound
	}
	if err != nil {
		return model.Schedule{}, fmt.Errorf("failed to get schedule %d: %w", id, err)
	}
	return schedule, nil
}

// CreateSchedule inserts a definition and fills its ID and CreatedAt.
func (s *gormStore) CreateSchedule(ctx context.Context, schedule *model.Schedule) error {
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = s.now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(schedule).Error; err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

// UpdateSchedule replaces the mutable columns of a definition and returns the
// number of rows changed. CreatedAt is never touched.
func (s *gormStore) UpdateSchedule(ctx context.Context, schedule *model.Schedule) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&model.Schedule{}).
		Where("id = ?", schedule.ID).
		Select("name", "time", "command", "days", "enabled").
		Updates(schedule)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update schedule %d: %w", schedule.ID, result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteSchedule removes a definition and returns the number of rows deleted.
func (s *gormStore) DeleteSchedule(ctx context.Context, id int64) (int64, error) {
	result := s.db.WithContext(ctx).Delete(&model.Schedule{}, id)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete schedule %d: %w", id, result.Error)
	}
	return result.RowsAffected, nil
}

// AppendLog inserts an audit row stamped with the server clock.
func (s *gormStore) AppendLog(ctx context.Context, status, message string) error {
	entry := model.LogEntry{
		Status:    status,
		Message:   message,
		Timestamp: s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to insert log: %w", err)
	}
	return nil
}

// RecentLogs returns up to limit log rows, newest first.
func (s *gormStore) RecentLogs(ctx context.Context, limit int) ([]model.LogEntry, error) {
	var entries []model.LogEntry
	if err := s.db.WithContext(ctx).
		Order("timestamp DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	return entries, nil
}

// DeleteLogsBefore removes every log row older than cutoff.
func (s *gormStore) DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("timestamp < ?", cutoff.UTC()).Delete(&model.LogEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete logs before %s: %w", cutoff.Format(time.RFC3339), result.Error)
	}
	return result.RowsAffected, nil
}

// ListPushSubscriptions returns every stored browser subscription.
func (s *gormStore) ListPushSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list push subscriptions: %w", err)
	}
	return subs, nil
}

// GetPushSubscription returns the subscription for an endpoint or ErrNotFound.
func (s *gormStore) GetPushSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PushSubscription{}, ErrNotFound
	}
	if err != nil {
		return model.PushSubscription{}, fmt.Errorf("failed to get push subscription: %w", err)
	}
	return sub, nil
}

// SavePushSubscription creates a subscription or refreshes its keys.
func (s *gormStore) SavePushSubscription(ctx context.Context, sub *model.PushSubscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now().UTC()
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
	}).Create(sub).Error; err != nil {
		return fmt.Errorf("failed to save push subscription: %w", err)
	}
	return nil
}

// DeletePushSubscription removes the subscription for an endpoint.
func (s *gormStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return nil
}
