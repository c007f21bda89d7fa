package postgresadapter

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"turntable/contexts/media-generation/video-pipeline-service/ports"
)

// StateStore keeps pipeline state in a jsonb table. Expired rows are hidden
// from reads and removed by PurgeExpired.
type StateStore struct {
	db    *gorm.DB
	clock ports.Clock
}

func NewStateStore(db *gorm.DB, clock ports.Clock) *StateStore {
	if clock == nil {
		clock = SystemClock{}
	}
	return &StateStore{db: db, clock: clock}
}

func (s *StateStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.clock.Now().UTC()
	row := stateModel{
		Key:       key,
		Value:     datatypes.JSON(value),
		ExpiresAt: now.Add(ttl),
		UpdatedAt: now,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
		}).
		Create(&row).
		Error
}

func (s *StateStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var row stateModel
	err := s.db.WithContext(ctx).
		Where("key = ? AND expires_at > ?", key, s.clock.Now().UTC()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(row.Value), true, nil
}

func (s *StateStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&stateModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}
