package repository

import (
	"context"

	"kwadrop/model"

	"gorm.io/gorm"
)

// SongChangeSet is the full write set of one queue operation. Apply commits
// it atomically; a failed change set leaves the room's songs untouched.
type SongChangeSet struct {
	Create []*model.Song
	Update []*model.Song // queue_num and status by primary key
	Delete []*model.Song
}

// Empty reports whether the change set carries no writes.
func (cs *SongChangeSet) Empty() bool {
	return len(cs.Create) == 0 && len(cs.Update) == 0 && len(cs.Delete) == 0
}

// SongRepository is the data access interface for a room's queue.
type SongRepository interface {
	// ListByRoom returns the room's songs ordered by queue_num ascending,
	// spanning all statuses.
	ListByRoom(ctx context.Context, roomID int64) ([]*model.Song, error)
	// Apply commits a change set in one transaction.
	Apply(ctx context.Context, cs *SongChangeSet) error
}

// gormSongRepository is the GORM implementation.
type gormSongRepository struct {
	db *gorm.DB
}

// NewGormSongRepository creates a GORM-backed song repository.
func NewGormSongRepository(db *gorm.DB) SongRepository {
	return &gormSongRepository{db: db}
}

// ListByRoom returns the room's songs in position order.
func (r *gormSongRepository) ListByRoom(ctx context.Context, roomID int64) ([]*model.Song, error) {
	var songs []*model.Song
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("queue_num ASC").
		Find(&songs).Error
	if err != nil {
		return nil, err
	}
	return songs, nil
}

// Apply commits the change set atomically. Deletes run first so renumbering
// updates never collide with the vacated rank.
func (r *gormSongRepository) Apply(ctx context.Context, cs *SongChangeSet) error {
	if cs == nil || cs.Empty() {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, song := range cs.Delete {
			if err := tx.Delete(&model.Song{}, "id = ?", song.ID).Error; err != nil {
				return err
			}
		}
		for _, song := range cs.Update {
			err := tx.Model(&model.Song{}).
				Where("id = ?", song.ID).
				Updates(map[string]interface{}{
					"queue_num": song.QueueNum,
					"status":    song.Status,
				}).Error
			if err != nil {
				return err
			}
		}
		for _, song := range cs.Create {
			if err := tx.Create(song).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
