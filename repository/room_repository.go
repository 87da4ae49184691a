package repository

import (
	"context"
	"errors"
	"time"

	"kwadrop/model"

	"gorm.io/gorm"
)

// RoomRepository is the data access interface for rooms and memberships.
// Lookups return (nil, nil) when no row matches.
type RoomRepository interface {
	Create(ctx context.Context, room *model.Room) error
	GetByID(ctx context.Context, id int64) (*model.Room, error)
	Update(ctx context.Context, room *model.Room) error
	// Delete removes the room together with its associations and songs in
	// one transaction.
	Delete(ctx context.Context, id int64) error

	AddAssociation(ctx context.Context, a *model.Association) error
	// GetAssociationByUser returns the user's single room association.
	GetAssociationByUser(ctx context.Context, userID int64) (*model.Association, error)
	ListAssociations(ctx context.Context, roomID int64) ([]*model.Association, error)
	RemoveAssociation(ctx context.Context, userID int64) error
}

// gormRoomRepository is the GORM implementation.
type gormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a GORM-backed room repository.
func NewGormRoomRepository(db *gorm.DB) RoomRepository {
	return &gormRoomRepository{db: db}
}

// Create inserts a room.
func (r *gormRoomRepository) Create(ctx context.Context, room *model.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

// GetByID fetches a room by id.
func (r *gormRoomRepository) GetByID(ctx context.Context, id int64) (*model.Room, error) {
	var room model.Room
	err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

// Update saves room changes.
func (r *gormRoomRepository) Update(ctx context.Context, room *model.Room) error {
	return r.db.WithContext(ctx).Save(room).Error
}

// Delete removes a room, cascading to its associations and songs.
func (r *gormRoomRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", id).Delete(&model.Song{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", id).Delete(&model.Association{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Room{}, "id = ?", id).Error
	})
}

// AddAssociation joins a user to a room.
func (r *gormRoomRepository) AddAssociation(ctx context.Context, a *model.Association) error {
	if a.JoinedAt.IsZero() {
		a.JoinedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(a).Error
}

// GetAssociationByUser returns the user's room association, if any.
func (r *gormRoomRepository) GetAssociationByUser(ctx context.Context, userID int64) (*model.Association, error) {
	var a model.Association
	err := r.db.WithContext(ctx).First(&a, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// ListAssociations returns every membership of a room.
func (r *gormRoomRepository) ListAssociations(ctx context.Context, roomID int64) ([]*model.Association, error) {
	var list []*model.Association
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("joined_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// RemoveAssociation disconnects a user from their room.
func (r *gormRoomRepository) RemoveAssociation(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.Association{}).Error
}
