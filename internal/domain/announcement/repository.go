package announcement

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("announcement not found")

type Repository interface {
	// Publish deactivates every announcement and stores a as the only active one.
	Publish(ctx context.Context, a *Announcement) error
	Latest(ctx context.Context) (*Announcement, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Announcement{})
}

func (r *repository) Publish(ctx context.Context, a *Announcement) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Announcement{}).Where("active = ?", true).Update("active", false).Error; err != nil {
			return err
		}
		a.Active = true
		return tx.Create(a).Error
	})
}

func (r *repository) Latest(ctx context.Context) (*Announcement, error) {
	var a Announcement
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at DESC").
		Order("id DESC").
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
