package announcement

import "time"

type Announcement struct {
	ID        int64     `gorm:"column:id;primaryKey" json:"id"`
	Title     string    `gorm:"column:title;size:255;not null" json:"title"`
	Content   string    `gorm:"column:content;type:text;not null" json:"content"`
	Image     *string   `gorm:"column:image" json:"image,omitempty"`
	Active    bool      `gorm:"column:active;not null;index" json:"active"`
	CreatedBy int64     `gorm:"column:created_by" json:"created_by,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Announcement) TableName() string { return "announcements" }
