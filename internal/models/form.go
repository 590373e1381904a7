package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultFont            = "Arial"
	DefaultBackgroundColor = "#FFFFFF"
)

type Form struct {
	ID              string     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          string     `gorm:"size:255;not null;index" json:"user_id,omitempty"`
	Title           string     `gorm:"size:255;not null" json:"title"`
	Description     string     `gorm:"type:text" json:"description"`
	IsPublished     bool       `gorm:"not null;default:false" json:"is_published"`
	PublishedAt     *time.Time `json:"published_at"`
	Font            string     `gorm:"size:100;default:'Arial'" json:"font"`
	BackgroundColor string     `gorm:"type:text;default:'#FFFFFF'" json:"background_color"`
	Questions       []Question `gorm:"foreignKey:FormID;constraint:OnDelete:CASCADE" json:"questions"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (f *Form) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Font == "" {
		f.Font = DefaultFont
	}
	if f.BackgroundColor == "" {
		f.BackgroundColor = DefaultBackgroundColor
	}
	return nil
}
