package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a form creator. IdentityID is the subject issued by the hosted
// identity provider and is what forms reference as their owner.
type User struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	IdentityID string    `gorm:"size:255;uniqueIndex;not null" json:"identity_id"`
	Email      string    `gorm:"size:255;not null" json:"email"`
	Name       string    `gorm:"size:255" json:"name"`
	Forms      []Form    `gorm:"foreignKey:UserID;references:IdentityID" json:"forms,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
