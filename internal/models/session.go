package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session is one respondent visit to a public form. Token authenticates the
// respondent's follow-up requests.
type Session struct {
	ID             string     `gorm:"type:uuid;primaryKey" json:"id"`
	SessionToken   string     `gorm:"size:255;uniqueIndex;not null" json:"-"`
	FormID         string     `gorm:"type:uuid;not null;index" json:"form_id"`
	IPAddress      string     `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent      string     `gorm:"type:text" json:"user_agent,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	TotalTimeSpent int        `gorm:"not null;default:0" json:"total_time_spent"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

type FormView struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	FormID    string    `gorm:"type:uuid;not null;index" json:"form_id"`
	SessionID string    `gorm:"type:uuid;not null" json:"session_id"`
	ViewedAt  time.Time `json:"viewed_at"`
	TimeSpent int       `gorm:"not null;default:0" json:"time_spent"`
}

func (v *FormView) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

type QuestionInteraction struct {
	ID          string     `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID   string     `gorm:"type:uuid;not null;index" json:"session_id"`
	QuestionID  string     `gorm:"type:uuid;not null" json:"question_id"`
	TimeSpent   int        `gorm:"not null;default:0" json:"time_spent"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (i *QuestionInteraction) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
