package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Response struct {
	ID             string     `gorm:"type:uuid;primaryKey" json:"id"`
	FormID         string     `gorm:"type:uuid;not null;index" json:"form_id"`
	SessionID      string     `gorm:"type:uuid;not null;index" json:"session_id"`
	IsComplete     bool       `gorm:"not null;default:false" json:"is_complete"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	TotalTimeSpent int        `gorm:"not null;default:0" json:"total_time_spent"`
	Answers        []Answer   `gorm:"foreignKey:ResponseID;constraint:OnDelete:CASCADE" json:"answers,omitempty"`
}

func (r *Response) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Answer holds either free text or a chosen option id for one question.
type Answer struct {
	ID             string  `gorm:"type:uuid;primaryKey" json:"id"`
	ResponseID     string  `gorm:"type:uuid;not null;index" json:"response_id"`
	QuestionID     string  `gorm:"type:uuid;not null;index" json:"question_id"`
	AnswerText     *string `gorm:"type:text" json:"answer_text"`
	AnswerOptionID *string `gorm:"size:255" json:"answer_option_id"`
}

func (a *Answer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

type DailyStat struct {
	ID                 string    `gorm:"type:uuid;primaryKey" json:"id"`
	FormID             string    `gorm:"type:uuid;not null;uniqueIndex:idx_daily_form_date" json:"form_id"`
	Date               time.Time `gorm:"type:date;not null;uniqueIndex:idx_daily_form_date" json:"date"`
	UniqueVisitors     int       `gorm:"not null;default:0" json:"unique_visitors"`
	TotalViews         int       `gorm:"not null;default:0" json:"total_views"`
	TotalResponses     int       `gorm:"not null;default:0" json:"total_responses"`
	CompletedResponses int       `gorm:"not null;default:0" json:"completed_responses"`
	AvgTimeSpent       int       `gorm:"not null;default:0" json:"avg_time_spent"`
}

func (d *DailyStat) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
