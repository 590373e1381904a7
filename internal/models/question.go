package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionType string

const (
	QuestionTypeText     QuestionType = "text"
	QuestionTypeRadio    QuestionType = "radio"
	QuestionTypeCheckbox QuestionType = "checkbox"
	QuestionTypeSelect   QuestionType = "select"
	QuestionTypeDate     QuestionType = "date"
	QuestionTypeTime     QuestionType = "time"
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeText, QuestionTypeRadio, QuestionTypeCheckbox,
		QuestionTypeSelect, QuestionTypeDate, QuestionTypeTime:
		return true
	}
	return false
}

// IsChoice reports whether questions of type t carry options.
func (t QuestionType) IsChoice() bool {
	return t == QuestionTypeRadio || t == QuestionTypeCheckbox || t == QuestionTypeSelect
}

type Question struct {
	ID           string                      `gorm:"type:uuid;primaryKey" json:"id"`
	FormID       string                      `gorm:"type:uuid;not null;index" json:"form_id"`
	QuestionText string                      `gorm:"type:text;not null" json:"question_text"`
	QuestionType QuestionType                `gorm:"size:20;not null" json:"question_type"`
	OrderNum     int                         `gorm:"column:order_num;not null" json:"order"`
	Required     bool                        `gorm:"not null;default:false" json:"required"`
	Options      datatypes.JSONSlice[Option] `json:"options"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}
