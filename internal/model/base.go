package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// swagger:model
type BaseModel struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func GenerateUUID() string {
	return uuid.New().String()
}

// All lists every model managed by migrations.
func All() []any {
	return []any{
		&User{},
		&Quiz{},
		&QuizQuestion{},
		&QuestionFeedback{},
		&SessionAnalysis{},
		&QuizSummary{},
		&LearningPlan{},
	}
}
