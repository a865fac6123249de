package model

// Quiz is one ordered set of generated questions answered in a sitting.
type Quiz struct {
	BaseModel
	UserID    uint           `gorm:"index;not null" json:"userId"`
	Questions []QuizQuestion `gorm:"foreignKey:QuizID" json:"questions"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

type QuizQuestion struct {
	BaseModel
	QuizID   uint   `gorm:"uniqueIndex:idx_quiz_position;not null" json:"quizId"`
	Position int    `gorm:"uniqueIndex:idx_quiz_position;not null" json:"position"`
	Text     string `gorm:"type:text;not null" json:"text"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}
