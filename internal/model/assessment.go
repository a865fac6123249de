package model

import (
	"commsense_backend/internal/feedback"
	"commsense_backend/internal/gesture"

	"gorm.io/datatypes"
)

// QuestionFeedback is the stored critique of one answer, unique per
// (user, quiz, question).
type QuestionFeedback struct {
	BaseModel
	UserID          uint                                          `gorm:"uniqueIndex:idx_feedback_key;not null" json:"userId"`
	QuizID          uint                                          `gorm:"uniqueIndex:idx_feedback_key;not null" json:"quizId"`
	QuestionIndex   int                                           `gorm:"uniqueIndex:idx_feedback_key;not null" json:"questionIndex"`
	VideoURL        string                                        `gorm:"size:500" json:"videoUrl,omitempty"`
	AudioURL        string                                        `gorm:"size:500" json:"audioUrl,omitempty"`
	LocalTranscript string                                        `gorm:"type:text" json:"localTranscript,omitempty"`
	Similarity      float64                                       `json:"similarity"`
	SingleSource    bool                                          `json:"singleSource"`
	Feedback        datatypes.JSONType[feedback.QuestionFeedback] `json:"feedback"`
}

func (QuestionFeedback) TableName() string {
	return "question_feedbacks"
}

// SessionAnalysis is the gesture result of one recorded answer.
type SessionAnalysis struct {
	BaseModel
	UserID        uint                               `gorm:"uniqueIndex:idx_session_key;not null" json:"userId"`
	QuizID        uint                               `gorm:"uniqueIndex:idx_session_key;not null" json:"quizId"`
	QuestionIndex int                                `gorm:"uniqueIndex:idx_session_key;not null" json:"questionIndex"`
	Result        datatypes.JSONType[gesture.Result] `json:"result"`
}

func (SessionAnalysis) TableName() string {
	return "session_analyses"
}

// QuizSummary is the single summary of a completed quiz.
type QuizSummary struct {
	BaseModel
	UserID  uint                                     `gorm:"uniqueIndex:idx_summary_key;not null" json:"userId"`
	QuizID  uint                                     `gorm:"uniqueIndex:idx_summary_key;not null" json:"quizId"`
	Summary datatypes.JSONType[feedback.QuizSummary] `json:"summary"`
}

func (QuizSummary) TableName() string {
	return "quiz_summaries"
}

type LearningPlan struct {
	BaseModel
	UserID uint                                      `gorm:"index;not null" json:"userId"`
	Input  string                                    `gorm:"type:text;not null" json:"input"`
	Plan   datatypes.JSONType[feedback.LearningPlan] `json:"plan"`
}

func (LearningPlan) TableName() string {
	return "learning_plans"
}
