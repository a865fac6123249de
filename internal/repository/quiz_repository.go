package repository

import (
	"context"

	"commsense_backend/internal/model"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

// Create stores the quiz together with its questions.
func (r *QuizRepository) Create(ctx context.Context, quiz *model.Quiz) error {
	return r.DB.WithContext(ctx).Create(quiz).Error
}

// FindForUser loads a quiz owned by userID with its questions in order.
func (r *QuizRepository) FindForUser(ctx context.Context, userID, quizID uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ? AND user_id = ?", quizID, userID).
		First(&quiz).Error
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}
