package repository

import (
	"context"

	"commsense_backend/internal/feedback"
	"commsense_backend/internal/gesture"
	"commsense_backend/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssessmentRepository stores per-answer feedback, gesture results and quiz
// summaries. Writes replace the row for the same key.
type AssessmentRepository struct {
	DB *gorm.DB
}

var _ feedback.SummaryStore = (*AssessmentRepository)(nil)

func NewAssessmentRepository(db *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{DB: db}
}

func (r *AssessmentRepository) UpsertFeedback(ctx context.Context, fb *model.QuestionFeedback) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "quiz_id"}, {Name: "question_index"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"updated_at", "video_url", "audio_url", "local_transcript", "similarity", "single_source", "feedback",
		}),
	}).Create(fb).Error
}

// ListFeedback returns the stored feedback of a quiz ordered by question.
func (r *AssessmentRepository) ListFeedback(ctx context.Context, userID, quizID uint) ([]model.QuestionFeedback, error) {
	var rows []model.QuestionFeedback
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Order("question_index ASC").
		Find(&rows).Error
	return rows, err
}

func (r *AssessmentRepository) UpsertSession(ctx context.Context, userID, quizID uint, questionIndex int, res gesture.Result) error {
	row := &model.SessionAnalysis{
		UserID:        userID,
		QuizID:        quizID,
		QuestionIndex: questionIndex,
		Result:        datatypes.NewJSONType(res),
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "quiz_id"}, {Name: "question_index"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at", "result"}),
	}).Create(row).Error
}

func (r *AssessmentRepository) ListSessions(ctx context.Context, userID, quizID uint) ([]model.SessionAnalysis, error) {
	var rows []model.SessionAnalysis
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Order("question_index ASC").
		Find(&rows).Error
	return rows, err
}

// SaveSummary implements feedback.SummaryStore.
func (r *AssessmentRepository) SaveSummary(ctx context.Context, key feedback.SummaryKey, s *feedback.QuizSummary) error {
	row := &model.QuizSummary{
		UserID:  key.UserID,
		QuizID:  key.QuizID,
		Summary: datatypes.NewJSONType(*s),
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "quiz_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at", "summary"}),
	}).Create(row).Error
}

func (r *AssessmentRepository) FindSummary(ctx context.Context, userID, quizID uint) (*model.QuizSummary, error) {
	var row model.QuizSummary
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListSummaries returns the user's summaries, newest first. A limit of zero
// or less returns all of them.
func (r *AssessmentRepository) ListSummaries(ctx context.Context, userID uint, limit int) ([]model.QuizSummary, error) {
	var rows []model.QuizSummary
	q := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}
