package service

import (
	"commsense_backend/internal/feedback"
	"commsense_backend/internal/model"
	"commsense_backend/internal/repository"
	"context"

	"gorm.io/datatypes"
)

// historyContext is how many recent summaries accompany a plan request.
const historyContext = 3

type LearningService struct {
	Planner     *feedback.Planner
	Plans       *repository.LearningPlanRepository
	Assessments *repository.AssessmentRepository
}

func NewLearningService(gen feedback.Generator, plans *repository.LearningPlanRepository, assessments *repository.AssessmentRepository) *LearningService {
	return &LearningService{
		Planner:     feedback.NewPlanner(gen),
		Plans:       plans,
		Assessments: assessments,
	}
}

func (s *LearningService) CreatePlan(ctx context.Context, userID uint, input string) (*model.LearningPlan, error) {
	rows, err := s.Assessments.ListSummaries(ctx, userID, historyContext)
	if err != nil {
		return nil, err
	}
	history := make([]feedback.QuizSummary, len(rows))
	for i, r := range rows {
		history[i] = r.Summary.Data()
	}

	plan, err := s.Planner.LearningPlan(ctx, input, history)
	if err != nil {
		return nil, err
	}

	row := &model.LearningPlan{
		UserID: userID,
		Input:  input,
		Plan:   datatypes.NewJSONType(*plan),
	}
	if err := s.Plans.Create(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *LearningService) History(ctx context.Context, userID uint) ([]model.LearningPlan, error) {
	return s.Plans.ListByUser(ctx, userID)
}
