package service

import (
	"commsense_backend/internal/feedback"
	"commsense_backend/internal/model"
	"commsense_backend/internal/repository"
	"commsense_backend/pkg/logger"
	"commsense_backend/pkg/monitoring"
	"commsense_backend/pkg/tracing"
	"context"
	"time"

	"go.uber.org/zap"
)

// SummaryService builds the final feedback of a quiz and the graph series
// over its answers.
type SummaryService struct {
	Quizzes     *QuizService
	Assessments *repository.AssessmentRepository
	Builder     *feedback.SummaryBuilder
	Graphs      *feedback.GraphExtractor
}

func NewSummaryService(quizzes *QuizService, assessments *repository.AssessmentRepository, gen feedback.Generator) *SummaryService {
	return &SummaryService{
		Quizzes:     quizzes,
		Assessments: assessments,
		Builder:     feedback.NewSummaryBuilder(gen, assessments),
		Graphs:      feedback.NewGraphExtractor(gen),
	}
}

// FinalFeedback summarizes a fully answered quiz and stores the summary,
// replacing any earlier one.
func (s *SummaryService) FinalFeedback(ctx context.Context, userID, quizID uint) (sum *feedback.QuizSummary, err error) {
	ctx, span := tracing.Start(ctx, "summary")
	start := time.Now()
	defer func() {
		monitoring.ObserveStage("summary", start, err)
		countRecordViolation(err)
		tracing.End(span, err)
	}()

	answers, err := s.Quizzes.Answers(ctx, userID, quizID, true)
	if err != nil {
		return nil, err
	}
	sum, err = s.Builder.Build(ctx, feedback.SummaryKey{UserID: userID, QuizID: quizID}, answers)
	if err != nil {
		logger.Log.Warn("Summary failed", append(logger.Stage("summary", userID, quizID, -1), zap.Error(err))...)
		return nil, err
	}
	return sum, nil
}

// GraphBundle recomputes the per-question series of every answered question.
func (s *SummaryService) GraphBundle(ctx context.Context, userID, quizID uint) (bundle *feedback.GraphBundle, err error) {
	ctx, span := tracing.Start(ctx, "graphs")
	start := time.Now()
	defer func() {
		monitoring.ObserveStage("graphs", start, err)
		tracing.End(span, err)
	}()

	answers, err := s.Quizzes.Answers(ctx, userID, quizID, false)
	if err != nil {
		return nil, err
	}
	return s.Graphs.Extract(ctx, answers)
}

type HistoryEntry struct {
	QuizID    uint                 `json:"quiz_id"`
	UpdatedAt time.Time            `json:"updated_at"`
	Summary   feedback.QuizSummary `json:"summary"`
}

// History lists the user's quiz summaries, newest first.
func (s *SummaryService) History(ctx context.Context, userID uint, limit int) ([]HistoryEntry, error) {
	rows, err := s.Assessments.ListSummaries(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return historyEntries(rows), nil
}

func historyEntries(rows []model.QuizSummary) []HistoryEntry {
	out := make([]HistoryEntry, len(rows))
	for i, r := range rows {
		out[i] = HistoryEntry{QuizID: r.QuizID, UpdatedAt: r.UpdatedAt, Summary: r.Summary.Data()}
	}
	return out
}
