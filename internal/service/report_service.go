package service

import (
	"commsense_backend/internal/report"
	"commsense_backend/internal/repository"
	"commsense_backend/internal/util"
	"commsense_backend/pkg/logger"
	"commsense_backend/pkg/monitoring"
	"commsense_backend/pkg/tracing"
	"context"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ReportService struct {
	Users       *repository.UserRepository
	Assessments *repository.AssessmentRepository
	Quizzes     *QuizService
	Summaries   *SummaryService
	Renderer    *report.Renderer
}

func NewReportService(users *repository.UserRepository, assessments *repository.AssessmentRepository, quizzes *QuizService, summaries *SummaryService, renderer *report.Renderer) *ReportService {
	return &ReportService{
		Users:       users,
		Assessments: assessments,
		Quizzes:     quizzes,
		Summaries:   summaries,
		Renderer:    renderer,
	}
}

// Document gathers the stored summary, a freshly computed graph bundle and
// the per-question feedback of a quiz.
func (s *ReportService) Document(ctx context.Context, userID, quizID uint) (*report.Document, error) {
	row, err := s.Assessments.FindSummary(ctx, userID, quizID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSummaryMissing
	}
	if err != nil {
		return nil, err
	}
	summary := row.Summary.Data()

	answers, err := s.Quizzes.Answers(ctx, userID, quizID, false)
	if err != nil {
		return nil, err
	}
	graphs, err := s.Summaries.Graphs.Extract(ctx, answers)
	if err != nil {
		return nil, err
	}

	doc := &report.Document{
		GeneratedAt: time.Now(),
		Summary:     &summary,
		Graphs:      graphs,
		Questions:   answers,
	}
	if user, err := s.Users.FindByID(userID); err == nil {
		doc.CandidateName = user.FullName
		if doc.CandidateName == "" {
			doc.CandidateName = user.Username
		}
	}
	return doc, nil
}

// Export renders the quiz report as PDF into w.
func (s *ReportService) Export(ctx context.Context, userID, quizID uint, w io.Writer) (stats report.Stats, err error) {
	ctx, span := tracing.Start(ctx, "report", attribute.Int("quiz_id", int(quizID)))
	start := time.Now()
	defer func() {
		monitoring.ObserveStage("report", start, err)
		monitoring.ReportsRendered.WithLabelValues(monitoring.Outcome(err)).Inc()
		tracing.End(span, err)
	}()

	doc, err := s.Document(ctx, userID, quizID)
	if err != nil {
		return report.Stats{}, err
	}
	stats, err = s.Renderer.Render(ctx, *doc, w)
	if err != nil {
		logger.Log.Error("Report render failed", append(logger.Stage("report", userID, quizID, -1), zap.Error(err))...)
		return report.Stats{}, err
	}
	logger.Log.Info("Report rendered",
		zap.Uint("user_id", userID),
		zap.Uint("quiz_id", quizID),
		zap.Int("pages", stats.Pages),
		zap.Int("question_blocks", stats.QuestionBlocks))
	return stats, nil
}
