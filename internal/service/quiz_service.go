package service

import (
	"commsense_backend/internal/feedback"
	"commsense_backend/internal/model"
	"commsense_backend/internal/repository"
	"commsense_backend/internal/util"
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type QuizService struct {
	Planner       *feedback.Planner
	Quizzes       *repository.QuizRepository
	Assessments   *repository.AssessmentRepository
	QuestionCount int
}

func NewQuizService(gen feedback.Generator, quizzes *repository.QuizRepository, assessments *repository.AssessmentRepository, questionCount int) *QuizService {
	return &QuizService{
		Planner:       feedback.NewPlanner(gen),
		Quizzes:       quizzes,
		Assessments:   assessments,
		QuestionCount: questionCount,
	}
}

type GeneratedQuiz struct {
	QuizID    uint     `json:"quiz_id"`
	Questions []string `json:"questions"`
}

// Generate asks for a fresh question set and stores it as a new quiz.
func (s *QuizService) Generate(ctx context.Context, userID uint) (*GeneratedQuiz, error) {
	questions, err := s.Planner.Questions(ctx, s.QuestionCount)
	if err != nil {
		return nil, err
	}

	quiz := &model.Quiz{UserID: userID, Questions: make([]model.QuizQuestion, len(questions))}
	for i, q := range questions {
		quiz.Questions[i] = model.QuizQuestion{Position: i, Text: q}
	}
	if err := s.Quizzes.Create(ctx, quiz); err != nil {
		return nil, err
	}
	return &GeneratedQuiz{QuizID: quiz.ID, Questions: questions}, nil
}

type QuizDetail struct {
	Quiz     *model.Quiz              `json:"quiz"`
	Feedback []model.QuestionFeedback `json:"feedback"`
	Sessions []model.SessionAnalysis  `json:"sessions"`
}

func (s *QuizService) Detail(ctx context.Context, userID, quizID uint) (*QuizDetail, error) {
	quiz, err := s.find(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	fbs, err := s.Assessments.ListFeedback(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.Assessments.ListSessions(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	return &QuizDetail{Quiz: quiz, Feedback: fbs, Sessions: sessions}, nil
}

func (s *QuizService) find(ctx context.Context, userID, quizID uint) (*model.Quiz, error) {
	quiz, err := s.Quizzes.FindForUser(ctx, userID, quizID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuizNotFound
	}
	return quiz, err
}

// Answers pairs every question of the quiz with its stored feedback. With
// requireAll set, any unanswered question fails with util.ErrIncompleteQuiz.
func (s *QuizService) Answers(ctx context.Context, userID, quizID uint, requireAll bool) ([]feedback.QuestionAnswer, error) {
	quiz, err := s.find(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	rows, err := s.Assessments.ListFeedback(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}

	byIndex := make(map[int]*feedback.QuestionFeedback, len(rows))
	for i := range rows {
		fb := rows[i].Feedback.Data()
		byIndex[rows[i].QuestionIndex] = &fb
	}

	answers := make([]feedback.QuestionAnswer, 0, len(quiz.Questions))
	var missing []int
	for _, q := range quiz.Questions {
		fb, ok := byIndex[q.Position]
		if !ok {
			missing = append(missing, q.Position)
			continue
		}
		answers = append(answers, feedback.QuestionAnswer{Index: q.Position, Question: q.Text, Feedback: fb})
	}
	if requireAll && len(missing) > 0 {
		return nil, &IncompleteQuizError{Missing: missing}
	}
	if len(answers) == 0 {
		return nil, &IncompleteQuizError{Missing: missing}
	}
	return answers, nil
}

// IncompleteQuizError lists the unanswered question indexes.
type IncompleteQuizError struct {
	Missing []int
}

func (e *IncompleteQuizError) Error() string {
	return fmt.Sprintf("%s: missing %v", util.ErrIncompleteQuiz, e.Missing)
}

func (e *IncompleteQuizError) Unwrap() error { return util.ErrIncompleteQuiz }
