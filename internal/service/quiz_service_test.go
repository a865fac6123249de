package service

import (
	"bytes"
	"context"
	"testing"

	"commsense_backend/internal/feedback"
	"commsense_backend/internal/model"
	"commsense_backend/internal/report"
	"commsense_backend/internal/repository"
	"commsense_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type quizFixture struct {
	db          *gorm.DB
	gen         *scriptedGenerator
	assessments *repository.AssessmentRepository
	quizzes     *QuizService
	summaries   *SummaryService
	reports     *ReportService
	learning    *LearningService
}

func newQuizFixture(t *testing.T) *quizFixture {
	db := newTestDB(t)
	gen := newScriptedGenerator(map[string]string{
		"question_set":  questionSetJSON(2),
		"quiz_summary":  summaryJSON,
		"graph_series":  graphJSON(2),
		"learning_plan": `{"goals":["fewer fillers"],"weekly_focus":[{"week":1,"targets":["record daily"]}],"actionable_items":["a"],"resources":["r"],"progress_tracking_metrics":["m"],"exercises":["e"],"consistency_tips":["c"]}`,
	})
	assessments := repository.NewAssessmentRepository(db)
	quizzes := NewQuizService(gen, repository.NewQuizRepository(db), assessments, 2)
	summaries := NewSummaryService(quizzes, assessments, gen)
	renderer, err := report.NewRenderer(report.WithTempRoot(t.TempDir()))
	require.NoError(t, err)

	return &quizFixture{
		db:          db,
		gen:         gen,
		assessments: assessments,
		quizzes:     quizzes,
		summaries:   summaries,
		reports:     NewReportService(repository.NewUserRepository(db), assessments, quizzes, summaries, renderer),
		learning:    NewLearningService(gen, repository.NewLearningPlanRepository(db), assessments),
	}
}

func (f *quizFixture) answer(t *testing.T, userID, quizID uint, index int) {
	t.Helper()
	var fb feedback.QuestionFeedback
	require.NoError(t, feedback.Decode([]byte(questionFeedbackJSON), feedback.QuestionFeedbackSchema(), &fb))
	require.NoError(t, fb.Validate())
	require.NoError(t, f.assessments.UpsertFeedback(context.Background(), &model.QuestionFeedback{
		UserID:        userID,
		QuizID:        quizID,
		QuestionIndex: index,
		Feedback:      datatypes.NewJSONType(fb),
	}))
}

func TestGenerateQuiz(t *testing.T) {
	f := newQuizFixture(t)
	ctx := context.Background()

	q, err := f.quizzes.Generate(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, q.Questions, 2)
	assert.NotZero(t, q.QuizID)

	detail, err := f.quizzes.Detail(ctx, 5, q.QuizID)
	require.NoError(t, err)
	require.Len(t, detail.Quiz.Questions, 2)
	assert.Equal(t, q.Questions[1], detail.Quiz.Questions[1].Text)
	assert.Empty(t, detail.Feedback)

	_, err = f.quizzes.Detail(ctx, 6, q.QuizID)
	assert.ErrorIs(t, err, util.ErrQuizNotFound)
}

func TestGenerateQuizCountOutOfRange(t *testing.T) {
	f := newQuizFixture(t)
	f.quizzes.QuestionCount = 11

	_, err := f.quizzes.Generate(context.Background(), 1)
	assert.ErrorIs(t, err, feedback.ErrQuestionCount)
	assert.Zero(t, f.gen.count("question_set"))
}

func TestFinalFeedbackRequiresEveryAnswer(t *testing.T) {
	f := newQuizFixture(t)
	ctx := context.Background()
	quiz := seedQuiz(t, f.db, 1, "Q1", "Q2")
	f.answer(t, 1, quiz.ID, 0)

	_, err := f.summaries.FinalFeedback(ctx, 1, quiz.ID)
	require.ErrorIs(t, err, util.ErrIncompleteQuiz)
	var ie *IncompleteQuizError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, []int{1}, ie.Missing)
	assert.Zero(t, f.gen.count("quiz_summary"), "nothing is generated for an incomplete quiz")

	f.answer(t, 1, quiz.ID, 1)
	sum, err := f.summaries.FinalFeedback(ctx, 1, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, "solid", sum.OverallFeedback.Summary)

	stored, err := f.assessments.FindSummary(ctx, 1, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, "solid", stored.Summary.Data().OverallFeedback.Summary)

	history, err := f.summaries.History(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, quiz.ID, history[0].QuizID)
}

func TestGraphBundleOverlaysCounts(t *testing.T) {
	f := newQuizFixture(t)
	quiz := seedQuiz(t, f.db, 1, "Q1", "Q2")
	f.answer(t, 1, quiz.ID, 0)
	f.answer(t, 1, quiz.ID, 1)

	bundle, err := f.summaries.GraphBundle(context.Background(), 1, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, bundle.Questions)
	assert.Equal(t, 4, bundle.TotalFillerWords)
	assert.Equal(t, 4, bundle.TotalPauses)
	for _, k := range feedback.SeriesKeys {
		assert.Len(t, bundle.Series[k], 2, k)
	}
}

func TestExportReport(t *testing.T) {
	f := newQuizFixture(t)
	ctx := context.Background()
	require.NoError(t, repository.NewUserRepository(f.db).Create(&model.User{Username: "dee", Email: "dee@example.com", Password: "x", FullName: "Dee Ray"}))
	quiz := seedQuiz(t, f.db, 1, "Q1", "Q2")
	f.answer(t, 1, quiz.ID, 0)
	f.answer(t, 1, quiz.ID, 1)

	var buf bytes.Buffer
	_, err := f.reports.Export(ctx, 1, quiz.ID, &buf)
	assert.ErrorIs(t, err, util.ErrSummaryMissing)
	assert.Zero(t, buf.Len())

	_, err = f.summaries.FinalFeedback(ctx, 1, quiz.ID)
	require.NoError(t, err)

	doc, err := f.reports.Document(ctx, 1, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dee Ray", doc.CandidateName)
	assert.Len(t, doc.Questions, 2)

	stats, err := f.reports.Export(ctx, 1, quiz.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.QuestionBlocks)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestLearningPlan(t *testing.T) {
	f := newQuizFixture(t)
	ctx := context.Background()
	quiz := seedQuiz(t, f.db, 1, "Q1")
	require.NoError(t, f.assessments.SaveSummary(ctx, feedback.SummaryKey{UserID: 1, QuizID: quiz.ID}, &feedback.QuizSummary{
		OverallFeedback: feedback.OverallFeedback{Summary: "needs pacing work"},
	}))

	plan, err := f.learning.CreatePlan(ctx, 1, "I want to sound calmer")
	require.NoError(t, err)
	assert.Equal(t, []string{"fewer fillers"}, plan.Plan.Data().Goals)
	assert.Contains(t, f.gen.last["learning_plan"].Prompt, "needs pacing work")

	plans, err := f.learning.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "I want to sound calmer", plans[0].Input)

	_, err = f.learning.CreatePlan(ctx, 1, "   ")
	assert.ErrorIs(t, err, feedback.ErrInvalidRecord)
}
