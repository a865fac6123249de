package service

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"commsense_backend/internal/feedback"
	"commsense_backend/internal/gesture"
	"commsense_backend/internal/repository"
	"commsense_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type answerFixture struct {
	db       *gorm.DB
	svc      *AnswerService
	gen      *scriptedGenerator
	uploader *memoryUploader
	repo     *repository.AssessmentRepository
}

func newAnswerFixture(t *testing.T, rec Recognizer, frames FrameSource, required bool) *answerFixture {
	db := newTestDB(t)
	cfg := testConfig(t)
	cfg.Recognizer.Required = required

	gen := newScriptedGenerator(map[string]string{
		"question_feedback": questionFeedbackJSON,
		"transcript_fusion": fusionJSON,
	})
	uploader := &memoryUploader{}
	repo := repository.NewAssessmentRepository(db)
	svc := NewAnswerService(
		repository.NewQuizRepository(db),
		repo,
		uploader,
		fakeMedia{frames: 3},
		rec,
		frames,
		gen,
		gesture.NewProfileStore(gesture.DefaultProfile()),
		cfg,
	)
	return &answerFixture{db: db, svc: svc, gen: gen, uploader: uploader, repo: repo}
}

func staticRecognizer(text string) Recognizer {
	return recognizerFunc(func(context.Context, string) (string, error) { return text, nil })
}

func TestSubmitAudioAnswer(t *testing.T) {
	f := newAnswerFixture(t, staticRecognizer("I led the team through the migration"), nil, false)
	quiz := seedQuiz(t, f.db, 7, "Describe a hard project", "Describe a conflict")

	res, err := f.svc.Submit(context.Background(), AnswerInput{
		UserID:        7,
		QuizID:        quiz.ID,
		QuestionIndex: 1,
		Audio:         writeFile(t, "answer.wav", wavBytes()),
	})
	require.NoError(t, err)

	assert.Contains(t, res.URL, "answers/7/")
	assert.Equal(t, 0.92, res.Transcript.Similarity)
	assert.False(t, res.Transcript.SingleSource)
	assert.Nil(t, res.Gesture)
	assert.Equal(t, "00:00:07", res.Feedback.TimestampedFeedback[0].Time)

	req := f.gen.last["question_feedback"]
	require.NotNil(t, req.Audio)
	assert.Equal(t, "wav", req.Audio.Format)
	assert.Contains(t, req.System, "Describe a conflict")

	rows, err := f.repo.ListFeedback(context.Background(), 7, quiz.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].QuestionIndex)
	assert.Equal(t, "I led the team through the migration", rows[0].LocalTranscript)
	assert.Equal(t, res.URL, rows[0].AudioURL)
	assert.Empty(t, rows[0].VideoURL)
	assert.Equal(t, 2, rows[0].Feedback.Data().FillerWordUsage.Count)

	for name, ct := range f.uploader.files {
		assert.Contains(t, name, "answers/7/")
		assert.Equal(t, "audio/wav", ct)
	}
}

func TestSubmitResubmissionReplacesRow(t *testing.T) {
	f := newAnswerFixture(t, staticRecognizer("first"), nil, false)
	quiz := seedQuiz(t, f.db, 3, "Only question")

	in := AnswerInput{UserID: 3, QuizID: quiz.ID, QuestionIndex: 0, Audio: writeFile(t, "a.wav", wavBytes())}
	_, err := f.svc.Submit(context.Background(), in)
	require.NoError(t, err)

	f.svc.Recognizer = staticRecognizer("second")
	_, err = f.svc.Submit(context.Background(), in)
	require.NoError(t, err)

	rows, err := f.repo.ListFeedback(context.Background(), 3, quiz.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "second", rows[0].LocalTranscript)
}

func TestSubmitWithoutLocalTranscript(t *testing.T) {
	failing := recognizerFunc(func(context.Context, string) (string, error) {
		return "", errors.New("sidecar down")
	})

	t.Run("optional recognizer uses generated transcript", func(t *testing.T) {
		f := newAnswerFixture(t, failing, nil, false)
		quiz := seedQuiz(t, f.db, 1, "Q")

		res, err := f.svc.Submit(context.Background(), AnswerInput{
			UserID: 1, QuizID: quiz.ID, Audio: writeFile(t, "a.wav", wavBytes()),
		})
		require.NoError(t, err)
		assert.True(t, res.Transcript.SingleSource)
		assert.Equal(t, "um I led the team uh through the migration", res.Feedback.Transcript)
		assert.Zero(t, f.gen.count("transcript_fusion"))
	})

	t.Run("required recognizer fails the answer", func(t *testing.T) {
		f := newAnswerFixture(t, failing, nil, true)
		quiz := seedQuiz(t, f.db, 1, "Q")

		_, err := f.svc.Submit(context.Background(), AnswerInput{
			UserID: 1, QuizID: quiz.ID, Audio: writeFile(t, "a.wav", wavBytes()),
		})
		assert.ErrorIs(t, err, feedback.ErrLocalTranscriptUnavailable)

		rows, err := f.repo.ListFeedback(context.Background(), 1, quiz.ID)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestSubmitSchemaViolationStoresNothing(t *testing.T) {
	f := newAnswerFixture(t, staticRecognizer("x"), nil, false)
	f.gen.responses["question_feedback"] = `{"transcript": "x"}`
	quiz := seedQuiz(t, f.db, 1, "Q")

	_, err := f.svc.Submit(context.Background(), AnswerInput{
		UserID: 1, QuizID: quiz.ID, Audio: writeFile(t, "a.wav", wavBytes()),
	})
	var se *feedback.SchemaError
	require.ErrorAs(t, err, &se)

	rows, err := f.repo.ListFeedback(context.Background(), 1, quiz.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSubmitVideoRunsGestureAnalysis(t *testing.T) {
	pose := &gesture.PoseLandmarks{
		LeftShoulder: gesture.Point{X: 0.3, Y: 0.4}, RightShoulder: gesture.Point{X: 0.7, Y: 0.4},
		LeftHip: gesture.Point{X: 0.35, Y: 0.8}, RightHip: gesture.Point{X: 0.65, Y: 0.8},
		Confidence: 0.9,
	}
	var extracted int
	frames := frameSourceFunc(func(context.Context, string) (gesture.Extractor, error) {
		return gesture.ExtractorFunc(func(context.Context, gesture.Frame) (gesture.Observation, error) {
			extracted++
			return gesture.Observation{Pose: pose}, nil
		}), nil
	})
	f := newAnswerFixture(t, staticRecognizer("hello"), frames, false)
	f.svc.Runner = gesture.NewRunner(gesture.NewAnalyzer(f.svc.Profiles), 1)
	quiz := seedQuiz(t, f.db, 9, "Q1")

	res, err := f.svc.Submit(context.Background(), AnswerInput{
		UserID: 9, QuizID: quiz.ID, Video: writeFile(t, "v.mp4", mp4Bytes()),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Gesture)
	assert.Equal(t, 3, res.Gesture.FramesAnalyzed)
	assert.Equal(t, 3, extracted)

	sessions, err := f.repo.ListSessions(context.Background(), 9, quiz.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 3, sessions[0].Result.Data().FramesAnalyzed)

	rows, err := f.repo.ListFeedback(context.Background(), 9, quiz.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, res.URL, rows[0].VideoURL)
}

func TestSubmitGestureFailureKeepsFeedback(t *testing.T) {
	frames := frameSourceFunc(func(context.Context, string) (gesture.Extractor, error) {
		return nil, errors.New("vision unavailable")
	})
	f := newAnswerFixture(t, staticRecognizer("hello"), frames, false)
	quiz := seedQuiz(t, f.db, 9, "Q1")

	res, err := f.svc.Submit(context.Background(), AnswerInput{
		UserID: 9, QuizID: quiz.ID, Video: writeFile(t, "v.mp4", mp4Bytes()),
	})
	require.NoError(t, err)
	assert.Nil(t, res.Gesture)
	assert.NotNil(t, res.Feedback)
}

func TestSubmitSpeechFailureStoresNoGesture(t *testing.T) {
	frames := frameSourceFunc(func(context.Context, string) (gesture.Extractor, error) {
		return gesture.ExtractorFunc(func(context.Context, gesture.Frame) (gesture.Observation, error) {
			return gesture.Observation{}, nil
		}), nil
	})
	// The recognizer holds the speech branch back so the gesture branch
	// finishes first.
	slow := recognizerFunc(func(ctx context.Context, _ string) (string, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return "hello", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	f := newAnswerFixture(t, slow, frames, false)
	f.gen.errs["question_feedback"] = errors.New("model down")
	quiz := seedQuiz(t, f.db, 9, "Q1")

	_, err := f.svc.Submit(context.Background(), AnswerInput{
		UserID: 9, QuizID: quiz.ID, Video: writeFile(t, "v.mp4", mp4Bytes()),
	})
	require.Error(t, err)

	sessions, err := f.repo.ListSessions(context.Background(), 9, quiz.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	rows, err := f.repo.ListFeedback(context.Background(), 9, quiz.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSubmitRejectsBadInput(t *testing.T) {
	f := newAnswerFixture(t, staticRecognizer("x"), nil, false)
	quiz := seedQuiz(t, f.db, 1, "Q")

	tests := []struct {
		name string
		in   AnswerInput
		want error
	}{
		{"no media", AnswerInput{UserID: 1, QuizID: quiz.ID}, util.ErrMissingMedia},
		{"unknown quiz", AnswerInput{UserID: 1, QuizID: 999, Audio: writeFile(t, "a.wav", wavBytes())}, util.ErrQuizNotFound},
		{"other user's quiz", AnswerInput{UserID: 2, QuizID: quiz.ID, Audio: writeFile(t, "a.wav", wavBytes())}, util.ErrQuizNotFound},
		{"index out of range", AnswerInput{UserID: 1, QuizID: quiz.ID, QuestionIndex: 1, Audio: writeFile(t, "a.wav", wavBytes())}, util.ErrInvalidQuestion},
		{"not audio", AnswerInput{UserID: 1, QuizID: quiz.ID, Audio: writeFile(t, "a.txt", []byte("plain text here"))}, util.ErrUnsupportedMedia},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, f.gen.count("question_feedback"))
}

func TestSubmitCleansWorkDir(t *testing.T) {
	f := newAnswerFixture(t, staticRecognizer("x"), nil, false)
	quiz := seedQuiz(t, f.db, 1, "Q")

	_, err := f.svc.Submit(context.Background(), AnswerInput{
		UserID: 1, QuizID: quiz.ID, Audio: writeFile(t, "a.wav", wavBytes()),
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(f.svc.Cfg.Report.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAnalyzeVideo(t *testing.T) {
	frames := frameSourceFunc(func(context.Context, string) (gesture.Extractor, error) {
		return gesture.ExtractorFunc(func(context.Context, gesture.Frame) (gesture.Observation, error) {
			return gesture.Observation{}, nil
		}), nil
	})
	f := newAnswerFixture(t, staticRecognizer("x"), frames, false)

	res, err := f.svc.AnalyzeVideo(context.Background(), writeFile(t, "v.mp4", mp4Bytes()).Path)
	require.NoError(t, err)
	assert.Equal(t, 3, res.FramesAnalyzed)
	assert.Zero(t, f.gen.count("question_feedback"))

	entries, err := os.ReadDir(f.svc.Cfg.Report.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	f.svc.Frames = nil
	_, err = f.svc.AnalyzeVideo(context.Background(), "v.mp4")
	assert.ErrorIs(t, err, ErrGestureDisabled)
}
