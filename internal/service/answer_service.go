package service

import (
	"commsense_backend/internal/config"
	"commsense_backend/internal/feedback"
	"commsense_backend/internal/gesture"
	"commsense_backend/internal/model"
	"commsense_backend/internal/repository"
	"commsense_backend/internal/util"
	"commsense_backend/pkg/logger"
	"commsense_backend/pkg/monitoring"
	"commsense_backend/pkg/tracing"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrGestureDisabled = errors.New("gesture extraction disabled")

// FileUploader stores a local file and returns its public URL.
type FileUploader interface {
	UploadFile(ctx context.Context, filename string, localPath string, contentType string) (string, error)
}

// MediaFile is an uploaded recording already saved to local disk.
type MediaFile struct {
	Path     string
	Filename string
}

type AnswerInput struct {
	UserID        uint
	QuizID        uint
	QuestionIndex int
	Video         *MediaFile
	Audio         *MediaFile
}

type TranscriptInfo struct {
	Similarity   float64 `json:"similarity"`
	SingleSource bool    `json:"single_source"`
}

type AnswerResult struct {
	URL        string                     `json:"url"`
	Feedback   *feedback.QuestionFeedback `json:"feedback"`
	Transcript TranscriptInfo             `json:"transcript"`
	Gesture    *gesture.Result            `json:"gesture,omitempty"`
}

// AnswerService turns one recorded answer into stored feedback and, when
// video is present, a gesture analysis.
type AnswerService struct {
	Quizzes     *repository.QuizRepository
	Assessments *repository.AssessmentRepository
	Storage     FileUploader
	Media       MediaProcessor
	Recognizer  Recognizer
	// Frames is nil when gesture extraction is disabled.
	Frames   FrameSource
	Critic   *feedback.Critic
	Fusion   *feedback.FusionEngine
	Runner   *gesture.Runner
	Profiles *gesture.ProfileStore
	Cfg      *config.Config
}

func NewAnswerService(
	quizzes *repository.QuizRepository,
	assessments *repository.AssessmentRepository,
	storage FileUploader,
	media MediaProcessor,
	recognizer Recognizer,
	frames FrameSource,
	gen feedback.Generator,
	profiles *gesture.ProfileStore,
	cfg *config.Config,
) *AnswerService {
	if recognizer == nil {
		recognizer = disabledRecognizer{}
	}
	return &AnswerService{
		Quizzes:     quizzes,
		Assessments: assessments,
		Storage:     storage,
		Media:       media,
		Recognizer:  recognizer,
		Frames:      frames,
		Critic:      feedback.NewCritic(gen),
		Fusion:      feedback.NewFusionEngine(gen, cfg.Recognizer.Required),
		Runner:      gesture.NewRunner(gesture.NewAnalyzer(profiles), cfg.Gesture.Workers),
		Profiles:    profiles,
		Cfg:         cfg,
	}
}

// answerRun carries the state of one submission between stages.
type answerRun struct {
	in        AnswerInput
	question  string
	workDir   string
	videoMIME string
	audioMIME string
	videoURL  string
	audioURL  string
}

// Submit runs the whole pipeline for one answer. The speech branch and the
// gesture branch run concurrently; only the speech branch can fail the
// answer. A resubmission replaces the stored rows for the same question.
func (s *AnswerService) Submit(ctx context.Context, in AnswerInput) (*AnswerResult, error) {
	if in.Video == nil && in.Audio == nil {
		return nil, util.ErrMissingMedia
	}

	quiz, err := s.Quizzes.FindForUser(ctx, in.UserID, in.QuizID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuizNotFound
	}
	if err != nil {
		return nil, err
	}
	if in.QuestionIndex < 0 || in.QuestionIndex >= len(quiz.Questions) {
		return nil, fmt.Errorf("%w: %d", util.ErrInvalidQuestion, in.QuestionIndex)
	}

	run := &answerRun{in: in, question: quiz.Questions[in.QuestionIndex].Text}

	if err := s.stage(ctx, run, "validate", func(context.Context) error { return s.sniff(run) }); err != nil {
		return nil, err
	}

	run.workDir, err = os.MkdirTemp(s.Cfg.Report.TempDir, "answer-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(run.workDir)

	res := &AnswerResult{}
	if err := s.stage(ctx, run, "store", func(ctx context.Context) error {
		var err error
		res.URL, err = s.store(ctx, run)
		return err
	}); err != nil {
		return nil, err
	}

	// The gesture row is written only after the speech branch succeeded, so a
	// failed answer leaves no session analysis behind.
	var gestureResult *gesture.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.speech(gctx, run, res)
	})
	if in.Video != nil && s.Cfg.Gesture.Enabled && s.Frames != nil {
		g.Go(func() error {
			gr, err := s.analyze(gctx, run, in.Video.Path)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.logGestureFailure(in, err)
				return nil
			}
			gestureResult = &gr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if gestureResult != nil {
		if err := s.persistGesture(ctx, run, *gestureResult); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.logGestureFailure(in, err)
		} else {
			res.Gesture = gestureResult
		}
	}
	return res, nil
}

func (s *AnswerService) logGestureFailure(in AnswerInput, err error) {
	logger.Log.Error("Gesture analysis failed",
		append(logger.Stage("gesture", in.UserID, in.QuizID, in.QuestionIndex), zap.Error(err))...)
}

func (s *AnswerService) sniff(run *answerRun) error {
	check := func(f *MediaFile, allowed []string) (string, error) {
		fd, err := os.Open(f.Path)
		if err != nil {
			return "", err
		}
		defer fd.Close()
		return util.ValidateMimeType(fd, allowed)
	}

	var err error
	if run.in.Video != nil {
		if run.videoMIME, err = check(run.in.Video, util.AllowedVideoTypes); err != nil {
			return err
		}
	}
	if run.in.Audio != nil {
		if run.audioMIME, err = check(run.in.Audio, util.AllowedAudioTypes); err != nil {
			return err
		}
	}
	return nil
}

// store uploads the originals and returns the URL of the primary recording.
func (s *AnswerService) store(ctx context.Context, run *answerRun) (string, error) {
	prefix := fmt.Sprintf("answers/%d/%d/%d/", run.in.UserID, run.in.QuizID, run.in.QuestionIndex)

	var err error
	if run.in.Video != nil {
		name := prefix + model.GenerateUUID() + util.ExtensionFor(run.videoMIME)
		if run.videoURL, err = s.Storage.UploadFile(ctx, name, run.in.Video.Path, run.videoMIME); err != nil {
			return "", fmt.Errorf("store video: %w", err)
		}
	}
	if run.in.Audio != nil {
		name := prefix + model.GenerateUUID() + util.ExtensionFor(run.audioMIME)
		if run.audioURL, err = s.Storage.UploadFile(ctx, name, run.in.Audio.Path, run.audioMIME); err != nil {
			return "", fmt.Errorf("store audio: %w", err)
		}
	}
	if run.videoURL != "" {
		return run.videoURL, nil
	}
	return run.audioURL, nil
}

func (s *AnswerService) speech(ctx context.Context, run *answerRun, res *AnswerResult) error {
	in := run.in
	wavPath := filepath.Join(run.workDir, "answer.wav")

	if err := s.stage(ctx, run, "extract_audio", func(ctx context.Context) error {
		src := in.Video
		if in.Audio != nil {
			src = in.Audio
		}
		return s.Media.ExtractAudio(ctx, src.Path, wavPath)
	}); err != nil {
		return err
	}

	var local string
	localErr := s.stage(ctx, run, "recognize", func(ctx context.Context) error {
		if t := s.Cfg.Recognizer.Timeout(); t > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t)
			defer cancel()
		}
		var err error
		local, err = s.Recognizer.Transcribe(ctx, wavPath)
		return err
	})
	if localErr != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	audio, err := os.ReadFile(wavPath)
	if err != nil {
		return err
	}

	var fb *feedback.QuestionFeedback
	if err := s.stage(ctx, run, "critique", func(ctx context.Context) error {
		var err error
		fb, err = s.Critic.Assess(ctx, run.question, feedback.Attachment{
			Data:     audio,
			MIMEType: "audio/wav",
			Format:   "wav",
		})
		return err
	}); err != nil {
		return err
	}

	var pair *feedback.TranscriptPair
	if err := s.stage(ctx, run, "fuse", func(ctx context.Context) error {
		var err error
		pair, err = s.Fusion.Fuse(ctx, run.question, local, fb.Transcript, localErr)
		return err
	}); err != nil {
		return err
	}
	fb.Transcript = pair.Merged

	row := &model.QuestionFeedback{
		UserID:          in.UserID,
		QuizID:          in.QuizID,
		QuestionIndex:   in.QuestionIndex,
		LocalTranscript: pair.Local,
		Similarity:      pair.Similarity,
		SingleSource:    pair.SingleSource,
		VideoURL:        run.videoURL,
		AudioURL:        run.audioURL,
		Feedback:        datatypes.NewJSONType(*fb),
	}
	if err := s.stage(ctx, run, "persist_feedback", func(ctx context.Context) error {
		return s.Assessments.UpsertFeedback(ctx, row)
	}); err != nil {
		return err
	}

	res.Feedback = fb
	res.Transcript = TranscriptInfo{Similarity: pair.Similarity, SingleSource: pair.SingleSource}
	return nil
}

func (s *AnswerService) persistGesture(ctx context.Context, run *answerRun, result gesture.Result) error {
	in := run.in
	return s.stage(ctx, run, "persist_gesture", func(ctx context.Context) error {
		return s.Assessments.UpsertSession(ctx, in.UserID, in.QuizID, in.QuestionIndex, result)
	})
}

func (s *AnswerService) analyze(ctx context.Context, run *answerRun, videoPath string) (gesture.Result, error) {
	profile := s.Profiles.Load()

	var frames []gesture.Frame
	if err := s.stage(ctx, run, "sample_frames", func(ctx context.Context) error {
		var err error
		frames, err = s.Media.SampleFrames(ctx, videoPath, filepath.Join(run.workDir, "frames"), profile.FrameStride, s.Cfg.Gesture.MaxFrames)
		return err
	}); err != nil {
		return gesture.Result{}, err
	}

	var result gesture.Result
	err := s.stage(ctx, run, "gesture", func(ctx context.Context) error {
		ex, err := s.Frames.ForVideo(ctx, videoPath)
		if err != nil {
			return err
		}
		result, err = s.Runner.Run(ctx, frames, ex)
		return err
	})
	return result, err
}

// AnalyzeVideo runs the gesture pipeline on a local video without storing
// anything.
func (s *AnswerService) AnalyzeVideo(ctx context.Context, videoPath string) (gesture.Result, error) {
	if s.Frames == nil {
		return gesture.Result{}, ErrGestureDisabled
	}
	workDir, err := os.MkdirTemp(s.Cfg.Report.TempDir, "analyze-*")
	if err != nil {
		return gesture.Result{}, err
	}
	defer os.RemoveAll(workDir)

	run := &answerRun{workDir: workDir}
	return s.analyze(ctx, run, videoPath)
}

// stage wraps fn with a span, a duration metric and a structured log line.
func (s *AnswerService) stage(ctx context.Context, run *answerRun, name string, fn func(context.Context) error) error {
	in := run.in
	ctx, span := tracing.Start(ctx, name,
		attribute.Int("user_id", int(in.UserID)),
		attribute.Int("quiz_id", int(in.QuizID)),
		attribute.Int("question_index", in.QuestionIndex),
	)
	start := time.Now()
	err := fn(ctx)
	monitoring.ObserveStage(name, start, err)
	countRecordViolation(err)
	tracing.End(span, err)

	fields := append(logger.Stage(name, in.UserID, in.QuizID, in.QuestionIndex), zap.Duration("duration", time.Since(start)))
	if err != nil {
		logger.Log.Warn("Pipeline stage failed", append(fields, zap.Error(err))...)
	} else {
		logger.Log.Debug("Pipeline stage finished", fields...)
	}
	return err
}
