package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"commsense_backend/internal/config"
	"commsense_backend/internal/feedback"
	"commsense_backend/internal/gesture"
	"commsense_backend/internal/model"
	"commsense_backend/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const questionFeedbackJSON = `{
	"transcript": "um I led the team uh through the migration",
	"general_feedback": "clear and specific",
	"sentence_structuring_and_grammar": "good",
	"speaking_rate": {"rate": 3, "comment": "steady"},
	"pause_pattern": {"count": 2, "comment": "natural"},
	"filler_word_usage": {"count": 2, "comment": "um, uh"},
	"timestamped_feedback": [{"time": "0:07", "feedback": "pause instead of uh"}],
	"advanced_parameters": {"articulation": "crisp", "enunciation": "good", "tone": "warm", "intelligibility": "high"}
}`

const fusionJSON = `{"similarity": 0.92, "transcript": "um I led the team uh through the migration"}`

const summaryJSON = `{
	"overall_feedback": {"summary": "solid", "key_strengths": "structure", "areas_of_improvement": "fillers"},
	"advanced": {
		"articulation": "crisp", "enunciation": "good", "intelligibility": "high", "tone": "warm",
		"filler_word_usage": {"count": 4, "comment": "um"},
		"pause_pattern": {"count": 4, "comment": "fine"},
		"speaking_rate": {"rate": 3, "comment": "steady"},
		"actionable_recommendations": [{"recommendation": "pause instead of um", "reason": "fillers distract"}],
		"personalized_examples": [{"feedback": "drop uh", "line": "uh through the migration"}]
	}
}`

func graphJSON(n int) string {
	series := make(map[string][]float64, len(feedback.SeriesKeys))
	for _, k := range feedback.SeriesKeys {
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = 3
		}
		series[k] = vals
	}
	raw, _ := json.Marshal(series)
	return string(raw)
}

func questionSetJSON(n int) string {
	qs := make([]string, n)
	for i := range qs {
		qs[i] = fmt.Sprintf("Tell me about challenge %d", i+1)
	}
	raw, _ := json.Marshal(map[string][]string{"questions": qs})
	return string(raw)
}

// scriptedGenerator answers by schema name and counts calls per schema.
type scriptedGenerator struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     map[string]int
	last      map[string]feedback.Request
}

func newScriptedGenerator(responses map[string]string) *scriptedGenerator {
	return &scriptedGenerator{
		responses: responses,
		errs:      map[string]error{},
		calls:     map[string]int{},
		last:      map[string]feedback.Request{},
	}
}

func (g *scriptedGenerator) Generate(_ context.Context, req feedback.Request) (json.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	name := req.Schema.Name
	g.calls[name]++
	g.last[name] = req
	if err := g.errs[name]; err != nil {
		return nil, err
	}
	raw, ok := g.responses[name]
	if !ok {
		return nil, fmt.Errorf("unexpected schema %s", name)
	}
	return json.RawMessage(raw), nil
}

func (g *scriptedGenerator) count(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[name]
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		JWT:        config.JWTConfig{Secret: "test-secret-test-secret-test-secret", ExpireTime: 0},
		Recognizer: config.RecognizerConfig{Kind: config.RecognizerHTTP, TimeoutSeconds: 5},
		Gesture:    config.GestureConfig{Enabled: true, Workers: 2, MaxFrames: 50},
		Quiz:       config.QuizConfig{QuestionCount: 2},
		Report:     config.ReportConfig{TempDir: t.TempDir()},
	}
}

// wavBytes is the smallest header that sniffs as audio/wav.
func wavBytes() []byte {
	b := []byte("RIFF\x24\x00\x00\x00WAVEfmt ")
	return append(b, make([]byte, 32)...)
}

// mp4Bytes is an ftyp box that sniffs as video/mp4.
func mp4Bytes() []byte {
	b := []byte{0, 0, 0, 0x18}
	b = append(b, []byte("ftypisom")...)
	b = append(b, 0, 0, 2, 0)
	b = append(b, []byte("isomiso2")...)
	return append(b, make([]byte, 32)...)
}

func writeFile(t *testing.T, name string, data []byte) *MediaFile {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return &MediaFile{Path: p, Filename: name}
}

type memoryUploader struct {
	mu    sync.Mutex
	files map[string]string
}

func (u *memoryUploader) UploadFile(_ context.Context, filename, localPath, contentType string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.files == nil {
		u.files = map[string]string{}
	}
	u.files[filename] = contentType
	return "https://cdn.test/" + filename, nil
}

// fakeMedia copies the source as the extracted audio and returns count empty
// frames.
type fakeMedia struct {
	frames int
}

func (m fakeMedia) ExtractAudio(_ context.Context, src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func (m fakeMedia) SampleFrames(_ context.Context, _, dir string, stride, _ int) ([]gesture.Frame, error) {
	frames := make([]gesture.Frame, m.frames)
	for i := range frames {
		frames[i] = gesture.Frame{Index: i * stride, Path: filepath.Join(dir, fmt.Sprintf("frame_%05d.jpg", i+1))}
	}
	return frames, nil
}

type recognizerFunc func(ctx context.Context, wavPath string) (string, error)

func (fn recognizerFunc) Transcribe(ctx context.Context, wavPath string) (string, error) {
	return fn(ctx, wavPath)
}

type frameSourceFunc func(ctx context.Context, videoPath string) (gesture.Extractor, error)

func (fn frameSourceFunc) ForVideo(ctx context.Context, videoPath string) (gesture.Extractor, error) {
	return fn(ctx, videoPath)
}

func seedQuiz(t *testing.T, db *gorm.DB, userID uint, questions ...string) *model.Quiz {
	t.Helper()
	quiz := &model.Quiz{UserID: userID}
	for i, q := range questions {
		quiz.Questions = append(quiz.Questions, model.QuizQuestion{Position: i, Text: q})
	}
	require.NoError(t, repository.NewQuizRepository(db).Create(context.Background(), quiz))
	return quiz
}
