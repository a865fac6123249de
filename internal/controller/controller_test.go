package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"commsense_backend/internal/config"
	"commsense_backend/internal/feedback"
	"commsense_backend/internal/gesture"
	"commsense_backend/internal/middleware"
	"commsense_backend/internal/model"
	"commsense_backend/internal/repository"
	"commsense_backend/internal/service"
	"commsense_backend/internal/util"
	"commsense_backend/pkg/database"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		JWT:     config.JWTConfig{Secret: "controller-test-secret-with-32-chars!", ExpireTime: time.Hour},
		Server:  config.ServerConfig{MaxUploadMB: 1},
		Gesture: config.GestureConfig{Workers: 1, MaxFrames: 10},
		Quiz:    config.QuizConfig{QuestionCount: 2},
		Report:  config.ReportConfig{TempDir: t.TempDir()},
	}
}

// asUser stands in for the auth middleware.
func asUser(id uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user", &util.Claims{UserID: id})
		c.Next()
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) util.Response {
	t.Helper()
	var resp util.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func jsonRequest(method, path string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAuthFlow(t *testing.T) {
	cfg := testConfig(t)
	auth := service.NewAuthService(repository.NewUserRepository(newTestDB(t)), cfg, nil)
	ctl := NewAuthController(auth)

	r := gin.New()
	r.POST("/api/register", ctl.Register)
	r.POST("/api/login", ctl.Login)
	authed := r.Group("/api", middleware.AuthMiddleware(cfg, auth))
	authed.GET("/me", ctl.Me)
	authed.POST("/logout", ctl.Logout)

	register := map[string]string{"username": "ana", "email": "Ana@Example.com", "password": "password123"}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/register", register))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/register", register))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/login", map[string]string{"identifier": "ana", "password": "wrong-password"}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/login", map[string]string{"identifier": "ana@example.com", "password": "password123"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := decode(t, w).Data.(map[string]any)["token"].(string)
	require.NotEmpty(t, token)

	get := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w = get(http.MethodGet, "/api/me")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ana", decode(t, w).Data.(map[string]any)["username"])

	assert.Equal(t, http.StatusOK, get(http.MethodPost, "/api/logout").Code)
	assert.Equal(t, http.StatusUnauthorized, get(http.MethodGet, "/api/me").Code)
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	cfg := testConfig(t)
	r := gin.New()
	r.GET("/api/me", middleware.AuthMiddleware(cfg, nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func questionGenerator() feedback.Generator {
	return feedback.GeneratorFunc(func(_ context.Context, req feedback.Request) (json.RawMessage, error) {
		if req.Schema.Name != "question_set" {
			return nil, errors.New("unexpected schema " + req.Schema.Name)
		}
		return json.RawMessage(`{"questions":["Tell me about yourself.","Describe a conflict you resolved."]}`), nil
	})
}

func TestQuizEndpoints(t *testing.T) {
	db := newTestDB(t)
	svc := service.NewQuizService(questionGenerator(), repository.NewQuizRepository(db), repository.NewAssessmentRepository(db), 2)
	ctl := NewQuizController(svc)

	r := gin.New()
	r.GET("/anon/generate-questions", ctl.Generate)
	u1 := r.Group("/u1", asUser(1))
	u1.GET("/generate-questions", ctl.Generate)
	u1.GET("/quizzes/:quizId", ctl.Detail)
	u2 := r.Group("/u2", asUser(2))
	u2.GET("/quizzes/:quizId", ctl.Detail)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/anon/generate-questions", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/u1/generate-questions", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w).Data.(map[string]any)
	assert.Len(t, data["questions"], 2)
	quizID := uint(data["quiz_id"].(float64))
	require.NotZero(t, quizID)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/u1/quizzes/%d", quizID), nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/u2/quizzes/%d", quizID), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/u1/quizzes/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func multipartRequest(t *testing.T, fields map[string]string, files map[string][]byte) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile(name, name+".bin")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/save-video", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestSaveVideoValidation(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig(t)
	answers := service.NewAnswerService(
		repository.NewQuizRepository(db),
		repository.NewAssessmentRepository(db),
		nil, nil, nil, nil,
		questionGenerator(),
		gesture.NewProfileStore(gesture.DefaultProfile()),
		cfg,
	)
	ctl := NewAnswerController(answers, cfg)

	r := gin.New()
	r.POST("/api/save-video", asUser(1), ctl.SaveVideo)

	tests := []struct {
		name   string
		fields map[string]string
		files  map[string][]byte
		want   int
	}{
		{"missing quiz id", map[string]string{"question_index": "0"}, nil, http.StatusBadRequest},
		{"bad question index", map[string]string{"quiz_id": "1", "question_index": "first"}, nil, http.StatusBadRequest},
		{"no media", map[string]string{"quiz_id": "1", "question_index": "0"}, nil, http.StatusBadRequest},
		{"unknown quiz", map[string]string{"quiz_id": "42", "question_index": "0"}, map[string][]byte{"audio_file": []byte("RIFF")}, http.StatusNotFound},
		{"too large", map[string]string{"quiz_id": "1", "question_index": "0"}, map[string][]byte{"video_file": make([]byte, 2<<20)}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, multipartRequest(t, tt.fields, tt.files))
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestHealthCheck(t *testing.T) {
	handle := database.NewHandle(config.DatabaseConfig{Driver: config.DriverSQLite, Path: "file:health?mode=memory&cache=shared", LogLevel: "silent"})
	require.NoError(t, handle.Open(context.Background()))

	ctl := NewHealthController(handle, nil)
	ctl.FFmpegVersion = func() (string, error) { return "ffmpeg version 6.1", nil }

	r := gin.New()
	r.GET("/api/health", ctl.HealthCheck)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decode(t, w).Data.(map[string]any)
	assert.Equal(t, "ok", data["status"])

	require.NoError(t, handle.Close())
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
