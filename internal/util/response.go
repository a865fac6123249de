package util

import (
	"context"
	"errors"
	"net/http"

	"commsense_backend/internal/feedback"
	"commsense_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	InternalServerError(c)
}

// HandleError maps a service error onto the response envelope.
func HandleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, feedback.ErrSchemaViolation):
		logger.Log.Error("Generative response rejected", zap.String("path", c.FullPath()), zap.Error(err))
		Error(c, http.StatusBadGateway, "assessment service returned an invalid response")
	case errors.Is(err, feedback.ErrLocalTranscriptUnavailable), errors.Is(err, ErrServiceUnconfigured):
		logger.Log.Warn("Dependency unavailable", zap.String("path", c.FullPath()), zap.Error(err))
		Error(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		logger.Log.Warn("Request timed out", zap.String("path", c.FullPath()), zap.Error(err))
		Error(c, http.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, ErrIncompleteQuiz), errors.Is(err, ErrSummaryMissing), errors.Is(err, ErrUserExists):
		Conflict(c, err.Error())
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrTokenRevoked):
		Error(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrQuizNotFound), errors.Is(err, ErrUserNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c)
	case errors.Is(err, ErrInvalidQuestion),
		errors.Is(err, ErrMissingMedia),
		errors.Is(err, ErrUnsupportedMedia),
		errors.Is(err, feedback.ErrQuestionCount),
		errors.Is(err, feedback.ErrInvalidRecord),
		errors.Is(err, feedback.ErrEmptyAudio):
		BadRequest(c, err.Error())
	default:
		LogInternalError(c, err)
	}
}
