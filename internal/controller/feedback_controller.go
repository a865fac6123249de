package controller

import (
	"bytes"
	"commsense_backend/internal/service"
	"commsense_backend/internal/util"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type FeedbackController struct {
	Summaries *service.SummaryService
	Reports   *service.ReportService
}

func NewFeedbackController(summaries *service.SummaryService, reports *service.ReportService) *FeedbackController {
	return &FeedbackController{Summaries: summaries, Reports: reports}
}

type FinalFeedbackRequest struct {
	QuizID uint `json:"quiz_id" binding:"required"`
}

// @Summary Final feedback
// @Description Summarizes every answer of a completed quiz
// @Tags feedback
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body FinalFeedbackRequest true "Quiz"
// @Success 200 {object} util.Response{data=feedback.QuizSummary}
// @Failure 409 {object} util.Response "Quiz has unanswered questions"
// @Failure 502 {object} util.Response "Invalid generator response"
// @Router /api/final-feedback [post]
func (c *FeedbackController) FinalFeedback(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	var req FinalFeedbackRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	summary, err := c.Summaries.FinalFeedback(ctx.Request.Context(), claims.UserID, req.QuizID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// @Summary Graph series
// @Description Per-question series for every tracked metric, recomputed on each call
// @Tags feedback
// @Produce json
// @Security BearerAuth
// @Param quizId path int true "Quiz ID"
// @Success 200 {object} util.Response{data=feedback.GraphBundle}
// @Router /api/quizzes/{quizId}/graphs [get]
func (c *FeedbackController) Graphs(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	quizID, ok := util.ParseID(ctx.Param("quizId"))
	if !ok {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	bundle, err := c.Summaries.GraphBundle(ctx.Request.Context(), claims.UserID, quizID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, bundle)
}

// @Summary Feedback history
// @Tags feedback
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum entries"
// @Success 200 {object} util.Response{data=[]service.HistoryEntry}
// @Router /api/history [get]
func (c *FeedbackController) History(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "0"))

	entries, err := c.Summaries.History(ctx.Request.Context(), claims.UserID, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, entries)
}

// @Summary Export report
// @Description Renders the quiz report as a PDF attachment
// @Tags feedback
// @Produce application/pdf
// @Security BearerAuth
// @Param quizId path int true "Quiz ID"
// @Success 200 {file} file
// @Failure 409 {object} util.Response "No final feedback yet"
// @Router /api/quizzes/{quizId}/report [get]
func (c *FeedbackController) Report(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	quizID, ok := util.ParseID(ctx.Param("quizId"))
	if !ok {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	var buf bytes.Buffer
	if _, err := c.Reports.Export(ctx.Request.Context(), claims.UserID, quizID, &buf); err != nil {
		util.HandleError(ctx, err)
		return
	}

	ctx.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="assessment-report-%d.pdf"`, quizID))
	ctx.Data(http.StatusOK, util.MimePDF, buf.Bytes())
}
