package controller

import (
	"commsense_backend/internal/service"
	"commsense_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	Service *service.QuizService
}

func NewQuizController(svc *service.QuizService) *QuizController {
	return &QuizController{Service: svc}
}

// @Summary Generate a quiz
// @Description Generates a new set of interview questions and stores them as a quiz
// @Tags quiz
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.GeneratedQuiz}
// @Failure 502 {object} util.Response "Invalid generator response"
// @Router /api/generate-questions [get]
func (c *QuizController) Generate(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	quiz, err := c.Service.Generate(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// @Summary Quiz detail
// @Description Returns the quiz questions with stored feedback and gesture analyses
// @Tags quiz
// @Produce json
// @Security BearerAuth
// @Param quizId path int true "Quiz ID"
// @Success 200 {object} util.Response{data=service.QuizDetail}
// @Failure 404 {object} util.Response
// @Router /api/quizzes/{quizId} [get]
func (c *QuizController) Detail(ctx *gin.Context) {
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

	detail, err := c.Service.Detail(ctx.Request.Context(), claims.UserID, quizID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}
