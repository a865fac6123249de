package controller

import (
	"commsense_backend/internal/service"
	"commsense_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LearningController struct {
	Service *service.LearningService
}

func NewLearningController(svc *service.LearningService) *LearningController {
	return &LearningController{Service: svc}
}

type LearnPromptRequest struct {
	Input string `json:"input" binding:"required"`
}

// @Summary Create a learning plan
// @Tags learning
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body LearnPromptRequest true "What the learner wants to improve"
// @Success 201 {object} util.Response{data=model.LearningPlan}
// @Failure 400 {object} util.Response
// @Router /api/learn-prompt [post]
func (c *LearningController) CreatePlan(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	var req LearnPromptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	plan, err := c.Service.CreatePlan(ctx.Request.Context(), claims.UserID, req.Input)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, plan)
}

// @Summary Learning plan history
// @Tags learning
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.LearningPlan}
// @Router /api/learn-history [get]
func (c *LearningController) History(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	plans, err := c.Service.History(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, plans)
}
