package controller

import (
	"commsense_backend/internal/util"
	"commsense_backend/pkg/database"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

type HealthController struct {
	DB    *database.Handle
	Redis *redis.Client
	// FFmpegVersion reports the installed ffmpeg, util.GetFFmpegVersion by default.
	FFmpegVersion func() (string, error)
}

func NewHealthController(db *database.Handle, rdb *redis.Client) *HealthController {
	return &HealthController{DB: db, Redis: rdb, FFmpegVersion: util.GetFFmpegVersion}
}

// @Summary Health check
// @Description Reports database, redis and ffmpeg availability
// @Tags system
// @Produce json
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /api/health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	healthy := true
	components := gin.H{}

	db := gin.H{"state": c.DB.State().String(), "status": "up"}
	if err := c.DB.Ping(pingCtx); err != nil {
		db["status"] = "down"
		db["error"] = err.Error()
		healthy = false
	}
	components["database"] = db

	switch {
	case c.Redis == nil:
		components["redis"] = gin.H{"status": "disabled"}
	default:
		if err := c.Redis.Ping(pingCtx).Err(); err != nil {
			components["redis"] = gin.H{"status": "down", "error": err.Error()}
			healthy = false
		} else {
			components["redis"] = gin.H{"status": "up"}
		}
	}

	if version, err := c.FFmpegVersion(); err != nil {
		components["ffmpeg"] = gin.H{"status": "down", "error": err.Error()}
		healthy = false
	} else {
		components["ffmpeg"] = gin.H{"status": "up", "version": version}
	}

	if !healthy {
		ctx.JSON(http.StatusServiceUnavailable, util.Response{
			Code:    http.StatusServiceUnavailable,
			Message: "degraded",
			Data:    gin.H{"status": "degraded", "components": components},
		})
		return
	}
	util.Success(ctx, gin.H{"status": "ok", "components": components})
}
