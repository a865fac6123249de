package controller

import (
	"commsense_backend/internal/config"
	"commsense_backend/internal/service"
	"commsense_backend/internal/util"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
)

type AnswerController struct {
	Service *service.AnswerService
	Cfg     *config.Config
}

func NewAnswerController(svc *service.AnswerService, cfg *config.Config) *AnswerController {
	return &AnswerController{Service: svc, Cfg: cfg}
}

// @Summary Submit a recorded answer
// @Description Stores the recording, critiques the speech, fuses transcripts and analyzes gestures when video is present
// @Tags answers
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param quiz_id formData int true "Quiz ID"
// @Param question_index formData int true "Zero-based question index"
// @Param video_file formData file false "Video recording"
// @Param audio_file formData file false "Audio recording"
// @Success 200 {object} util.Response{data=service.AnswerResult}
// @Failure 400 {object} util.Response
// @Failure 502 {object} util.Response "Invalid generator response"
// @Failure 503 {object} util.Response "Recognizer unavailable"
// @Router /api/save-video [post]
func (c *AnswerController) SaveVideo(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	if c.Cfg.Server.MaxUploadMB > 0 {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, int64(c.Cfg.Server.MaxUploadMB)<<20)
	}

	quizID, ok := util.ParseID(ctx.PostForm("quiz_id"))
	if !ok {
		util.BadRequest(ctx, "invalid quiz_id")
		return
	}
	index, err := strconv.Atoi(ctx.PostForm("question_index"))
	if err != nil {
		util.BadRequest(ctx, "invalid question_index")
		return
	}

	dir, err := os.MkdirTemp(c.Cfg.Report.TempDir, "upload-*")
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer os.RemoveAll(dir)

	video, err := c.saveUpload(ctx, "video_file", dir)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	audio, err := c.saveUpload(ctx, "audio_file", dir)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	res, err := c.Service.Submit(ctx.Request.Context(), service.AnswerInput{
		UserID:        claims.UserID,
		QuizID:        quizID,
		QuestionIndex: index,
		Video:         video,
		Audio:         audio,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// saveUpload copies the named form file into dir. A missing field is not an
// error.
func (c *AnswerController) saveUpload(ctx *gin.Context, field, dir string) (*service.MediaFile, error) {
	fh, err := ctx.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return saveFile(ctx, fh, filepath.Join(dir, field))
}

func saveFile(ctx *gin.Context, fh *multipart.FileHeader, dst string) (*service.MediaFile, error) {
	if err := ctx.SaveUploadedFile(fh, dst); err != nil {
		return nil, err
	}
	return &service.MediaFile{Path: dst, Filename: filepath.Base(fh.Filename)}, nil
}
