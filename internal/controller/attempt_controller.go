package controller

import (
	"college_portal_backend/internal/model"
	"college_portal_backend/internal/service"
	"college_portal_backend/internal/util"
	"errors"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService *service.AttemptService
}

func NewAttemptController(attemptService *service.AttemptService) *AttemptController {
	return &AttemptController{AttemptService: attemptService}
}

// handleAttemptError maps lifecycle sentinel errors onto HTTP replies.
// Ownership mismatches arrive as not-found so the handler cannot leak
// whether a foreign attempt exists.
func handleAttemptError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrTestNotFound),
		errors.Is(err, util.ErrAttemptNotFound),
		errors.Is(err, util.ErrUserNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrAccessDenied):
		util.Error(ctx, 403, err.Error())
	case errors.Is(err, util.ErrTestDisabled),
		errors.Is(err, util.ErrDeadlinePassed),
		errors.Is(err, util.ErrAttemptLimitExceeded),
		errors.Is(err, util.ErrAttemptFinished),
		errors.Is(err, util.ErrAttemptNotReviewable),
		errors.Is(err, util.ErrInvalidAttemptToken),
		errors.Is(err, util.ErrValidation):
		util.BadRequest(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// StartAttempt godoc
// @Summary Start a new attempt on a test
// @Description Returns the attempt token the client must present on submit.
// @Tags attempts
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Test ID"
// @Success 201 {object} util.Response{data=service.StartResult}
// @Failure 400 {object} util.Response
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/tests/{id}/start [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	testID, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	result, err := c.AttemptService.Start(testID, claims.UserID)
	if err != nil {
		handleAttemptError(ctx, err)
		return
	}
	util.Created(ctx, result)
}

type SubmitRequest struct {
	AttemptID    uint                   `json:"attemptId" binding:"required"`
	AttemptToken string                 `json:"attemptToken" binding:"required"`
	Answers      map[string]interface{} `json:"answers"`
}

// SubmitAttempt godoc
// @Summary Submit answers for a running attempt
// @Description A submission past the deadline or duration is stored as expired without an automatic score.
// @Tags attempts
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Test ID"
// @Param   body body SubmitRequest true "Attempt token and answers"
// @Success 200 {object} util.Response{data=model.TestAttempt}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/tests/{id}/submit [post]
func (c *AttemptController) SubmitAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	testID, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	var req SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if req.Answers == nil {
		req.Answers = map[string]interface{}{}
	}

	attempt, err := c.AttemptService.Submit(testID, req.AttemptID, claims.UserID, req.AttemptToken, req.Answers)
	if err != nil {
		handleAttemptError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// GetAttempt godoc
// @Summary Attempt detail with per-question scores
// @Description Students can read only their own attempts; teachers also receive the correct answers.
// @Tags attempts
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Attempt ID"
// @Success 200 {object} util.Response{data=service.AttemptDetail}
// @Failure 404 {object} util.Response
// @Router /api/attempts/{id} [get]
func (c *AttemptController) GetAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	attemptID, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	grader := claims.Role != model.Student
	detail, err := c.AttemptService.Detail(attemptID, claims.UserID, grader)
	if err != nil {
		handleAttemptError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

type ReviewRequest struct {
	TeacherScore int    `json:"teacherScore"`
	Comment      string `json:"comment"`
}

// ReviewAttempt godoc
// @Summary Record a grader's verdict on a finished attempt
// @Description Re-reviewing replaces the previous score and comment.
// @Tags teacher
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Attempt ID"
// @Param   body body ReviewRequest true "Score and comment"
// @Success 200 {object} util.Response{data=model.TestAttempt}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/teacher/attempts/{id}/review [post]
func (c *AttemptController) ReviewAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	attemptID, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	var req ReviewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, err := c.AttemptService.Review(attemptID, claims.UserID, req.TeacherScore, req.Comment)
	if err != nil {
		handleAttemptError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}
