package controller

import (
	"college_portal_backend/internal/model"
	"college_portal_backend/internal/repository"
	"college_portal_backend/internal/service"
	"college_portal_backend/internal/util"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type TestController struct {
	TestingService *service.TestingService
	AttemptService *service.AttemptService
	Users          *repository.UserRepository
}

func NewTestController(testingService *service.TestingService, attemptService *service.AttemptService, users *repository.UserRepository) *TestController {
	return &TestController{TestingService: testingService, AttemptService: attemptService, Users: users}
}

func parseID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil || id == 0 {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// handleCatalogError maps catalog-level sentinel errors onto HTTP replies.
func handleCatalogError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrTestNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrValidation):
		util.BadRequest(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// ListTests godoc
// @Summary Tests visible to the caller
// @Description Students see tests granted to their group, teachers their own, admins everything.
// @Tags tests
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.TestView}
// @Router /api/tests [get]
func (c *TestController) ListTests(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	groupID, err := c.callerGroup(claims)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	views, err := c.TestingService.ListTests(claims.Role, claims.UserID, groupID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, views)
}

// GetTest godoc
// @Summary A single test with its questions
// @Description Correct answers are included for teachers and admins only.
// @Tags tests
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Test ID"
// @Success 200 {object} util.Response{data=service.TestView}
// @Failure 404 {object} util.Response
// @Router /api/tests/{id} [get]
func (c *TestController) GetTest(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	testID, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	grader := claims.Role != model.Student
	view, err := c.TestingService.GetTest(testID, grader)
	if err != nil {
		handleCatalogError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// CreateTest godoc
// @Summary Create a test with questions and group grants
// @Tags teacher
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.TestCreateRequest true "Test definition"
// @Success 201 {object} util.Response{data=service.TestView}
// @Failure 400 {object} util.Response
// @Router /api/teacher/tests [post]
func (c *TestController) CreateTest(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.TestCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	view, err := c.TestingService.CreateTest(claims.UserID, req)
	if err != nil {
		handleCatalogError(ctx, err)
		return
	}
	util.Created(ctx, view)
}

// UpdateTest godoc
// @Summary Patch a test and reconcile its questions
// @Tags teacher
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Test ID"
// @Param   body body service.TestUpdateRequest true "Fields to change"
// @Success 200 {object} util.Response{data=service.TestView}
// @Failure 404 {object} util.Response
// @Router /api/teacher/tests/{id}/patch [post]
func (c *TestController) UpdateTest(ctx *gin.Context) {
	testID, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	var req service.TestUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	view, err := c.TestingService.UpdateTest(testID, req)
	if err != nil {
		handleCatalogError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// DeleteTest godoc
// @Summary Delete a test with its questions, grants and attempts
// @Tags teacher
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Test ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/teacher/tests/{id}/delete [post]
func (c *TestController) DeleteTest(ctx *gin.Context) {
	testID, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	if err := c.TestingService.DeleteTest(testID); err != nil {
		handleCatalogError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": testID})
}

type AssignGroupsRequest struct {
	GroupIDs []uint `json:"groupIds"`
}

// AssignGroups godoc
// @Summary Replace the groups a test is visible to
// @Tags teacher
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Test ID"
// @Param   body body AssignGroupsRequest true "Group ids"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/teacher/tests/{id}/assign [post]
func (c *TestController) AssignGroups(ctx *gin.Context) {
	testID, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	var req AssignGroupsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.TestingService.AssignGroups(testID, req.GroupIDs); err != nil {
		handleCatalogError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"testId": testID, "groupIds": req.GroupIDs})
}

// ListAttempts godoc
// @Summary All attempts of a test, newest first
// @Tags teacher
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Test ID"
// @Success 200 {object} util.Response{data=[]model.TestAttempt}
// @Failure 404 {object} util.Response
// @Router /api/teacher/tests/{id}/attempts [get]
func (c *TestController) ListAttempts(ctx *gin.Context) {
	testID, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	attempts, err := c.AttemptService.ListByTest(testID)
	if err != nil {
		handleCatalogError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

// Summary godoc
// @Summary Aggregated results of a test
// @Description Per-student latest attempt plus headline totals. Cached briefly.
// @Tags teacher
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "Test ID"
// @Success 200 {object} util.Response{data=service.TestSummary}
// @Failure 404 {object} util.Response
// @Router /api/teacher/tests/{id}/summary [get]
func (c *TestController) Summary(ctx *gin.Context) {
	testID, ok := parseID(ctx, "id")
	if !ok {
		return
	}

	summary, err := c.TestingService.Summary(ctx.Request.Context(), testID)
	if err != nil {
		handleCatalogError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// callerGroup resolves a student's group for catalog filtering; teachers
// and admins do not need one.
func (c *TestController) callerGroup(claims *util.Claims) (*uint, error) {
	if claims.Role != model.Student {
		return nil, nil
	}
	user, err := c.Users.FindByID(claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user.GroupID, nil
}
