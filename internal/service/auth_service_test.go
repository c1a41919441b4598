package service

import (
	"college_portal_backend/internal/model"
	"college_portal_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv(t)
	group := e.createGroup(t, "CS-101")

	user, err := e.auth.Register(RegisterRequest{
		Name:      "Alice",
		Email:     "alice@example.com",
		Password:  "s3cret-pass",
		GroupCode: group.Code,
	})
	require.NoError(t, err)
	assert.Equal(t, model.Student, user.Role)
	require.NotNil(t, user.GroupID)
	assert.Equal(t, group.ID, *user.GroupID)
	assert.NotEqual(t, "s3cret-pass", user.Password)

	resp, err := e.auth.Login(LoginRequest{Email: "alice@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	claims, err := util.ParseJWT(resp.Token, e.cfg.JWT.Secret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, model.Student, claims.Role)
}

func TestRegisterRejectsDuplicatesAndUnknownGroups(t *testing.T) {
	e := newEnv(t)

	_, err := e.auth.Register(RegisterRequest{Name: "A", Email: "a@example.com", Password: "password"})
	require.NoError(t, err)

	_, err = e.auth.Register(RegisterRequest{Name: "B", Email: "a@example.com", Password: "password"})
	assert.ErrorIs(t, err, util.ErrEmailRegistered)

	_, err = e.auth.Register(RegisterRequest{Name: "C", Email: "c@example.com", Password: "password", GroupCode: "NOPE"})
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestLoginFailures(t *testing.T) {
	e := newEnv(t)

	user, err := e.auth.Register(RegisterRequest{Name: "A", Email: "a@example.com", Password: "password"})
	require.NoError(t, err)

	_, err = e.auth.Login(LoginRequest{Email: "a@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, util.ErrUserNotFound)

	_, err = e.auth.Login(LoginRequest{Email: "missing@example.com", Password: "password"})
	assert.ErrorIs(t, err, util.ErrUserNotFound)

	require.NoError(t, e.db.Model(&model.User{}).Where("id = ?", user.ID).Update("disabled", true).Error)
	_, err = e.auth.Login(LoginRequest{Email: "a@example.com", Password: "password"})
	assert.ErrorIs(t, err, util.ErrAccessDenied)
}
