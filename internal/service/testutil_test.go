package service

import (
	"college_portal_backend/internal/config"
	"college_portal_backend/internal/model"
	"college_portal_backend/internal/repository"
	"college_portal_backend/pkg/database"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type env struct {
	db       *gorm.DB
	cfg      *config.Config
	users    *repository.UserRepository
	groups   *repository.GroupRepository
	tests    *repository.TestRepository
	attempts *repository.AttemptRepository

	auth    *AuthService
	tokens  *AttemptTokenService
	attempt *AttemptService
	testing *TestingService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	// One shared in-memory database per test, named after it so parallel
	// tests never collide. The busy timeout keeps concurrent writers from
	// failing immediately under shared-cache contention.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		Server:  config.ServerConfig{Mode: "debug"},
		JWT:     config.JWTConfig{Secret: "unit-test-secret", ExpireTime: time.Hour},
		Attempt: config.AttemptConfig{TokenSecret: "unit-test-attempt-secret", SummaryCacheTTL: 30},
	}

	e := &env{
		db:       db,
		cfg:      cfg,
		users:    repository.NewUserRepository(db),
		groups:   repository.NewGroupRepository(db),
		tests:    repository.NewTestRepository(db, nil),
		attempts: repository.NewAttemptRepository(db),
	}
	e.auth = NewAuthService(e.users, e.groups, cfg)
	e.tokens = NewAttemptTokenService(cfg)
	e.attempt = NewAttemptService(e.attempts, e.tests, e.users, e.tokens)
	e.testing = NewTestingService(e.tests, e.attempts, e.groups, cfg)
	return e
}

func (e *env) createGroup(t *testing.T, code string) *model.Group {
	t.Helper()
	group := &model.Group{Code: code, Title: "Group " + code}
	require.NoError(t, e.groups.Create(group))
	return group
}

func (e *env) createStudent(t *testing.T, email string, groupID *uint) *model.User {
	t.Helper()
	user := &model.User{
		Name:     "Student " + email,
		Email:    email,
		Password: "irrelevant",
		Role:     model.Student,
		GroupID:  groupID,
	}
	require.NoError(t, e.users.Create(user))
	return user
}

func (e *env) createTeacher(t *testing.T, email string) *model.User {
	t.Helper()
	user := &model.User{
		Name:     "Teacher " + email,
		Email:    email,
		Password: "irrelevant",
		Role:     model.Teacher,
	}
	require.NoError(t, e.users.Create(user))
	return user
}

func raw(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// createChoiceTest seeds a single-choice test granted to the given group
// and returns the view with question ids resolved.
func (e *env) createChoiceTest(t *testing.T, creatorID uint, groupID uint, maxAttempts int) *TestView {
	t.Helper()
	view, err := e.testing.CreateTest(creatorID, TestCreateRequest{
		Title:       "Basics",
		MaxAttempts: maxAttempts,
		GroupIDs:    []uint{groupID},
		Questions: []QuestionPayload{
			{
				Type:           model.QuestionChoice,
				Text:           "2+2?",
				Options:        raw(t, []string{"3", "4", "5"}),
				CorrectAnswers: raw(t, []string{"4"}),
				Points:         10,
			},
		},
	})
	require.NoError(t, err)
	return view
}

// backdateAttempt rewrites an attempt's start time to simulate the passage
// of time.
func (e *env) backdateAttempt(t *testing.T, attemptID uint, startedAt time.Time) {
	t.Helper()
	err := e.db.Model(&model.TestAttempt{}).
		Where("id = ?", attemptID).
		Update("started_at", startedAt).Error
	require.NoError(t, err)
}
