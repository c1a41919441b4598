package service

import (
	"college_portal_backend/internal/model"
	"college_portal_backend/internal/repository"
	"college_portal_backend/internal/util"
	"college_portal_backend/pkg/logger"
	"college_portal_backend/pkg/monitoring"
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AttemptService drives the attempt lifecycle: start, submit, review.
type AttemptService struct {
	Attempts *repository.AttemptRepository
	Tests    *repository.TestRepository
	Users    *repository.UserRepository
	Tokens   *AttemptTokenService
}

func NewAttemptService(attempts *repository.AttemptRepository, tests *repository.TestRepository, users *repository.UserRepository, tokens *AttemptTokenService) *AttemptService {
	return &AttemptService{Attempts: attempts, Tests: tests, Users: users, Tokens: tokens}
}

// StartResult is returned to the student when an attempt opens.
type StartResult struct {
	AttemptID     uint       `json:"attemptId"`
	AttemptNumber int        `json:"attemptNumber"`
	AttemptToken  string     `json:"attemptToken"`
	StartedAt     time.Time  `json:"startedAt"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	MustFinishAt  *time.Time `json:"mustFinishAt,omitempty"`
}

// AttemptDetail is the graded view of a finished (or running) attempt.
type AttemptDetail struct {
	Attempt           *model.TestAttempt         `json:"attempt"`
	Answers           map[string]interface{}     `json:"answers"`
	PerQuestionScores map[string]int             `json:"perQuestionScores"`
	TotalScore        int                        `json:"totalScore"`
	MaxScore          int                        `json:"maxScore"`
	EffectiveScore    *int                       `json:"effectiveScore"`
	CorrectAnswers    map[string]json.RawMessage `json:"correctAnswers,omitempty"`
}

// MustFinishAt derives the hard finish time of an attempt: start plus the
// test's duration, clamped to the test deadline. Nil when the test is
// untimed.
func MustFinishAt(startedAt time.Time, test *model.Test) *time.Time {
	if test.DurationMinutes == nil || *test.DurationMinutes <= 0 {
		return nil
	}
	mf := startedAt.Add(time.Duration(*test.DurationMinutes) * time.Minute)
	if test.Deadline != nil && mf.After(*test.Deadline) {
		mf = *test.Deadline
	}
	return &mf
}

// Start opens a new attempt after checking group access, test activity,
// the deadline and the attempt limit.
func (s *AttemptService) Start(testID, studentID uint) (*StartResult, error) {
	student, err := s.Users.FindByID(studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}

	test, err := s.Tests.FindByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTestNotFound
		}
		return nil, err
	}

	if student.GroupID == nil {
		return nil, util.ErrAccessDenied
	}
	granted, err := s.Tests.HasGroupAccess(testID, *student.GroupID)
	if err != nil {
		return nil, err
	}
	if !granted {
		return nil, util.ErrAccessDenied
	}

	if !test.IsActive {
		return nil, util.ErrTestDisabled
	}

	now := time.Now().UTC()
	if test.Deadline != nil && now.After(*test.Deadline) {
		return nil, util.ErrDeadlinePassed
	}

	maxAttempts := test.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempt, err := s.Attempts.CreateStarted(testID, studentID, maxAttempts, func(attemptID uint) string {
		return s.Tokens.Generate(attemptID, studentID, testID)
	})
	if err != nil {
		return nil, err
	}

	monitoring.AttemptEvents.WithLabelValues("started").Inc()
	logger.Log.Info("attempt started",
		zap.Uint("testId", testID),
		zap.Uint("studentId", studentID),
		zap.Uint("attemptId", attempt.ID),
		zap.Int("attemptNumber", attempt.AttemptNumber))

	return &StartResult{
		AttemptID:     attempt.ID,
		AttemptNumber: attempt.AttemptNumber,
		AttemptToken:  *attempt.AttemptToken,
		StartedAt:     attempt.StartedAt,
		Deadline:      test.Deadline,
		MustFinishAt:  MustFinishAt(attempt.StartedAt, test),
	}, nil
}

// Submit closes a running attempt. A valid token is required; a late
// submission is recorded as expired with the answers kept but no automatic
// score. The status transition is atomic, so a raced double submit loses
// cleanly.
func (s *AttemptService) Submit(testID, attemptID, studentID uint, token string, answers map[string]interface{}) (*model.TestAttempt, error) {
	attempt, err := s.Attempts.FindOwned(attemptID, studentID, testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}

	if attempt.Status != model.AttemptStarted {
		return nil, util.ErrAttemptFinished
	}
	if attempt.AttemptToken == nil ||
		!s.Tokens.Verify(token, attemptID, studentID, testID) ||
		token != *attempt.AttemptToken {
		return nil, util.ErrInvalidAttemptToken
	}

	test, err := s.Tests.FindByID(testID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expired := test.Deadline != nil && now.After(*test.Deadline)
	if !expired {
		if mf := MustFinishAt(attempt.StartedAt, test); mf != nil && now.After(*mf) {
			expired = true
		}
	}

	rawAnswers, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"answers":       json.RawMessage(rawAnswers),
		"finished_at":   now,
		"attempt_token": nil,
	}
	if expired {
		updates["status"] = model.AttemptExpired
	} else {
		updates["status"] = model.AttemptSubmitted
		updates["auto_score"] = EvaluateAuto(test.Questions, answers)
	}

	if err := s.Attempts.FinalizeStarted(attemptID, updates); err != nil {
		return nil, err
	}

	event := "submitted"
	if expired {
		event = "expired"
	}
	monitoring.AttemptEvents.WithLabelValues(event).Inc()
	s.Tests.InvalidateSummary(context.Background(), testID)
	logger.Log.Info("attempt finished",
		zap.Uint("attemptId", attemptID),
		zap.Uint("studentId", studentID),
		zap.String("status", event))

	return s.Attempts.FindByID(attemptID)
}

// Review records a grader's verdict on a finished attempt. Reviewing the
// same attempt again simply replaces score and comment.
func (s *AttemptService) Review(attemptID, reviewerID uint, teacherScore int, comment string) (*model.TestAttempt, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	if teacherScore < 0 {
		return nil, util.ErrValidation
	}

	if err := s.Attempts.Review(attemptID, teacherScore, comment, reviewerID); err != nil {
		return nil, err
	}

	monitoring.AttemptEvents.WithLabelValues("reviewed").Inc()
	s.Tests.InvalidateSummary(context.Background(), attempt.TestID)
	logger.Log.Info("attempt reviewed",
		zap.Uint("attemptId", attemptID),
		zap.Uint("reviewerId", reviewerID),
		zap.Int("teacherScore", teacherScore))

	return s.Attempts.FindByID(attemptID)
}

// Detail re-scores the stored answers for display. Students only see their
// own attempts; graders additionally get the correct-answer payloads.
func (s *AttemptService) Detail(attemptID, callerID uint, grader bool) (*AttemptDetail, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	if !grader && attempt.StudentID != callerID {
		// Someone else's attempt is indistinguishable from a missing one.
		return nil, util.ErrAttemptNotFound
	}

	test, err := s.Tests.FindByID(attempt.TestID)
	if err != nil {
		return nil, err
	}

	answers := map[string]interface{}{}
	if len(attempt.Answers) > 0 {
		if err := json.Unmarshal(attempt.Answers, &answers); err != nil {
			return nil, err
		}
	}

	perQuestion := EvaluateAutoDetailed(test.Questions, answers)
	total := 0
	for _, v := range perQuestion {
		total += v
	}

	detail := &AttemptDetail{
		Attempt:           attempt,
		Answers:           answers,
		PerQuestionScores: perQuestion,
		TotalScore:        total,
		MaxScore:          MaxScore(test.Questions),
		EffectiveScore:    attempt.EffectiveScore(),
	}
	if grader {
		detail.CorrectAnswers = make(map[string]json.RawMessage, len(test.Questions))
		for _, q := range test.Questions {
			detail.CorrectAnswers[questionKey(q.ID)] = q.CorrectAnswers
		}
	}
	return detail, nil
}

// ListByTest returns every attempt of a test, newest first.
func (s *AttemptService) ListByTest(testID uint) ([]model.TestAttempt, error) {
	if _, err := s.Tests.FindByID(testID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTestNotFound
		}
		return nil, err
	}
	return s.Attempts.ListByTest(testID)
}
