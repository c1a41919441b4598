package service

import (
	"college_portal_backend/internal/config"
	"college_portal_backend/internal/model"
	"college_portal_backend/internal/repository"
	"college_portal_backend/internal/util"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

// TestingService owns the test catalog: authoring, group assignment and
// the per-test attempt summary.
type TestingService struct {
	Tests    *repository.TestRepository
	Attempts *repository.AttemptRepository
	Groups   *repository.GroupRepository
	Cfg      *config.Config
}

func NewTestingService(tests *repository.TestRepository, attempts *repository.AttemptRepository, groups *repository.GroupRepository, cfg *config.Config) *TestingService {
	return &TestingService{Tests: tests, Attempts: attempts, Groups: groups, Cfg: cfg}
}

// QuestionPayload is the authoring shape of a question. On update, ID picks
// the existing row to patch; a zero ID inserts.
type QuestionPayload struct {
	ID             uint               `json:"id"`
	Type           model.QuestionType `json:"type" binding:"required"`
	Text           string             `json:"text" binding:"required"`
	Options        json.RawMessage    `json:"options"`
	CorrectAnswers json.RawMessage    `json:"correctAnswers"`
	Points         int                `json:"points"`
	OrderIndex     *int               `json:"orderIndex"`
}

type TestCreateRequest struct {
	Title           string            `json:"title" binding:"required"`
	Description     string            `json:"description"`
	DurationMinutes *int              `json:"durationMinutes"`
	MaxAttempts     int               `json:"maxAttempts"`
	Deadline        *time.Time        `json:"deadline"`
	TeacherID       *uint             `json:"teacherId"`
	GroupIDs        []uint            `json:"groupIds"`
	Questions       []QuestionPayload `json:"questions"`
}

type TestUpdateRequest struct {
	Title           *string            `json:"title"`
	Description     *string            `json:"description"`
	DurationMinutes *int               `json:"durationMinutes"`
	MaxAttempts     *int               `json:"maxAttempts"`
	Deadline        *time.Time         `json:"deadline"`
	IsActive        *bool              `json:"isActive"`
	TeacherID       *uint              `json:"teacherId"`
	Questions       *[]QuestionPayload `json:"questions"`
}

// QuestionView is a question as shown to clients. CorrectAnswers is filled
// for graders only.
type QuestionView struct {
	ID             uint               `json:"id"`
	Type           model.QuestionType `json:"type"`
	Text           string             `json:"text"`
	Options        json.RawMessage    `json:"options,omitempty"`
	Points         int                `json:"points"`
	OrderIndex     int                `json:"orderIndex"`
	CorrectAnswers json.RawMessage    `json:"correctAnswers,omitempty"`
}

type TestView struct {
	ID              uint           `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	DurationMinutes *int           `json:"durationMinutes,omitempty"`
	MaxAttempts     int            `json:"maxAttempts"`
	Deadline        *time.Time     `json:"deadline,omitempty"`
	IsActive        bool           `json:"isActive"`
	CreatedByID     uint           `json:"createdById"`
	TeacherID       *uint          `json:"teacherId,omitempty"`
	GroupIDs        []uint         `json:"groupIds"`
	Questions       []QuestionView `json:"questions"`
	TotalPoints     int            `json:"totalPoints"`
	PointsPerQ      map[uint]int   `json:"pointsPerQuestion"`
}

// StudentSummary is one row of the per-test results table.
type StudentSummary struct {
	StudentID     uint                `json:"studentId"`
	AttemptsCount int                 `json:"attemptsCount"`
	LastAttempt   time.Time           `json:"lastAttempt"`
	LastStatus    model.AttemptStatus `json:"lastStatus"`
	LastScore     *int                `json:"lastScore"`
}

type TestSummary struct {
	TestID         uint             `json:"testId"`
	TotalAttempts  int64            `json:"totalAttempts"`
	UniqueStudents int64            `json:"uniqueStudents"`
	LastAttempt    *time.Time       `json:"lastAttempt"`
	Students       []StudentSummary `json:"students"`
}

func validateQuestion(p *QuestionPayload) error {
	if !p.Type.Valid() {
		return fmt.Errorf("%w: unknown question type %q", util.ErrValidation, p.Type)
	}
	if p.Text == "" {
		return fmt.Errorf("%w: question text is required", util.ErrValidation)
	}
	if p.Points <= 0 {
		return fmt.Errorf("%w: question points must be positive", util.ErrValidation)
	}
	return nil
}

// buildQuestion converts an authoring payload into the persisted form,
// normalizing match options to the internal ordered-object shape.
func buildQuestion(testID uint, p QuestionPayload, position int) (*model.Question, error) {
	if err := validateQuestion(&p); err != nil {
		return nil, err
	}
	options := p.Options
	if p.Type == model.QuestionMatch && len(options) > 0 {
		converted, err := model.MatchOptionsToInternal(options)
		if err != nil {
			return nil, fmt.Errorf("%w: bad match options: %v", util.ErrValidation, err)
		}
		options = converted
	}
	orderIndex := position
	if p.OrderIndex != nil {
		orderIndex = *p.OrderIndex
	}
	return &model.Question{
		TestID:         testID,
		Type:           p.Type,
		Text:           p.Text,
		Options:        options,
		CorrectAnswers: p.CorrectAnswers,
		Points:         p.Points,
		OrderIndex:     orderIndex,
	}, nil
}

func (s *TestingService) CreateTest(creatorID uint, req TestCreateRequest) (*TestView, error) {
	maxAttempts := req.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	test := &model.Test{
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		MaxAttempts:     maxAttempts,
		Deadline:        req.Deadline,
		IsActive:        true,
		CreatedByID:     creatorID,
		TeacherID:       req.TeacherID,
	}
	for i, p := range req.Questions {
		q, err := buildQuestion(0, p, i)
		if err != nil {
			return nil, err
		}
		test.Questions = append(test.Questions, *q)
	}
	for _, gid := range req.GroupIDs {
		test.Groups = append(test.Groups, model.TestGroupAccess{GroupID: gid})
	}

	if err := s.Tests.Create(test); err != nil {
		return nil, err
	}
	return s.GetTest(test.ID, true)
}

// UpdateTest patches test fields and, when a question list is supplied,
// reconciles it against the stored questions: known ids are patched, zero
// ids inserted and absent ids deleted.
func (s *TestingService) UpdateTest(testID uint, req TestUpdateRequest) (*TestView, error) {
	test, err := s.findTest(testID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		test.Title = *req.Title
	}
	if req.Description != nil {
		test.Description = *req.Description
	}
	if req.DurationMinutes != nil {
		test.DurationMinutes = req.DurationMinutes
	}
	if req.MaxAttempts != nil {
		if *req.MaxAttempts < 1 {
			return nil, fmt.Errorf("%w: maxAttempts must be positive", util.ErrValidation)
		}
		test.MaxAttempts = *req.MaxAttempts
	}
	if req.Deadline != nil {
		test.Deadline = req.Deadline
	}
	if req.IsActive != nil {
		test.IsActive = *req.IsActive
	}
	if req.TeacherID != nil {
		test.TeacherID = req.TeacherID
	}

	// Associations are reconciled separately; saving them here would upsert
	// the preloaded rows a second time.
	questions := test.Questions
	test.Questions = nil
	test.Groups = nil
	if err := s.Tests.Save(test); err != nil {
		return nil, err
	}

	if req.Questions != nil {
		if err := s.reconcileQuestions(testID, questions, *req.Questions); err != nil {
			return nil, err
		}
	}

	return s.GetTest(testID, true)
}

func (s *TestingService) reconcileQuestions(testID uint, existing []model.Question, payloads []QuestionPayload) error {
	byID := make(map[uint]*model.Question, len(existing))
	for i := range existing {
		byID[existing[i].ID] = &existing[i]
	}

	seen := make(map[uint]bool, len(payloads))
	for i, p := range payloads {
		if current, ok := byID[p.ID]; p.ID != 0 && ok {
			updated, err := buildQuestion(testID, p, i)
			if err != nil {
				return err
			}
			updated.ID = current.ID
			updated.CreatedAt = current.CreatedAt
			if err := s.Tests.SaveQuestion(updated); err != nil {
				return err
			}
			seen[p.ID] = true
			continue
		}

		// An id this test has never seen is treated as a brand-new
		// question and gets a fresh row.
		created, err := buildQuestion(testID, p, i)
		if err != nil {
			return err
		}
		if err := s.Tests.CreateQuestion(created); err != nil {
			return err
		}
	}

	var stale []uint
	for id := range byID {
		if !seen[id] {
			stale = append(stale, id)
		}
	}
	return s.Tests.DeleteQuestions(stale)
}

func (s *TestingService) DeleteTest(testID uint) error {
	if _, err := s.findTest(testID); err != nil {
		return err
	}
	if err := s.Tests.Delete(testID); err != nil {
		return err
	}
	s.Tests.InvalidateSummary(context.Background(), testID)
	return nil
}

// AssignGroups replaces the set of groups a test is visible to.
func (s *TestingService) AssignGroups(testID uint, groupIDs []uint) error {
	if _, err := s.findTest(testID); err != nil {
		return err
	}
	for _, gid := range groupIDs {
		if _, err := s.Groups.FindByID(gid); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: group %d does not exist", util.ErrValidation, gid)
			}
			return err
		}
	}
	return s.Tests.ReplaceGroupAccess(testID, groupIDs)
}

// GetTest renders a test for the caller. Graders see correct answers and
// the raw internal match payloads; students get the left/right list form
// with answers stripped.
func (s *TestingService) GetTest(testID uint, grader bool) (*TestView, error) {
	test, err := s.findTest(testID)
	if err != nil {
		return nil, err
	}
	return s.view(test, grader)
}

func (s *TestingService) view(test *model.Test, grader bool) (*TestView, error) {
	view := &TestView{
		ID:              test.ID,
		Title:           test.Title,
		Description:     test.Description,
		DurationMinutes: test.DurationMinutes,
		MaxAttempts:     test.MaxAttempts,
		Deadline:        test.Deadline,
		IsActive:        test.IsActive,
		CreatedByID:     test.CreatedByID,
		TeacherID:       test.TeacherID,
		GroupIDs:        []uint{},
		Questions:       []QuestionView{},
		TotalPoints:     MaxScore(test.Questions),
		PointsPerQ:      PointsPerQuestion(test.Questions),
	}
	for _, g := range test.Groups {
		view.GroupIDs = append(view.GroupIDs, g.GroupID)
	}
	for _, q := range test.Questions {
		qv := QuestionView{
			ID:         q.ID,
			Type:       q.Type,
			Text:       q.Text,
			Options:    q.Options,
			Points:     q.Points,
			OrderIndex: q.OrderIndex,
		}
		if q.Type == model.QuestionMatch && len(q.Options) > 0 && !grader {
			external, err := model.MatchOptionsToExternal(q.Options)
			if err != nil {
				return nil, err
			}
			qv.Options = external
		}
		if grader {
			qv.CorrectAnswers = q.CorrectAnswers
		}
		view.Questions = append(view.Questions, qv)
	}
	return view, nil
}

// ListTests returns the catalog visible to the caller: students see only
// tests granted to their group, teachers their own tests, admins all.
func (s *TestingService) ListTests(role model.UserRole, userID uint, groupID *uint) ([]TestView, error) {
	var (
		tests []model.Test
		err   error
	)
	switch role {
	case model.Student:
		if groupID == nil {
			return []TestView{}, nil
		}
		tests, err = s.Tests.ListForGroup(*groupID)
	case model.Teacher:
		tests, err = s.Tests.ListByTeacher(userID)
	default:
		tests, err = s.Tests.List()
	}
	if err != nil {
		return nil, err
	}

	grader := role != model.Student
	views := make([]TestView, 0, len(tests))
	for i := range tests {
		v, err := s.view(&tests[i], grader)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

// Summary aggregates a test's attempts, folding each student down to their
// latest attempt. The result is cached briefly; any attempt mutation
// invalidates it.
func (s *TestingService) Summary(ctx context.Context, testID uint) (*TestSummary, error) {
	if _, err := s.findTest(testID); err != nil {
		return nil, err
	}

	var cached TestSummary
	if s.Tests.CachedSummary(ctx, testID, &cached) {
		return &cached, nil
	}

	totals, err := s.Tests.AttemptTotals(testID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.Attempts.ListByTest(testID)
	if err != nil {
		return nil, err
	}

	// ListByTest is newest-first, so the first attempt seen per student is
	// their latest.
	perStudent := make(map[uint]*StudentSummary)
	for i := range attempts {
		a := &attempts[i]
		row, ok := perStudent[a.StudentID]
		if !ok {
			row = &StudentSummary{
				StudentID:   a.StudentID,
				LastAttempt: a.StartedAt,
				LastStatus:  a.Status,
				LastScore:   a.EffectiveScore(),
			}
			perStudent[a.StudentID] = row
		}
		row.AttemptsCount++
	}

	students := make([]StudentSummary, 0, len(perStudent))
	for _, row := range perStudent {
		students = append(students, *row)
	}
	sort.Slice(students, func(i, j int) bool {
		return students[i].StudentID < students[j].StudentID
	})

	summary := &TestSummary{
		TestID:         testID,
		TotalAttempts:  totals.TotalAttempts,
		UniqueStudents: totals.UniqueStudents,
		LastAttempt:    totals.LastAttempt,
		Students:       students,
	}
	ttl := time.Duration(s.Cfg.Attempt.SummaryCacheTTL) * time.Second
	s.Tests.CacheSummary(ctx, testID, summary, ttl)
	return summary, nil
}

func (s *TestingService) findTest(testID uint) (*model.Test, error) {
	test, err := s.Tests.FindByID(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTestNotFound
		}
		return nil, err
	}
	return test, nil
}
