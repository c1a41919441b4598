package service

import (
	"college_portal_backend/internal/model"
	"college_portal_backend/internal/util"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTestValidation(t *testing.T) {
	e := newEnv(t)
	teacher := e.createTeacher(t, "t@example.com")

	_, err := e.testing.CreateTest(teacher.ID, TestCreateRequest{
		Title: "Bad points",
		Questions: []QuestionPayload{
			{Type: model.QuestionChoice, Text: "q", Points: 0},
		},
	})
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = e.testing.CreateTest(teacher.ID, TestCreateRequest{
		Title: "Bad type",
		Questions: []QuestionPayload{
			{Type: "crossword", Text: "q", Points: 1},
		},
	})
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = e.testing.CreateTest(teacher.ID, TestCreateRequest{
		Title: "No text",
		Questions: []QuestionPayload{
			{Type: model.QuestionChoice, Text: "", Points: 1},
		},
	})
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestCreateTestDefaultsAndOrdering(t *testing.T) {
	e := newEnv(t)
	teacher := e.createTeacher(t, "t@example.com")

	view, err := e.testing.CreateTest(teacher.ID, TestCreateRequest{
		Title: "Defaults",
		Questions: []QuestionPayload{
			{Type: model.QuestionChoice, Text: "first", Points: 1},
			{Type: model.QuestionInput, Text: "second", Points: 2},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, view.MaxAttempts)
	assert.True(t, view.IsActive)
	require.Len(t, view.Questions, 2)
	assert.Equal(t, "first", view.Questions[0].Text)
	assert.Equal(t, 0, view.Questions[0].OrderIndex)
	assert.Equal(t, 1, view.Questions[1].OrderIndex)
	assert.Equal(t, 3, view.TotalPoints)
}

func TestMatchOptionsViews(t *testing.T) {
	e := newEnv(t)
	teacher := e.createTeacher(t, "t@example.com")
	group := e.createGroup(t, "CS-101")

	options := raw(t, map[string][]string{
		"left":  {"tcp", "http", "smtp"},
		"right": {"transport", "web", "mail"},
	})
	correct := json.RawMessage(`{"tcp":"transport","http":"web","smtp":"mail"}`)

	view, err := e.testing.CreateTest(teacher.ID, TestCreateRequest{
		Title:    "Protocols",
		GroupIDs: []uint{group.ID},
		Questions: []QuestionPayload{
			{
				Type:           model.QuestionMatch,
				Text:           "match protocols",
				Options:        options,
				CorrectAnswers: correct,
				Points:         9,
			},
		},
	})
	require.NoError(t, err)

	// Students get the left/right lists back in authored order, without
	// the grading key.
	studentView, err := e.testing.GetTest(view.ID, false)
	require.NoError(t, err)
	require.Len(t, studentView.Questions, 1)
	assert.Empty(t, studentView.Questions[0].CorrectAnswers)

	var ext model.MatchOptions
	require.NoError(t, json.Unmarshal(studentView.Questions[0].Options, &ext))
	assert.Equal(t, []string{"tcp", "http", "smtp"}, ext.Left)
	assert.Equal(t, []string{"transport", "web", "mail"}, ext.Right)

	// Graders see the stored payloads as-is.
	graderView, err := e.testing.GetTest(view.ID, true)
	require.NoError(t, err)
	assert.NotEmpty(t, graderView.Questions[0].CorrectAnswers)
}

func TestUpdateTestReconcilesQuestions(t *testing.T) {
	e := newEnv(t)
	teacher := e.createTeacher(t, "t@example.com")

	view, err := e.testing.CreateTest(teacher.ID, TestCreateRequest{
		Title: "Before",
		Questions: []QuestionPayload{
			{Type: model.QuestionChoice, Text: "keep me", Points: 1, CorrectAnswers: raw(t, []string{"a"})},
			{Type: model.QuestionChoice, Text: "drop me", Points: 1, CorrectAnswers: raw(t, []string{"b"})},
		},
	})
	require.NoError(t, err)
	kept := view.Questions[0].ID

	title := "After"
	updated, err := e.testing.UpdateTest(view.ID, TestUpdateRequest{
		Title: &title,
		Questions: &[]QuestionPayload{
			{ID: kept, Type: model.QuestionChoice, Text: "kept and renamed", Points: 5, CorrectAnswers: raw(t, []string{"a"})},
			{Type: model.QuestionInput, Text: "brand new", Points: 2, CorrectAnswers: raw(t, []string{"x"})},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "After", updated.Title)
	require.Len(t, updated.Questions, 2)
	assert.Equal(t, kept, updated.Questions[0].ID)
	assert.Equal(t, "kept and renamed", updated.Questions[0].Text)
	assert.Equal(t, 5, updated.Questions[0].Points)
	assert.Equal(t, "brand new", updated.Questions[1].Text)

	// An id this test has never seen is inserted as a new question under
	// a fresh id, not rejected.
	newID := updated.Questions[1].ID
	adopted, err := e.testing.UpdateTest(view.ID, TestUpdateRequest{
		Questions: &[]QuestionPayload{
			{ID: kept, Type: model.QuestionChoice, Text: "kept and renamed", Points: 5, CorrectAnswers: raw(t, []string{"a"})},
			{ID: newID, Type: model.QuestionInput, Text: "brand new", Points: 2, CorrectAnswers: raw(t, []string{"x"})},
			{ID: 424242, Type: model.QuestionInput, Text: "imported", Points: 3, CorrectAnswers: raw(t, []string{"y"})},
		},
	})
	require.NoError(t, err)
	require.Len(t, adopted.Questions, 3)
	assert.Equal(t, "imported", adopted.Questions[2].Text)
	assert.NotEqual(t, uint(424242), adopted.Questions[2].ID)
	assert.Equal(t, 2, adopted.Questions[2].OrderIndex)
}

func TestAssignGroups(t *testing.T) {
	e := newEnv(t)
	teacher := e.createTeacher(t, "t@example.com")
	g1 := e.createGroup(t, "CS-101")
	g2 := e.createGroup(t, "CS-202")

	view := e.createChoiceTest(t, teacher.ID, g1.ID, 1)

	err := e.testing.AssignGroups(view.ID, []uint{g2.ID})
	require.NoError(t, err)

	granted, err := e.tests.HasGroupAccess(view.ID, g2.ID)
	require.NoError(t, err)
	assert.True(t, granted)

	revoked, err := e.tests.HasGroupAccess(view.ID, g1.ID)
	require.NoError(t, err)
	assert.False(t, revoked)

	err = e.testing.AssignGroups(view.ID, []uint{99999})
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestListTestsPerRole(t *testing.T) {
	e := newEnv(t)
	teacher := e.createTeacher(t, "t@example.com")
	other := e.createTeacher(t, "other@example.com")
	group := e.createGroup(t, "CS-101")

	granted := e.createChoiceTest(t, teacher.ID, group.ID, 1)
	_, err := e.testing.CreateTest(other.ID, TestCreateRequest{Title: "Ungranted"})
	require.NoError(t, err)

	student, err := e.testing.ListTests(model.Student, 42, &group.ID)
	require.NoError(t, err)
	require.Len(t, student, 1)
	assert.Equal(t, granted.ID, student[0].ID)
	assert.Empty(t, student[0].Questions[0].CorrectAnswers)

	// A student without a group sees nothing.
	none, err := e.testing.ListTests(model.Student, 42, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	mine, err := e.testing.ListTests(model.Teacher, teacher.ID, nil)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, granted.ID, mine[0].ID)

	all, err := e.testing.ListTests(model.Admin, 0, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeleteTestCascades(t *testing.T) {
	e := newEnv(t)
	teacher := e.createTeacher(t, "t@example.com")
	group := e.createGroup(t, "CS-101")
	student := e.createStudent(t, "s@example.com", &group.ID)
	view := e.createChoiceTest(t, teacher.ID, group.ID, 1)

	_, err := e.attempt.Start(view.ID, student.ID)
	require.NoError(t, err)

	require.NoError(t, e.testing.DeleteTest(view.ID))

	_, err = e.testing.GetTest(view.ID, true)
	assert.ErrorIs(t, err, util.ErrTestNotFound)

	var attempts int64
	require.NoError(t, e.db.Model(&model.TestAttempt{}).Where("test_id = ?", view.ID).Count(&attempts).Error)
	assert.Zero(t, attempts)

	assert.ErrorIs(t, e.testing.DeleteTest(view.ID), util.ErrTestNotFound)
}

func TestSummaryFoldsToLatestAttempt(t *testing.T) {
	e := newEnv(t)
	teacher := e.createTeacher(t, "t@example.com")
	group := e.createGroup(t, "CS-101")
	alice := e.createStudent(t, "alice@example.com", &group.ID)
	bob := e.createStudent(t, "bob@example.com", &group.ID)
	view := e.createChoiceTest(t, teacher.ID, group.ID, 3)
	qid := view.Questions[0].ID

	right := map[string]interface{}{questionKey(qid): "4"}
	wrong := map[string]interface{}{questionKey(qid): "3"}

	// Alice: a wrong first attempt, then a correct one.
	first, err := e.attempt.Start(view.ID, alice.ID)
	require.NoError(t, err)
	e.backdateAttempt(t, first.AttemptID, first.StartedAt.Add(-time.Minute))
	_, err = e.attempt.Submit(view.ID, first.AttemptID, alice.ID, first.AttemptToken, wrong)
	require.NoError(t, err)

	second, err := e.attempt.Start(view.ID, alice.ID)
	require.NoError(t, err)
	_, err = e.attempt.Submit(view.ID, second.AttemptID, alice.ID, second.AttemptToken, right)
	require.NoError(t, err)

	// Bob: one attempt, reviewed with an override.
	bobs, err := e.attempt.Start(view.ID, bob.ID)
	require.NoError(t, err)
	_, err = e.attempt.Submit(view.ID, bobs.AttemptID, bob.ID, bobs.AttemptToken, wrong)
	require.NoError(t, err)
	_, err = e.attempt.Review(bobs.AttemptID, teacher.ID, 6, "half right")
	require.NoError(t, err)

	summary, err := e.testing.Summary(context.Background(), view.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.TotalAttempts)
	assert.Equal(t, int64(2), summary.UniqueStudents)
	require.NotNil(t, summary.LastAttempt)
	require.Len(t, summary.Students, 2)

	byID := map[uint]StudentSummary{}
	for _, s := range summary.Students {
		byID[s.StudentID] = s
	}

	aliceRow := byID[alice.ID]
	assert.Equal(t, 2, aliceRow.AttemptsCount)
	assert.Equal(t, model.AttemptSubmitted, aliceRow.LastStatus)
	require.NotNil(t, aliceRow.LastScore)
	assert.Equal(t, 10, *aliceRow.LastScore)

	bobRow := byID[bob.ID]
	assert.Equal(t, 1, bobRow.AttemptsCount)
	assert.Equal(t, model.AttemptReviewed, bobRow.LastStatus)
	require.NotNil(t, bobRow.LastScore)
	assert.Equal(t, 6, *bobRow.LastScore)
}
