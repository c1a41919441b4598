package service

import (
	"college_portal_backend/internal/model"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func choiceQuestion(typ model.QuestionType, points int, correct ...string) model.Question {
	data, _ := json.Marshal(correct)
	return model.Question{Type: typ, Text: "q", Points: points, CorrectAnswers: data}
}

func matchQuestion(points int, key map[string]string, order []string) model.Question {
	pairs := make(model.MatchPairs, 0, len(order))
	for _, left := range order {
		pairs = append(pairs, model.MatchPair{Left: left, Right: key[left]})
	}
	data, _ := json.Marshal(pairs)
	return model.Question{Type: model.QuestionMatch, Text: "q", Points: points, CorrectAnswers: data}
}

func TestScoreSingleChoice(t *testing.T) {
	q := choiceQuestion(model.QuestionChoice, 10, "B")

	tests := []struct {
		name   string
		answer interface{}
		want   int
	}{
		{"exact", "B", 10},
		{"case and whitespace insensitive", "  b ", 10},
		{"wrong option", "C", 0},
		{"missing", nil, 0},
		{"malformed object", map[string]interface{}{"a": "1"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreQuestion(q, tt.answer))
		})
	}
}

func TestScoreMultiChoice(t *testing.T) {
	q := choiceQuestion(model.QuestionMultiChoice, 5, "A", "C")

	tests := []struct {
		name   string
		answer interface{}
		want   int
	}{
		{"exact set", []interface{}{"a", "c"}, 5},
		{"order irrelevant", []interface{}{"C", "A"}, 5},
		{"subset gets nothing", []interface{}{"A"}, 0},
		{"superset gets nothing", []interface{}{"a", "c", "d"}, 0},
		{"single string member counts", "a", 5},
		{"empty list", []interface{}{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreQuestion(q, tt.answer))
		})
	}
}

func TestScoreInput(t *testing.T) {
	q := choiceQuestion(model.QuestionInput, 3, "four", "4")

	assert.Equal(t, 3, ScoreQuestion(q, "  FOUR "))
	assert.Equal(t, 3, ScoreQuestion(q, "4"))
	assert.Equal(t, 0, ScoreQuestion(q, "five"))
	assert.Equal(t, 0, ScoreQuestion(q, nil))
}

func TestScoreMatchPartialCredit(t *testing.T) {
	key := map[string]string{"a": "1", "b": "2", "c": "3"}
	order := []string{"a", "b", "c"}

	tests := []struct {
		name   string
		points int
		answer interface{}
		want   int
	}{
		{"all matched", 9, map[string]interface{}{"a": "1", "b": "2", "c": "3"}, 9},
		{"two of three", 9, map[string]interface{}{"a": "1", "b": "2", "c": "9"}, 6},
		{"one of three rounds down", 10, map[string]interface{}{"a": "1"}, 3},
		{"two of three rounds up", 10, map[string]interface{}{"a": "1", "b": "2"}, 7},
		{"case insensitive values", 9, map[string]interface{}{"a": " 1 ", "b": "2", "c": "3"}, 9},
		{"none matched", 9, map[string]interface{}{"a": "9"}, 0},
		{"not an object", 9, "a=1", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := matchQuestion(tt.points, key, order)
			assert.Equal(t, tt.want, ScoreQuestion(q, tt.answer))
		})
	}
}

func TestScoreLongInputNeverAutoGraded(t *testing.T) {
	q := model.Question{Type: model.QuestionLongInput, Text: "essay", Points: 20}
	assert.Equal(t, 0, ScoreQuestion(q, "a long and thoughtful essay"))
}

func TestEvaluateAuto(t *testing.T) {
	q1 := choiceQuestion(model.QuestionChoice, 10, "B")
	q1.ID = 1
	q2 := choiceQuestion(model.QuestionInput, 5, "go")
	q2.ID = 2
	essay := model.Question{Type: model.QuestionLongInput, Text: "essay", Points: 20}
	essay.ID = 3
	questions := []model.Question{q1, q2, essay}

	answers := map[string]interface{}{
		"1": "b",
		"2": "GO",
		"3": "essay text",
	}

	assert.Equal(t, 15, EvaluateAuto(questions, answers))
	// Essay points still count toward the attainable maximum.
	assert.Equal(t, 35, MaxScore(questions))

	detailed := EvaluateAutoDetailed(questions, answers)
	assert.Equal(t, map[string]int{"1": 10, "2": 5, "3": 0}, detailed)

	// Unanswered questions score zero without failing the evaluation.
	assert.Equal(t, 10, EvaluateAuto(questions, map[string]interface{}{"1": "b"}))
}

func TestCorrectAnswerSetMalformedPayload(t *testing.T) {
	q := model.Question{
		Type:           model.QuestionChoice,
		Text:           "q",
		Points:         10,
		CorrectAnswers: json.RawMessage(`{"not":"a list"}`),
	}
	assert.Equal(t, 0, ScoreQuestion(q, "not"))
}
