package service

import (
	"college_portal_backend/internal/model"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// The scoring engine is pure: it never touches storage and trusts the
// caller to have authorized access to the correct-answer payloads.
//
// All string comparison is done on the normalized form (trimmed,
// lowercased). Partial credit for match questions rounds half up; the
// behaviour is user-visible at exact .5 boundaries and is covered by tests.

// ScoreQuestion computes the automatic score for a single question.
// Missing or malformed answers score zero, they are never an error.
func ScoreQuestion(q model.Question, answer interface{}) int {
	if answer == nil {
		return 0
	}

	switch q.Type {
	case model.QuestionChoice, model.QuestionMultiChoice:
		correct := correctAnswerSet(q.CorrectAnswers)
		if len(correct) == 0 {
			return 0
		}
		switch ans := answer.(type) {
		case string:
			if _, ok := correct[normalizeAnswer(ans)]; ok {
				return q.Points
			}
		case []interface{}:
			if setsEqual(normalizeAnswerSet(ans), correct) {
				return q.Points
			}
		}
		return 0

	case model.QuestionInput:
		correct := correctAnswerSet(q.CorrectAnswers)
		if _, ok := correct[normalizeAnswer(answer)]; ok {
			return q.Points
		}
		return 0

	case model.QuestionMatch:
		ansMap, ok := answer.(map[string]interface{})
		if !ok {
			return 0
		}
		var key model.MatchPairs
		if err := json.Unmarshal(q.CorrectAnswers, &key); err != nil {
			return 0
		}
		total := len(key)
		if total == 0 {
			return 0
		}
		matched := 0
		for _, pair := range key {
			if normalizeAnswer(ansMap[pair.Left]) == normalizeAnswer(pair.Right) {
				matched++
			}
		}
		return roundHalfUp(float64(q.Points) * float64(matched) / float64(total))

	case model.QuestionLongInput:
		// Essays are graded by a human during review, never automatically.
		return 0
	}

	return 0
}

// EvaluateAuto returns the total automatic score for a submission. Answers
// are keyed by the question id rendered as a string.
func EvaluateAuto(questions []model.Question, answers map[string]interface{}) int {
	total := 0
	for _, q := range questions {
		total += ScoreQuestion(q, answers[questionKey(q.ID)])
	}
	return total
}

// EvaluateAutoDetailed returns the per-question score map alongside what
// EvaluateAuto would sum.
func EvaluateAutoDetailed(questions []model.Question, answers map[string]interface{}) map[string]int {
	perQuestion := make(map[string]int, len(questions))
	for _, q := range questions {
		key := questionKey(q.ID)
		perQuestion[key] = ScoreQuestion(q, answers[key])
	}
	return perQuestion
}

// MaxScore is the highest attainable automatic+manual score of a test:
// essay points count even though they are never auto-scored.
func MaxScore(questions []model.Question) int {
	total := 0
	for _, q := range questions {
		total += q.Points
	}
	return total
}

// PointsPerQuestion maps question ids to their point values for client
// display.
func PointsPerQuestion(questions []model.Question) map[uint]int {
	points := make(map[uint]int, len(questions))
	for _, q := range questions {
		points[q.ID] = q.Points
	}
	return points
}

func questionKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func normalizeAnswer(v interface{}) string {
	if v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeAnswerSet(values []interface{}) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[normalizeAnswer(v)] = struct{}{}
	}
	return set
}

// correctAnswerSet decodes a correct-answer payload into a normalized set.
// A payload that is not a JSON array of scalars yields an empty set.
func correctAnswerSet(raw json.RawMessage) map[string]struct{} {
	if len(raw) == 0 {
		return nil
	}
	var values []interface{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		n := normalizeAnswer(v)
		if n == "" {
			continue
		}
		set[n] = struct{}{}
	}
	return set
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
