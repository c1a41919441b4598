package model

import (
	"encoding/json"
	"time"
)

type QuestionType string

const (
	QuestionChoice      QuestionType = "choice"
	QuestionMultiChoice QuestionType = "multi_choice"
	QuestionInput       QuestionType = "input"
	QuestionLongInput   QuestionType = "long_input"
	QuestionMatch       QuestionType = "match"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionChoice, QuestionMultiChoice, QuestionInput, QuestionLongInput, QuestionMatch:
		return true
	}
	return false
}

type AttemptStatus string

const (
	AttemptStarted   AttemptStatus = "started"
	AttemptSubmitted AttemptStatus = "submitted"
	AttemptReviewed  AttemptStatus = "reviewed"
	AttemptExpired   AttemptStatus = "expired"
)

// swagger:model Test
type Test struct {
	BaseModel
	Title           string     `gorm:"size:255;not null" json:"title"`
	Description     string     `gorm:"type:text" json:"description"`
	DurationMinutes *int       `json:"durationMinutes,omitempty"`
	MaxAttempts     int        `gorm:"default:1" json:"maxAttempts"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	IsActive        bool       `gorm:"default:true" json:"isActive"`
	CreatedByID     uint       `gorm:"index" json:"createdById"`
	TeacherID       *uint      `gorm:"index" json:"teacherId,omitempty"`

	Questions []Question        `gorm:"constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	Groups    []TestGroupAccess `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Test) TableName() string {
	return "tests"
}

// swagger:model Question
type Question struct {
	BaseModel
	TestID uint         `gorm:"index;not null" json:"testId"`
	Type   QuestionType `gorm:"size:20;not null" json:"type"`
	Text   string       `gorm:"type:text;not null" json:"text"`
	// Options holds the type-specific payload. For match questions the
	// persisted form is an ordered left->right object; the left/right list
	// form only exists at the API boundary.
	Options        json.RawMessage `gorm:"type:json" json:"options,omitempty"`
	CorrectAnswers json.RawMessage `gorm:"type:json" json:"-"`
	Points         int             `gorm:"default:1" json:"points"`
	OrderIndex     int             `gorm:"default:0" json:"orderIndex"`
}

func (Question) TableName() string {
	return "questions"
}

// swagger:model TestGroupAccess
type TestGroupAccess struct {
	BaseModel
	TestID  uint `gorm:"index;uniqueIndex:uq_test_group;not null" json:"testId"`
	GroupID uint `gorm:"index;uniqueIndex:uq_test_group;not null" json:"groupId"`
}

func (TestGroupAccess) TableName() string {
	return "test_group_access"
}

// swagger:model TestAttempt
type TestAttempt struct {
	BaseModel
	StudentID     uint          `gorm:"index;uniqueIndex:uq_student_test_attempt;not null" json:"studentId"`
	TestID        uint          `gorm:"index;uniqueIndex:uq_student_test_attempt;not null" json:"testId"`
	AttemptNumber int           `gorm:"uniqueIndex:uq_student_test_attempt;not null" json:"attemptNumber"`
	Status        AttemptStatus `gorm:"size:20;default:'started'" json:"status"`

	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`

	// AttemptToken is live only while the attempt is started; finalizing
	// clears it so a leaked token cannot be replayed.
	AttemptToken *string `gorm:"size:128;index" json:"-"`

	Answers json.RawMessage `gorm:"type:json" json:"answers,omitempty"`

	AutoScore    *int `json:"autoScore,omitempty"`
	TeacherScore *int `json:"teacherScore,omitempty"`

	ReviewedByUserID *uint  `json:"reviewedByUserId,omitempty"`
	ReviewComment    string `gorm:"type:text" json:"reviewComment,omitempty"`
}

func (TestAttempt) TableName() string {
	return "test_attempts"
}

// EffectiveScore prefers the teacher's score over the automatic one.
func (a *TestAttempt) EffectiveScore() *int {
	if a.TeacherScore != nil {
		return a.TeacherScore
	}
	return a.AutoScore
}
