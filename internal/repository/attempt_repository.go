package repository

import (
	"college_portal_backend/internal/model"
	"college_portal_backend/internal/util"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) FindByID(id uint) (*model.TestAttempt, error) {
	var attempt model.TestAttempt
	err := r.DB.First(&attempt, id).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// FindOwned resolves an attempt only if it belongs to the given student and
// test; any mismatch looks identical to a missing row.
func (r *AttemptRepository) FindOwned(attemptID, studentID, testID uint) (*model.TestAttempt, error) {
	var attempt model.TestAttempt
	err := r.DB.
		Where("id = ? AND student_id = ? AND test_id = ?", attemptID, studentID, testID).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) CountByStudentAndTest(studentID, testID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.TestAttempt{}).
		Where("student_id = ? AND test_id = ?", studentID, testID).
		Count(&count).Error
	return count, err
}

func (r *AttemptRepository) ListByTest(testID uint) ([]model.TestAttempt, error) {
	var attempts []model.TestAttempt
	err := r.DB.Where("test_id = ?", testID).
		Order("started_at desc").
		Find(&attempts).Error
	return attempts, err
}

// CreateStarted creates the next numbered attempt for (student, test).
//
// The whole sequence runs in one transaction that first locks the test row,
// so two concurrent starts by the same student serialize: the second one
// re-counts after the first committed and either gets the next number or
// hits the attempt limit. The composite unique index on (student_id,
// test_id, attempt_number) backstops the lock; a conflict there (or a
// deadlock/serialization abort) is retried once before being surfaced.
//
// issueToken runs inside the transaction once the attempt id is known, so
// the token is persisted atomically with the row it authenticates.
func (r *AttemptRepository) CreateStarted(testID, studentID uint, maxAttempts int, issueToken func(attemptID uint) string) (*model.TestAttempt, error) {
	attempt, err := r.createStarted(testID, studentID, maxAttempts, issueToken)
	if err != nil && isTransient(err) {
		attempt, err = r.createStarted(testID, studentID, maxAttempts, issueToken)
	}
	return attempt, err
}

func (r *AttemptRepository) createStarted(testID, studentID uint, maxAttempts int, issueToken func(attemptID uint) string) (*model.TestAttempt, error) {
	var attempt *model.TestAttempt

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		var test model.Test
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&test, testID).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&model.TestAttempt{}).
			Where("student_id = ? AND test_id = ?", studentID, testID).
			Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(maxAttempts) {
			return util.ErrAttemptLimitExceeded
		}

		attempt = &model.TestAttempt{
			StudentID:     studentID,
			TestID:        testID,
			AttemptNumber: int(count) + 1,
			Status:        model.AttemptStarted,
			StartedAt:     time.Now().UTC(),
		}
		if err := tx.Create(attempt).Error; err != nil {
			return err
		}

		token := issueToken(attempt.ID)
		attempt.AttemptToken = &token
		return tx.Model(attempt).Update("attempt_token", token).Error
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

// FinalizeStarted applies the submit-time mutation. The status guard in the
// WHERE clause makes a second submit a no-op: zero rows affected means the
// attempt already left the started state.
func (r *AttemptRepository) FinalizeStarted(attemptID uint, updates map[string]interface{}) error {
	res := r.DB.Model(&model.TestAttempt{}).
		Where("id = ? AND status = ?", attemptID, model.AttemptStarted).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrAttemptFinished
	}
	return nil
}

// Review overwrites the grader's verdict. Reviewing again is permitted and
// simply replaces score and comment.
func (r *AttemptRepository) Review(attemptID uint, teacherScore int, comment string, reviewerID uint) error {
	res := r.DB.Model(&model.TestAttempt{}).
		Where("id = ? AND status IN ?", attemptID,
			[]model.AttemptStatus{model.AttemptSubmitted, model.AttemptReviewed, model.AttemptExpired}).
		Updates(map[string]interface{}{
			"teacher_score":       teacherScore,
			"review_comment":      comment,
			"reviewed_by_user_id": reviewerID,
			"status":              model.AttemptReviewed,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrAttemptNotReviewable
	}
	return nil
}

// isTransient matches the conditions worth one retry: the unique-index
// backstop firing, or the engine aborting the transaction under contention.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Deadlock found") ||
		strings.Contains(msg, "try restarting transaction")
}
