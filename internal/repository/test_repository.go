package repository

import (
	"college_portal_backend/internal/model"
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type TestRepository struct {
	DB  *gorm.DB
	RDB *redis.Client
}

func NewTestRepository(db *gorm.DB, rdb *redis.Client) *TestRepository {
	return &TestRepository{DB: db, RDB: rdb}
}

func (r *TestRepository) Create(test *model.Test) error {
	return r.DB.Create(test).Error
}

func (r *TestRepository) Save(test *model.Test) error {
	return r.DB.Save(test).Error
}

// FindByID loads the test with its questions in display order and its
// group grants.
func (r *TestRepository) FindByID(id uint) (*model.Test, error) {
	var test model.Test
	err := r.DB.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index asc, id asc")
		}).
		Preload("Groups").
		First(&test, id).Error
	if err != nil {
		return nil, err
	}
	return &test, nil
}

func (r *TestRepository) List() ([]model.Test, error) {
	return r.list(r.DB)
}

// ListForGroup returns only tests granted to the given student group.
func (r *TestRepository) ListForGroup(groupID uint) ([]model.Test, error) {
	sub := r.DB.Model(&model.TestGroupAccess{}).
		Select("test_id").
		Where("group_id = ?", groupID)
	return r.list(r.DB.Where("id IN (?)", sub))
}

func (r *TestRepository) ListByTeacher(teacherID uint) ([]model.Test, error) {
	return r.list(r.DB.Where("teacher_id = ? OR created_by_id = ?", teacherID, teacherID))
}

func (r *TestRepository) list(query *gorm.DB) ([]model.Test, error) {
	var tests []model.Test
	err := query.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index asc, id asc")
		}).
		Preload("Groups").
		Order("created_at desc").
		Find(&tests).Error
	return tests, err
}

// Delete cascades to questions, group grants and attempts in one
// transaction, mirroring the ownership rules of the data model.
func (r *TestRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_id = ?", id).Delete(&model.Question{}).Error; err != nil {
			return err
		}
		if err := tx.Where("test_id = ?", id).Delete(&model.TestGroupAccess{}).Error; err != nil {
			return err
		}
		if err := tx.Where("test_id = ?", id).Delete(&model.TestAttempt{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Test{}, id).Error
	})
}

func (r *TestRepository) CreateQuestion(q *model.Question) error {
	return r.DB.Create(q).Error
}

func (r *TestRepository) SaveQuestion(q *model.Question) error {
	return r.DB.Save(q).Error
}

func (r *TestRepository) DeleteQuestions(ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.DB.Delete(&model.Question{}, ids).Error
}

func (r *TestRepository) ListQuestions(testID uint) ([]model.Question, error) {
	var qs []model.Question
	err := r.DB.Where("test_id = ?", testID).
		Order("order_index asc, id asc").
		Find(&qs).Error
	return qs, err
}

// ReplaceGroupAccess re-assigns a test to groups wholesale: the existing
// grants are dropped and the new set inserted in one transaction.
func (r *TestRepository) ReplaceGroupAccess(testID uint, groupIDs []uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_id = ?", testID).Delete(&model.TestGroupAccess{}).Error; err != nil {
			return err
		}
		for _, gid := range groupIDs {
			if err := tx.Create(&model.TestGroupAccess{TestID: testID, GroupID: gid}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *TestRepository) HasGroupAccess(testID, groupID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.TestGroupAccess{}).
		Where("test_id = ? AND group_id = ?", testID, groupID).
		Count(&count).Error
	return count > 0, err
}

// AttemptTotals are the headline aggregates of a test's attempts.
type AttemptTotals struct {
	TotalAttempts  int64      `json:"totalAttempts"`
	UniqueStudents int64      `json:"uniqueStudents"`
	LastAttempt    *time.Time `json:"lastAttempt"`
}

func (r *TestRepository) AttemptTotals(testID uint) (*AttemptTotals, error) {
	var totals AttemptTotals
	err := r.DB.Model(&model.TestAttempt{}).
		Where("test_id = ?", testID).
		Select("COUNT(id) AS total_attempts, COUNT(DISTINCT student_id) AS unique_students").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}

	// MAX() strips the column's declared type on sqlite, so the latest
	// start is read from the column itself.
	var latest []time.Time
	err = r.DB.Model(&model.TestAttempt{}).
		Where("test_id = ?", testID).
		Order("started_at desc").
		Limit(1).
		Pluck("started_at", &latest).Error
	if err != nil {
		return nil, err
	}
	if len(latest) > 0 {
		totals.LastAttempt = &latest[0]
	}
	return &totals, nil
}

const summaryCachePrefix = "test_summary:"

// CachedSummary returns a previously cached summary payload, or nil on a
// miss. Caching is best-effort: without redis every call recomputes.
func (r *TestRepository) CachedSummary(ctx context.Context, testID uint, out interface{}) bool {
	if r.RDB == nil {
		return false
	}
	raw, err := r.RDB.Get(ctx, summaryCacheKey(testID)).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (r *TestRepository) CacheSummary(ctx context.Context, testID uint, summary interface{}, ttl time.Duration) {
	if r.RDB == nil {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	r.RDB.Set(ctx, summaryCacheKey(testID), raw, ttl)
}

func (r *TestRepository) InvalidateSummary(ctx context.Context, testID uint) {
	if r.RDB == nil {
		return
	}
	r.RDB.Del(ctx, summaryCacheKey(testID))
}

func summaryCacheKey(testID uint) string {
	return summaryCachePrefix + strconv.FormatUint(uint64(testID), 10)
}
