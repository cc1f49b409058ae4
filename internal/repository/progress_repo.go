package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mathbingo/mathbingo-go-api/internal/models"
)

// ErrVersionConflict indicates a versioned progress update lost a race with a
// concurrent writer; callers re-read and retry.
var ErrVersionConflict = errors.New("progress row was modified concurrently")

// ProgressRepository defines persistence operations for per-student progress rows.
type ProgressRepository interface {
	Get(ctx context.Context, assignmentID, studentID uuid.UUID) (models.StudentProgress, error)
	ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]models.StudentProgress, error)
	CreateBatch(ctx context.Context, rows []models.StudentProgress) error
	UpdateVersioned(ctx context.Context, progress *models.StudentProgress) error
	UpdateColumns(ctx context.Context, assignmentID, studentID uuid.UUID, columns map[string]interface{}) error
}

type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository instantiates a GORM-backed repository.
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) Get(ctx context.Context, assignmentID, studentID uuid.UUID) (models.StudentProgress, error) {
	var progress models.StudentProgress
	err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		First(&progress).Error
	if err != nil {
		return models.StudentProgress{}, err
	}

	return progress, nil
}

func (r *progressRepository) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]models.StudentProgress, error) {
	var rows []models.StudentProgress
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (r *progressRepository) CreateBatch(ctx context.Context, rows []models.StudentProgress) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// UpdateVersioned writes the mutable progress fields conditioned on the
// version the caller read; zero rows affected means a concurrent writer won.
func (r *progressRepository) UpdateVersioned(ctx context.Context, progress *models.StudentProgress) error {
	result := r.db.WithContext(ctx).Model(&models.StudentProgress{}).
		Where("assignment_id = ? AND student_id = ? AND version = ?",
			progress.AssignmentID, progress.StudentID, progress.Version).
		Updates(map[string]interface{}{
			"status":                             progress.Status,
			"started_at":                         progress.StartedAt,
			"completed_at":                       progress.CompletedAt,
			"marked_done_at":                     progress.MarkedDoneAt,
			"answers":                            progress.Answers,
			"current_question_set":               progress.CurrentQuestionSet,
			"questions_completed_in_current_set": progress.QuestionsCompletedInCurrentSet,
			"current_question_elements":          progress.CurrentQuestionElements,
			"current_question_solution_tokens":   progress.CurrentQuestionSolutionTokens,
			"current_question_list_pos_lock":     progress.CurrentQuestionListPosLock,
			"version":                            progress.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}

	progress.Version++
	return nil
}

// UpdateColumns writes only the given columns, leaving siblings untouched so
// near-simultaneous pin requests cannot clobber each other's fields.
func (r *progressRepository) UpdateColumns(ctx context.Context, assignmentID, studentID uuid.UUID, columns map[string]interface{}) error {
	if len(columns) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).Model(&models.StudentProgress{}).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		UpdateColumns(columns)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
