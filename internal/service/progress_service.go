package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mathbingo/mathbingo-go-api/internal/dto"
	"github.com/mathbingo/mathbingo-go-api/internal/models"
	"github.com/mathbingo/mathbingo-go-api/internal/repository"
)

// Lock positions address a fixed solution strip; indexes beyond it are invalid.
const maxLockPosition = 20

// ProgressService manages per-student assignment progress: the status
// lifecycle, answer submissions, set advancement and the pinned in-flight
// question.
type ProgressService interface {
	Start(ctx context.Context, caller Caller, assignmentID, studentID uuid.UUID) (dto.StudentProgressResponse, error)
	SubmitAnswer(ctx context.Context, caller Caller, assignmentID, studentID uuid.UUID, payload dto.SubmitAnswerRequest) (dto.StudentProgressResponse, error)
	UpdateStatus(ctx context.Context, caller Caller, assignmentID, studentID uuid.UUID, payload dto.StatusUpdateRequest) (dto.StudentProgressResponse, error)
	GetCurrentOptionSet(ctx context.Context, caller Caller, assignmentID, studentID uuid.UUID) (dto.CurrentOptionSetResponse, error)
	PinCurrentQuestion(ctx context.Context, caller Caller, assignmentID, studentID uuid.UUID, payload dto.PinQuestionRequest) (dto.PinnedStateResponse, error)
	GetStudentAnswers(ctx context.Context, caller Caller, assignmentID, studentID uuid.UUID) (dto.StudentAnswersResponse, error)
	GetStudentAssignment(ctx context.Context, caller Caller, studentID, assignmentID uuid.UUID) (dto.StudentAssignmentResponse, error)
	ListStudentAssignments(ctx context.Context, caller Caller, studentID uuid.UUID, payload dto.StudentAssignmentListRequest) (dto.StudentAssignmentListResponse, error)
}

type progressService struct {
	assignments repository.AssignmentRepository
	progress    repository.ProgressRepository
	validate    *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewProgressService wires a progress service with its dependencies.
func NewProgressService(
	assignments repository.AssignmentRepository,
	progress repository.ProgressRepository,
	validate *validator.Validate,
	logger zerolog.Logger,
) ProgressService {
	return &progressService{
		assignments: assignments,
		progress:    progress,
		validate:    validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "progress_service").Logger(),
		now:         time.Now,
	}
}

func (s *progressService) Start(ctx context.Context, caller Caller, assignmentID, studentID uuid.UUID) (dto.StudentProgressResponse, error) {
	if !caller.CanActFor(studentID) {
		return dto.StudentProgressResponse{}, ErrForbidden
	}

	assignment, err := s.assignment(ctx, assignmentID)
	if err != nil {
		return dto.StudentProgressResponse{}, err
	}
	if assignment.IsPastDue(s.now()) {
		return dto.StudentProgressResponse{}, NewValidationError("assignment is overdue")
	}

	progress, err := s.updateWithRetry(ctx, assignmentID, studentID, func(p *models.StudentProgress) error {
		if p.Status != models.StatusTodo {
			return NewValidationError("cannot start assignment from status %q", p.Status)
		}
		startedAt := s.now()
		p.Status = models.StatusInProgress
		p.StartedAt = &startedAt
		return nil
	})
	if err != nil {
		return dto.StudentProgressResponse{}, err
	}

	s.logger.Info().
		Str("assignment_id", assignmentID.String()).
		Str("student_id", studentID.String()).
		Msg("assignment started")

	return dto.NewStudentProgressResponse(progress, assignment.TotalQuestions), nil
}

func (s *progressService) SubmitAnswer(ctx context.Context, caller Caller, assignmentID, studentID uuid.UUID, payload dto.SubmitAnswerRequest) (dto.StudentProgressResponse, error) {
	if !caller.CanActFor(studentID) {
		return dto.StudentProgressResponse{}, ErrForbidden
	}
	if err := s.validate.Struct(payload); err != nil {
		return dto.StudentProgressResponse{}, err
	}
	if payload.QuestionNumber < 1 {
		return dto.StudentProgressResponse{}, NewValidationError("question_number must be at least 1")
	}

	assignment, err := s.assignment(ctx, assignmentID)
	if err != nil {
		return dto.StudentProgressResponse{}, err
	}
	if assignment.IsPastDue(s.now()) {
		return dto.StudentProgressResponse{}, NewValidationError("assignment is overdue")
	}
	if payload.QuestionNumber > assignment.TotalQuestions {
		return dto.StudentProgressResponse{}, NewValidationError(
			"question_number %d exceeds the assignment's %d questions",
			payload.QuestionNumber, assignment.TotalQuestions)
	}

	optionSets := assignment.OptionSetList()

	progress, err := s.updateWithRetry(ctx, assignmentID, studentID, func(p *models.StudentProgress) error {
		if p.Status != models.StatusInProgress {
			return NewValidationError("cannot submit an answer from status %q", p.Status)
		}

		if payload.ListPosLock != nil && lockPositionsEnabled(optionSets, p.CurrentQuestionSet) {
			if err := validateLockEntries(*payload.ListPosLock); err != nil {
				return err
			}
		}

		answer := models.Answer{
			QuestionNumber: payload.QuestionNumber,
			QuestionText:   s.sanitizer.Sanitize(strings.TrimSpace(payload.QuestionText)),
			AnswerText:     s.sanitizer.Sanitize(strings.TrimSpace(payload.AnswerText)),
			AnsweredAt:     s.now(),
		}
		if payload.ListPosLock != nil {
			answer.ListPosLock = toLockedPos(*payload.ListPosLock)
		} else {
			answer.ListPosLock = p.LockPosList()
		}

		answers := p.AnswerList()
		replaced := false
		for i := range answers {
			if answers[i].QuestionNumber == payload.QuestionNumber {
				answers[i] = answer
				replaced = true
				break
			}
		}
		if !replaced {
			answers = append(answers, answer)
			p.QuestionsCompletedInCurrentSet++
		}
		p.SetAnswers(answers)

		// The in-flight question is consumed; the next pin starts fresh.
		p.CurrentQuestionSolutionTokens = nil
		p.CurrentQuestionListPosLock = nil

		if p.CurrentQuestionSet < len(optionSets) &&
			p.QuestionsCompletedInCurrentSet >= optionSets[p.CurrentQuestionSet].NumQuestions &&
			p.CurrentQuestionSet+1 < len(optionSets) {
			p.CurrentQuestionSet++
			p.QuestionsCompletedInCurrentSet = 0
		}

		if len(answers) >= assignment.TotalQuestions {
			completedAt := s.now()
			p.Status = models.StatusComplete
			p.CompletedAt = &completedAt
		}
		return nil
	})
	if err != nil {
		return dto.StudentProgressResponse{}, err
	}

	s.logger.Info().
		Str("assignment_id", assignmentID.String()).
		Str("student_id", studentID.String()).
		Int("question_number", payload.QuestionNumber).
		Str("status", progress.Status).
		Msg("answer recorded")

	return dto.NewStudentProgressResponse(progress, assignment.TotalQuestions), nil
}

// UpdateStatus is the admin override. Any recognised status is accepted,
// including moves backwards; the one guarded transition is done, which is
// only reachable from complete.
func (s *progressService) UpdateStatus(ctx context.Context, caller Caller, assignmentID, studentID uuid.UUID, payload dto.StatusUpdateRequest) (dto.StudentProgressResponse, error) {
	if err := s.validate.Struct(payload); err != nil {
		return dto.StudentProgressResponse{}, err
	}
	if !models.IsValidStatus(payload.Status) {
		return dto.StudentProgressResponse{}, NewValidationError(
			"status must be one of: %s", strings.Join(models.Statuses, ", "))
	}

	assignment, err := s.assignment(ctx, assignmentID)
	if err != nil {
		return dto.StudentProgressResponse{}, err
	}
	if assignment.CreatedBy != caller.ID {
		return dto.StudentProgressResponse{}, ErrForbidden
	}

	progress, err := s.updateWithRetry(ctx, assignmentID, studentID, func(p *models.StudentProgress) error {
		if payload.Status == models.StatusDone && p.Status != models.StatusComplete {
			return NewValidationError("can only mark done from status %q", models.StatusComplete)
		}
		p.Status = payload.Status
		if payload.Status == models.StatusDone {
			markedAt := s.now()
			p.MarkedDoneAt = &markedAt
		}
		return nil
	})
	if err != nil {
		return dto.StudentProgressResponse{}, err
	}

	s.logger.Info().
		Str("assignment_id", assignmentID.String()).
		Str("student_id", studentID.String()).
		Str("status", payload.Status).
		Msg("status overridden")

	return dto.NewStudentProgressResponse(progress, assignment.TotalQuestions), nil
}

func (s *progressService) GetCurrentOptionSet(ctx context.Context, caller Caller, assignmentID, studentID uuid.UUID) (dto.CurrentOptionSetResponse, error) {
	if !caller.CanActFor(studentID) {
		return dto.CurrentOptionSetResponse{}, ErrForbidden
	}

	assignment, err := s.assignment(ctx, assignmentID)
	if err != nil {
		return dto.CurrentOptionSetResponse{}, err
	}
	progress, err := s.progressRow(ctx, assignmentID, studentID)
	if err != nil {
		return dto.CurrentOptionSetResponse{}, err
	}

	optionSets := assignment.OptionSetList()
	response := dto.CurrentOptionSetResponse{
		CurrentSetIndex:               -1,
		TotalSets:                     len(optionSets),
		CurrentQuestionElements:       progress.ElementList(),
		CurrentQuestionSolutionTokens: progress.SolutionTokenList(),
		CurrentQuestionListPosLock:    progress.LockPosList(),
	}

	if progress.CurrentQuestionSet >= 0 && progress.CurrentQuestionSet < len(optionSets) {
		current := optionSets[progress.CurrentQuestionSet]
		response.CurrentSet = &current
		response.CurrentSetIndex = progress.CurrentQuestionSet
		response.QuestionsCompleted = progress.QuestionsCompletedInCurrentSet
		response.ShouldProgress = progress.QuestionsCompletedInCurrentSet >= current.NumQuestions
	}

	return response, nil
}

// PinCurrentQuestion persists the generated in-flight question. Elements are
// write-once until a submission clears them, solution tokens may be replaced
// by a non-empty set, and the lock positions stick until a different
// non-empty set arrives.
func (s *progressService) PinCurrentQuestion(ctx context.Context, caller Caller, assignmentID, studentID uuid.UUID, payload dto.PinQuestionRequest) (dto.PinnedStateResponse, error) {
	if !caller.CanActFor(studentID) {
		return dto.PinnedStateResponse{}, ErrForbidden
	}
	if len(payload.Elements) == 0 {
		return dto.PinnedStateResponse{}, NewValidationError("elements must be a non-empty list")
	}
	if payload.ListPosLock != nil {
		if err := validateLockEntries(*payload.ListPosLock); err != nil {
			return dto.PinnedStateResponse{}, err
		}
	}

	if _, err := s.assignment(ctx, assignmentID); err != nil {
		return dto.PinnedStateResponse{}, err
	}
	progress, err := s.progressRow(ctx, assignmentID, studentID)
	if err != nil {
		return dto.PinnedStateResponse{}, err
	}

	columns := map[string]interface{}{}
	if len(progress.ElementList()) == 0 {
		columns["current_question_elements"] = mustJSON(payload.Elements)
	}
	if len(payload.SolutionTokens) > 0 {
		columns["current_question_solution_tokens"] = mustJSON(payload.SolutionTokens)
	}
	if payload.ListPosLock != nil {
		supplied := toLockedPos(*payload.ListPosLock)
		existing := progress.LockPosList()
		if len(existing) == 0 || (len(supplied) > 0 && !sameLockSet(existing, supplied)) {
			columns["current_question_list_pos_lock"] = mustJSON(supplied)
		}
	}

	if len(columns) > 0 {
		if err := s.progress.UpdateColumns(ctx, assignmentID, studentID, columns); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.PinnedStateResponse{}, ErrStudentNotAssigned
			}
			return dto.PinnedStateResponse{}, err
		}
		progress, err = s.progressRow(ctx, assignmentID, studentID)
		if err != nil {
			return dto.PinnedStateResponse{}, err
		}
	}

	return dto.NewPinnedStateResponse(progress), nil
}

func (s *progressService) GetStudentAnswers(ctx context.Context, caller Caller, assignmentID, studentID uuid.UUID) (dto.StudentAnswersResponse, error) {
	if !caller.CanActFor(studentID) {
		return dto.StudentAnswersResponse{}, ErrForbidden
	}

	assignment, err := s.assignment(ctx, assignmentID)
	if err != nil {
		return dto.StudentAnswersResponse{}, err
	}
	progress, err := s.progressRow(ctx, assignmentID, studentID)
	if err != nil {
		return dto.StudentAnswersResponse{}, err
	}

	answers := progress.AnswerList()
	sort.SliceStable(answers, func(i, j int) bool {
		if answers[i].QuestionNumber != answers[j].QuestionNumber {
			return answers[i].QuestionNumber < answers[j].QuestionNumber
		}
		return answers[i].AnsweredAt.Before(answers[j].AnsweredAt)
	})

	views := make([]dto.AnswerView, 0, len(answers))
	for _, answer := range answers {
		views = append(views, dto.AnswerView{
			QuestionNumber: answer.QuestionNumber,
			QuestionText:   answer.QuestionText,
			AnswerText:     answer.AnswerText,
			AnsweredAt:     answer.AnsweredAt,
		})
	}

	return dto.StudentAnswersResponse{
		StudentID:      studentID.String(),
		AssignmentID:   assignmentID.String(),
		TotalQuestions: assignment.TotalQuestions,
		Answers:        views,
		AnsweredCount:  len(views),
	}, nil
}

func (s *progressService) GetStudentAssignment(ctx context.Context, caller Caller, studentID, assignmentID uuid.UUID) (dto.StudentAssignmentResponse, error) {
	if !caller.CanActFor(studentID) {
		return dto.StudentAssignmentResponse{}, ErrForbidden
	}

	assignment, err := s.assignment(ctx, assignmentID)
	if err != nil {
		return dto.StudentAssignmentResponse{}, err
	}
	progress, err := s.progressRow(ctx, assignmentID, studentID)
	if err != nil {
		return dto.StudentAssignmentResponse{}, err
	}

	return dto.NewStudentAssignmentResponse(assignment, progress, s.now()), nil
}

func (s *progressService) ListStudentAssignments(ctx context.Context, caller Caller, studentID uuid.UUID, payload dto.StudentAssignmentListRequest) (dto.StudentAssignmentListResponse, error) {
	if !caller.CanActFor(studentID) {
		return dto.StudentAssignmentListResponse{}, ErrForbidden
	}
	if err := s.validate.Struct(payload); err != nil {
		return dto.StudentAssignmentListResponse{}, err
	}

	page, pageSize := normalizePage(payload.Page, payload.PageSize)
	assignments, total, err := s.assignments.ListForStudent(ctx, studentID, page, pageSize)
	if err != nil {
		return dto.StudentAssignmentListResponse{}, err
	}

	now := s.now()
	responses := make([]dto.StudentAssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		if len(assignment.Students) == 0 {
			continue
		}
		progress := assignment.Students[0]
		if payload.Status != "" && progress.Status != payload.Status {
			continue
		}
		responses = append(responses, dto.NewStudentAssignmentResponse(assignment, progress, now))
	}

	return dto.StudentAssignmentListResponse{
		Assignments: responses,
		Pagination:  dto.NewPagination(page, pageSize, total),
	}, nil
}

// updateWithRetry runs a read-validate-mutate-write cycle against the
// versioned progress row, retrying once when a concurrent writer wins.
func (s *progressService) updateWithRetry(ctx context.Context, assignmentID, studentID uuid.UUID, mutate func(*models.StudentProgress) error) (models.StudentProgress, error) {
	for attempt := 0; attempt < 2; attempt++ {
		progress, err := s.progressRow(ctx, assignmentID, studentID)
		if err != nil {
			return models.StudentProgress{}, err
		}
		if err := mutate(&progress); err != nil {
			return models.StudentProgress{}, err
		}

		err = s.progress.UpdateVersioned(ctx, &progress)
		if err == nil {
			return progress, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return models.StudentProgress{}, err
		}
	}

	return models.StudentProgress{}, fmt.Errorf("progress update kept losing races: %w", repository.ErrVersionConflict)
}

func (s *progressService) assignment(ctx context.Context, assignmentID uuid.UUID) (models.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}
	return assignment, nil
}

func (s *progressService) progressRow(ctx context.Context, assignmentID, studentID uuid.UUID) (models.StudentProgress, error) {
	progress, err := s.progress.Get(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.StudentProgress{}, ErrStudentNotAssigned
		}
		return models.StudentProgress{}, err
	}
	return progress, nil
}

// lockPositionsEnabled reports whether the student's current set locks
// solution positions.
func lockPositionsEnabled(optionSets []models.OptionSet, currentSet int) bool {
	if currentSet < 0 || currentSet >= len(optionSets) {
		return false
	}
	return optionSets[currentSet].Options.IsLockPos
}

// validateLockEntries rejects malformed lock positions.
func validateLockEntries(entries []dto.LockedPosInput) error {
	for i, entry := range entries {
		if entry.Pos < 0 || entry.Pos >= maxLockPosition {
			return NewValidationError("list_pos_lock[%d].pos must be between 0 and %d", i, maxLockPosition-1)
		}
		if strings.TrimSpace(entry.Value) == "" {
			return NewValidationError("list_pos_lock[%d].value must not be empty", i)
		}
	}
	return nil
}

func toLockedPos(entries []dto.LockedPosInput) []models.LockedPos {
	locks := make([]models.LockedPos, 0, len(entries))
	for _, entry := range entries {
		locks = append(locks, models.LockedPos{Pos: entry.Pos, Value: entry.Value})
	}
	sort.SliceStable(locks, func(i, j int) bool { return locks[i].Pos < locks[j].Pos })
	return locks
}

// sameLockSet compares two lock sets ignoring order.
func sameLockSet(a, b []models.LockedPos) bool {
	if len(a) != len(b) {
		return false
	}
	sorted := make([]models.LockedPos, len(a))
	copy(sorted, a)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Pos < sorted[j].Pos })
	for i := range sorted {
		if sorted[i] != b[i] {
			return false
		}
	}
	return true
}

func mustJSON(v interface{}) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("null"))
	}
	return datatypes.JSON(data)
}
