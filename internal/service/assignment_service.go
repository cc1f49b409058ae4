package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mathbingo/mathbingo-go-api/internal/dto"
	"github.com/mathbingo/mathbingo-go-api/internal/models"
	"github.com/mathbingo/mathbingo-go-api/internal/repository"
)

// AssignmentService manages assignment aggregates on behalf of admins.
type AssignmentService interface {
	Create(ctx context.Context, caller Caller, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error)
	Get(ctx context.Context, caller Caller, assignmentID uuid.UUID) (dto.AssignmentResponse, error)
	List(ctx context.Context, caller Caller, payload dto.AssignmentListRequest) (dto.AssignmentListResponse, error)
	AssignStudents(ctx context.Context, caller Caller, assignmentID uuid.UUID, payload dto.AssignStudentsRequest) (dto.AssignmentResponse, error)
}

type assignmentService struct {
	assignments repository.AssignmentRepository
	progress    repository.ProgressRepository
	users       repository.UserRepository
	validate    *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAssignmentService wires an assignment service with its dependencies.
func NewAssignmentService(
	assignments repository.AssignmentRepository,
	progress repository.ProgressRepository,
	users repository.UserRepository,
	validate *validator.Validate,
	logger zerolog.Logger,
) AssignmentService {
	return &assignmentService{
		assignments: assignments,
		progress:    progress,
		users:       users,
		validate:    validate,
		logger:      logger.With().Str("component", "assignment_service").Logger(),
		now:         time.Now,
	}
}

func (s *assignmentService) Create(ctx context.Context, caller Caller, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error) {
	if err := s.validate.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	dueDate, err := time.Parse(time.RFC3339, payload.DueDate)
	if err != nil {
		return dto.AssignmentResponse{}, NewValidationError("due_date must be an RFC 3339 timestamp")
	}
	if dueDate.Before(s.now()) {
		return dto.AssignmentResponse{}, NewValidationError("due_date must not be in the past")
	}

	optionSets, err := ValidateOptionSets(payload.OptionSets, payload.TotalQuestions)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	studentIDs, err := parseStudentIDs(payload.StudentIDs)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	if err := s.ensureApprovedStudents(ctx, studentIDs); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment := models.Assignment{
		ID:             uuid.New(),
		Title:          strings.TrimSpace(payload.Title),
		Description:    strings.TrimSpace(payload.Description),
		TotalQuestions: payload.TotalQuestions,
		CreatedBy:      caller.ID,
		DueDate:        dueDate,
	}
	assignment.SetOptionSets(optionSets)

	for _, studentID := range studentIDs {
		assignment.Students = append(assignment.Students, models.NewStudentProgress(assignment.ID, studentID))
	}

	if err := s.assignments.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().
		Str("assignment_id", assignment.ID.String()).
		Str("created_by", caller.ID.String()).
		Int("students", len(assignment.Students)).
		Int("option_sets", len(optionSets)).
		Msg("assignment created")

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Get(ctx context.Context, caller Caller, assignmentID uuid.UUID) (dto.AssignmentResponse, error) {
	assignment, err := s.ownedAssignment(ctx, caller, assignmentID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) List(ctx context.Context, caller Caller, payload dto.AssignmentListRequest) (dto.AssignmentListResponse, error) {
	if err := s.validate.Struct(payload); err != nil {
		return dto.AssignmentListResponse{}, err
	}

	page, pageSize := normalizePage(payload.Page, payload.PageSize)
	assignments, total, err := s.assignments.ListByOwner(ctx, repository.AssignmentFilter{
		OwnerID:  caller.ID,
		Search:   payload.Search,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return dto.AssignmentListResponse{}, err
	}

	responses := make([]dto.AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, dto.NewAssignmentResponse(assignment))
	}

	return dto.AssignmentListResponse{
		Assignments: responses,
		Pagination:  dto.NewPagination(page, pageSize, total),
	}, nil
}

func (s *assignmentService) AssignStudents(ctx context.Context, caller Caller, assignmentID uuid.UUID, payload dto.AssignStudentsRequest) (dto.AssignmentResponse, error) {
	if err := s.validate.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	studentIDs, err := parseStudentIDs(payload.StudentIDs)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.ownedAssignment(ctx, caller, assignmentID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	if assignment.IsPastDue(s.now()) {
		return dto.AssignmentResponse{}, NewValidationError("cannot assign students to an overdue assignment")
	}

	if err := s.ensureApprovedStudents(ctx, studentIDs); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assigned := make(map[uuid.UUID]bool, len(assignment.Students))
	for _, progress := range assignment.Students {
		assigned[progress.StudentID] = true
	}

	var duplicates []string
	rows := make([]models.StudentProgress, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		if assigned[studentID] {
			duplicates = append(duplicates, studentID.String())
			continue
		}
		rows = append(rows, models.NewStudentProgress(assignment.ID, studentID))
	}
	if len(duplicates) > 0 {
		return dto.AssignmentResponse{}, NewValidationError(
			"students already assigned: %s", strings.Join(duplicates, ", "))
	}

	if err := s.progress.CreateBatch(ctx, rows); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().
		Str("assignment_id", assignment.ID.String()).
		Int("students_added", len(rows)).
		Msg("students assigned")

	refreshed, err := s.assignments.GetByID(ctx, assignment.ID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	return dto.NewAssignmentResponse(refreshed), nil
}

// ownedAssignment loads an assignment and verifies the caller created it.
func (s *assignmentService) ownedAssignment(ctx context.Context, caller Caller, assignmentID uuid.UUID) (models.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}
	if assignment.CreatedBy != caller.ID {
		return models.Assignment{}, ErrForbidden
	}

	return assignment, nil
}

// ensureApprovedStudents rejects the request unless every id belongs to an
// approved student account, naming the offenders.
func (s *assignmentService) ensureApprovedStudents(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	students, err := s.users.FindApprovedStudents(ctx, ids)
	if err != nil {
		return err
	}

	found := make(map[uuid.UUID]bool, len(students))
	for _, student := range students {
		found[student.ID] = true
	}

	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return NewValidationError("students not found or not approved: %s", strings.Join(missing, ", "))
	}

	return nil
}

// parseStudentIDs parses and deduplicates the requested ids, rejecting
// malformed or repeated entries.
func parseStudentIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	seen := make(map[uuid.UUID]bool, len(raw))

	var invalid, repeated []string
	for _, value := range raw {
		id, err := uuid.Parse(strings.TrimSpace(value))
		if err != nil {
			invalid = append(invalid, value)
			continue
		}
		if seen[id] {
			repeated = append(repeated, id.String())
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	if len(invalid) > 0 {
		sort.Strings(invalid)
		return nil, NewValidationError("invalid student ids: %s", strings.Join(invalid, ", "))
	}
	if len(repeated) > 0 {
		sort.Strings(repeated)
		return nil, NewValidationError("duplicate student ids: %s", strings.Join(repeated, ", "))
	}

	return ids, nil
}

// normalizePage applies the default paging window.
func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	return page, pageSize
}
