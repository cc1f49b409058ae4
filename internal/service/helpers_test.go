package service

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mathbingo/mathbingo-go-api/internal/models"
	"github.com/mathbingo/mathbingo-go-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func mustUUID(t *testing.T, raw string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(raw)
	require.NoError(t, err)
	return id
}

type memoryProgressRepo struct {
	rows []models.StudentProgress

	// conflictsLeft makes the next N versioned updates lose the race.
	conflictsLeft int
	nextID        uint
}

func newMemoryProgressRepo() *memoryProgressRepo {
	return &memoryProgressRepo{nextID: 1}
}

func (m *memoryProgressRepo) Get(_ context.Context, assignmentID, studentID uuid.UUID) (models.StudentProgress, error) {
	for _, row := range m.rows {
		if row.AssignmentID == assignmentID && row.StudentID == studentID {
			return row, nil
		}
	}
	return models.StudentProgress{}, gorm.ErrRecordNotFound
}

func (m *memoryProgressRepo) ListByAssignment(_ context.Context, assignmentID uuid.UUID) ([]models.StudentProgress, error) {
	var rows []models.StudentProgress
	for _, row := range m.rows {
		if row.AssignmentID == assignmentID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (m *memoryProgressRepo) CreateBatch(_ context.Context, rows []models.StudentProgress) error {
	for _, row := range rows {
		row.ID = m.nextID
		row.CreatedAt = time.Now().Add(time.Duration(m.nextID) * time.Millisecond)
		m.nextID++
		m.rows = append(m.rows, row)
	}
	return nil
}

func (m *memoryProgressRepo) UpdateVersioned(_ context.Context, progress *models.StudentProgress) error {
	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		return repository.ErrVersionConflict
	}

	for i, row := range m.rows {
		if row.AssignmentID == progress.AssignmentID && row.StudentID == progress.StudentID {
			if row.Version != progress.Version {
				return repository.ErrVersionConflict
			}
			updated := *progress
			updated.ID = row.ID
			updated.CreatedAt = row.CreatedAt
			updated.Version = row.Version + 1
			m.rows[i] = updated
			progress.Version = updated.Version
			return nil
		}
	}
	return repository.ErrVersionConflict
}

func (m *memoryProgressRepo) UpdateColumns(_ context.Context, assignmentID, studentID uuid.UUID, columns map[string]interface{}) error {
	for i, row := range m.rows {
		if row.AssignmentID != assignmentID || row.StudentID != studentID {
			continue
		}
		for column, value := range columns {
			raw, _ := value.(datatypes.JSON)
			switch column {
			case "current_question_elements":
				row.CurrentQuestionElements = raw
			case "current_question_solution_tokens":
				row.CurrentQuestionSolutionTokens = raw
			case "current_question_list_pos_lock":
				row.CurrentQuestionListPosLock = raw
			}
		}
		m.rows[i] = row
		return nil
	}
	return gorm.ErrRecordNotFound
}

type memoryAssignmentRepo struct {
	assignments map[uuid.UUID]models.Assignment
	order       []uuid.UUID
	progress    *memoryProgressRepo
}

func newMemoryAssignmentRepo(progress *memoryProgressRepo) *memoryAssignmentRepo {
	return &memoryAssignmentRepo{
		assignments: make(map[uuid.UUID]models.Assignment),
		progress:    progress,
	}
}

func (m *memoryAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	assignment.CreatedAt = time.Now()
	assignment.UpdatedAt = assignment.CreatedAt

	if err := m.progress.CreateBatch(ctx, assignment.Students); err != nil {
		return err
	}

	stored := *assignment
	stored.Students = nil
	m.assignments[stored.ID] = stored
	m.order = append(m.order, stored.ID)
	return nil
}

func (m *memoryAssignmentRepo) GetByID(ctx context.Context, id uuid.UUID) (models.Assignment, error) {
	assignment, ok := m.assignments[id]
	if !ok {
		return models.Assignment{}, gorm.ErrRecordNotFound
	}
	students, _ := m.progress.ListByAssignment(ctx, id)
	assignment.Students = students
	return assignment, nil
}

func (m *memoryAssignmentRepo) ListByOwner(ctx context.Context, filter repository.AssignmentFilter) ([]models.Assignment, int64, error) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var matched []models.Assignment
	for _, id := range m.order {
		assignment := m.assignments[id]
		if assignment.CreatedBy != filter.OwnerID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(assignment.Title), search) &&
			!strings.Contains(strings.ToLower(assignment.Description), search) {
			continue
		}
		students, _ := m.progress.ListByAssignment(ctx, id)
		assignment.Students = students
		matched = append(matched, assignment)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return paginateAssignments(matched, filter.Page, filter.PageSize)
}

func (m *memoryAssignmentRepo) ListForStudent(ctx context.Context, studentID uuid.UUID, page, pageSize int) ([]models.Assignment, int64, error) {
	var matched []models.Assignment
	for _, id := range m.order {
		assignment := m.assignments[id]
		row, err := m.progress.Get(ctx, id, studentID)
		if err != nil {
			continue
		}
		assignment.Students = []models.StudentProgress{row}
		matched = append(matched, assignment)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return paginateAssignments(matched, page, pageSize)
}

func paginateAssignments(matched []models.Assignment, page, pageSize int) ([]models.Assignment, int64, error) {
	total := int64(len(matched))
	if pageSize > 0 {
		if page <= 0 {
			page = 1
		}
		start := (page - 1) * pageSize
		if start >= len(matched) {
			return []models.Assignment{}, total, nil
		}
		end := start + pageSize
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

type memoryUserRepo struct {
	users map[uuid.UUID]models.User
	order []uuid.UUID
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[uuid.UUID]models.User)}
}

func (m *memoryUserRepo) Create(_ context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = *user
	m.order = append(m.order, user.ID)
	return nil
}

func (m *memoryUserRepo) Update(_ context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	user.UpdatedAt = time.Now()
	m.users[user.ID] = *user
	return nil
}

func (m *memoryUserRepo) GetByID(_ context.Context, id uuid.UUID) (models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (m *memoryUserRepo) GetByUsername(_ context.Context, username string) (models.User, error) {
	for _, id := range m.order {
		if m.users[id].Username == username {
			return m.users[id], nil
		}
	}
	return models.User{}, gorm.ErrRecordNotFound
}

func (m *memoryUserRepo) FindApprovedStudents(_ context.Context, ids []uuid.UUID) ([]models.User, error) {
	var matched []models.User
	for _, id := range ids {
		if user, ok := m.users[id]; ok && user.IsApprovedStudent() {
			matched = append(matched, user)
		}
	}
	return matched, nil
}

func (m *memoryUserRepo) ListApprovedStudents(_ context.Context) ([]models.User, error) {
	var matched []models.User
	for _, id := range m.order {
		if m.users[id].IsApprovedStudent() {
			matched = append(matched, m.users[id])
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].FirstName != matched[j].FirstName {
			return matched[i].FirstName < matched[j].FirstName
		}
		return matched[i].LastName < matched[j].LastName
	})
	return matched, nil
}

func (m *memoryUserRepo) ListPendingStudents(_ context.Context) ([]models.User, error) {
	var matched []models.User
	for _, id := range m.order {
		user := m.users[id]
		if user.Role == models.RoleStudent && user.Status == models.UserStatusPending {
			matched = append(matched, user)
		}
	}
	return matched, nil
}

func (m *memoryUserRepo) ListStudents(_ context.Context, filter repository.StudentFilter) ([]models.User, int64, error) {
	var matched []models.User
	for _, id := range m.order {
		user := m.users[id]
		if user.Role != models.RoleStudent {
			continue
		}
		if filter.Status != "" && user.Status != filter.Status {
			continue
		}
		matched = append(matched, user)
	}

	total := int64(len(matched))
	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		start := (page - 1) * filter.PageSize
		if start >= len(matched) {
			return []models.User{}, total, nil
		}
		end := start + filter.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}

	return matched, total, nil
}

func approvedStudent(repo *memoryUserRepo, first, last string) models.User {
	user := models.User{
		Username:  strings.ToLower(first + "." + last),
		Role:      models.RoleStudent,
		Status:    models.UserStatusApproved,
		FirstName: first,
		LastName:  last,
		School:    "Riverside Elementary",
	}
	_ = repo.Create(context.Background(), &user)
	return user
}
