package dto

import (
	"time"

	"github.com/mathbingo/mathbingo-go-api/internal/models"
)

// RandomSettingsRequest mirrors the caller-supplied random toggles; absent
// flags default to true during normalization.
type RandomSettingsRequest struct {
	Operators *bool `json:"operators"`
	Equals    *bool `json:"equals"`
	Heavy     *bool `json:"heavy"`
	Blank     *bool `json:"blank"`
	Zero      *bool `json:"zero"`
}

// OptionBagRequest is the raw question-generation parameter bag as submitted
// by callers. The three lock-flag aliases exist because upstream clients
// never agreed on a field name; JSON field matching is case-insensitive, so
// the historical case variants (islockpos, poslockmode, ...) land here too.
type OptionBagRequest struct {
	TotalCount    *int    `json:"totalCount"`
	OperatorMode  *string `json:"operatorMode"`
	OperatorCount *int    `json:"operatorCount"`

	SpecificOperators *models.SpecificOperators `json:"specificOperators"`

	EqualsCount      *int `json:"equalsCount"`
	HeavyNumberCount *int `json:"heavyNumberCount"`
	BlankCount       *int `json:"blankCount"`
	ZeroCount        *int `json:"zeroCount"`

	OperatorCounts *models.OperatorCounts `json:"operatorCounts"`
	OperatorFixed  *models.OperatorFixed  `json:"operatorFixed"`

	EqualsMode      *string `json:"equalsMode"`
	EqualsMin       *int    `json:"equalsMin"`
	EqualsMax       *int    `json:"equalsMax"`
	HeavyNumberMode *string `json:"heavyNumberMode"`
	HeavyNumberMin  *int    `json:"heavyNumberMin"`
	HeavyNumberMax  *int    `json:"heavyNumberMax"`
	BlankMode       *string `json:"blankMode"`
	BlankMin        *int    `json:"blankMin"`
	BlankMax        *int    `json:"blankMax"`
	ZeroMode        *string `json:"zeroMode"`
	ZeroMin         *int    `json:"zeroMin"`
	ZeroMax         *int    `json:"zeroMax"`
	OperatorMin     *int    `json:"operatorMin"`
	OperatorMax     *int    `json:"operatorMax"`

	RandomSettings *RandomSettingsRequest `json:"randomSettings"`

	LockMode         *FlexBool `json:"lockMode"`
	IsLockPos        *FlexBool `json:"isLockPos"`
	IsLockPosition   *FlexBool `json:"isLockPosition"`
	LockPositionMode *FlexBool `json:"lockPositionMode"`
	PosLockMode      *FlexBool `json:"posLockMode"`
}

// OptionSetRequest is one caller-supplied option set definition.
type OptionSetRequest struct {
	Options      *OptionBagRequest `json:"options"`
	NumQuestions *int              `json:"numQuestions"`
	SetLabel     string            `json:"setLabel"`
}

// AssignmentCreateRequest describes the payload for creating a new assignment.
type AssignmentCreateRequest struct {
	Title          string             `json:"title" validate:"required,max=200"`
	Description    string             `json:"description" validate:"required,max=1000"`
	TotalQuestions int                `json:"total_questions" validate:"required,min=1,max=100"`
	DueDate        string             `json:"due_date" validate:"required"`
	StudentIDs     []string           `json:"student_ids" validate:"omitempty,dive,required"`
	OptionSets     []OptionSetRequest `json:"option_sets"`
}

// AssignStudentsRequest describes the payload for assigning students to an
// existing assignment.
type AssignStudentsRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,required"`
}

// StatusUpdateRequest carries the admin status override target.
type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required"`
}

// AssignmentListRequest filters the admin assignment listing.
type AssignmentListRequest struct {
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Search   string `query:"search"`
}

// StatusBreakdown counts students per status.
type StatusBreakdown struct {
	Todo       int `json:"todo"`
	InProgress int `json:"inprogress"`
	Complete   int `json:"complete"`
	Done       int `json:"done"`
}

// AssignmentStatistics aggregates per-assignment completion figures.
type AssignmentStatistics struct {
	TotalStudents   int             `json:"total_students"`
	StatusBreakdown StatusBreakdown `json:"status_breakdown"`
	CompletionRate  int             `json:"completion_rate"`
}

// AssignmentResponse is the serialized aggregate returned to admins,
// enriched with per-student progress and summary statistics.
type AssignmentResponse struct {
	ID             string                    `json:"id"`
	Title          string                    `json:"title"`
	Description    string                    `json:"description"`
	TotalQuestions int                       `json:"total_questions"`
	CreatedBy      string                    `json:"created_by"`
	DueDate        time.Time                 `json:"due_date"`
	OptionSets     []models.OptionSet        `json:"option_sets"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
	Students       []StudentProgressResponse `json:"students"`
	Statistics     AssignmentStatistics      `json:"statistics"`
}

// NewAssignmentResponse converts an aggregate into its enriched DTO.
func NewAssignmentResponse(assignment models.Assignment) AssignmentResponse {
	students := make([]StudentProgressResponse, 0, len(assignment.Students))
	breakdown := StatusBreakdown{}
	for _, progress := range assignment.Students {
		students = append(students, NewStudentProgressResponse(progress, assignment.TotalQuestions))
		switch progress.Status {
		case models.StatusTodo:
			breakdown.Todo++
		case models.StatusInProgress:
			breakdown.InProgress++
		case models.StatusComplete:
			breakdown.Complete++
		case models.StatusDone:
			breakdown.Done++
		}
	}

	total := len(assignment.Students)
	completionRate := 0
	if total > 0 {
		completionRate = roundPercentage(breakdown.Complete+breakdown.Done, total)
	}

	return AssignmentResponse{
		ID:             assignment.ID.String(),
		Title:          assignment.Title,
		Description:    assignment.Description,
		TotalQuestions: assignment.TotalQuestions,
		CreatedBy:      assignment.CreatedBy.String(),
		DueDate:        assignment.DueDate,
		OptionSets:     assignment.OptionSetList(),
		CreatedAt:      assignment.CreatedAt,
		UpdatedAt:      assignment.UpdatedAt,
		Students:       students,
		Statistics: AssignmentStatistics{
			TotalStudents:   total,
			StatusBreakdown: breakdown,
			CompletionRate:  completionRate,
		},
	}
}

// AssignmentListResponse is the paginated admin assignment listing.
type AssignmentListResponse struct {
	Assignments []AssignmentResponse `json:"assignments"`
	Pagination  Pagination           `json:"pagination"`
}

// StudentAssignmentResponse is the student-facing view of one assignment,
// restricted to that student's own progress.
type StudentAssignmentResponse struct {
	ID              string                   `json:"id"`
	Title           string                   `json:"title"`
	Description     string                   `json:"description"`
	TotalQuestions  int                      `json:"total_questions"`
	DueDate         time.Time                `json:"due_date"`
	CreatedBy       string                   `json:"created_by"`
	CreatedAt       time.Time                `json:"created_at"`
	IsOverdue       bool                     `json:"is_overdue"`
	StudentProgress *StudentProgressResponse `json:"student_progress"`
}

// NewStudentAssignmentResponse builds the student-facing view.
func NewStudentAssignmentResponse(assignment models.Assignment, progress models.StudentProgress, now time.Time) StudentAssignmentResponse {
	enriched := NewStudentProgressResponse(progress, assignment.TotalQuestions)
	return StudentAssignmentResponse{
		ID:              assignment.ID.String(),
		Title:           assignment.Title,
		Description:     assignment.Description,
		TotalQuestions:  assignment.TotalQuestions,
		DueDate:         assignment.DueDate,
		CreatedBy:       assignment.CreatedBy.String(),
		CreatedAt:       assignment.CreatedAt,
		IsOverdue:       assignment.IsPastDue(now),
		StudentProgress: &enriched,
	}
}

// StudentAssignmentListResponse is the paginated student assignment listing.
type StudentAssignmentListResponse struct {
	Assignments []StudentAssignmentResponse `json:"assignments"`
	Pagination  Pagination                  `json:"pagination"`
}

func roundPercentage(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(float64(part)/float64(whole)*100 + 0.5)
}
