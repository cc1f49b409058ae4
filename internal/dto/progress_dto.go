package dto

import (
	"time"

	"github.com/mathbingo/mathbingo-go-api/internal/models"
)

// StudentProgressResponse is the enriched per-student progress view.
type StudentProgressResponse struct {
	StudentID                      string          `json:"student_id"`
	Status                         string          `json:"status"`
	StartedAt                      *time.Time      `json:"started_at,omitempty"`
	CompletedAt                    *time.Time      `json:"completed_at,omitempty"`
	MarkedDoneAt                   *time.Time      `json:"marked_done_at,omitempty"`
	Answers                        []models.Answer `json:"answers"`
	CurrentQuestionSet             int             `json:"current_question_set"`
	QuestionsCompletedInCurrentSet int             `json:"questions_completed_in_current_set"`
	ProgressPercentage             int             `json:"progress_percentage"`
	AnsweredQuestions              int             `json:"answered_questions"`
	RemainingQuestions             int             `json:"remaining_questions"`
}

// NewStudentProgressResponse enriches a progress row with derived figures.
func NewStudentProgressResponse(progress models.StudentProgress, totalQuestions int) StudentProgressResponse {
	answers := progress.AnswerList()
	if answers == nil {
		answers = []models.Answer{}
	}

	percentage := 0
	if totalQuestions > 0 {
		percentage = roundPercentage(len(answers), totalQuestions)
	}

	return StudentProgressResponse{
		StudentID:                      progress.StudentID.String(),
		Status:                         progress.Status,
		StartedAt:                      progress.StartedAt,
		CompletedAt:                    progress.CompletedAt,
		MarkedDoneAt:                   progress.MarkedDoneAt,
		Answers:                        answers,
		CurrentQuestionSet:             progress.CurrentQuestionSet,
		QuestionsCompletedInCurrentSet: progress.QuestionsCompletedInCurrentSet,
		ProgressPercentage:             percentage,
		AnsweredQuestions:              len(answers),
		RemainingQuestions:             totalQuestions - len(answers),
	}
}

// LockedPosInput is one caller-supplied lock-position entry.
type LockedPosInput struct {
	Pos   int    `json:"pos"`
	Value string `json:"value"`
}

// SubmitAnswerRequest describes an answer submission. ListPosLock is a
// pointer so an explicitly supplied empty array can be told apart from an
// omitted field; the pinned lock set is only used as fallback when the field
// was omitted entirely.
type SubmitAnswerRequest struct {
	QuestionNumber int               `json:"question_number"`
	QuestionText   string            `json:"question_text" validate:"required,max=1000"`
	AnswerText     string            `json:"answer_text" validate:"required,max=2000"`
	ListPosLock    *[]LockedPosInput `json:"list_pos_lock"`
}

// PinQuestionRequest persists the generated in-flight question so a refresh
// cannot silently regenerate it.
type PinQuestionRequest struct {
	Elements       []string          `json:"elements"`
	SolutionTokens []string          `json:"solution_tokens"`
	ListPosLock    *[]LockedPosInput `json:"list_pos_lock"`
}

// PinnedStateResponse echoes the pinned question state after a pin call.
type PinnedStateResponse struct {
	CurrentQuestionElements       []string           `json:"current_question_elements"`
	CurrentQuestionSolutionTokens []string           `json:"current_question_solution_tokens"`
	CurrentQuestionListPosLock    []models.LockedPos `json:"current_question_list_pos_lock"`
}

// NewPinnedStateResponse extracts the pinned state from a progress row.
func NewPinnedStateResponse(progress models.StudentProgress) PinnedStateResponse {
	return PinnedStateResponse{
		CurrentQuestionElements:       progress.ElementList(),
		CurrentQuestionSolutionTokens: progress.SolutionTokenList(),
		CurrentQuestionListPosLock:    progress.LockPosList(),
	}
}

// CurrentOptionSetResponse describes the student's current segment plus the
// pinned question state.
type CurrentOptionSetResponse struct {
	CurrentSet                    *models.OptionSet  `json:"current_set"`
	CurrentSetIndex               int                `json:"current_set_index"`
	QuestionsCompleted            int                `json:"questions_completed"`
	ShouldProgress                bool               `json:"should_progress"`
	TotalSets                     int                `json:"total_sets"`
	CurrentQuestionElements       []string           `json:"current_question_elements"`
	CurrentQuestionSolutionTokens []string           `json:"current_question_solution_tokens"`
	CurrentQuestionListPosLock    []models.LockedPos `json:"current_question_list_pos_lock"`
}

// AnswerView is the trimmed answer projection returned by the answers listing.
type AnswerView struct {
	QuestionNumber int       `json:"question_number"`
	QuestionText   string    `json:"question_text"`
	AnswerText     string    `json:"answer_text"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// StudentAnswersResponse lists a student's answers sorted by question number
// and answer time.
type StudentAnswersResponse struct {
	StudentID      string       `json:"student_id"`
	AssignmentID   string       `json:"assignment_id"`
	TotalQuestions int          `json:"total_questions"`
	Answers        []AnswerView `json:"answers"`
	AnsweredCount  int          `json:"answered_count"`
}

// StudentAssignmentListRequest filters the student's own assignment listing.
type StudentAssignmentListRequest struct {
	Status   string `query:"status" validate:"omitempty,oneof=todo inprogress complete done"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"limit" validate:"omitempty,min=1,max=100"`
}
