package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Per-student assignment states. A student only ever moves forward through
// todo -> inprogress -> complete -> done via the guarded transitions; the
// admin status override is deliberately more permissive (see progress service).
const (
	StatusTodo       = "todo"
	StatusInProgress = "inprogress"
	StatusComplete   = "complete"
	StatusDone       = "done"
)

// Statuses lists the recognised per-student states in order.
var Statuses = []string{StatusTodo, StatusInProgress, StatusComplete, StatusDone}

// IsValidStatus reports whether s is one of the recognised states.
func IsValidStatus(s string) bool {
	for _, candidate := range Statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// LockedPos fixes one solution-token index to a value for the in-flight question.
type LockedPos struct {
	Pos   int    `json:"pos"`
	Value string `json:"value"`
}

// Answer is one submitted answer, unique per question number within a
// student's progress. Resubmitting the same number replaces the entry in place.
type Answer struct {
	QuestionNumber int         `json:"questionNumber"`
	QuestionText   string      `json:"questionText"`
	AnswerText     string      `json:"answerText"`
	AnsweredAt     time.Time   `json:"answeredAt"`
	ListPosLock    []LockedPos `json:"listPosLock,omitempty"`
}

// StudentProgress is the embedded per-student state of an assignment: status,
// answers, option-set cursor, and the pinned in-flight question payload that
// keeps a page refresh from regenerating the active question.
type StudentProgress struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	AssignmentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_progress_assignment_student" json:"assignment_id"`
	StudentID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_progress_assignment_student;index" json:"student_id"`
	Status       string    `gorm:"size:32;not null;default:todo" json:"status"`

	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	MarkedDoneAt *time.Time `json:"marked_done_at,omitempty"`

	Answers                        datatypes.JSON `gorm:"type:json" json:"-"`
	CurrentQuestionSet             int            `gorm:"not null;default:0" json:"current_question_set"`
	QuestionsCompletedInCurrentSet int            `gorm:"not null;default:0" json:"questions_completed_in_current_set"`

	CurrentQuestionElements       datatypes.JSON `gorm:"type:json" json:"-"`
	CurrentQuestionSolutionTokens datatypes.JSON `gorm:"type:json" json:"-"`
	CurrentQuestionListPosLock    datatypes.JSON `gorm:"type:json" json:"-"`

	// Version guards read-modify-write updates; every versioned update
	// increments it and conditions on the value it read.
	Version int `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name; the default pluralizer mangles "progress".
func (StudentProgress) TableName() string {
	return "student_progress"
}

// NewStudentProgress initializes the progress row for a freshly assigned student.
func NewStudentProgress(assignmentID, studentID uuid.UUID) StudentProgress {
	return StudentProgress{
		AssignmentID:                   assignmentID,
		StudentID:                      studentID,
		Status:                         StatusTodo,
		Answers:                        datatypes.JSON([]byte("[]")),
		CurrentQuestionSet:             0,
		QuestionsCompletedInCurrentSet: 0,
	}
}

// AnswerList deserializes the stored answers preserving insertion order.
func (p StudentProgress) AnswerList() []Answer {
	if len(p.Answers) == 0 {
		return nil
	}

	var answers []Answer
	if err := json.Unmarshal(p.Answers, &answers); err != nil {
		return nil
	}
	return answers
}

// SetAnswers serializes the answers into the JSON storage column.
func (p *StudentProgress) SetAnswers(answers []Answer) {
	if answers == nil {
		answers = []Answer{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return
	}
	p.Answers = datatypes.JSON(data)
}

// AnswerCount returns the number of stored answers.
func (p StudentProgress) AnswerCount() int {
	return len(p.AnswerList())
}

// ElementList deserializes the pinned rack tiles for the in-flight question.
func (p StudentProgress) ElementList() []string {
	return decodeStringList(p.CurrentQuestionElements)
}

// SolutionTokenList deserializes the pinned solution-token sequence.
func (p StudentProgress) SolutionTokenList() []string {
	return decodeStringList(p.CurrentQuestionSolutionTokens)
}

// LockPosList deserializes the pinned lock positions.
func (p StudentProgress) LockPosList() []LockedPos {
	if len(p.CurrentQuestionListPosLock) == 0 {
		return nil
	}

	var locks []LockedPos
	if err := json.Unmarshal(p.CurrentQuestionListPosLock, &locks); err != nil {
		return nil
	}
	return locks
}

func decodeStringList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}

	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}
