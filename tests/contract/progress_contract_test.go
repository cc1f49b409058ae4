package contract_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/mathbingo/mathbingo-go-api/internal/dto"
	"github.com/mathbingo/mathbingo-go-api/internal/handler"
	"github.com/mathbingo/mathbingo-go-api/internal/middleware"
	"github.com/mathbingo/mathbingo-go-api/internal/models"
	"github.com/mathbingo/mathbingo-go-api/internal/service"
)

// progressEnvelopeSchema is the wire contract for the student progress
// envelope consumed by the assignment board in the web client.
const progressEnvelopeSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["success", "data"],
	"properties": {
		"success": {"const": true},
		"message": {"type": "string"},
		"data": {
			"type": "object",
			"required": [
				"student_id",
				"status",
				"answers",
				"current_question_set",
				"questions_completed_in_current_set",
				"progress_percentage",
				"answered_questions",
				"remaining_questions"
			],
			"properties": {
				"student_id": {"type": "string", "minLength": 36},
				"status": {"enum": ["todo", "inprogress", "complete", "done"]},
				"started_at": {"type": "string"},
				"completed_at": {"type": "string"},
				"marked_done_at": {"type": "string"},
				"answers": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["questionNumber", "questionText", "answerText", "answeredAt"],
						"properties": {
							"questionNumber": {"type": "integer", "minimum": 1},
							"questionText": {"type": "string"},
							"answerText": {"type": "string"},
							"answeredAt": {"type": "string"},
							"listPosLock": {
								"type": "array",
								"items": {
									"type": "object",
									"required": ["pos", "value"],
									"properties": {
										"pos": {"type": "integer", "minimum": 0},
										"value": {"type": "string", "minLength": 1}
									}
								}
							}
						}
					}
				},
				"current_question_set": {"type": "integer", "minimum": 0},
				"questions_completed_in_current_set": {"type": "integer", "minimum": 0},
				"progress_percentage": {"type": "integer", "minimum": 0, "maximum": 100},
				"answered_questions": {"type": "integer", "minimum": 0},
				"remaining_questions": {"type": "integer", "minimum": 0}
			}
		}
	}
}`

// currentSetEnvelopeSchema covers the option-set cursor payload the client
// uses to generate the next question.
const currentSetEnvelopeSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["success", "data"],
	"properties": {
		"success": {"const": true},
		"data": {
			"type": "object",
			"required": ["current_set_index", "questions_completed", "should_progress", "total_sets"],
			"properties": {
				"current_set": {
					"type": ["object", "null"],
					"required": ["numQuestions", "options"],
					"properties": {
						"numQuestions": {"type": "integer", "minimum": 1},
						"setLabel": {"type": "string"},
						"options": {
							"type": "object",
							"required": ["totalCount", "operatorMode", "operatorCount", "isLockPos", "lockCount"],
							"properties": {
								"totalCount": {"type": "integer", "minimum": 1},
								"operatorMode": {"type": "string", "minLength": 1},
								"operatorCount": {"type": "integer", "minimum": 1},
								"isLockPos": {"type": "boolean"},
								"lockCount": {"type": "integer", "minimum": 0}
							}
						}
					}
				},
				"current_set_index": {"type": "integer", "minimum": -1},
				"questions_completed": {"type": "integer", "minimum": 0},
				"should_progress": {"type": "boolean"},
				"total_sets": {"type": "integer", "minimum": 0}
			}
		}
	}
}`

type stubProgressService struct {
	progress   dto.StudentProgressResponse
	currentSet dto.CurrentOptionSetResponse
}

func (s stubProgressService) Start(context.Context, service.Caller, uuid.UUID, uuid.UUID) (dto.StudentProgressResponse, error) {
	return s.progress, nil
}

func (s stubProgressService) SubmitAnswer(context.Context, service.Caller, uuid.UUID, uuid.UUID, dto.SubmitAnswerRequest) (dto.StudentProgressResponse, error) {
	return s.progress, nil
}

func (s stubProgressService) UpdateStatus(context.Context, service.Caller, uuid.UUID, uuid.UUID, dto.StatusUpdateRequest) (dto.StudentProgressResponse, error) {
	return s.progress, nil
}

func (s stubProgressService) GetCurrentOptionSet(context.Context, service.Caller, uuid.UUID, uuid.UUID) (dto.CurrentOptionSetResponse, error) {
	return s.currentSet, nil
}

func (s stubProgressService) PinCurrentQuestion(context.Context, service.Caller, uuid.UUID, uuid.UUID, dto.PinQuestionRequest) (dto.PinnedStateResponse, error) {
	return dto.PinnedStateResponse{}, nil
}

func (s stubProgressService) GetStudentAnswers(context.Context, service.Caller, uuid.UUID, uuid.UUID) (dto.StudentAnswersResponse, error) {
	return dto.StudentAnswersResponse{}, nil
}

func (s stubProgressService) GetStudentAssignment(context.Context, service.Caller, uuid.UUID, uuid.UUID) (dto.StudentAssignmentResponse, error) {
	return dto.StudentAssignmentResponse{}, nil
}

func (s stubProgressService) ListStudentAssignments(context.Context, service.Caller, uuid.UUID, dto.StudentAssignmentListRequest) (dto.StudentAssignmentListResponse, error) {
	return dto.StudentAssignmentListResponse{}, nil
}

func newProgressApp(stub stubProgressService) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/assignments", func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalUserID, uuid.New())
		c.Locals(middleware.LocalUserRole, models.RoleStudent)
		return c.Next()
	})
	handler.NewProgressHandler(stub, zerolog.Nop()).Register(group)
	return app
}

func validateResponse(t *testing.T, app *fiber.App, req *http.Request, schemaText string) {
	t.Helper()

	schema, err := jsonschema.CompileString("contract.schema.json", schemaText)
	require.NoError(t, err)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}

func TestStudentProgressContract(t *testing.T) {
	started := time.Now().UTC()
	stub := stubProgressService{
		progress: dto.StudentProgressResponse{
			StudentID: uuid.NewString(),
			Status:    models.StatusInProgress,
			StartedAt: &started,
			Answers: []models.Answer{
				{
					QuestionNumber: 1,
					QuestionText:   "3 + 7 = ?",
					AnswerText:     "10",
					AnsweredAt:     started,
					ListPosLock:    []models.LockedPos{{Pos: 0, Value: "3"}},
				},
			},
			CurrentQuestionSet:             0,
			QuestionsCompletedInCurrentSet: 1,
			ProgressPercentage:             33,
			AnsweredQuestions:              1,
			RemainingQuestions:             2,
		},
	}

	app := newProgressApp(stub)
	path := "/api/v1/assignments/" + uuid.NewString() + "/students/" + stub.progress.StudentID + "/start"
	validateResponse(t, app, httptest.NewRequest(http.MethodPost, path, nil), progressEnvelopeSchema)
}

func TestCurrentOptionSetContract(t *testing.T) {
	stub := stubProgressService{
		currentSet: dto.CurrentOptionSetResponse{
			CurrentSet: &models.OptionSet{
				NumQuestions: 2,
				SetLabel:     "Set 1",
				Options: models.QuestionOptions{
					TotalCount:    10,
					OperatorMode:  "random",
					OperatorCount: 2,
					IsLockPos:     true,
					LockCount:     2,
				},
			},
			CurrentSetIndex:    0,
			QuestionsCompleted: 1,
			ShouldProgress:     false,
			TotalSets:          2,
		},
	}

	app := newProgressApp(stub)
	path := "/api/v1/assignments/" + uuid.NewString() + "/students/" + uuid.NewString() + "/current-set"
	validateResponse(t, app, httptest.NewRequest(http.MethodGet, path, nil), currentSetEnvelopeSchema)
}
