package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mathbingo/mathbingo-go-api/internal/dto"
	"github.com/mathbingo/mathbingo-go-api/internal/service"
	"github.com/mathbingo/mathbingo-go-api/internal/utils"
)

// ProgressHandler wires the per-student progress HTTP routes.
type ProgressHandler struct {
	service service.ProgressService
	logger  zerolog.Logger
}

// NewProgressHandler constructs the handler.
func NewProgressHandler(service service.ProgressService, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		service: service,
		logger:  logger.With().Str("component", "progress_handler").Logger(),
	}
}

// Register attaches the progress endpoints shared by students and admins.
func (h *ProgressHandler) Register(router fiber.Router) {
	router.Post("/:assignmentID/students/:studentID/start", h.start)
	router.Post("/:assignmentID/students/:studentID/answers", h.submitAnswer)
	router.Get("/:assignmentID/students/:studentID/answers", h.answers)
	router.Get("/:assignmentID/students/:studentID/current-set", h.currentOptionSet)
	router.Post("/:assignmentID/students/:studentID/current-question", h.pinCurrentQuestion)
}

// RegisterAdmin attaches the admin-only status override endpoint.
func (h *ProgressHandler) RegisterAdmin(router fiber.Router) {
	router.Patch("/:assignmentID/students/:studentID/status", h.updateStatus)
}

// RegisterStudent attaches the student-facing assignment views.
func (h *ProgressHandler) RegisterStudent(router fiber.Router) {
	router.Get("/:studentID/assignments", h.listStudentAssignments)
	router.Get("/:studentID/assignments/:assignmentID", h.studentAssignment)
}

func (h *ProgressHandler) start(c *fiber.Ctx) error {
	assignmentID, studentID, err := progressParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	progress, err := h.service.Start(c.UserContext(), callerFromContext(c), assignmentID, studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignment started", progress)
}

func (h *ProgressHandler) submitAnswer(c *fiber.Ctx) error {
	assignmentID, studentID, err := progressParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmitAnswerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	progress, err := h.service.SubmitAnswer(c.UserContext(), callerFromContext(c), assignmentID, studentID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "answer recorded", progress)
}

func (h *ProgressHandler) answers(c *fiber.Ctx) error {
	assignmentID, studentID, err := progressParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	answers, err := h.service.GetStudentAnswers(c.UserContext(), callerFromContext(c), assignmentID, studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "answers retrieved", answers)
}

func (h *ProgressHandler) currentOptionSet(c *fiber.Ctx) error {
	assignmentID, studentID, err := progressParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	current, err := h.service.GetCurrentOptionSet(c.UserContext(), callerFromContext(c), assignmentID, studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "current option set retrieved", current)
}

func (h *ProgressHandler) pinCurrentQuestion(c *fiber.Ctx) error {
	assignmentID, studentID, err := progressParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.PinQuestionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	pinned, err := h.service.PinCurrentQuestion(c.UserContext(), callerFromContext(c), assignmentID, studentID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "question pinned", pinned)
}

func (h *ProgressHandler) updateStatus(c *fiber.Ctx) error {
	assignmentID, studentID, err := progressParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.StatusUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	progress, err := h.service.UpdateStatus(c.UserContext(), callerFromContext(c), assignmentID, studentID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "status updated", progress)
}

func (h *ProgressHandler) listStudentAssignments(c *fiber.Ctx) error {
	studentID, err := parseUUIDParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.StudentAssignmentListRequest
	if err := c.QueryParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	assignments, err := h.service.ListStudentAssignments(c.UserContext(), callerFromContext(c), studentID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *ProgressHandler) studentAssignment(c *fiber.Ctx) error {
	studentID, err := parseUUIDParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	assignmentID, err := parseUUIDParam(c, "assignmentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assignment, err := h.service.GetStudentAssignment(c.UserContext(), callerFromContext(c), studentID, assignmentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignment retrieved", assignment)
}

func progressParams(c *fiber.Ctx) (assignmentID, studentID uuid.UUID, err error) {
	assignmentID, err = parseUUIDParam(c, "assignmentID")
	if err != nil {
		return
	}
	studentID, err = parseUUIDParam(c, "studentID")
	return
}

func (h *ProgressHandler) handleError(c *fiber.Ctx, err error) error {
	var validationError *service.ValidationError
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound), errors.Is(err, service.ErrStudentNotAssigned):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.As(err, &validationError):
		return utils.SendError(c, fiber.StatusBadRequest, validationError.Message)
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *ProgressHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
