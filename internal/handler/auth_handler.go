package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/mathbingo/mathbingo-go-api/internal/dto"
	"github.com/mathbingo/mathbingo-go-api/internal/service"
	"github.com/mathbingo/mathbingo-go-api/internal/utils"
)

// AuthHandler wires account and session HTTP routes.
type AuthHandler struct {
	service service.AuthService
	logger  zerolog.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(service service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger.With().Str("component", "auth_handler").Logger(),
	}
}

// RegisterPublic attaches the unauthenticated auth endpoints.
func (h *AuthHandler) RegisterPublic(router fiber.Router) {
	router.Post("/register/student", h.registerStudent)
	router.Post("/register/admin", h.registerAdmin)
	router.Post("/login", h.login)
}

// RegisterProtected attaches the authenticated session endpoints.
func (h *AuthHandler) RegisterProtected(router fiber.Router) {
	router.Post("/logout", h.logout)
	router.Get("/profile", h.profile)
}

// RegisterAdmin attaches the student approval workflow endpoints.
func (h *AuthHandler) RegisterAdmin(router fiber.Router) {
	router.Get("/students", h.listStudents)
	router.Get("/students/pending", h.pendingStudents)
	router.Post("/students/:studentID/approve", h.approveStudent)
	router.Post("/students/:studentID/reject", h.rejectStudent)
}

func (h *AuthHandler) registerStudent(c *fiber.Ctx) error {
	var payload dto.StudentRegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.service.RegisterStudent(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendCreated(c, "registration submitted, awaiting approval", user)
}

func (h *AuthHandler) registerAdmin(c *fiber.Ctx) error {
	var payload dto.AdminRegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.service.RegisterAdmin(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendCreated(c, "admin registered", user)
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	session, err := h.service.Login(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "login successful", session)
}

func (h *AuthHandler) logout(c *fiber.Ctx) error {
	if err := h.service.Logout(c.UserContext(), tokenFromContext(c)); err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "logged out", nil)
}

func (h *AuthHandler) profile(c *fiber.Ctx) error {
	caller := callerFromContext(c)
	user, err := h.service.Profile(c.UserContext(), caller.ID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "profile retrieved", user)
}

func (h *AuthHandler) listStudents(c *fiber.Ctx) error {
	var payload dto.StudentListRequest
	if err := c.QueryParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	students, err := h.service.ListStudents(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "students retrieved", students)
}

func (h *AuthHandler) pendingStudents(c *fiber.Ctx) error {
	students, err := h.service.PendingStudents(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "pending students retrieved", fiber.Map{
		"students": students,
		"count":    len(students),
	})
}

func (h *AuthHandler) approveStudent(c *fiber.Ctx) error {
	studentID, err := parseUUIDParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	user, err := h.service.ApproveStudent(c.UserContext(), callerFromContext(c), studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "student approved", user)
}

func (h *AuthHandler) rejectStudent(c *fiber.Ctx) error {
	studentID, err := parseUUIDParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.RejectStudentRequest
	if err := c.BodyParser(&payload); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.service.RejectStudent(c.UserContext(), callerFromContext(c), studentID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "student rejected", user)
}

func (h *AuthHandler) handleError(c *fiber.Ctx, err error) error {
	var validationError *service.ValidationError
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrUsernameTaken):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
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

func (h *AuthHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
