package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mathbingo/mathbingo-go-api/internal/middleware"
	"github.com/mathbingo/mathbingo-go-api/internal/service"
)

func callerFromContext(c *fiber.Ctx) service.Caller {
	caller := service.Caller{}
	if id, ok := c.Locals(middleware.LocalUserID).(uuid.UUID); ok {
		caller.ID = id
	}
	if role, ok := c.Locals(middleware.LocalUserRole).(string); ok {
		caller.Role = role
	}
	return caller
}

func tokenFromContext(c *fiber.Ctx) string {
	if token, ok := c.Locals(middleware.LocalToken).(string); ok {
		return token
	}
	return ""
}

func parseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, errors.New("invalid identifier")
	}
	return id, nil
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}
