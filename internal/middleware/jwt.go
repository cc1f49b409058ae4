package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mathbingo/mathbingo-go-api/internal/utils"
)

// Locals keys populated by JWTProtected.
const (
	LocalUserID   = "user_id"
	LocalUserRole = "user_role"
	LocalToken    = "token"
)

// TokenRevoker reports whether a token has been blacklisted by a logout.
type TokenRevoker interface {
	IsTokenRevoked(ctx context.Context, token string) (bool, error)
}

// JWTProtected returns a middleware that validates JWT bearer tokens and
// rejects tokens revoked by logout.
func JWTProtected(secret string, revoker TokenRevoker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		if revoker != nil {
			revoked, err := revoker.IsTokenRevoked(c.UserContext(), tokenString)
			if err != nil {
				return utils.SendError(c, fiber.StatusInternalServerError, "failed to verify token")
			}
			if revoked {
				return utils.SendError(c, fiber.StatusUnauthorized, "token has been revoked")
			}
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		userID, ok := extractUserID(claims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token subject")
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalUserRole, extractUserRole(claims))
		c.Locals(LocalToken, tokenString)

		return c.Next()
	}
}

func extractUserID(claims jwt.MapClaims) (uuid.UUID, bool) {
	for _, key := range []string{"sub", "user_id", "id"} {
		value, ok := claims[key]
		if !ok {
			continue
		}
		raw, ok := value.(string)
		if !ok {
			continue
		}
		if id, err := uuid.Parse(strings.TrimSpace(raw)); err == nil {
			return id, true
		}
	}
	return uuid.Nil, false
}

func extractUserRole(claims jwt.MapClaims) string {
	if value, ok := claims["role"]; ok {
		if role, ok := value.(string); ok {
			return strings.ToLower(strings.TrimSpace(role))
		}
	}
	return ""
}
