package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/gorm"

	"github.com/cottageplayer/backend/internal/authz"
	"github.com/cottageplayer/backend/internal/models"
	"github.com/cottageplayer/backend/internal/session"
	"github.com/cottageplayer/backend/pkg/logger"
	"github.com/cottageplayer/backend/pkg/utils"
)

const currentUserKey = "currentUser"

// SessionCookie is the cookie carrying the signed session token. A bearer
// Authorization header is accepted as a fallback for non-browser clients.
const SessionCookie = "cp_session"

type AuthMiddleware struct {
	DB       *gorm.DB
	Sessions *session.Manager
}

func NewAuthMiddleware(db *gorm.DB, sessions *session.Manager) *AuthMiddleware {
	return &AuthMiddleware{DB: db, Sessions: sessions}
}

func CORS(frontendURL string) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     frontendURL,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: true,
	})
}

// TokenFromRequest extracts the raw session token, preferring the cookie.
func TokenFromRequest(c *fiber.Ctx) string {
	if cookie := c.Cookies(SessionCookie); cookie != "" {
		return cookie
	}

	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	if token == authHeader {
		return ""
	}
	return token
}

// RequireAuth resolves the session token to a live user row. Invalid and
// expired tokens are unauthenticated, never an error page.
func (a *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	token := TokenFromRequest(c)
	if token == "" {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	claims, err := a.Sessions.Validate(token)
	if err != nil {
		logger.Warn("session_rejected", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid or expired session")
	}

	var user models.User
	if err := a.DB.First(&user, "id = ?", claims.UserID).Error; err != nil {
		logger.Warn("session_user_missing", map[string]interface{}{
			"ip":      c.IP(),
			"path":    c.Path(),
			"user_id": claims.UserID.String(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "user not found")
	}

	c.Locals(currentUserKey, &user)
	return c.Next()
}

// RequireCapability gates a route on the authorization decision for the
// already-authenticated user.
func RequireCapability(capability authz.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := GetCurrentUser(c)
		if user == nil {
			return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
		}
		if d := authz.Authorize(user, capability); !d.Allowed {
			logger.WarnWithUser(user.ID.String(), "capability_denied", map[string]interface{}{
				"capability": string(capability),
				"path":       c.Path(),
				"reason":     d.Reason,
			})
			return utils.Error(c, fiber.StatusForbidden, d.Reason)
		}
		return c.Next()
	}
}

func GetCurrentUser(c *fiber.Ctx) *models.User {
	value := c.Locals(currentUserKey)
	if value == nil {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}
