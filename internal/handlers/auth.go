package handlers

import (
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cottageplayer/backend/internal/config"
	"github.com/cottageplayer/backend/internal/middleware"
	"github.com/cottageplayer/backend/internal/services"
	"github.com/cottageplayer/backend/internal/session"
	"github.com/cottageplayer/backend/pkg/logger"
	"github.com/cottageplayer/backend/pkg/utils"
)

const stateCookie = "cp_oauth_state"

type AuthHandler struct {
	Cfg      *config.Config
	Verifier services.IdentityVerifier
	Accounts *services.AccountService
	Sessions *session.Manager
}

func NewAuthHandler(cfg *config.Config, verifier services.IdentityVerifier, accounts *services.AccountService, sessions *session.Manager) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Verifier: verifier, Accounts: accounts, Sessions: sessions}
}

// Login hands the client the provider authorization URL and pins the state
// nonce in a short-lived cookie.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	state, err := services.GenerateState()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating state")
	}

	c.Cookie(&fiber.Cookie{
		Name:     stateCookie,
		Value:    state,
		Expires:  time.Now().Add(10 * time.Minute),
		HTTPOnly: true,
		SameSite: "Lax",
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"url": h.Verifier.AuthCodeURL(state),
	})
}

func (h *AuthHandler) loginError(c *fiber.Ctx, message string) error {
	return c.Redirect(h.Cfg.Server.FrontendURL + "/login?error=" + url.QueryEscape(message))
}

// Callback completes the provider handshake: verify the assertion, resolve or
// provision the account, and set the session cookie. Every failure path fails
// closed back to the sign-in page.
func (h *AuthHandler) Callback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")

	if code == "" {
		return h.loginError(c, "authorization code is required")
	}
	if state == "" || state != c.Cookies(stateCookie) {
		logger.Warn("oauth_state_mismatch", map[string]interface{}{"ip": c.IP()})
		return h.loginError(c, "state mismatch")
	}
	c.ClearCookie(stateCookie)

	profile, err := h.Verifier.Verify(c.Context(), code)
	if err != nil {
		return h.loginError(c, "identity verification failed")
	}

	user, err := h.Accounts.Provision(c.Context(), profile)
	if err != nil {
		if errors.Is(err, services.ErrSignupDisabled) {
			return h.loginError(c, "access pending: ask an admin to authorize "+profile.Email)
		}
		return h.loginError(c, "sign-in failed")
	}

	if !user.Active {
		logger.Warn("login_inactive_account", map[string]interface{}{"email": user.Email})
		return h.loginError(c, "account is deactivated")
	}

	token, err := h.Sessions.Issue(user)
	if err != nil {
		return h.loginError(c, "failed establishing session")
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Expires:  time.Now().Add(h.Sessions.TTL()),
		HTTPOnly: true,
		SameSite: "Lax",
	})

	logger.InfoWithUser(user.ID.String(), "login_success", map[string]interface{}{
		"email": user.Email,
		"role":  string(user.Role),
	})

	return c.Redirect(h.Cfg.Server.FrontendURL + "/")
}

// Logout clears the session cookie. With stateless tokens there is nothing
// to revoke server-side; expiry handles the rest.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "logged out"})
}

// Status is the client-side probe: never an error, just authenticated or not.
func (h *AuthHandler) Status(c *fiber.Ctx) error {
	token := middleware.TokenFromRequest(c)
	if token == "" {
		return utils.Success(c, fiber.StatusOK, session.Status{Authenticated: false})
	}

	claims, err := h.Sessions.Validate(token)
	if err != nil {
		return utils.Success(c, fiber.StatusOK, session.Status{Authenticated: false})
	}

	user, err := h.Accounts.ResolveByID(c.Context(), claims.UserID)
	if err != nil || !user.Active {
		return utils.Success(c, fiber.StatusOK, session.Status{Authenticated: false})
	}

	role := user.Role
	return utils.Success(c, fiber.StatusOK, session.Status{
		Authenticated: true,
		Email:         user.Email,
		Name:          user.Name,
		Role:          &role,
	})
}
