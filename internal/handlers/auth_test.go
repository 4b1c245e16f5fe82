package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/cottageplayer/backend/internal/models"
	"github.com/cottageplayer/backend/internal/services"
)

func callbackRequest(t *testing.T, ta *testApp, code, state, stateCookieValue string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(fiber.MethodGet, "/api/auth/callback?code="+code+"&state="+state, nil)
	if err != nil {
		t.Fatalf("failed building request: %v", err)
	}
	if stateCookieValue != "" {
		req.AddCookie(&http.Cookie{Name: stateCookie, Value: stateCookieValue})
	}

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("callback request failed: %v", err)
	}
	return resp
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "cp_session" {
			return cookie
		}
	}
	return nil
}

func TestLogin(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.request(t, fiber.MethodGet, "/api/auth/login", "", nil, "")
	assertStatus(t, resp, fiber.StatusOK)

	var state string
	for _, cookie := range resp.Cookies() {
		if cookie.Name == stateCookie {
			state = cookie.Value
		}
	}
	if state == "" {
		t.Fatal("expected state cookie to be set")
	}

	data := dataField(t, decodeEnvelope(t, resp))
	url, _ := data["url"].(string)
	if !strings.Contains(url, "state="+state) {
		t.Fatalf("expected authorization url to carry the state nonce, got %q", url)
	}
}

func TestCallback(t *testing.T) {
	t.Run("provisioned identity gets a session cookie and lands on the app", func(t *testing.T) {
		ta := newTestApp(t)
		ta.createTestUser(t, "member@x.com", models.UserRoleViewer, true)
		ta.verifier.profile = &services.Profile{Email: "member@x.com", Name: "Member"}

		resp := callbackRequest(t, ta, "good-code", "nonce", "nonce")
		assertStatus(t, resp, fiber.StatusFound)

		if location := resp.Header.Get("Location"); location != ta.cfg.Server.FrontendURL+"/" {
			t.Fatalf("expected redirect to the app root, got %q", location)
		}

		cookie := sessionCookie(resp)
		if cookie == nil || cookie.Value == "" {
			t.Fatal("expected a session cookie")
		}
		if _, err := ta.sessions.Validate(cookie.Value); err != nil {
			t.Fatalf("session cookie does not validate: %v", err)
		}
	})

	t.Run("state mismatch fails back to the sign-in page", func(t *testing.T) {
		ta := newTestApp(t)
		ta.verifier.profile = &services.Profile{Email: "member@x.com"}

		resp := callbackRequest(t, ta, "good-code", "nonce", "other-nonce")
		assertStatus(t, resp, fiber.StatusFound)

		if location := resp.Header.Get("Location"); !strings.Contains(location, "/login?error=") {
			t.Fatalf("expected error redirect, got %q", location)
		}
		if sessionCookie(resp) != nil {
			t.Fatal("expected no session cookie on state mismatch")
		}
	})

	t.Run("unknown identity with signups disabled is told to ask an admin", func(t *testing.T) {
		ta := newTestApp(t)
		ta.verifier.profile = &services.Profile{Email: "stranger@x.com", Name: "Stranger"}

		resp := callbackRequest(t, ta, "good-code", "nonce", "nonce")
		assertStatus(t, resp, fiber.StatusFound)

		location := resp.Header.Get("Location")
		if !strings.Contains(location, "access+pending") && !strings.Contains(location, "access%20pending") {
			t.Fatalf("expected access-pending redirect, got %q", location)
		}
	})

	t.Run("deactivated account cannot sign in", func(t *testing.T) {
		ta := newTestApp(t)
		ta.createTestUser(t, "off@x.com", models.UserRoleViewer, false)
		ta.verifier.profile = &services.Profile{Email: "off@x.com"}

		resp := callbackRequest(t, ta, "good-code", "nonce", "nonce")
		assertStatus(t, resp, fiber.StatusFound)

		if location := resp.Header.Get("Location"); !strings.Contains(location, "/login?error=") {
			t.Fatalf("expected error redirect for inactive account, got %q", location)
		}
		if sessionCookie(resp) != nil {
			t.Fatal("expected no session cookie for inactive account")
		}
	})

	t.Run("verification failure never leaks a session", func(t *testing.T) {
		ta := newTestApp(t)
		ta.verifier.err = services.ErrIdentity

		resp := callbackRequest(t, ta, "bad-code", "nonce", "nonce")
		assertStatus(t, resp, fiber.StatusFound)

		if sessionCookie(resp) != nil {
			t.Fatal("expected no session cookie after failed verification")
		}
	})
}

func TestLogout(t *testing.T) {
	ta := newTestApp(t)
	_, token := ta.createTestUser(t, "member@x.com", models.UserRoleViewer, true)

	resp := ta.request(t, fiber.MethodPost, "/api/auth/logout", token, nil, "")
	assertStatus(t, resp, fiber.StatusOK)

	cookie := sessionCookie(resp)
	if cookie == nil || cookie.Value != "" {
		t.Fatal("expected the session cookie to be cleared")
	}
}

func TestStatus(t *testing.T) {
	ta := newTestApp(t)
	user, token := ta.createTestUser(t, "member@x.com", models.UserRoleUploader, true)

	t.Run("anonymous probe is unauthenticated, not an error", func(t *testing.T) {
		resp := ta.request(t, fiber.MethodGet, "/api/auth/status", "", nil, "")
		assertStatus(t, resp, fiber.StatusOK)

		data := dataField(t, decodeEnvelope(t, resp))
		if data["authenticated"] != false {
			t.Fatalf("expected unauthenticated, got %v", data["authenticated"])
		}
	})

	t.Run("valid session reports identity and role", func(t *testing.T) {
		resp := ta.request(t, fiber.MethodGet, "/api/auth/status", token, nil, "")
		assertStatus(t, resp, fiber.StatusOK)

		data := dataField(t, decodeEnvelope(t, resp))
		if data["authenticated"] != true {
			t.Fatal("expected authenticated status")
		}
		if data["email"] != user.Email {
			t.Fatalf("expected email %q, got %v", user.Email, data["email"])
		}
		if data["role"] != string(models.UserRoleUploader) {
			t.Fatalf("expected uploader role, got %v", data["role"])
		}
	})

	t.Run("session of a deactivated user goes unauthenticated", func(t *testing.T) {
		if err := ta.db.Model(&models.User{}).Where("id = ?", user.ID).Update("active", false).Error; err != nil {
			t.Fatalf("failed deactivating user: %v", err)
		}

		resp := ta.request(t, fiber.MethodGet, "/api/auth/status", token, nil, "")
		assertStatus(t, resp, fiber.StatusOK)

		data := dataField(t, decodeEnvelope(t, resp))
		if data["authenticated"] != false {
			t.Fatal("expected unauthenticated status for deactivated user")
		}
	})
}
