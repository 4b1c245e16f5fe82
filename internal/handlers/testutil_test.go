package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/cottageplayer/backend/internal/authz"
	"github.com/cottageplayer/backend/internal/config"
	"github.com/cottageplayer/backend/internal/database"
	"github.com/cottageplayer/backend/internal/middleware"
	"github.com/cottageplayer/backend/internal/models"
	"github.com/cottageplayer/backend/internal/services"
	"github.com/cottageplayer/backend/internal/session"
	"github.com/cottageplayer/backend/pkg/logger"
)

var loggerOnce sync.Once

// stubVerifier stands in for the Google handshake. Whatever profile it is
// primed with is what "verification" returns.
type stubVerifier struct {
	profile *services.Profile
	err     error
}

func (s *stubVerifier) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (s *stubVerifier) Verify(_ context.Context, _ string) (*services.Profile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.profile, nil
}

type stubBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newStubBlobStore() *stubBlobStore {
	return &stubBlobStore{objects: map[string][]byte{}}
}

func (s *stubBlobStore) Put(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectName] = data
	return nil
}

type stubBlob struct {
	*bytes.Reader
}

func (stubBlob) Close() error { return nil }

func (s *stubBlobStore) Get(_ context.Context, objectName string) (io.ReadSeekCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[objectName]
	if !ok {
		return nil, errors.New("object not found")
	}
	return stubBlob{bytes.NewReader(data)}, nil
}

func (s *stubBlobStore) Delete(_ context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectName)
	return nil
}

func (s *stubBlobStore) PresignedGetURL(_ context.Context, objectName string, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[objectName]; !ok {
		return "", errors.New("object not found")
	}
	return "stub://" + objectName, nil
}

type testApp struct {
	app      *fiber.App
	db       *gorm.DB
	blobs    *stubBlobStore
	sessions *session.Manager
	verifier *stubVerifier
	cfg      *config.Config
}

// newTestApp wires the full route table against an in-memory database, the
// blob fake and a stubbed identity provider.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	loggerOnce.Do(logger.Init)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed migrating schema: %v", err)
	}

	cfg := &config.Config{
		Session: config.SessionConfig{Secret: "test-secret", TTL: time.Hour},
		Server:  config.ServerConfig{Port: "0", FrontendURL: "http://frontend.test"},
		Library: config.LibraryConfig{
			TagCatalog: []string{"Music", "Movie", "Family", "Holiday"},
			TagPolicy:  config.TagPolicyReject,
		},
		Signup: config.SignupConfig{AllowAutoSignup: false},
	}

	blobs := newStubBlobStore()
	sessions := session.NewManager(cfg.Session.Secret, cfg.Session.TTL)
	verifier := &stubVerifier{}

	accounts := services.NewAccountService(db, cfg.Signup)
	library := services.NewLibraryService(db, blobs, cfg.Library)
	playlists := services.NewPlaylistService(db, cfg.Library.PlaylistNameCatalog)

	authHandler := NewAuthHandler(cfg, verifier, accounts, sessions)
	usersHandler := NewUsersHandler(accounts)
	mediaHandler := NewMediaHandler(library, cfg.Library)
	playlistsHandler := NewPlaylistsHandler(playlists)

	authMiddleware := middleware.NewAuthMiddleware(db, sessions)

	app := fiber.New()
	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Get("/login", authHandler.Login)
	authRoutes.Get("/callback", authHandler.Callback)
	authRoutes.Post("/logout", authHandler.Logout)
	authRoutes.Get("/status", authHandler.Status)

	userRoutes := api.Group("/users", authMiddleware.RequireAuth, middleware.RequireCapability(authz.CapManageUsers))
	userRoutes.Get("/", usersHandler.List)
	userRoutes.Post("/", usersHandler.Create)
	userRoutes.Put("/:id/role", usersHandler.SetRole)
	userRoutes.Put("/:id/active", usersHandler.SetActive)
	userRoutes.Delete("/:id", usersHandler.Delete)

	mediaRoutes := api.Group("/media", authMiddleware.RequireAuth, middleware.RequireCapability(authz.CapView))
	mediaRoutes.Get("/catalogs", mediaHandler.Catalogs)
	mediaRoutes.Post("/upload", mediaHandler.Upload)
	mediaRoutes.Get("/", mediaHandler.List)
	mediaRoutes.Get("/:id/content", mediaHandler.Content)
	mediaRoutes.Get("/:id/url", mediaHandler.ContentURL)
	mediaRoutes.Get("/:id/thumbnail", mediaHandler.Thumbnail)
	mediaRoutes.Get("/:id", mediaHandler.Get)
	mediaRoutes.Put("/:id", mediaHandler.Update)
	mediaRoutes.Delete("/:id", mediaHandler.Delete)

	playlistRoutes := api.Group("/playlists", authMiddleware.RequireAuth, middleware.RequireCapability(authz.CapView))
	playlistRoutes.Post("/", playlistsHandler.Create)
	playlistRoutes.Get("/", playlistsHandler.List)
	playlistRoutes.Get("/:id", playlistsHandler.Get)
	playlistRoutes.Put("/:id", playlistsHandler.Update)
	playlistRoutes.Delete("/:id", playlistsHandler.Delete)
	playlistRoutes.Put("/:id/items", playlistsHandler.SetItems)
	playlistRoutes.Post("/:id/items/:mediaID", playlistsHandler.AddItem)
	playlistRoutes.Delete("/:id/items/:mediaID", playlistsHandler.RemoveItem)

	return &testApp{
		app:      app,
		db:       db,
		blobs:    blobs,
		sessions: sessions,
		verifier: verifier,
		cfg:      cfg,
	}
}

// createTestUser inserts a user and issues a session token for it.
func (ta *testApp) createTestUser(t *testing.T, email string, role models.UserRole, active bool) (*models.User, string) {
	t.Helper()

	user := &models.User{Email: email, Name: "Test User", Role: role, Active: active}
	if err := ta.db.Create(user).Error; err != nil {
		t.Fatalf("failed creating user %s: %v", email, err)
	}

	token, err := ta.sessions.Issue(user)
	if err != nil {
		t.Fatalf("failed issuing session for %s: %v", email, err)
	}
	return user, token
}

func (ta *testApp) request(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, path, body)
	if err != nil {
		t.Fatalf("failed building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func (ta *testApp) jsonRequest(t *testing.T, method, path, token string, payload interface{}) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed marshaling payload: %v", err)
	}
	return ta.request(t, method, path, token, bytes.NewReader(body), "application/json")
}

func decodeEnvelope(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	defer resp.Body.Close()
	var envelope map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed decoding response body: %v", err)
	}
	return envelope
}

func dataField(t *testing.T, envelope map[string]interface{}) map[string]interface{} {
	t.Helper()

	data, ok := envelope["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected object data field, got %T", envelope["data"])
	}
	return data
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()

	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// multipartUpload builds a media upload body with an explicit part content
// type, the way a browser submits a file input.
func multipartUpload(t *testing.T, filename, contentType, content string, fields map[string]string) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed creating multipart file part: %v", err)
	}
	if _, err := io.Copy(part, strings.NewReader(content)); err != nil {
		t.Fatalf("failed writing multipart content: %v", err)
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed writing multipart field %s: %v", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed closing multipart writer: %v", err)
	}

	return &buf, writer.FormDataContentType()
}
