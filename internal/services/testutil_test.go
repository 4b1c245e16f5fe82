package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/cottageplayer/backend/internal/config"
	"github.com/cottageplayer/backend/internal/database"
	"github.com/cottageplayer/backend/internal/models"
	"github.com/cottageplayer/backend/pkg/logger"
)

var loggerOnce sync.Once

func newTestDB(t *testing.T) *gorm.DB {
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

	return db
}

func createUser(t *testing.T, db *gorm.DB, email string, role models.UserRole, active bool) *models.User {
	t.Helper()

	user := &models.User{Email: email, Name: "Test User", Role: role, Active: active}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating user %s: %v", email, err)
	}
	return user
}

// memoryBlobStore stands in for MinIO in service tests.
type memoryBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newMemoryBlobStore() *memoryBlobStore {
	return &memoryBlobStore{objects: map[string][]byte{}}
}

func (m *memoryBlobStore) Put(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) error {
	if m.failPut {
		return errors.New("storage unavailable")
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectName] = data
	return nil
}

type memoryBlob struct {
	*bytes.Reader
}

func (memoryBlob) Close() error { return nil }

func (m *memoryBlobStore) Get(_ context.Context, objectName string) (io.ReadSeekCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[objectName]
	if !ok {
		return nil, errors.New("object not found")
	}
	return memoryBlob{bytes.NewReader(data)}, nil
}

func (m *memoryBlobStore) Delete(_ context.Context, objectName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectName)
	return nil
}

func (m *memoryBlobStore) PresignedGetURL(_ context.Context, objectName string, _ time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[objectName]; !ok {
		return "", errors.New("object not found")
	}
	return "memory://" + objectName, nil
}

func (m *memoryBlobStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func defaultLibraryConfig() config.LibraryConfig {
	return config.LibraryConfig{
		TagCatalog: []string{"Music", "Movie", "Family", "Holiday"},
		TagPolicy:  config.TagPolicyReject,
	}
}
