package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/invitapp/guestlist-server/internal/api"
	"github.com/invitapp/guestlist-server/internal/config"
	"github.com/invitapp/guestlist-server/internal/repository"
	"github.com/invitapp/guestlist-server/internal/service"
	"github.com/invitapp/guestlist-server/internal/ws"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// TestContext holds all dependencies for tests
type TestContext struct {
	Router     *gin.Engine
	Repository repository.Repository
	Service    service.Service
	DB         *sqlx.DB
	Config     *config.Config

	cancelHub context.CancelFunc
}

// SetupTestContext creates a new test context with initialized dependencies
func SetupTestContext(t *testing.T) *TestContext {
	// Load configuration from environment
	cfg := config.LoadConfig()

	// Override with test-specific config
	if cfg.Database.DBName == "guestlist" && cfg.Database.TestDBName != "" {
		cfg.Database.DBName = cfg.Database.TestDBName
	} else if cfg.Database.TestDBName == "" {
		// Fallback to hardcoded test DB if not in environment
		cfg.Database.DBName = "guestlist_test"
	}

	// Set up database
	db, err := config.SetupDatabase(cfg)
	assert.NoError(t, err, "Failed to set up test database")

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Create service
	logger := zap.NewNop()
	svc := service.NewDefaultService(repo, cfg.Upload, logger)

	// Hub runs so broadcasts from any reconciliation do not block
	hub := ws.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	// Create API handler
	handler := api.NewHandler(svc, hub, db, cfg.Upload.MaxBytes, logger)

	// Set up Gin router
	gin.SetMode(gin.TestMode)
	router := gin.Default()
	router.Use(api.CORSMiddleware())

	// Set up routes
	handler.SetupRoutes(router)

	tc := &TestContext{
		Router:     router,
		Repository: repo,
		Service:    svc,
		DB:         db,
		Config:     cfg,
		cancelHub:  cancel,
	}

	CleanDatabase(t, tc)
	return tc
}

// CleanupTestContext cleans up test resources
func CleanupTestContext(tc *TestContext) {
	if tc.cancelHub != nil {
		tc.cancelHub()
	}
	if tc.DB != nil {
		tc.DB.Exec("DELETE FROM guests")
		tc.DB.Exec("DELETE FROM uploads")
		tc.DB.Close()
	}
}

// CleanDatabase removes all guest and upload rows
func CleanDatabase(t *testing.T, tc *TestContext) {
	_, err := tc.DB.Exec("DELETE FROM guests")
	assert.NoError(t, err, "Failed to clean guests")

	_, err = tc.DB.Exec("DELETE FROM uploads")
	assert.NoError(t, err, "Failed to clean uploads")
}

// CountGuests returns the number of persisted guest records
func CountGuests(t *testing.T, tc *TestContext) int {
	var count int
	err := tc.DB.Get(&count, "SELECT COUNT(*) FROM guests")
	assert.NoError(t, err)
	return count
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// PerformUpload posts a multipart file to the upload endpoint
func PerformUpload(t *testing.T, r http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	assert.NoError(t, err)

	_, err = part.Write(content)
	assert.NoError(t, err)
	assert.NoError(t, writer.Close())

	req, _ := http.NewRequest(http.MethodPost, "/api/guests/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
