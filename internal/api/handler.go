package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/invitapp/guestlist-server/internal/models"
	"github.com/invitapp/guestlist-server/internal/parser"
	"github.com/invitapp/guestlist-server/internal/repository"
	"github.com/invitapp/guestlist-server/internal/service"
	"github.com/invitapp/guestlist-server/internal/ws"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Handler wires the HTTP surface to the service layer
type Handler struct {
	svc      service.Service
	hub      *ws.Hub
	db       *sqlx.DB
	maxBytes int64
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service, hub *ws.Hub, db *sqlx.DB, maxBytes int64, logger *zap.Logger) *Handler {
	return &Handler{
		svc:      svc,
		hub:      hub,
		db:       db,
		maxBytes: maxBytes,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Single-page tool served from anywhere; no origin policy
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetupRoutes registers all routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/ws/guests", h.ServeWS)

	api := router.Group("/api")
	api.Use(BodyLimitMiddleware(h.maxBytes))
	{
		api.POST("/guests/upload", h.UploadGuests)
		api.GET("/guests", h.GetGuests)
		api.POST("/guests/:guestId/confirm", h.ToggleConfirmed)
		api.GET("/uploads", h.ListUploads)
	}
}

// Health reports liveness and store reachability
func (h *Handler) Health(c *gin.Context) {
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// UploadGuests accepts one spreadsheet file and replaces the stored guest
// list with its contents
func (h *Handler) UploadGuests(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		// Bodies beyond the middleware limit surface here as a read error
		if errors.As(err, new(*http.MaxBytesError)) {
			h.errorResponse(c, service.ErrFileTooLarge)
			return
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: "A file is required in the 'file' form field",
		})
		return
	}

	// Reject oversize payloads before buffering them
	if fileHeader.Size > h.maxBytes {
		h.errorResponse(c, service.ErrFileTooLarge)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "INVALID_REQUEST",
			Message: "The uploaded file could not be read",
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.errorResponse(c, parser.ErrParseFailure)
		return
	}

	resp, err := h.svc.UploadGuests(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		h.errorResponse(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetGuests returns the reconciled table snapshot, optionally filtered by
// the free-text search term
func (h *Handler) GetGuests(c *gin.Context) {
	resp, err := h.svc.GetGuests(c.Request.Context(), c.Query("search"))
	if err != nil {
		h.errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ToggleConfirmed flips the confirmation state of one guest
func (h *Handler) ToggleConfirmed(c *gin.Context) {
	resp, err := h.svc.ToggleConfirmed(c.Request.Context(), c.Param("guestId"))
	if err != nil {
		h.errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListUploads returns the upload history
func (h *Handler) ListUploads(c *gin.Context) {
	resp, err := h.svc.ListUploads(c.Request.Context())
	if err != nil {
		h.errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ServeWS upgrades the connection and subscribes it to table snapshots
func (h *Handler) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	ws.Serve(h.hub, conn, h.logger)
}

// errorResponse maps taxonomy errors to HTTP status codes and stable
// machine codes. Everything is surfaced to the caller; nothing is fatal to
// the running service.
func (h *Handler) errorResponse(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"

	switch {
	case errors.Is(err, service.ErrInvalidFileType):
		status, code = http.StatusBadRequest, "INVALID_FILE_TYPE"
	case errors.Is(err, service.ErrFileTooLarge):
		status, code = http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"
	case errors.Is(err, parser.ErrEmptyWorkbook):
		status, code = http.StatusUnprocessableEntity, "EMPTY_WORKBOOK"
	case errors.Is(err, parser.ErrInsufficientRows):
		status, code = http.StatusUnprocessableEntity, "INSUFFICIENT_ROWS"
	case errors.Is(err, parser.ErrNoHeadersDetected):
		status, code = http.StatusUnprocessableEntity, "NO_HEADERS_DETECTED"
	case errors.Is(err, parser.ErrNoValidDataRows):
		status, code = http.StatusUnprocessableEntity, "NO_VALID_DATA_ROWS"
	case errors.Is(err, parser.ErrParseFailure):
		status, code = http.StatusUnprocessableEntity, "PARSE_FAILURE"
	case errors.Is(err, repository.ErrRecordNotFound):
		status, code = http.StatusNotFound, "UPDATE_FAILED"
	case errors.Is(err, service.ErrUpdateFailed):
		status, code = http.StatusInternalServerError, "UPDATE_FAILED"
	case errors.Is(err, service.ErrPersistenceFailed):
		status, code = http.StatusInternalServerError, "PERSISTENCE_FAILED"
	case errors.Is(err, service.ErrLoadFailed):
		status, code = http.StatusInternalServerError, "LOAD_FAILED"
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("code", code), zap.Error(err))
	}

	c.JSON(status, models.ErrorResponse{
		Status:  "error",
		Code:    code,
		Message: err.Error(),
	})
}
