package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/invitapp/guestlist-server/internal/config"
	"github.com/invitapp/guestlist-server/internal/models"
	"github.com/invitapp/guestlist-server/internal/parser"
	"github.com/invitapp/guestlist-server/internal/repository"
	"go.uber.org/zap"
)

// Service defines all the business logic operations
type Service interface {
	// Upload pipeline
	UploadGuests(ctx context.Context, filename string, data []byte) (*models.UploadResponse, error)

	// Live table
	GetGuests(ctx context.Context, search string) (*models.GuestsResponse, error)
	ToggleConfirmed(ctx context.Context, guestID string) (*models.ToggleResponse, error)

	// Upload history
	ListUploads(ctx context.Context) (*models.UploadsResponse, error)
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo      repository.Repository
	maxBytes  int64
	preferred []string
	logger    *zap.Logger

	// Most recently parsed batch, kept as the display fallback until the
	// store round trip completes (or when persistence failed).
	mu          sync.RWMutex
	lastHeaders []string
	lastRows    []models.GuestRow
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, upload config.UploadConfig, logger *zap.Logger) *DefaultService {
	return &DefaultService{
		repo:      repo,
		maxBytes:  upload.MaxBytes,
		preferred: upload.PreferredColumns,
		logger:    logger,
	}
}

// UploadGuests runs the full ingestion pipeline: extension and size gates,
// parse, normalize, derive identifiers, full replace of the stored row set.
// The gates run before any parse attempt; a rejected file never touches the
// store.
func (s *DefaultService) UploadGuests(ctx context.Context, filename string, data []byte) (*models.UploadResponse, error) {
	kind, ok := parser.KindForFilename(filename)
	if !ok {
		return nil, ErrInvalidFileType
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	headers, rows, err := parser.Parse(kind, data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}

	headers, rows = parser.Normalize(headers, rows)

	// Keep the parsed batch around so the table stays usable even if the
	// replace below fails.
	s.mu.Lock()
	s.lastHeaders = headers
	s.lastRows = rows
	s.mu.Unlock()

	guests := make([]models.Guest, len(rows))
	for i, row := range rows {
		guests[i] = models.Guest{
			GuestID:   parser.DeriveGuestID(headers, row, i+1),
			GuestData: row,
		}
	}

	upload := &models.Upload{
		Filename: filename,
		Headers:  models.StringList(headers),
	}

	if err := s.repo.ReplaceAll(ctx, upload, guests); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}

	s.logger.Info("guest list replaced",
		zap.String("filename", filename),
		zap.Int("rows", len(rows)),
		zap.Int("columns", len(headers)))

	return &models.UploadResponse{
		Status:   "success",
		UploadID: upload.ID,
		Filename: filename,
		Headers:  headers,
		RowCount: len(rows),
		Rows:     rows,
	}, nil
}

// GetGuests assembles the reconciled table snapshot: authoritative rows from
// the store when it has any, otherwise the most recently parsed local batch;
// columns ordered by the preferred list; confirmed set derived in full.
func (s *DefaultService) GetGuests(ctx context.Context, search string) (*models.GuestsResponse, error) {
	guests, err := s.repo.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	var headers []string
	var rows []models.DisplayRow
	var confirmedIDs []string

	if len(guests) > 0 {
		headers, err = s.storedHeaders(ctx, guests)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
		}

		rows = make([]models.DisplayRow, len(guests))
		for i, g := range guests {
			row := models.DisplayRow{
				GuestID:   g.GuestID,
				Data:      g.GuestData,
				Confirmed: g.Confirmed,
			}
			if g.ConfirmedAt != nil {
				row.ConfirmedAt = g.ConfirmedAt.Format(time.RFC3339)
			}
			rows[i] = row
		}
		confirmedIDs = ConfirmedSet(guests)
	} else {
		s.mu.RLock()
		headers = s.lastHeaders
		localRows := s.lastRows
		s.mu.RUnlock()

		rows = make([]models.DisplayRow, len(localRows))
		for i, data := range localRows {
			rows[i] = models.DisplayRow{
				GuestID: parser.DeriveGuestID(headers, data, i+1),
				Data:    data,
			}
		}
	}

	filtered := FilterRows(rows, search)

	return &models.GuestsResponse{
		Status:        "success",
		Columns:       OrderColumns(s.preferred, headers),
		Rows:          filtered,
		ConfirmedIDs:  confirmedIDs,
		TotalCount:    len(rows),
		FilteredCount: len(filtered),
		Search:        search,
	}, nil
}

// storedHeaders returns the column order recorded by the latest upload,
// falling back to the first stored row's keys in lexical order when the
// upload record is missing (JSONB does not preserve key order).
func (s *DefaultService) storedHeaders(ctx context.Context, guests []models.Guest) ([]string, error) {
	upload, err := s.repo.LatestUpload(ctx)
	if err != nil {
		return nil, err
	}
	if upload != nil && len(upload.Headers) > 0 {
		return upload.Headers, nil
	}

	keys := make([]string, 0, len(guests[0].GuestData))
	for k := range guests[0].GuestData {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// ToggleConfirmed flips the confirmation state of one guest. Not guaranteed
// idempotent: each call flips, two calls restore the original state.
func (s *DefaultService) ToggleConfirmed(ctx context.Context, guestID string) (*models.ToggleResponse, error) {
	guest, err := s.repo.ToggleConfirmed(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}

	resp := &models.ToggleResponse{
		Status:    "success",
		GuestID:   guest.GuestID,
		Confirmed: guest.Confirmed,
	}
	if guest.ConfirmedAt != nil {
		resp.ConfirmedAt = guest.ConfirmedAt.Format(time.RFC3339)
	}
	return resp, nil
}

// ListUploads returns the upload history, most recent first
func (s *DefaultService) ListUploads(ctx context.Context) (*models.UploadsResponse, error) {
	uploads, err := s.repo.ListUploads(ctx, 20)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	return &models.UploadsResponse{
		Status:  "success",
		Uploads: uploads,
	}, nil
}
