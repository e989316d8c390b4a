package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/invitapp/guestlist-server/internal/models"
	"github.com/jmoiron/sqlx"
)

// ErrRecordNotFound is returned when no guest matches the given identifier
var ErrRecordNotFound = errors.New("no guest matches the given identifier")

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// Guest operations
	ReplaceAll(ctx context.Context, upload *models.Upload, guests []models.Guest) error
	ToggleConfirmed(ctx context.Context, guestID string) (*models.Guest, error)
	LoadAll(ctx context.Context) ([]models.Guest, error)

	// Upload history
	LatestUpload(ctx context.Context) (*models.Upload, error)
	ListUploads(ctx context.Context, limit int) ([]models.Upload, error)
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

// ReplaceAll deletes every existing guest record and inserts one record per
// row of the new batch, plus the upload record carrying the header order.
// Everything runs in a single transaction: if any insert fails the previous
// row set is left intact.
func (r *PostgresRepository) ReplaceAll(ctx context.Context, upload *models.Upload, guests []models.Guest) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	_, err = tx.ExecContext(ctx, `DELETE FROM guests`)
	if err != nil {
		return err
	}

	insert := `
		INSERT INTO guests (id, guest_id, guest_data, confirmed, batch_pos)
		VALUES ($1, $2, $3, FALSE, $4)
	`

	for i := range guests {
		g := &guests[i]
		if g.ID == "" {
			g.ID = uuid.New().String()
		}
		g.BatchPos = i
		_, err = tx.ExecContext(ctx, insert, g.ID, g.GuestID, g.GuestData, g.BatchPos)
		if err != nil {
			return err
		}
	}

	if upload.ID == "" {
		upload.ID = uuid.New().String()
	}
	upload.RowCount = len(guests)
	upload.CreatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO uploads (id, filename, headers, row_count, created_at) VALUES ($1, $2, $3, $4, $5)`,
		upload.ID, upload.Filename, upload.Headers, upload.RowCount, upload.CreatedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// ToggleConfirmed flips the confirmation flag for the matching record in a
// single statement: confirmed_at is set on the transition to confirmed and
// cleared on the transition away. There is no version check; concurrent
// toggles on the same guest are last write wins.
func (r *PostgresRepository) ToggleConfirmed(ctx context.Context, guestID string) (*models.Guest, error) {
	query := `
		UPDATE guests
		SET confirmed = NOT confirmed,
		    confirmed_at = CASE WHEN NOT confirmed THEN NOW() ELSE NULL END
		WHERE guest_id = $1
		RETURNING *
	`

	var guest models.Guest
	err := r.db.GetContext(ctx, &guest, query, guestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &guest, nil
}

// LoadAll returns every guest record in insertion order
func (r *PostgresRepository) LoadAll(ctx context.Context) ([]models.Guest, error) {
	query := `SELECT * FROM guests ORDER BY created_at ASC, batch_pos ASC`

	var guests []models.Guest
	err := r.db.SelectContext(ctx, &guests, query)
	if err != nil {
		return nil, err
	}

	return guests, nil
}

// LatestUpload returns the most recent upload record, or nil when the store
// has never been loaded
func (r *PostgresRepository) LatestUpload(ctx context.Context) (*models.Upload, error) {
	query := `SELECT * FROM uploads ORDER BY created_at DESC LIMIT 1`

	var upload models.Upload
	err := r.db.GetContext(ctx, &upload, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No uploads yet
		}
		return nil, err
	}

	return &upload, nil
}

// ListUploads returns the upload history, most recent first
func (r *PostgresRepository) ListUploads(ctx context.Context, limit int) ([]models.Upload, error) {
	query := `SELECT * FROM uploads ORDER BY created_at DESC LIMIT $1`

	var uploads []models.Upload
	err := r.db.SelectContext(ctx, &uploads, query, limit)
	if err != nil {
		return nil, err
	}

	return uploads, nil
}
