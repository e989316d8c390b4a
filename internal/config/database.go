package config

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// GuestsChannel is the NOTIFY channel fired by the guests table triggers.
const GuestsChannel = "guests_changed"

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables, triggers and indexes
func createTables(db *sqlx.DB) error {
	// Create guests table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS guests (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			guest_id TEXT NOT NULL,
			guest_data JSONB NOT NULL,
			confirmed BOOLEAN NOT NULL DEFAULT FALSE,
			confirmed_at TIMESTAMPTZ NULL,
			batch_pos INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	// Create uploads table (one row per successful full replace; the latest
	// row carries the authoritative column order for display)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS uploads (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			filename TEXT NOT NULL,
			headers JSONB NOT NULL,
			row_count INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_guests_guest_id ON guests(guest_id)`)
	if err != nil {
		return err
	}

	// Keep updated_at current on every row modification
	_, err = db.Exec(`
		CREATE OR REPLACE FUNCTION guests_set_updated_at() RETURNS TRIGGER AS $$
		BEGIN
			NEW.updated_at = NOW();
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		DROP TRIGGER IF EXISTS trg_guests_updated_at ON guests;
		CREATE TRIGGER trg_guests_updated_at
			BEFORE UPDATE ON guests
			FOR EACH ROW EXECUTE FUNCTION guests_set_updated_at()
	`)
	if err != nil {
		return err
	}

	// Change notification: every insert/update/delete fires a NOTIFY on the
	// guests channel. The payload stays compact (pg_notify caps payloads at
	// 8000 bytes); listeners reload the full table on any event.
	_, err = db.Exec(fmt.Sprintf(`
		CREATE OR REPLACE FUNCTION guests_notify_change() RETURNS TRIGGER AS $$
		DECLARE
			rec RECORD;
		BEGIN
			IF TG_OP = 'DELETE' THEN
				rec = OLD;
			ELSE
				rec = NEW;
			END IF;
			PERFORM pg_notify('%s', json_build_object(
				'action', TG_OP,
				'id', rec.id,
				'guest_id', rec.guest_id
			)::text);
			RETURN rec;
		END;
		$$ LANGUAGE plpgsql
	`, GuestsChannel))
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		DROP TRIGGER IF EXISTS trg_guests_notify ON guests;
		CREATE TRIGGER trg_guests_notify
			AFTER INSERT OR UPDATE OR DELETE ON guests
			FOR EACH ROW EXECUTE FUNCTION guests_notify_change()
	`)
	if err != nil {
		return err
	}

	// Full-row change identity, matching the store contract
	_, err = db.Exec(`ALTER TABLE guests REPLICA IDENTITY FULL`)
	if err != nil {
		log.Printf("Warning: Failed to set replica identity: %v", err)
		// Not critical for LISTEN/NOTIFY based reconciliation
	}

	return nil
}
