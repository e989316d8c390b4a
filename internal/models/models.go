package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// GuestRow maps a column header to the raw cell value as uploaded.
// Stored as JSONB; values are never auto-typed so a round trip through the
// store is lossless.
type GuestRow map[string]string

// Value implements driver.Valuer for JSONB storage
func (g GuestRow) Value() (driver.Value, error) {
	return json.Marshal(g)
}

// Scan implements sql.Scanner for JSONB retrieval
func (g *GuestRow) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, g)
	case string:
		return json.Unmarshal([]byte(v), g)
	case nil:
		*g = nil
		return nil
	}
	return errors.New("unsupported type for GuestRow")
}

// StringList is an ordered list of strings stored as a JSONB array.
// Used to persist upload header order, which JSONB objects cannot keep.
type StringList []string

// Value implements driver.Valuer for JSONB storage
func (s StringList) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB retrieval
func (s *StringList) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	case nil:
		*s = nil
		return nil
	}
	return errors.New("unsupported type for StringList")
}

// Guest represents a persisted guest record
type Guest struct {
	ID          string     `db:"id" json:"id"`
	GuestID     string     `db:"guest_id" json:"guestId"`
	GuestData   GuestRow   `db:"guest_data" json:"guestData"`
	Confirmed   bool       `db:"confirmed" json:"confirmed"`
	ConfirmedAt *time.Time `db:"confirmed_at" json:"confirmedAt"`
	BatchPos    int        `db:"batch_pos" json:"-"` // position within its upload batch
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// Upload represents one full-replace ingestion of a guest list file
type Upload struct {
	ID        string     `db:"id" json:"id"`
	Filename  string     `db:"filename" json:"filename"`
	Headers   StringList `db:"headers" json:"headers"`
	RowCount  int        `db:"row_count" json:"rowCount"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

// ChangeEvent is one decoded notification from the guests channel
type ChangeEvent struct {
	Action  string `json:"action"` // INSERT, UPDATE or DELETE
	ID      string `json:"id"`
	GuestID string `json:"guest_id"`
}
