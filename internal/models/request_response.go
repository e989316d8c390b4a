package models

// Response models
type UploadResponse struct {
	Status   string     `json:"status"`
	UploadID string     `json:"uploadId,omitempty"`
	Filename string     `json:"filename,omitempty"`
	Headers  []string   `json:"headers"`
	RowCount int        `json:"rowCount"`
	Rows     []GuestRow `json:"rows,omitempty"`
}

// DisplayRow is one row of the live table: the parsed cell data plus the
// identifier and confirmation state merged in from the store
type DisplayRow struct {
	GuestID     string   `json:"guestId"`
	Data        GuestRow `json:"data"`
	Confirmed   bool     `json:"confirmed"`
	ConfirmedAt string   `json:"confirmedAt,omitempty"`
}

// GuestsResponse is the reconciled table snapshot, optionally filtered.
// TotalCount and FilteredCount differ so clients can tell an empty search
// result apart from an empty dataset.
type GuestsResponse struct {
	Status        string       `json:"status"`
	Columns       []string     `json:"columns"`
	Rows          []DisplayRow `json:"rows"`
	ConfirmedIDs  []string     `json:"confirmedIds"`
	TotalCount    int          `json:"totalCount"`
	FilteredCount int          `json:"filteredCount"`
	Search        string       `json:"search,omitempty"`
}

type ToggleResponse struct {
	Status      string `json:"status"`
	GuestID     string `json:"guestId"`
	Confirmed   bool   `json:"confirmed"`
	ConfirmedAt string `json:"confirmedAt,omitempty"`
}

type UploadsResponse struct {
	Status  string   `json:"status"`
	Uploads []Upload `json:"uploads"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
