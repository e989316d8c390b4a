package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/invitapp/guestlist-server/internal/api/testutils"
	"github.com/invitapp/guestlist-server/internal/config"
	"github.com/invitapp/guestlist-server/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestUploadReplacesGuestList(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	csv := []byte("Código,Nombre,Email\nA1,Ana,ana@example.com\nB2,Luis,luis@example.com\n")

	w := testutils.PerformUpload(t, testCtx.Router, "invitados.csv", csv)
	assert.Equal(t, http.StatusCreated, w.Code)

	var response models.UploadResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "success", response.Status)
	assert.Equal(t, []string{"Código", "Nombre", "Email"}, response.Headers)
	assert.Equal(t, 2, response.RowCount)

	// Persisted count equals post-normalization row count
	assert.Equal(t, 2, testutils.CountGuests(t, testCtx))

	// Every record starts unconfirmed, with the derived identifier
	var guests models.GuestsResponse
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/guests", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &guests))
	assert.Equal(t, 2, guests.TotalCount)
	assert.Empty(t, guests.ConfirmedIDs)
	assert.Equal(t, "A1", guests.Rows[0].GuestID)
	assert.Equal(t, "B2", guests.Rows[1].GuestID)
	for _, row := range guests.Rows {
		assert.False(t, row.Confirmed)
	}

	// A second upload fully replaces the first
	w = testutils.PerformUpload(t, testCtx.Router, "invitados2.csv",
		[]byte("Nombre\nCarla\n"))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, testutils.CountGuests(t, testCtx))
}

func TestUploadPositionalIdentifiers(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// No identifier column: guests get positional identifiers
	w := testutils.PerformUpload(t, testCtx.Router, "lista.csv",
		[]byte("Nombre\nAna\nLuis\n"))
	assert.Equal(t, http.StatusCreated, w.Code)

	var guests models.GuestsResponse
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/guests", nil)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &guests))
	assert.Equal(t, "guest_1", guests.Rows[0].GuestID)
	assert.Equal(t, "guest_2", guests.Rows[1].GuestID)
}

func TestUploadRejectsInvalidFileType(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	w := testutils.PerformUpload(t, testCtx.Router, "lista.pdf", []byte("whatever"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response models.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "INVALID_FILE_TYPE", response.Code)

	assert.Equal(t, 0, testutils.CountGuests(t, testCtx))
}

func TestUploadRejectsOversizeFileWithoutStoreMutation(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	// Seed one list so a mutation would be observable
	w := testutils.PerformUpload(t, testCtx.Router, "lista.csv",
		[]byte("Nombre\nAna\n"))
	assert.Equal(t, http.StatusCreated, w.Code)

	oversize := bytes.Repeat([]byte("a"), int(config.DefaultMaxUploadBytes)+1)
	w = testutils.PerformUpload(t, testCtx.Router, "enorme.csv", oversize)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	var response models.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "FILE_TOO_LARGE", response.Code)

	// The previously stored list is untouched
	assert.Equal(t, 1, testutils.CountGuests(t, testCtx))

	// Far oversize uploads trip the body limit before the form is parsed;
	// the rejection must still carry the same code
	farOversize := bytes.Repeat([]byte("a"), int(config.DefaultMaxUploadBytes)+(128<<10))
	w = testutils.PerformUpload(t, testCtx.Router, "gigante.csv", farOversize)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "FILE_TOO_LARGE", response.Code)
	assert.Equal(t, 1, testutils.CountGuests(t, testCtx))
}

func TestUploadRejectsUnparseableContent(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	tests := []struct {
		name     string
		filename string
		content  string
		code     string
	}{
		{"header only", "lista.csv", "Nombre,Email\n", "INSUFFICIENT_ROWS"},
		{"blank headers", "lista.csv", " , \nAna,a@b.c\n", "NO_HEADERS_DETECTED"},
		{"blank rows", "lista.csv", "Nombre,Email\n,\n", "NO_VALID_DATA_ROWS"},
		{"not a workbook", "lista.xlsx", "plain text", "PARSE_FAILURE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testutils.PerformUpload(t, testCtx.Router, tt.filename, []byte(tt.content))
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

			var response models.ErrorResponse
			assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.code, response.Code)
		})
	}

	assert.Equal(t, 0, testutils.CountGuests(t, testCtx))
}

func TestUploadHistoryRecorded(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	w := testutils.PerformUpload(t, testCtx.Router, "lista.csv",
		[]byte("Nombre\nAna\n"))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/uploads", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response models.UploadsResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response.Uploads, 1)
	assert.Equal(t, "lista.csv", response.Uploads[0].Filename)
	assert.Equal(t, 1, response.Uploads[0].RowCount)
	assert.Equal(t, models.StringList{"Nombre"}, response.Uploads[0].Headers)
}
