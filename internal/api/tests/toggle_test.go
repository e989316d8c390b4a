package api_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/invitapp/guestlist-server/internal/api/testutils"
	"github.com/invitapp/guestlist-server/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestToggleConfirmed(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	w := testutils.PerformUpload(t, testCtx.Router, "lista.csv",
		[]byte("Código,Nombre\nA1,Ana\nB2,Luis\n"))
	assert.Equal(t, http.StatusCreated, w.Code)

	// First toggle confirms and stamps confirmed_at
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/guests/A1/confirm", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response models.ToggleResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "A1", response.GuestID)
	assert.True(t, response.Confirmed)
	assert.NotEmpty(t, response.ConfirmedAt)

	// The confirmed set reflects the change
	var guests models.GuestsResponse
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/guests", nil)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &guests))
	assert.Equal(t, []string{"A1"}, guests.ConfirmedIDs)

	// Toggling is not idempotent: a second call flips back and clears the
	// timestamp, restoring the original state
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/guests/A1/confirm", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(t, response.Confirmed)
	assert.Empty(t, response.ConfirmedAt)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/guests", nil)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &guests))
	assert.Empty(t, guests.ConfirmedIDs)
}

func TestToggleUnknownGuest(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/guests/no-such-guest/confirm", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var response models.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "UPDATE_FAILED", response.Code)
}
