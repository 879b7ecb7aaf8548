package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menuboard/pkg/platform/sentinel"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("db failed"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decode(t, w)
		assert.Equal(t, "internal_error", body["error"])
		assert.NotContains(t, body, "error_description")
	})

	t.Run("wrapped sentinels map to statuses", func(t *testing.T) {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{fmt.Errorf("category 9: %w", sentinel.ErrNotFound), http.StatusNotFound, "not_found"},
			{fmt.Errorf("load: %w", sentinel.ErrUnavailable), http.StatusServiceUnavailable, "unavailable"},
			{fmt.Errorf("decode: %w", sentinel.ErrBadData), http.StatusBadGateway, "bad_upstream_data"},
			{fmt.Errorf("closed: %w", sentinel.ErrInvalidState), http.StatusConflict, "conflict"},
		}
		for _, tc := range cases {
			w := httptest.NewRecorder()
			WriteError(w, tc.err)

			assert.Equal(t, tc.status, w.Code, tc.code)
			body := decode(t, w)
			assert.Equal(t, tc.code, body["error"])
			assert.Equal(t, tc.err.Error(), body["error_description"])
		}
	})
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusAccepted, map[string]int{"version": 3})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"version":3}`, w.Body.String())
}
