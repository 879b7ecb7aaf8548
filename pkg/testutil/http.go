// Package testutil holds helpers shared by handler, CLI and integration tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"menuboard/pkg/platform/httputil"
)

// Serve runs one bodyless request through handler and returns the recorder.
func Serve(t *testing.T, handler http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

// ReadBody drains the recorded body.
func ReadBody(t *testing.T, rr *httptest.ResponseRecorder) []byte {
	t.Helper()
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	return body
}

// DecodeJSON decodes the recorded body into a T.
func DecodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(ReadBody(t, rr), &v), "body is not a %T", v)
	return &v
}

// RequireStatus fails the test when the status differs; the body is included
// in the failure message.
func RequireStatus(t *testing.T, rr *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rr.Code, "body: %s", rr.Body.String())
}

func RequireOK(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	RequireStatus(t, rr, http.StatusOK)
}

// RequireError checks status and error code of an httputil error body and
// returns it. Non-500 errors must carry a description.
func RequireError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) httputil.ErrorResponse {
	t.Helper()
	RequireStatus(t, rr, status)
	resp := DecodeJSON[httputil.ErrorResponse](t, rr)
	require.Equal(t, code, resp.Error)
	if status != http.StatusInternalServerError {
		require.NotEmpty(t, resp.ErrorDescription, "error %q has no description", code)
	}
	return *resp
}
