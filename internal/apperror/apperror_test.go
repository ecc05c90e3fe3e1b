package apperror

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
	}{
		{NotFound("missing"), http.StatusNotFound},
		{Validation("bad input"), http.StatusBadRequest},
		{Auth("no token"), http.StatusUnauthorized},
		{AccessDenied("wrong tenant"), http.StatusForbidden},
		{BusinessLogic("cannot uninstall system app"), http.StatusConflict},
		{External("db down", nil), http.StatusBadGateway},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.HTTPStatus(), tc.err.Message)
	}
}

func TestHTTPErrorHandlerEnvelope(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(Validation("title is required"), c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "title is required", body["detail"])
}

func TestHTTPErrorHandlerUnknownError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(assert.AnError, c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
