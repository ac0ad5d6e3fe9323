package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("get 9: %w", ErrNotFound):   http.StatusNotFound,
		ErrValidation:                          http.StatusBadRequest,
		ErrForbidden:                           http.StatusForbidden,
		ErrUnauthorized:                        http.StatusUnauthorized,
		fmt.Errorf("remote: %w", ErrUpstream):  http.StatusBadGateway,
		ErrUnavailable:                         http.StatusServiceUnavailable,
		errors.New("boom"):                     http.StatusInternalServerError,
	}
	for err, status := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, err)
		assert.Equal(t, status, rec.Code, err.Error())
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	}
}

func TestValidationProblem(t *testing.T) {
	rec := httptest.NewRecorder()
	ValidationProblem(rec, map[string]string{"email": "must be a valid email"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "must be a valid email", body.Errors["email"])
	assert.Equal(t, http.StatusBadRequest, body.Status)
}
