package apperr

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

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("bad %s", "input"), http.StatusBadRequest},
		{Authentication("no token"), http.StatusUnauthorized},
		{PermissionDenied("nope"), http.StatusForbidden},
		{NotFound("missing"), http.StatusNotFound},
		{Conflict("dup"), http.StatusConflict},
		{fmt.Errorf("wrapped: %w", NotFound("post")), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestWrite_HidesInternalMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, errors.New("db password is hunter2"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal_error", body.Error.Code)
	assert.Equal(t, "internal error", body.Error.Message)
}

func TestWrite_Validation(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, Validation("cannot follow yourself"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation_error", body.Error.Code)
	assert.Equal(t, "cannot follow yourself", body.Error.Message)
}
