package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/savak1990/my-dogs/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, map[string]int{"dog_id": 7})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"dog_id":7}`, w.Body.String())
}

type dogPayload struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func decode(body string) (dogPayload, error) {
	var p dogPayload
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	err := DecodeJSON(httptest.NewRecorder(), req, &p)
	return p, err
}

func TestDecodeJSON(t *testing.T) {
	p, err := decode(`{"name":"Rex","age":3}`)
	require.NoError(t, err)
	assert.Equal(t, dogPayload{Name: "Rex", Age: 3}, p)

	_, err = decode(``)
	assert.EqualError(t, err, "request body is empty")

	_, err = decode(`{"name":`)
	assert.Error(t, err)

	_, err = decode(`{"name":"Rex","age":"three"}`)
	assert.ErrorContains(t, err, "'age'")

	_, err = decode(`{"name":"Rex","color":"brown"}`)
	assert.ErrorContains(t, err, "color")

	_, err = decode(`{"name":"Rex"} {"name":"Max"}`)
	assert.ErrorContains(t, err, "single JSON object")

	_, err = decode(`{"name":"` + strings.Repeat("x", maxBodyBytes) + `"}`)
	assert.ErrorContains(t, err, "exceeds")
}

func TestWriteErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{apperr.Validation("CreateDog", "name is required"), http.StatusBadRequest, "name is required"},
		{apperr.UnsupportedExtension("CreateUploadIntent", "bmp"), http.StatusBadRequest, `unsupported image extension "bmp"`},
		{apperr.NotFound("GetDog", "dog 3 not found"), http.StatusNotFound, "dog 3 not found"},
		{apperr.VersionConflict("UpdateImage", 2), http.StatusConflict, "expected version 2"},
		{apperr.Unavailable("GetDog", errors.New("dial tcp: refused")), http.StatusServiceUnavailable, "A backing store is unavailable, please retry"},
		{fmt.Errorf("wrapped: %w", errors.New("secret detail")), http.StatusInternalServerError, "An unexpected error occurred"},
	}
	for _, tc := range cases {
		core, logs := observer.New(zap.ErrorLevel)
		w := httptest.NewRecorder()
		WriteError(w, zap.New(core), tc.err)

		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		var body ErrorBody
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, tc.msg, body.Message)
		assert.NotContains(t, body.Message, "secret")
		assert.NotContains(t, body.Message, "refused")

		if tc.status >= 500 {
			assert.Equal(t, 1, logs.Len(), "5xx causes are logged")
		}
	}
}
