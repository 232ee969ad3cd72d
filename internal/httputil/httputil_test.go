package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-insights/internal/logger"
	"pdf-insights/internal/schema"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, map[string]string{"answer": "x"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "x", body["answer"])
}

func TestFail(t *testing.T) {
	w := httptest.NewRecorder()
	Fail(logger.Discard(), w, "boom", errors.New("cause"), 0)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "boom")
	assert.NotContains(t, w.Body.String(), "cause")
}

func TestValidationError(t *testing.T) {
	t.Run("field errors", func(t *testing.T) {
		w := httptest.NewRecorder()
		ValidationError(logger.Discard(), w, &schema.Error{Fields: []schema.FieldError{
			{Field: "question", Rule: "required", Message: "question is required"},
		}})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var body struct {
			Error  string              `json:"error"`
			Fields []schema.FieldError `json:"fields"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "validation failed", body.Error)
		require.Len(t, body.Fields, 1)
		assert.Equal(t, "question", body.Fields[0].Field)
	})

	t.Run("plain error", func(t *testing.T) {
		w := httptest.NewRecorder()
		ValidationError(logger.Discard(), w, errors.New("bad"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "bad")
	})
}

func TestRecoverer(t *testing.T) {
	r := NewRouter(logger.Discard())
	r.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	HealthHandler(logger.Discard())(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestServeStopsOnContextCancel(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, srv) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
