package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestEventsHandler_ServeHTTP(t *testing.T) {
	t.Run("missing session id is a bad request", func(t *testing.T) {
		h := NewEventsHandler(nil, nil)
		rec := httptest.NewRecorder()

		// No chi route context, so the URL param resolves empty.
		h.ServeHTTP(rec, authedRequest("GET", "/events", nil, "alice"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects unauthenticated requests", func(t *testing.T) {
		h := NewEventsHandler(nil, nil)
		router := chi.NewRouter()
		router.Get("/{sessionID}/events", h.ServeHTTP)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, httptest.NewRequest("GET", "/sess-1/events", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
