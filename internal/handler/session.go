package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/hamgam/couple-game-server/internal/errors"
	"github.com/hamgam/couple-game-server/internal/middleware"
	"github.com/hamgam/couple-game-server/internal/model"
	"github.com/hamgam/couple-game-server/internal/service"
)

type SessionHandler struct {
	sessionService *service.SessionService
	validate       *validator.Validate
}

func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		validate:       validator.New(),
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{sessionID}", h.GetSession)
	r.Get("/{sessionID}/status", h.GetStatus)
	r.Post("/{sessionID}/answer", h.SubmitAnswer)
	r.Post("/{sessionID}/pause", h.Pause)
	r.Post("/{sessionID}/resume", h.Resume)
	r.Post("/{sessionID}/cancel", h.Cancel)

	return r
}

type submitAnswerRequest struct {
	QuestionIndex  *int `json:"questionIndex" validate:"required,min=0"`
	SelectedOption *int `json:"selectedOption" validate:"required,min=0"`
}

// GET /v1/sessions/{sessionID}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, user, ok := h.requestContext(w, r)
	if !ok {
		return
	}

	session, err := h.sessionService.Get(r.Context(), sessionID, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// GET /v1/sessions/{sessionID}/status
//
// The polling endpoint: cheap, idempotent, safe to call every couple of
// seconds while waiting for the partner or the final score.
func (h *SessionHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	sessionID, user, ok := h.requestContext(w, r)
	if !ok {
		return
	}

	snapshot, err := h.sessionService.GetStatus(r.Context(), sessionID, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// POST /v1/sessions/{sessionID}/answer
func (h *SessionHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	sessionID, user, ok := h.requestContext(w, r)
	if !ok {
		return
	}

	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, apperrors.ValidationError(err.Error()))
		return
	}

	session, err := h.sessionService.SubmitAnswer(r.Context(), sessionID, user.ID, *req.QuestionIndex, *req.SelectedOption)
	if err != nil {
		writeError(w, err)
		return
	}

	response := map[string]any{"session": session}
	if session.Status == model.SessionStatusCompleted {
		response["score"] = session.Score
	}
	writeJSON(w, http.StatusOK, response)
}

// POST /v1/sessions/{sessionID}/pause
func (h *SessionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.sessionService.Pause)
}

// POST /v1/sessions/{sessionID}/resume
func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.sessionService.Resume)
}

// POST /v1/sessions/{sessionID}/cancel
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.sessionService.Cancel)
}

func (h *SessionHandler) lifecycle(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, sessionID, userID string) (*model.CoupleSession, error),
) {
	sessionID, user, ok := h.requestContext(w, r)
	if !ok {
		return
	}

	session, err := op(r.Context(), sessionID, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) requestContext(w http.ResponseWriter, r *http.Request) (string, *model.UserProfile, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, apperrors.MissingRequired("sessionID"))
		return "", nil, false
	}

	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return "", nil, false
	}
	return sessionID, user, true
}
