package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/hamgam/couple-game-server/internal/errors"
	"github.com/hamgam/couple-game-server/internal/middleware"
	"github.com/hamgam/couple-game-server/internal/service"
)

type GameHandler struct {
	catalogService  *service.CatalogService
	matchingService *service.MatchingService
}

func NewGameHandler(catalogService *service.CatalogService, matchingService *service.MatchingService) *GameHandler {
	return &GameHandler{
		catalogService:  catalogService,
		matchingService: matchingService,
	}
}

func (h *GameHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListGames)
	r.Get("/{gameID}", h.GetGame)
	r.Post("/{gameID}/start", h.StartGame)

	return r
}

// GET /v1/games
func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.catalogService.ListJoinable(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list games")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": summaries})
}

// GET /v1/games/{gameID}
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		writeError(w, apperrors.MissingRequired("gameID"))
		return
	}

	summary, err := h.catalogService.GetSummary(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// POST /v1/games/{gameID}/start
//
// Joins the caller to their couple's session for this game, creating a
// waiting session when none exists yet.
func (h *GameHandler) StartGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		writeError(w, apperrors.MissingRequired("gameID"))
		return
	}

	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	result, err := h.matchingService.JoinOrCreate(r.Context(), gameID, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
