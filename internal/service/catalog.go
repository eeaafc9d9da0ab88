package service

import (
	"context"
	"time"

	apperrors "github.com/hamgam/couple-game-server/internal/errors"
	"github.com/hamgam/couple-game-server/internal/model"
	"github.com/hamgam/couple-game-server/internal/repository"
)

// CatalogService exposes the immutable game catalog to clients.
type CatalogService struct {
	gameRepo repository.GameRepository
}

func NewCatalogService(gameRepo repository.GameRepository) *CatalogService {
	return &CatalogService{gameRepo: gameRepo}
}

func (s *CatalogService) GetSummary(ctx context.Context, gameID string) (*model.GameSummary, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if game == nil {
		return nil, apperrors.NotFound("Game")
	}
	summary := game.Summary(time.Now())
	return &summary, nil
}

func (s *CatalogService) ListJoinable(ctx context.Context) ([]model.GameSummary, error) {
	games, err := s.gameRepo.FindJoinable(ctx)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	now := time.Now()
	summaries := make([]model.GameSummary, 0, len(games))
	for i := range games {
		summaries = append(summaries, games[i].Summary(now))
	}
	return summaries, nil
}
