package repository

import (
	"context"

	"github.com/hamgam/couple-game-server/internal/database"
	"github.com/hamgam/couple-game-server/internal/model"
)

type GameRepository interface {
	FindByID(ctx context.Context, id string) (*model.Game, error)
	FindJoinable(ctx context.Context) ([]model.Game, error)
}

type gameRepo struct {
	db database.DBTX
}

func NewGameRepository(db database.DBTX) GameRepository {
	return &gameRepo{db: db}
}

func (r *gameRepo) FindByID(ctx context.Context, id string) (*model.Game, error) {
	var game model.Game
	err := r.db.GetContext(ctx, &game, `
		SELECT * FROM games WHERE id = $1
	`, id)
	return HandleNotFound(&game, err)
}

func (r *gameRepo) FindJoinable(ctx context.Context) ([]model.Game, error) {
	var games []model.Game
	err := r.db.SelectContext(ctx, &games, `
		SELECT * FROM games
		WHERE active = TRUE
		AND starts_at <= NOW()
		AND (ends_at IS NULL OR ends_at >= NOW())
		ORDER BY starts_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return games, nil
}
