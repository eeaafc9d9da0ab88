package repository

import (
	"context"

	"github.com/hamgam/couple-game-server/internal/database"
	"github.com/hamgam/couple-game-server/internal/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.UserProfile, error)
}

type userRepo struct {
	db database.DBTX
}

func NewUserRepository(db database.DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.UserProfile, error) {
	var user model.UserProfile
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM user_profiles WHERE id = $1
	`, id)
	return HandleNotFound(&user, err)
}
