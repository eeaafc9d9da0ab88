package repository

import (
	"context"
	"time"

	"github.com/hamgam/couple-game-server/internal/database"
	"github.com/hamgam/couple-game-server/internal/model"
)

type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.CoupleSession, error)
	// FindOpenByGameAndUser returns the non-terminal session of the given
	// game in which the user occupies either partner slot.
	FindOpenByGameAndUser(ctx context.Context, gameID, userID string) (*model.CoupleSession, error)
	// FindWaitingByGameAndPartner1 returns the waiting session created by the
	// given partner1, if any. Used to attach the registered counterpart.
	FindWaitingByGameAndPartner1(ctx context.Context, gameID, partner1ID string) (*model.CoupleSession, error)
	Create(ctx context.Context, session *model.CoupleSession) (*model.CoupleSession, error)
	// UpdateVersioned persists all mutable session state guarded by the
	// optimistic version check. It returns false when another writer won the
	// race; the caller reloads and retries.
	UpdateVersioned(ctx context.Context, session *model.CoupleSession) (bool, error)
	CountOpenByGame(ctx context.Context, gameID string) (int, error)
	// FindTimedOut returns active sessions whose time budget is exhausted,
	// for the sweep job. Paused sessions are excluded: their deadline recedes
	// in lockstep with wall time, so they cannot time out while paused.
	FindTimedOut(ctx context.Context) ([]model.CoupleSession, error)
	// FindStaleWaiting returns waiting sessions with no activity since the
	// given instant.
	FindStaleWaiting(ctx context.Context, before time.Time) ([]model.CoupleSession, error)
}

type sessionRepo struct {
	db database.DBTX
}

func NewSessionRepository(db database.DBTX) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.CoupleSession, error) {
	var session model.CoupleSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM couple_sessions WHERE id = $1
	`, id)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindOpenByGameAndUser(ctx context.Context, gameID, userID string) (*model.CoupleSession, error) {
	var session model.CoupleSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM couple_sessions
		WHERE game_id = $1
		AND (partner1_id = $2 OR partner2_id = $2)
		AND status IN ('waiting', 'active', 'paused')
		ORDER BY created_at DESC
		LIMIT 1
	`, gameID, userID)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindWaitingByGameAndPartner1(ctx context.Context, gameID, partner1ID string) (*model.CoupleSession, error) {
	var session model.CoupleSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM couple_sessions
		WHERE game_id = $1
		AND partner1_id = $2
		AND partner2_id IS NULL
		AND status = 'waiting'
		ORDER BY created_at DESC
		LIMIT 1
	`, gameID, partner1ID)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Create(ctx context.Context, session *model.CoupleSession) (*model.CoupleSession, error) {
	var created model.CoupleSession
	err := r.db.GetContext(ctx, &created, `
		INSERT INTO couple_sessions (
			id, game_id, partner1_id, partner2_id, status, question_count,
			started_at, ended_at, paused_at, total_pause_seconds, time_remaining,
			question_orders, answers, score, history, last_activity_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING *
	`,
		session.ID, session.GameID, session.Partner1ID, session.Partner2ID,
		session.Status, session.QuestionCount, session.StartedAt, session.EndedAt,
		session.PausedAt, session.TotalPauseSeconds, session.TimeRemaining,
		session.Orders, session.Answers, session.Score, session.History,
		session.LastActivityAt, session.Version,
	)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *sessionRepo) UpdateVersioned(ctx context.Context, session *model.CoupleSession) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE couple_sessions SET
			partner2_id = $2,
			status = $3,
			question_count = $4,
			started_at = $5,
			ended_at = $6,
			paused_at = $7,
			total_pause_seconds = $8,
			time_remaining = $9,
			question_orders = $10,
			answers = $11,
			score = $12,
			history = $13,
			last_activity_at = $14,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $15
	`,
		session.ID, session.Partner2ID, session.Status, session.QuestionCount,
		session.StartedAt, session.EndedAt, session.PausedAt,
		session.TotalPauseSeconds, session.TimeRemaining, session.Orders,
		session.Answers, session.Score, session.History, session.LastActivityAt,
		session.Version,
	)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}
	session.Version++
	return true, nil
}

func (r *sessionRepo) CountOpenByGame(ctx context.Context, gameID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM couple_sessions
		WHERE game_id = $1
		AND status IN ('waiting', 'active', 'paused')
	`, gameID)
	return count, err
}

func (r *sessionRepo) FindTimedOut(ctx context.Context) ([]model.CoupleSession, error) {
	var sessions []model.CoupleSession
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT s.* FROM couple_sessions s
		JOIN games g ON g.id = s.game_id
		WHERE s.status = 'active'
		AND s.started_at IS NOT NULL
		AND s.started_at + make_interval(
			mins => g.time_limit_minutes,
			secs => s.total_pause_seconds
		) < NOW()
	`)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) FindStaleWaiting(ctx context.Context, before time.Time) ([]model.CoupleSession, error) {
	var sessions []model.CoupleSession
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM couple_sessions
		WHERE status = 'waiting'
		AND last_activity_at < $1
	`, before)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
