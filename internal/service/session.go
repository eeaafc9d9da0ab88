package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hamgam/couple-game-server/internal/config"
	apperrors "github.com/hamgam/couple-game-server/internal/errors"
	"github.com/hamgam/couple-game-server/internal/metrics"
	"github.com/hamgam/couple-game-server/internal/model"
	"github.com/hamgam/couple-game-server/internal/repository"
	"github.com/hamgam/couple-game-server/internal/sse"
)

// SessionService runs the lifecycle operations of a couple session. All
// writes go through the version-guarded repository update; reads evaluate
// time-based completion lazily.
type SessionService struct {
	sessionRepo repository.SessionRepository
	gameRepo    repository.GameRepository
	publisher   EventPublisher
	metrics     *metrics.Metrics
}

func NewSessionService(
	sessionRepo repository.SessionRepository,
	gameRepo repository.GameRepository,
	publisher EventPublisher,
	m *metrics.Metrics,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		gameRepo:    gameRepo,
		publisher:   publisher,
		metrics:     m,
	}
}

// StatusSnapshot is the lightweight projection clients poll. Reads have no
// side effects beyond the lazy expiry check.
type StatusSnapshot struct {
	SessionID        string              `json:"sessionId"`
	Status           model.SessionStatus `json:"status"`
	IsActive         bool                `json:"isActive"`
	HasBothPartners  bool                `json:"hasBothPartners"`
	Partner1Answered int                 `json:"partner1Answered"`
	Partner2Answered int                 `json:"partner2Answered"`
	QuestionCount    int                 `json:"questionCount"`
	TimeRemaining    int                 `json:"timeRemaining"`
	Score            *model.Score        `json:"score,omitempty"`
}

// GetStatus returns the polling snapshot, completing the session first if its
// time budget ran out since the last access.
func (s *SessionService) GetStatus(ctx context.Context, sessionID, userID string) (*StatusSnapshot, error) {
	s.metrics.StatusPolls.Inc()

	session, game, err := s.loadAuthorized(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	session, err = s.expireIfDue(ctx, session, game)
	if err != nil {
		return nil, err
	}

	snapshot := &StatusSnapshot{
		SessionID:        session.ID,
		Status:           session.Status,
		IsActive:         session.Status == model.SessionStatusActive,
		HasBothPartners:  session.HasBothPartners(),
		Partner1Answered: len(session.Answers.Partner1),
		Partner2Answered: len(session.Answers.Partner2),
		QuestionCount:    session.QuestionCount,
		TimeRemaining:    session.TimeRemaining,
	}
	if session.Status == model.SessionStatusCompleted {
		score := session.Score
		snapshot.Score = &score
	}
	return snapshot, nil
}

// Get returns the full session, used after completion to fetch the final
// score and history.
func (s *SessionService) Get(ctx context.Context, sessionID, userID string) (*model.CoupleSession, error) {
	session, game, err := s.loadAuthorized(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	return s.expireIfDue(ctx, session, game)
}

// SubmitAnswer records one answer for the calling partner. The duplicate
// check and the write happen against the same loaded version, so two racing
// submissions for the same question cannot both succeed.
func (s *SessionService) SubmitAnswer(ctx context.Context, sessionID, userID string, questionIndex, selectedOption int) (*model.CoupleSession, error) {
	now := time.Now()

	for attempt := 0; attempt < config.SessionWriteRetries; attempt++ {
		session, game, err := s.loadAuthorized(ctx, sessionID, userID)
		if err != nil {
			return nil, err
		}
		if err := ValidateAccess(session, userID, true); err != nil {
			return nil, err
		}
		if err := validateAnswer(game, questionIndex, selectedOption); err != nil {
			return nil, err
		}

		slot, _ := session.PartnerSlot(userID)
		session.UpdateTimeRemaining(now, game.TimeLimitMinutes)

		if err := session.AddAnswer(now, slot, questionIndex, selectedOption); err != nil {
			if apperrors.GetCode(err) == apperrors.ErrCodeDuplicateAnswer {
				s.metrics.DuplicateAnswers.Inc()
			}
			// A session expired by the lazy check above still needs its
			// completion persisted before surfacing the error.
			if session.Status == model.SessionStatusCompleted {
				if _, persistErr := s.persist(ctx, session); persistErr == nil {
					s.notifyCompleted(ctx, session, "timeout")
				}
			}
			return nil, err
		}

		ok, err := s.persist(ctx, session)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.metrics.WriteConflicts.Inc()
			continue
		}

		s.metrics.AnswersRecorded.Inc()
		log.Debug().
			Str("sessionId", session.ID).
			Str("partner", string(slot)).
			Int("questionIndex", questionIndex).
			Msg("answer recorded")

		if session.Status == model.SessionStatusCompleted {
			s.notifyCompleted(ctx, session, "answers")
		}
		return session, nil
	}

	return nil, apperrors.Conflict("session is being updated concurrently, please retry")
}

// Pause stops the session clock. Pausing a session that is not active is a
// no-op and returns the unchanged session.
func (s *SessionService) Pause(ctx context.Context, sessionID, userID string) (*model.CoupleSession, error) {
	return s.transition(ctx, sessionID, userID, func(session *model.CoupleSession, now time.Time) error {
		session.Pause(now)
		return nil
	})
}

// Resume restarts a paused session's clock. A no-op when not paused.
func (s *SessionService) Resume(ctx context.Context, sessionID, userID string) (*model.CoupleSession, error) {
	return s.transition(ctx, sessionID, userID, func(session *model.CoupleSession, now time.Time) error {
		session.Resume(now)
		return nil
	})
}

// Cancel aborts the session from any non-terminal state.
func (s *SessionService) Cancel(ctx context.Context, sessionID, userID string) (*model.CoupleSession, error) {
	session, err := s.transition(ctx, sessionID, userID, func(session *model.CoupleSession, now time.Time) error {
		return session.Cancel(now, userID, "cancelled by partner")
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SessionsCancelled.Inc()
	publishEvent(ctx, s.publisher, session.ID, sse.EventSessionCancelled, sessionCancelledPayload{
		SessionID:   session.ID,
		CancelledAt: time.Now(),
		Reason:      "cancelled by partner",
	})
	return session, nil
}

// transition applies fn under the optimistic write loop.
func (s *SessionService) transition(
	ctx context.Context,
	sessionID, userID string,
	fn func(session *model.CoupleSession, now time.Time) error,
) (*model.CoupleSession, error) {
	now := time.Now()

	for attempt := 0; attempt < config.SessionWriteRetries; attempt++ {
		session, _, err := s.loadAuthorized(ctx, sessionID, userID)
		if err != nil {
			return nil, err
		}

		if err := fn(session, now); err != nil {
			return nil, err
		}

		ok, err := s.persist(ctx, session)
		if err != nil {
			return nil, err
		}
		if ok {
			return session, nil
		}
		s.metrics.WriteConflicts.Inc()
	}

	return nil, apperrors.Conflict("session is being updated concurrently, please retry")
}

func (s *SessionService) loadAuthorized(ctx context.Context, sessionID, userID string) (*model.CoupleSession, *model.Game, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, nil, apperrors.NotFound("Session")
	}
	if err := ValidateAccess(session, userID, false); err != nil {
		return nil, nil, err
	}

	game, err := s.gameRepo.FindByID(ctx, session.GameID)
	if err != nil {
		return nil, nil, apperrors.Database(err)
	}
	if game == nil {
		return nil, nil, apperrors.NotFound("Game")
	}
	return session, game, nil
}

// expireIfDue runs the lazy time check and persists a completion it caused.
// Plain countdown updates are not written back; every reader recomputes them.
func (s *SessionService) expireIfDue(ctx context.Context, session *model.CoupleSession, game *model.Game) (*model.CoupleSession, error) {
	if session.Status != model.SessionStatusActive && session.Status != model.SessionStatusPaused {
		return session, nil
	}

	session.UpdateTimeRemaining(time.Now(), game.TimeLimitMinutes)
	if session.Status != model.SessionStatusCompleted {
		return session, nil
	}

	ok, err := s.persist(ctx, session)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Another writer got there first; its state wins.
		reloaded, err := s.sessionRepo.FindByID(ctx, session.ID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if reloaded == nil {
			return nil, apperrors.NotFound("Session")
		}
		return reloaded, nil
	}

	s.notifyCompleted(ctx, session, "timeout")
	return session, nil
}

func (s *SessionService) persist(ctx context.Context, session *model.CoupleSession) (bool, error) {
	ok, err := s.sessionRepo.UpdateVersioned(ctx, session)
	if err != nil {
		return false, apperrors.Database(err)
	}
	return ok, nil
}

func (s *SessionService) notifyCompleted(ctx context.Context, session *model.CoupleSession, cause string) {
	s.metrics.SessionsCompleted.WithLabelValues(cause).Inc()
	log.Info().
		Str("sessionId", session.ID).
		Str("cause", cause).
		Int("similarity", session.Score.SimilarityPercentage).
		Msg("session completed")

	endedAt := time.Now()
	if session.EndedAt != nil {
		endedAt = *session.EndedAt
	}
	publishEvent(ctx, s.publisher, session.ID, sse.EventSessionCompleted, sessionCompletedPayload{
		SessionID: session.ID,
		EndedAt:   endedAt,
	})
}

func validateAnswer(game *model.Game, questionIndex, selectedOption int) error {
	if questionIndex < 0 || questionIndex >= len(game.Questions) {
		return apperrors.InvalidInput("questionIndex", fmt.Sprintf("must be in [0, %d)", len(game.Questions)))
	}
	options := game.Questions[questionIndex].Options
	if selectedOption < 0 || selectedOption >= len(options) {
		return apperrors.InvalidInput("selectedOption", fmt.Sprintf("must be in [0, %d)", len(options)))
	}
	return nil
}
