package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hamgam/couple-game-server/internal/config"
	apperrors "github.com/hamgam/couple-game-server/internal/errors"
	"github.com/hamgam/couple-game-server/internal/metrics"
	"github.com/hamgam/couple-game-server/internal/model"
	"github.com/hamgam/couple-game-server/internal/repository"
	"github.com/hamgam/couple-game-server/internal/sse"
)

// MatchingService maps a (game, calling user) pair to the session the user
// should interact with. Partner resolution follows the registered-counterpart
// rule: a waiting session is only joinable as partner2 by the spouse identity
// recorded on the creator's profile.
type MatchingService struct {
	gameRepo    repository.GameRepository
	sessionRepo repository.SessionRepository
	userRepo    repository.UserRepository
	publisher   EventPublisher
	metrics     *metrics.Metrics
}

func NewMatchingService(
	gameRepo repository.GameRepository,
	sessionRepo repository.SessionRepository,
	userRepo repository.UserRepository,
	publisher EventPublisher,
	m *metrics.Metrics,
) *MatchingService {
	return &MatchingService{
		gameRepo:    gameRepo,
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		publisher:   publisher,
		metrics:     m,
	}
}

// JoinResult carries the post-join state back to the caller.
type JoinResult struct {
	Session *model.CoupleSession `json:"session"`
	Game    model.GameSummary    `json:"game"`
}

// JoinOrCreate attaches the caller to their couple's session for the given
// game, creating one if none exists. When the caller is the registered
// counterpart of a waiting session's creator, the session is activated.
func (s *MatchingService) JoinOrCreate(ctx context.Context, gameID, userID string) (*JoinResult, error) {
	now := time.Now()

	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if game == nil {
		return nil, apperrors.NotFound("Game")
	}

	existing, err := s.sessionRepo.FindOpenByGameAndUser(ctx, gameID, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if existing != nil {
		return s.result(existing, game, now), nil
	}

	if !game.IsJoinable(now) {
		return nil, apperrors.GameNotOpen()
	}

	profile, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if profile == nil {
		return nil, apperrors.NotFound("User profile")
	}
	if profile.PartnerID == nil || *profile.PartnerID == "" {
		return nil, apperrors.NoRegisteredPartner()
	}

	waiting, err := s.sessionRepo.FindWaitingByGameAndPartner1(ctx, gameID, *profile.PartnerID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if waiting != nil {
		session, err := s.attachAndStart(ctx, waiting, game, userID, now)
		if err != nil {
			return nil, err
		}
		return s.result(session, game, now), nil
	}

	session, err := s.createWaiting(ctx, game, userID, now)
	if err != nil {
		return nil, err
	}
	return s.result(session, game, now), nil
}

// attachAndStart fills the partner2 slot and activates the session. The write
// is version guarded: if two join requests race, exactly one wins; the loser
// observes the already-updated session and proceeds.
func (s *MatchingService) attachAndStart(
	ctx context.Context,
	session *model.CoupleSession,
	game *model.Game,
	userID string,
	now time.Time,
) (*model.CoupleSession, error) {
	for attempt := 0; attempt < config.SessionWriteRetries; attempt++ {
		if err := session.AttachPartner2(now, userID); err != nil {
			return nil, err
		}
		if err := session.Start(now, game.TimeLimitMinutes, len(game.Questions)); err != nil {
			return nil, err
		}

		ok, err := s.sessionRepo.UpdateVersioned(ctx, session)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if ok {
			log.Info().
				Str("sessionId", session.ID).
				Str("gameId", session.GameID).
				Str("partner2Id", userID).
				Msg("session activated")
			s.metrics.SessionsStarted.Inc()
			publishEvent(ctx, s.publisher, session.ID, sse.EventPartnerJoined, partnerJoinedPayload{
				SessionID: session.ID,
				PartnerID: userID,
				JoinedAt:  now,
			})
			return session, nil
		}

		s.metrics.WriteConflicts.Inc()
		reloaded, err := s.sessionRepo.FindByID(ctx, session.ID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if reloaded == nil {
			return nil, apperrors.NotFound("Session")
		}
		if reloaded.IsPartner(userID) {
			// Lost the race to a concurrent join of the same user.
			return reloaded, nil
		}
		session = reloaded
	}
	return nil, apperrors.Conflict("session is being updated concurrently")
}

func (s *MatchingService) createWaiting(
	ctx context.Context,
	game *model.Game,
	userID string,
	now time.Time,
) (*model.CoupleSession, error) {
	if game.MaxCouples > 0 {
		open, err := s.sessionRepo.CountOpenByGame(ctx, game.ID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if open >= game.MaxCouples {
			return nil, apperrors.GameFull()
		}
	}

	session := model.NewWaitingSession(uuid.NewString(), game.ID, userID, now)
	created, err := s.sessionRepo.Create(ctx, session)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("sessionId", created.ID).
		Str("gameId", game.ID).
		Str("partner1Id", userID).
		Msg("waiting session created")
	s.metrics.SessionsCreated.Inc()

	return created, nil
}

func (s *MatchingService) result(session *model.CoupleSession, game *model.Game, now time.Time) *JoinResult {
	return &JoinResult{
		Session: session,
		Game:    game.Summary(now),
	}
}

// ValidateAccess enforces the partner assignment rules for an operation.
func ValidateAccess(session *model.CoupleSession, userID string, requireBothPartners bool) error {
	if !session.IsPartner(userID) {
		return apperrors.Forbidden("You are not a partner of this session")
	}
	if requireBothPartners && !session.HasBothPartners() {
		return apperrors.IncompletePartners()
	}
	return nil
}
