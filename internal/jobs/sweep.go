package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hamgam/couple-game-server/internal/metrics"
	"github.com/hamgam/couple-game-server/internal/model"
	"github.com/hamgam/couple-game-server/internal/repository"
	"github.com/hamgam/couple-game-server/internal/sse"
)

const sweepTimeout = 30 * time.Second

// EventPublisher pushes session lifecycle events; *sse.Broker satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, sessionID string, event sse.Event) error
}

// SweepJob closes sessions that lazy evaluation alone would leave open
// forever: active sessions whose time budget ran out with nobody polling,
// and waiting sessions abandoned before the partner arrived.
type SweepJob struct {
	sessionRepo repository.SessionRepository
	publisher   EventPublisher
	metrics     *metrics.Metrics
	interval    time.Duration
	waitingTTL  time.Duration
	done        chan struct{}
}

func NewSweepJob(
	sessionRepo repository.SessionRepository,
	publisher EventPublisher,
	m *metrics.Metrics,
	interval, waitingTTL time.Duration,
) *SweepJob {
	return &SweepJob{
		sessionRepo: sessionRepo,
		publisher:   publisher,
		metrics:     m,
		interval:    interval,
		waitingTTL:  waitingTTL,
		done:        make(chan struct{}),
	}
}

func (j *SweepJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("session sweep started")
}

func (j *SweepJob) Stop() {
	close(j.done)
	log.Info().Msg("session sweep stopped")
}

func (j *SweepJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *SweepJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	j.completeTimedOut(ctx)
	j.cancelAbandoned(ctx)
}

func (j *SweepJob) completeTimedOut(ctx context.Context) {
	sessions, err := j.sessionRepo.FindTimedOut(ctx)
	if err != nil {
		log.Error().Err(err).Msg("sweep: find timed out sessions")
		return
	}

	now := time.Now()
	completed := 0
	for i := range sessions {
		session := &sessions[i]
		// A paused session's clock is frozen; only active sessions run out.
		if session.Status != model.SessionStatusActive {
			continue
		}
		session.TimeRemaining = 0
		if err := session.Complete(now); err != nil {
			continue
		}
		ok, err := j.sessionRepo.UpdateVersioned(ctx, session)
		if err != nil {
			log.Error().Err(err).Str("sessionId", session.ID).Msg("sweep: persist completion")
			continue
		}
		// A lost version race means a live request already finalized it.
		if !ok {
			continue
		}
		completed++
		j.metrics.SessionsCompleted.WithLabelValues("timeout").Inc()
		j.publish(ctx, session.ID, sse.EventSessionCompleted, map[string]any{
			"sessionId": session.ID,
			"endedAt":   now,
		})
	}

	if completed > 0 {
		log.Info().Int("count", completed).Msg("sweep: completed timed out sessions")
	}
}

func (j *SweepJob) cancelAbandoned(ctx context.Context) {
	cutoff := time.Now().Add(-j.waitingTTL)
	sessions, err := j.sessionRepo.FindStaleWaiting(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("sweep: find stale waiting sessions")
		return
	}

	now := time.Now()
	cancelled := 0
	for i := range sessions {
		session := &sessions[i]
		if err := session.Cancel(now, "sweeper", "abandoned before partner joined"); err != nil {
			continue
		}
		ok, err := j.sessionRepo.UpdateVersioned(ctx, session)
		if err != nil {
			log.Error().Err(err).Str("sessionId", session.ID).Msg("sweep: persist cancellation")
			continue
		}
		if !ok {
			continue
		}
		cancelled++
		j.metrics.SessionsCancelled.Inc()
		j.publish(ctx, session.ID, sse.EventSessionCancelled, map[string]any{
			"sessionId":   session.ID,
			"cancelledAt": now,
			"reason":      "abandoned before partner joined",
		})
	}

	if cancelled > 0 {
		log.Info().Int("count", cancelled).Msg("sweep: cancelled abandoned sessions")
	}
}

func (j *SweepJob) publish(ctx context.Context, sessionID, eventType string, payload any) {
	if j.publisher == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := j.publisher.Publish(ctx, sessionID, sse.Event{Type: eventType, Data: data}); err != nil {
		log.Warn().Err(err).
			Str("sessionId", sessionID).
			Str("event", eventType).
			Msg("sweep: publish session event")
	}
}
