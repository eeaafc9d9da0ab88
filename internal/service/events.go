package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hamgam/couple-game-server/internal/sse"
)

// EventPublisher pushes session lifecycle events to connected clients.
// *sse.Broker satisfies it; tests substitute a recorder.
type EventPublisher interface {
	Publish(ctx context.Context, sessionID string, event sse.Event) error
}

func publishEvent(ctx context.Context, publisher EventPublisher, sessionID, eventType string, payload any) {
	if publisher == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		return
	}
	if err := publisher.Publish(ctx, sessionID, sse.Event{Type: eventType, Data: data}); err != nil {
		log.Warn().Err(err).
			Str("sessionId", sessionID).
			Str("event", eventType).
			Msg("failed to publish session event")
	}
}

type partnerJoinedPayload struct {
	SessionID string    `json:"sessionId"`
	PartnerID string    `json:"partnerId"`
	JoinedAt  time.Time `json:"joinedAt"`
}

type sessionCompletedPayload struct {
	SessionID string    `json:"sessionId"`
	EndedAt   time.Time `json:"endedAt"`
}

type sessionCancelledPayload struct {
	SessionID   string    `json:"sessionId"`
	CancelledAt time.Time `json:"cancelledAt"`
	Reason      string    `json:"reason,omitempty"`
}
