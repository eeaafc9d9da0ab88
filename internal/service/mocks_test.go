package service

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"

	"github.com/hamgam/couple-game-server/internal/metrics"
	"github.com/hamgam/couple-game-server/internal/model"
	"github.com/hamgam/couple-game-server/internal/sse"
)

func testMetrics() *metrics.Metrics {
	return metrics.NewWith(prometheus.NewRegistry())
}

type mockGameRepo struct {
	mock.Mock
}

func (m *mockGameRepo) FindByID(ctx context.Context, id string) (*model.Game, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Game), args.Error(1)
}

func (m *mockGameRepo) FindJoinable(ctx context.Context) ([]model.Game, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Game), args.Error(1)
}

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.CoupleSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CoupleSession), args.Error(1)
}

func (m *mockSessionRepo) FindOpenByGameAndUser(ctx context.Context, gameID, userID string) (*model.CoupleSession, error) {
	args := m.Called(ctx, gameID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CoupleSession), args.Error(1)
}

func (m *mockSessionRepo) FindWaitingByGameAndPartner1(ctx context.Context, gameID, partner1ID string) (*model.CoupleSession, error) {
	args := m.Called(ctx, gameID, partner1ID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CoupleSession), args.Error(1)
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.CoupleSession) (*model.CoupleSession, error) {
	args := m.Called(ctx, session)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CoupleSession), args.Error(1)
}

func (m *mockSessionRepo) UpdateVersioned(ctx context.Context, session *model.CoupleSession) (bool, error) {
	args := m.Called(ctx, session)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) CountOpenByGame(ctx context.Context, gameID string) (int, error) {
	args := m.Called(ctx, gameID)
	return args.Int(0), args.Error(1)
}

func (m *mockSessionRepo) FindTimedOut(ctx context.Context) ([]model.CoupleSession, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CoupleSession), args.Error(1)
}

func (m *mockSessionRepo) FindStaleWaiting(ctx context.Context, before time.Time) ([]model.CoupleSession, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CoupleSession), args.Error(1)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.UserProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserProfile), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, sessionID string, event sse.Event) error {
	args := m.Called(ctx, sessionID, event)
	return args.Error(0)
}
