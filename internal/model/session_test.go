package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hamgam/couple-game-server/internal/errors"
)

func newTestSession(t *testing.T) *CoupleSession {
	t.Helper()
	partner2 := "user-2"
	return &CoupleSession{
		ID:         "session-1",
		GameID:     "game-1",
		Partner1ID: "user-1",
		Partner2ID: &partner2,
		Status:     SessionStatusWaiting,
	}
}

func startedSession(t *testing.T, questionCount int) (*CoupleSession, time.Time) {
	t.Helper()
	sess := newTestSession(t)
	start := time.Date(2026, 3, 21, 10, 0, 0, 0, time.UTC)
	require.NoError(t, sess.Start(start, 5, questionCount))
	return sess, start
}

func TestStart(t *testing.T) {
	t.Run("activates waiting session", func(t *testing.T) {
		sess, start := startedSession(t, 3)

		assert.Equal(t, SessionStatusActive, sess.Status)
		assert.Equal(t, 5*60, sess.TimeRemaining)
		require.NotNil(t, sess.StartedAt)
		assert.Equal(t, start, *sess.StartedAt)
		require.Len(t, sess.History, 1)
		assert.Equal(t, HistoryStarted, sess.History[0].Action)
	})

	t.Run("generates per-partner permutations", func(t *testing.T) {
		const questionCount = 20
		sess, _ := startedSession(t, questionCount)

		for _, order := range []QuestionOrder{sess.Orders.Partner1, sess.Orders.Partner2} {
			require.Len(t, order, questionCount)
			seen := make(map[int]bool, questionCount)
			for _, idx := range order {
				assert.GreaterOrEqual(t, idx, 0)
				assert.Less(t, idx, questionCount)
				assert.False(t, seen[idx], "index %d repeated", idx)
				seen[idx] = true
			}
		}
	})

	t.Run("orders are generated independently", func(t *testing.T) {
		// With 20 questions the chance of every couple getting identical
		// orders is vanishingly small; derived orders would always agree.
		identical := 0
		for i := 0; i < 20; i++ {
			sess, _ := startedSession(t, 20)
			same := true
			for j := range sess.Orders.Partner1 {
				if sess.Orders.Partner1[j] != sess.Orders.Partner2[j] {
					same = false
					break
				}
			}
			if same {
				identical++
			}
		}
		assert.Less(t, identical, 20)
	})

	t.Run("rejects start of active session", func(t *testing.T) {
		sess, start := startedSession(t, 3)
		err := sess.Start(start.Add(time.Second), 5, 3)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeConflict, apperrors.GetCode(err))
	})

	t.Run("rejects start of terminal session", func(t *testing.T) {
		sess := newTestSession(t)
		sess.Status = SessionStatusCancelled
		err := sess.Start(time.Now(), 5, 3)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeTerminalState, apperrors.GetCode(err))
	})
}

func TestPauseResume(t *testing.T) {
	t.Run("pause while waiting is a no-op", func(t *testing.T) {
		sess := newTestSession(t)
		sess.Pause(time.Now())
		assert.Equal(t, SessionStatusWaiting, sess.Status)
		assert.Empty(t, sess.History)
	})

	t.Run("resume while active is a no-op", func(t *testing.T) {
		sess, start := startedSession(t, 3)
		sess.Resume(start.Add(time.Second))
		assert.Equal(t, SessionStatusActive, sess.Status)
		require.Len(t, sess.History, 1) // only "started"
	})

	t.Run("pause then resume accumulates pause time", func(t *testing.T) {
		sess, start := startedSession(t, 3)

		sess.Pause(start.Add(time.Minute))
		assert.Equal(t, SessionStatusPaused, sess.Status)
		require.NotNil(t, sess.PausedAt)

		sess.Resume(start.Add(3 * time.Minute))
		assert.Equal(t, SessionStatusActive, sess.Status)
		assert.Nil(t, sess.PausedAt)
		assert.Equal(t, 120, sess.TotalPauseSeconds)

		actions := []HistoryAction{sess.History[0].Action, sess.History[1].Action, sess.History[2].Action}
		assert.Equal(t, []HistoryAction{HistoryStarted, HistoryPaused, HistoryResumed}, actions)
	})

	t.Run("pause on terminal session is a no-op", func(t *testing.T) {
		sess, start := startedSession(t, 3)
		require.NoError(t, sess.Cancel(start.Add(time.Second), "admin", "test"))
		sess.Pause(start.Add(2 * time.Second))
		assert.Equal(t, SessionStatusCancelled, sess.Status)
	})
}

func TestAddAnswer(t *testing.T) {
	t.Run("records answer with net play time", func(t *testing.T) {
		sess, start := startedSession(t, 3)
		sess.Pause(start.Add(10 * time.Second))
		sess.Resume(start.Add(40 * time.Second))

		err := sess.AddAnswer(start.Add(50*time.Second), PartnerKey1, 2, 1)
		require.NoError(t, err)

		answer, ok := sess.Answers.Partner1[2]
		require.True(t, ok)
		assert.Equal(t, 1, answer.SelectedOption)
		assert.Equal(t, 20, answer.TimeSpent) // 50s elapsed minus 30s paused
	})

	t.Run("rejects duplicate answer and keeps the first", func(t *testing.T) {
		sess, start := startedSession(t, 3)

		require.NoError(t, sess.AddAnswer(start.Add(time.Second), PartnerKey1, 0, 2))
		err := sess.AddAnswer(start.Add(2*time.Second), PartnerKey1, 0, 3)

		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeDuplicateAnswer, apperrors.GetCode(err))
		require.Len(t, sess.Answers.Partner1, 1)
		assert.Equal(t, 2, sess.Answers.Partner1[0].SelectedOption)
	})

	t.Run("rejects unknown partner key", func(t *testing.T) {
		sess, start := startedSession(t, 3)
		err := sess.AddAnswer(start.Add(time.Second), PartnerKey("partner3"), 0, 0)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeInvalidPartnerKey, apperrors.GetCode(err))
	})

	t.Run("rejects answer on terminal session", func(t *testing.T) {
		sess, start := startedSession(t, 3)
		require.NoError(t, sess.Cancel(start.Add(time.Second), "", ""))
		err := sess.AddAnswer(start.Add(2*time.Second), PartnerKey1, 0, 0)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeTerminalState, apperrors.GetCode(err))
	})

	t.Run("completes when both partners answered everything", func(t *testing.T) {
		sess, start := startedSession(t, 2)
		now := start.Add(time.Second)

		require.NoError(t, sess.AddAnswer(now, PartnerKey1, 0, 0))
		require.NoError(t, sess.AddAnswer(now, PartnerKey1, 1, 1))
		assert.Equal(t, SessionStatusActive, sess.Status)

		require.NoError(t, sess.AddAnswer(now, PartnerKey2, 0, 0))
		require.NoError(t, sess.AddAnswer(now, PartnerKey2, 1, 1))

		assert.Equal(t, SessionStatusCompleted, sess.Status)
		require.NotNil(t, sess.EndedAt)
		assert.Equal(t, 100, sess.Score.SimilarityPercentage)
	})
}

func TestUpdateTimeRemaining(t *testing.T) {
	t.Run("counts down net of pauses", func(t *testing.T) {
		sess, start := startedSession(t, 3)
		sess.Pause(start.Add(time.Minute))
		sess.Resume(start.Add(2 * time.Minute))

		sess.UpdateTimeRemaining(start.Add(3*time.Minute), 5)
		assert.Equal(t, 3*60, sess.TimeRemaining) // 5m budget, 2m played
		assert.Equal(t, SessionStatusActive, sess.Status)
	})

	t.Run("completes on exhausted budget", func(t *testing.T) {
		sess, start := startedSession(t, 3)
		sess.UpdateTimeRemaining(start.Add(6*time.Minute), 5)

		assert.Equal(t, 0, sess.TimeRemaining)
		assert.Equal(t, SessionStatusCompleted, sess.Status)
	})

	t.Run("zero time limit yields zero remaining, never negative", func(t *testing.T) {
		sess, start := startedSession(t, 3)
		sess.UpdateTimeRemaining(start.Add(time.Second), 0)

		assert.Equal(t, 0, sess.TimeRemaining)
		assert.Equal(t, SessionStatusCompleted, sess.Status)
	})

	t.Run("frozen clock never expires while paused", func(t *testing.T) {
		sess, start := startedSession(t, 3)
		sess.Pause(start.Add(time.Minute))

		sess.UpdateTimeRemaining(start.Add(10*time.Minute), 5)

		assert.Equal(t, SessionStatusPaused, sess.Status)
		assert.Equal(t, 4*60, sess.TimeRemaining)
	})

	t.Run("leaves waiting session untouched", func(t *testing.T) {
		sess := newTestSession(t)
		sess.TimeRemaining = 42
		sess.UpdateTimeRemaining(time.Now(), 5)
		assert.Equal(t, 42, sess.TimeRemaining)
		assert.Equal(t, SessionStatusWaiting, sess.Status)
	})
}

func TestCompleteAndCancel(t *testing.T) {
	t.Run("complete is idempotent", func(t *testing.T) {
		sess, start := startedSession(t, 3)
		require.NoError(t, sess.Complete(start.Add(time.Minute)))
		first := *sess.EndedAt

		require.NoError(t, sess.Complete(start.Add(2*time.Minute)))
		assert.Equal(t, first, *sess.EndedAt)
	})

	t.Run("complete on cancelled session fails", func(t *testing.T) {
		sess, start := startedSession(t, 3)
		require.NoError(t, sess.Cancel(start.Add(time.Second), "", ""))
		err := sess.Complete(start.Add(2 * time.Second))
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeTerminalState, apperrors.GetCode(err))
	})

	t.Run("cancel works from waiting", func(t *testing.T) {
		sess := newTestSession(t)
		require.NoError(t, sess.Cancel(time.Now(), "admin", "abandoned"))
		assert.Equal(t, SessionStatusCancelled, sess.Status)
		require.Len(t, sess.History, 1)
		assert.Equal(t, "admin", sess.History[0].Actor)
	})

	t.Run("cancel on terminal session fails", func(t *testing.T) {
		sess, start := startedSession(t, 3)
		require.NoError(t, sess.Complete(start.Add(time.Second)))
		err := sess.Cancel(start.Add(2*time.Second), "", "")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeTerminalState, apperrors.GetCode(err))
	})
}

func TestCalculateScore(t *testing.T) {
	answered := func(pairs map[int]int) AnswerMap {
		m := AnswerMap{}
		for idx, opt := range pairs {
			m[idx] = Answer{QuestionIndex: idx, SelectedOption: opt, TimeSpent: 10}
		}
		return m
	}

	t.Run("identical choices score 100", func(t *testing.T) {
		sess := newTestSession(t)
		sess.Answers = AnswerSet{
			Partner1: answered(map[int]int{0: 1, 1: 2, 2: 3}),
			Partner2: answered(map[int]int{0: 1, 1: 2, 2: 3}),
		}
		score := sess.CalculateScore()
		assert.Equal(t, 100, score.SimilarityPercentage)
		assert.Equal(t, 3, score.MatchingAnswers)
		assert.Equal(t, 3, score.TotalPoints)
	})

	t.Run("disjoint choices score zero matches", func(t *testing.T) {
		sess := newTestSession(t)
		sess.Answers = AnswerSet{
			Partner1: answered(map[int]int{0: 0, 1: 0, 2: 0}),
			Partner2: answered(map[int]int{0: 1, 1: 1, 2: 1}),
		}
		score := sess.CalculateScore()
		assert.Equal(t, 0, score.MatchingAnswers)
		assert.Equal(t, 0, score.SimilarityPercentage)
		assert.Less(t, score.SimilarityPercentage, 100)
	})

	t.Run("matches by question index across differing orders", func(t *testing.T) {
		// Partner1 answered in order 2,0,1 picking options 1,3,0;
		// partner2 answered in order 0,1,2 picking options 3,0,0.
		sess := newTestSession(t)
		sess.Answers = AnswerSet{
			Partner1: answered(map[int]int{2: 1, 0: 3, 1: 0}),
			Partner2: answered(map[int]int{0: 3, 1: 0, 2: 0}),
		}
		score := sess.CalculateScore()
		assert.Equal(t, 2, score.MatchingAnswers)
		assert.Equal(t, 3, score.TotalQuestions)
		assert.Equal(t, 67, score.SimilarityPercentage)
	})

	t.Run("zero answers yields all-zero score", func(t *testing.T) {
		sess := newTestSession(t)
		score := sess.CalculateScore()
		assert.Equal(t, Score{}, score)
		assert.Equal(t, 0, score.TotalQuestions)
	})

	t.Run("idempotent over the same answer set", func(t *testing.T) {
		sess := newTestSession(t)
		sess.Answers = AnswerSet{
			Partner1: answered(map[int]int{0: 1, 1: 0}),
			Partner2: answered(map[int]int{0: 1, 1: 2}),
		}
		assert.Equal(t, sess.CalculateScore(), sess.CalculateScore())
	})

	t.Run("averages response time over both partners", func(t *testing.T) {
		sess := newTestSession(t)
		sess.Answers = AnswerSet{
			Partner1: AnswerMap{0: {QuestionIndex: 0, SelectedOption: 1, TimeSpent: 10}},
			Partner2: AnswerMap{0: {QuestionIndex: 0, SelectedOption: 1, TimeSpent: 21}},
		}
		score := sess.CalculateScore()
		assert.Equal(t, 16, score.AverageResponseTime) // round(31/2)
	})
}

func TestPartnerSlot(t *testing.T) {
	sess := newTestSession(t)

	slot, ok := sess.PartnerSlot("user-1")
	assert.True(t, ok)
	assert.Equal(t, PartnerKey1, slot)

	slot, ok = sess.PartnerSlot("user-2")
	assert.True(t, ok)
	assert.Equal(t, PartnerKey2, slot)

	_, ok = sess.PartnerSlot("stranger")
	assert.False(t, ok)
	assert.False(t, sess.IsPartner("stranger"))
}
