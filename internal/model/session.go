package model

import (
	"database/sql/driver"
	"math"
	"math/rand/v2"
	"time"

	apperrors "github.com/hamgam/couple-game-server/internal/errors"
)

// Answer is one partner's choice for one question.
type Answer struct {
	QuestionIndex  int       `json:"questionIndex"`
	SelectedOption int       `json:"selectedOption"`
	TimeSpent      int       `json:"timeSpent"`
	AnsweredAt     time.Time `json:"answeredAt"`
}

// AnswerMap keys answers by question index, so "at most one answer per
// question" holds structurally.
type AnswerMap map[int]Answer

// AnswerSet holds both partners' answers.
type AnswerSet struct {
	Partner1 AnswerMap `json:"partner1"`
	Partner2 AnswerMap `json:"partner2"`
}

func (a AnswerSet) Value() (driver.Value, error) { return jsonbValue(a) }
func (a *AnswerSet) Scan(src any) error          { return jsonbScan(src, a) }

// QuestionOrder is a permutation of [0, questionCount) determining the
// presentation sequence for one partner.
type QuestionOrder []int

// OrderSet holds the two independently shuffled question orders.
type OrderSet struct {
	Partner1 QuestionOrder `json:"partner1"`
	Partner2 QuestionOrder `json:"partner2"`
}

func (o OrderSet) Value() (driver.Value, error) { return jsonbValue(o) }
func (o *OrderSet) Scan(src any) error          { return jsonbScan(src, o) }

// Score is the similarity result computed when a session completes.
type Score struct {
	TotalPoints          int `json:"totalPoints"`
	SimilarityPercentage int `json:"similarityPercentage"`
	MatchingAnswers      int `json:"matchingAnswers"`
	TotalQuestions       int `json:"totalQuestions"`
	AverageResponseTime  int `json:"averageResponseTime"`
}

func (s Score) Value() (driver.Value, error) { return jsonbValue(s) }
func (s *Score) Scan(src any) error          { return jsonbScan(src, s) }

// HistoryEntry records one lifecycle event.
type HistoryEntry struct {
	Action HistoryAction `json:"action"`
	Actor  string        `json:"actor,omitempty"`
	Detail string        `json:"detail,omitempty"`
	At     time.Time     `json:"at"`
}

type History []HistoryEntry

func (h History) Value() (driver.Value, error) { return jsonbValue(h) }
func (h *History) Scan(src any) error          { return jsonbScan(src, h) }

// CoupleSession binds one game to one couple. It is the unit of persisted,
// optimistically versioned state; all transitions below mutate the struct in
// memory, the repository persists it with a version-guarded write.
type CoupleSession struct {
	ID                string        `db:"id" json:"id"`
	GameID            string        `db:"game_id" json:"gameId"`
	Partner1ID        string        `db:"partner1_id" json:"partner1Id"`
	Partner2ID        *string       `db:"partner2_id" json:"partner2Id,omitempty"`
	Status            SessionStatus `db:"status" json:"status"`
	QuestionCount     int           `db:"question_count" json:"questionCount"`
	StartedAt         *time.Time    `db:"started_at" json:"startedAt,omitempty"`
	EndedAt           *time.Time    `db:"ended_at" json:"endedAt,omitempty"`
	PausedAt          *time.Time    `db:"paused_at" json:"pausedAt,omitempty"`
	TotalPauseSeconds int           `db:"total_pause_seconds" json:"totalPauseSeconds"`
	TimeRemaining     int           `db:"time_remaining" json:"timeRemaining"`
	Orders            OrderSet      `db:"question_orders" json:"questionOrders"`
	Answers           AnswerSet     `db:"answers" json:"answers"`
	Score             Score         `db:"score" json:"score"`
	History           History       `db:"history" json:"history"`
	LastActivityAt    time.Time     `db:"last_activity_at" json:"lastActivityAt"`
	Version           int           `db:"version" json:"-"`
	CreatedAt         time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updatedAt"`
}

// NewWaitingSession builds the session created by the first partner's join
// attempt. It stays in waiting until the registered counterpart arrives.
func NewWaitingSession(id, gameID, partner1ID string, now time.Time) *CoupleSession {
	s := &CoupleSession{
		ID:         id,
		GameID:     gameID,
		Partner1ID: partner1ID,
		Status:     SessionStatusWaiting,
		Answers: AnswerSet{
			Partner1: AnswerMap{},
			Partner2: AnswerMap{},
		},
		Orders: OrderSet{
			Partner1: QuestionOrder{},
			Partner2: QuestionOrder{},
		},
		LastActivityAt: now,
		Version:        1,
	}
	s.appendHistory(HistoryCreated, partner1ID, "", now)
	return s
}

// PartnerSlot resolves which slot the given user occupies.
func (s *CoupleSession) PartnerSlot(userID string) (PartnerKey, bool) {
	if s.Partner1ID == userID {
		return PartnerKey1, true
	}
	if s.Partner2ID != nil && *s.Partner2ID == userID {
		return PartnerKey2, true
	}
	return "", false
}

func (s *CoupleSession) IsPartner(userID string) bool {
	_, ok := s.PartnerSlot(userID)
	return ok
}

func (s *CoupleSession) HasBothPartners() bool {
	return s.Partner2ID != nil && *s.Partner2ID != ""
}

// AttachPartner2 fills the second partner slot of a waiting session.
func (s *CoupleSession) AttachPartner2(now time.Time, userID string) error {
	if s.Status != SessionStatusWaiting {
		return apperrors.Conflict("session is no longer waiting for a partner")
	}
	if s.HasBothPartners() {
		return apperrors.Conflict("session already has two partners")
	}
	s.Partner2ID = &userID
	s.LastActivityAt = now
	s.appendHistory(HistoryPartnerJoined, userID, "", now)
	return nil
}

// Start activates a waiting session: the timer begins and each partner gets
// an independently shuffled question order.
func (s *CoupleSession) Start(now time.Time, timeLimitMinutes, questionCount int) error {
	if s.Status.Terminal() {
		return apperrors.TerminalState(string(s.Status))
	}
	if s.Status != SessionStatusWaiting {
		return apperrors.Conflict("session has already started")
	}

	s.Status = SessionStatusActive
	s.QuestionCount = questionCount
	s.StartedAt = &now
	s.TimeRemaining = timeLimitMinutes * 60
	s.Orders = OrderSet{
		Partner1: shuffledOrder(questionCount),
		Partner2: shuffledOrder(questionCount),
	}
	if s.Answers.Partner1 == nil {
		s.Answers.Partner1 = AnswerMap{}
	}
	if s.Answers.Partner2 == nil {
		s.Answers.Partner2 = AnswerMap{}
	}
	s.LastActivityAt = now
	s.appendHistory(HistoryStarted, "", "", now)
	return nil
}

// Pause stops the clock. Calling it outside the active state is a no-op.
func (s *CoupleSession) Pause(now time.Time) {
	if s.Status != SessionStatusActive {
		return
	}
	s.Status = SessionStatusPaused
	s.PausedAt = &now
	s.LastActivityAt = now
	s.appendHistory(HistoryPaused, "", "", now)
}

// Resume folds the elapsed pause into the accumulated pause time and restarts
// the clock. Calling it outside the paused state is a no-op.
func (s *CoupleSession) Resume(now time.Time) {
	if s.Status != SessionStatusPaused {
		return
	}
	if s.PausedAt != nil {
		s.TotalPauseSeconds += int(now.Sub(*s.PausedAt).Seconds())
	}
	s.PausedAt = nil
	s.Status = SessionStatusActive
	s.LastActivityAt = now
	s.appendHistory(HistoryResumed, "", "", now)
}

// AddAnswer records one partner's choice for one question and evaluates
// completion. A second answer for the same question index is rejected.
func (s *CoupleSession) AddAnswer(now time.Time, key PartnerKey, questionIndex, selectedOption int) error {
	if s.Status.Terminal() {
		return apperrors.TerminalState(string(s.Status))
	}
	answers, err := s.answersFor(key)
	if err != nil {
		return err
	}
	if _, exists := answers[questionIndex]; exists {
		return apperrors.DuplicateAnswer(questionIndex)
	}

	answers[questionIndex] = Answer{
		QuestionIndex:  questionIndex,
		SelectedOption: selectedOption,
		TimeSpent:      s.elapsedPlaySeconds(now),
		AnsweredAt:     now,
	}
	s.LastActivityAt = now
	s.CheckCompletion(now)
	return nil
}

// CheckCompletion completes the session once both partners have answered
// every question.
func (s *CoupleSession) CheckCompletion(now time.Time) {
	if s.Status.Terminal() || s.QuestionCount == 0 {
		return
	}
	if len(s.Answers.Partner1) >= s.QuestionCount && len(s.Answers.Partner2) >= s.QuestionCount {
		_ = s.Complete(now)
	}
}

// Complete finishes the session and computes the score. It is idempotent on
// an already completed session.
func (s *CoupleSession) Complete(now time.Time) error {
	if s.Status == SessionStatusCompleted {
		return nil
	}
	if s.Status == SessionStatusCancelled {
		return apperrors.TerminalState(string(s.Status))
	}
	if s.Status == SessionStatusWaiting {
		return apperrors.Conflict("session has not started")
	}

	s.Status = SessionStatusCompleted
	s.EndedAt = &now
	s.Score = s.CalculateScore()
	s.LastActivityAt = now
	s.appendHistory(HistoryCompleted, "", "", now)
	return nil
}

// Cancel aborts a session from any non-terminal state.
func (s *CoupleSession) Cancel(now time.Time, actor, reason string) error {
	if s.Status.Terminal() {
		return apperrors.TerminalState(string(s.Status))
	}
	s.Status = SessionStatusCancelled
	s.EndedAt = &now
	s.LastActivityAt = now
	s.appendHistory(HistoryCancelled, actor, reason, now)
	return nil
}

// UpdateTimeRemaining recomputes the countdown from wall time, completing the
// session when the budget is exhausted. Completion by time is evaluated
// lazily on every access; there is no per-session timer.
func (s *CoupleSession) UpdateTimeRemaining(now time.Time, timeLimitMinutes int) {
	if s.Status != SessionStatusActive && s.Status != SessionStatusPaused {
		return
	}
	if s.StartedAt == nil {
		s.TimeRemaining = 0
		return
	}
	// Missing or zero game time limit would otherwise make the arithmetic
	// meaningless; treat it as an exhausted budget.
	if timeLimitMinutes <= 0 {
		s.TimeRemaining = 0
		_ = s.Complete(now)
		return
	}

	remaining := timeLimitMinutes*60 - s.elapsedPlaySeconds(now)
	if remaining <= 0 {
		s.TimeRemaining = 0
		_ = s.Complete(now)
		return
	}
	s.TimeRemaining = remaining
}

// CalculateScore compares both partners' choices question by question.
// Matching is by question index, not answer position: each partner answered
// in their own order.
func (s *CoupleSession) CalculateScore() Score {
	n := len(s.Answers.Partner1)
	if len(s.Answers.Partner2) > n {
		n = len(s.Answers.Partner2)
	}
	if n == 0 {
		return Score{}
	}

	matching := 0
	for i := 0; i < n; i++ {
		a1, ok1 := s.Answers.Partner1[i]
		a2, ok2 := s.Answers.Partner2[i]
		if ok1 && ok2 && a1.SelectedOption == a2.SelectedOption {
			matching++
		}
	}

	totalTime := 0
	totalAnswers := 0
	for _, a := range s.Answers.Partner1 {
		totalTime += a.TimeSpent
		totalAnswers++
	}
	for _, a := range s.Answers.Partner2 {
		totalTime += a.TimeSpent
		totalAnswers++
	}

	avgTime := 0
	if totalAnswers > 0 {
		avgTime = int(math.Round(float64(totalTime) / float64(totalAnswers)))
	}

	return Score{
		TotalPoints:          matching,
		SimilarityPercentage: int(math.Round(100 * float64(matching) / float64(n))),
		MatchingAnswers:      matching,
		TotalQuestions:       n,
		AverageResponseTime:  avgTime,
	}
}

// elapsedPlaySeconds is wall time since start minus time spent paused,
// including a pause still in progress.
func (s *CoupleSession) elapsedPlaySeconds(now time.Time) int {
	if s.StartedAt == nil {
		return 0
	}
	pause := s.TotalPauseSeconds
	if s.Status == SessionStatusPaused && s.PausedAt != nil {
		pause += int(now.Sub(*s.PausedAt).Seconds())
	}
	elapsed := int(now.Sub(*s.StartedAt).Seconds()) - pause
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func (s *CoupleSession) answersFor(key PartnerKey) (AnswerMap, error) {
	switch key {
	case PartnerKey1:
		if s.Answers.Partner1 == nil {
			s.Answers.Partner1 = AnswerMap{}
		}
		return s.Answers.Partner1, nil
	case PartnerKey2:
		if s.Answers.Partner2 == nil {
			s.Answers.Partner2 = AnswerMap{}
		}
		return s.Answers.Partner2, nil
	default:
		return nil, apperrors.InvalidPartnerKey(string(key))
	}
}

func (s *CoupleSession) appendHistory(action HistoryAction, actor, detail string, at time.Time) {
	s.History = append(s.History, HistoryEntry{
		Action: action,
		Actor:  actor,
		Detail: detail,
		At:     at,
	})
}

func shuffledOrder(questionCount int) QuestionOrder {
	order := make(QuestionOrder, questionCount)
	for i := range order {
		order[i] = i
	}
	rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order
}
