package model

import (
	"database/sql/driver"
	"time"

	ptime "github.com/yaa110/go-persian-calendar"
)

// Question is one prompt of a game. There is no correct option: couples are
// scored on matching, not correctness.
type Question struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

type QuestionList []Question

func (q QuestionList) Value() (driver.Value, error) { return jsonbValue(q) }
func (q *QuestionList) Scan(src any) error          { return jsonbScan(src, q) }

// Game is the immutable quiz template created by an administrator. The
// session coordinator only reads it.
type Game struct {
	ID               string       `db:"id" json:"id"`
	Title            string       `db:"title" json:"title"`
	Description      string       `db:"description" json:"description"`
	Category         *string      `db:"category" json:"category,omitempty"`
	Questions        QuestionList `db:"questions" json:"questions"`
	TimeLimitMinutes int          `db:"time_limit_minutes" json:"timeLimitMinutes"`
	StartsAt         time.Time    `db:"starts_at" json:"startsAt"`
	EndsAt           *time.Time   `db:"ends_at" json:"endsAt,omitempty"`
	Active           bool         `db:"active" json:"active"`
	MaxCouples       int          `db:"max_couples" json:"maxCouples"`
	CreatedAt        time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updatedAt"`
}

// IsJoinable reports whether new couples may start this game at the given
// time. A missing end instant means the window is open-ended.
func (g *Game) IsJoinable(now time.Time) bool {
	if !g.Active {
		return false
	}
	if now.Before(g.StartsAt) {
		return false
	}
	if g.EndsAt != nil && now.After(*g.EndsAt) {
		return false
	}
	return true
}

// GameSummary is the read-side projection handed to clients. It includes the
// full question list because the client renders the prompts and options
// itself. Dates also carry a Jalali rendering for the Persian UI.
type GameSummary struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Category         *string      `json:"category,omitempty"`
	Questions        QuestionList `json:"questions"`
	QuestionCount    int          `json:"questionCount"`
	TimeLimitMinutes int          `json:"timeLimitMinutes"`
	StartsAt         time.Time    `json:"startsAt"`
	EndsAt           *time.Time   `json:"endsAt,omitempty"`
	StartsAtJalali   string       `json:"startsAtJalali"`
	EndsAtJalali     *string      `json:"endsAtJalali,omitempty"`
	IsJoinable       bool         `json:"isJoinable"`
}

func (g *Game) Summary(now time.Time) GameSummary {
	summary := GameSummary{
		ID:               g.ID,
		Title:            g.Title,
		Description:      g.Description,
		Category:         g.Category,
		Questions:        g.Questions,
		QuestionCount:    len(g.Questions),
		TimeLimitMinutes: g.TimeLimitMinutes,
		StartsAt:         g.StartsAt,
		EndsAt:           g.EndsAt,
		StartsAtJalali:   formatJalali(g.StartsAt),
		IsJoinable:       g.IsJoinable(now),
	}
	if g.EndsAt != nil {
		ends := formatJalali(*g.EndsAt)
		summary.EndsAtJalali = &ends
	}
	return summary
}

func formatJalali(t time.Time) string {
	return ptime.New(t).Format("yyyy/MM/dd HH:mm")
}
