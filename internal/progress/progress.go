// Package progress aggregates recorded practice sessions into dashboard figures.
package progress

import (
	"cmp"
	"fmt"
	"slices"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pavelanni/lingo/internal/model"
	"github.com/pavelanni/lingo/internal/scoring"
)

// Range names a history window.
type Range string

const (
	Range7Days  Range = "7days"
	Range30Days Range = "30days"
	Range90Days Range = "90days"
)

var rangeSessions = map[Range]int{
	Range7Days:  7,
	Range30Days: 30,
	Range90Days: 90,
}

// ParseRange validates a range name. Empty means the 7-day default.
func ParseRange(s string) (Range, error) {
	if s == "" {
		return Range7Days, nil
	}
	r := Range(s)
	if _, ok := rangeSessions[r]; !ok {
		return "", fmt.Errorf("%w: unknown range %q", scoring.ErrInvalidInput, s)
	}
	return r, nil
}

// Overview is the overall progress summary for a user.
type Overview struct {
	UserID              int64                `json:"user_id"`
	TotalSessions       int                  `json:"total_sessions"`
	TotalQuestions      int                  `json:"total_questions"`
	TotalCorrect        int                  `json:"total_correct"`
	OverallAccuracy     int                  `json:"overall_accuracy"`
	CategoryPerformance []model.CategoryStat `json:"category_performance"`
	WeakAreas           []model.CategoryStat `json:"weak_areas"`
	CurrentStreak       int                  `json:"current_streak"`
}

// correctIn estimates the correct answers of a session from its accuracy.
func correctIn(s model.PracticeSession) int {
	return (2*s.Accuracy*s.QuestionsAnswered + 100) / 200
}

// DisplayName upper-cases the first letter of a category and leaves the rest
// as stored, so "present perfect" reads "Present perfect" and "ESL" stays "ESL".
func DisplayName(category string) string {
	_, size := utf8.DecodeRuneInString(category)
	if size == 0 {
		return category
	}
	return cases.Upper(language.English).String(category[:size]) + category[size:]
}

// Overall summarizes sessions. Category names go through DisplayName.
func Overall(userID int64, sessions []model.PracticeSession) Overview {
	o := Overview{UserID: userID, TotalSessions: len(sessions)}

	type agg struct {
		name             string
		questions, right int
	}
	var order []string
	byCat := make(map[string]*agg)

	for _, s := range sessions {
		c := correctIn(s)
		o.TotalQuestions += s.QuestionsAnswered
		o.TotalCorrect += c

		a, ok := byCat[s.Category]
		if !ok {
			a = &agg{name: DisplayName(s.Category)}
			byCat[s.Category] = a
			order = append(order, s.Category)
		}
		a.questions += s.QuestionsAnswered
		a.right += c
	}

	if o.TotalQuestions > 0 {
		o.OverallAccuracy = scoring.Accuracy(o.TotalCorrect, o.TotalQuestions)
	}

	o.CategoryPerformance = make([]model.CategoryStat, 0, len(order))
	for _, key := range order {
		a := byCat[key]
		if a.questions == 0 {
			continue
		}
		o.CategoryPerformance = append(o.CategoryPerformance, model.CategoryStat{
			Category:          a.name,
			Accuracy:          scoring.Accuracy(a.right, a.questions),
			QuestionsAnswered: a.questions,
		})
	}
	o.WeakAreas = scoring.WeakAreas(o.CategoryPerformance, scoring.DefaultWeakThreshold)
	return o
}

// History returns the most recent sessions of a user within the range,
// oldest first. sessions are expected in chronological order.
func History(sessions []model.PracticeSession, userID int64, r Range) []model.PracticeSession {
	n, ok := rangeSessions[r]
	if !ok {
		n = rangeSessions[Range7Days]
	}
	var mine []model.PracticeSession
	for _, s := range sessions {
		if s.UserID == userID {
			mine = append(mine, s)
		}
	}
	if len(mine) > n {
		mine = mine[len(mine)-n:]
	}
	if mine == nil {
		return []model.PracticeSession{}
	}
	return slices.Clone(mine)
}

// Streak counts consecutive UTC days with at least one session, ending today
// or yesterday relative to now. A gap of a full day resets it to 0.
func Streak(sessions []model.PracticeSession, now time.Time) int {
	const layout = "2006-01-02"
	days := make(map[string]bool)
	for _, s := range sessions {
		if s.PracticedAt.IsZero() {
			continue
		}
		days[s.PracticedAt.UTC().Format(layout)] = true
	}

	day := now.UTC()
	if !days[day.Format(layout)] {
		day = day.AddDate(0, 0, -1)
	}
	streak := 0
	for days[day.Format(layout)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// DefaultRecentMistakes is how many mistakes RecentMistakes returns when
// the caller gives no positive limit.
const DefaultRecentMistakes = 5

// MistakePattern groups a user's mistakes in one category.
type MistakePattern struct {
	Category     string    `json:"category"`
	MistakeCount int       `json:"mistake_count"`
	LastSeen     time.Time `json:"last_seen"`
	QuestionIDs  []int64   `json:"question_ids"` // distinct, ascending
}

// MistakePatterns groups mistakes by category, most frequent first. Ties go
// to the category seen most recently, then to the name.
func MistakePatterns(mistakes []model.Mistake) []MistakePattern {
	byCat := make(map[string]*MistakePattern)
	var order []string
	for _, m := range mistakes {
		p, ok := byCat[m.Category]
		if !ok {
			p = &MistakePattern{Category: DisplayName(m.Category), QuestionIDs: []int64{}}
			byCat[m.Category] = p
			order = append(order, m.Category)
		}
		p.MistakeCount++
		if m.CreatedAt.After(p.LastSeen) {
			p.LastSeen = m.CreatedAt
		}
		if !slices.Contains(p.QuestionIDs, m.QuestionID) {
			p.QuestionIDs = append(p.QuestionIDs, m.QuestionID)
		}
	}

	patterns := make([]MistakePattern, 0, len(order))
	for _, c := range order {
		p := *byCat[c]
		slices.Sort(p.QuestionIDs)
		patterns = append(patterns, p)
	}
	slices.SortStableFunc(patterns, func(a, b MistakePattern) int {
		if c := cmp.Compare(b.MistakeCount, a.MistakeCount); c != 0 {
			return c
		}
		if c := b.LastSeen.Compare(a.LastSeen); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return patterns
}

// RecentMistakes returns up to limit mistakes, newest first.
func RecentMistakes(mistakes []model.Mistake, limit int) []model.Mistake {
	if limit <= 0 {
		limit = DefaultRecentMistakes
	}
	out := slices.Clone(mistakes)
	slices.SortStableFunc(out, func(a, b model.Mistake) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		return []model.Mistake{}
	}
	return out
}
