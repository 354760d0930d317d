// Package scoring grades placement tests and quizzes: overall accuracy,
// proficiency tier, recommended lessons and per-category weak areas.
//
// Everything here is a pure function of its arguments. The question catalog
// and the answers are passed in explicitly; nothing is read from or written to
// shared state.
package scoring

import (
	"errors"
	"fmt"
	"slices"

	"github.com/pavelanni/lingo/internal/model"
)

// DefaultWeakThreshold is the category accuracy below which a category is a weak area.
const DefaultWeakThreshold = 60

var (
	// ErrInvalidInput is returned when there is nothing to score.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownQuestion is returned in strict mode when an answer references
	// a question that is not in the catalog.
	ErrUnknownQuestion = errors.New("unknown question reference")
)

// UnknownQuestionError lists the question IDs that were not found in the catalog.
type UnknownQuestionError struct {
	IDs []int64
}

func (e *UnknownQuestionError) Error() string {
	return fmt.Sprintf("%v: %v", ErrUnknownQuestion, e.IDs)
}

func (e *UnknownQuestionError) Unwrap() error { return ErrUnknownQuestion }

// Tier maps an accuracy floor to a level and its recommended lessons.
type Tier struct {
	Level       model.Level
	MinAccuracy int
	Lessons     []int64
}

// Config parameterizes an Engine.
type Config struct {
	// Tiers ordered from highest floor to lowest. Accuracy below the lowest
	// floor falls into the last tier.
	Tiers         []Tier
	WeakThreshold int
	// Strict rejects answers whose question is missing from the catalog
	// instead of leaving them out of the category breakdown.
	Strict bool
}

// DefaultConfig returns the standard three-tier configuration.
func DefaultConfig() Config {
	return Config{
		Tiers: []Tier{
			{Level: model.LevelAdvanced, MinAccuracy: 80, Lessons: []int64{6, 7, 9}},
			{Level: model.LevelIntermediate, MinAccuracy: 60, Lessons: []int64{3, 4, 6}},
			{Level: model.LevelBeginner, MinAccuracy: 0, Lessons: []int64{1, 2, 5}},
		},
		WeakThreshold: DefaultWeakThreshold,
	}
}

// Validate checks that tier floors are in range and strictly descending.
func (c Config) Validate() error {
	if len(c.Tiers) == 0 {
		return fmt.Errorf("%w: no tiers configured", ErrInvalidInput)
	}
	for i, t := range c.Tiers {
		if t.MinAccuracy < 0 || t.MinAccuracy > 100 {
			return fmt.Errorf("%w: tier %q floor %d out of range", ErrInvalidInput, t.Level, t.MinAccuracy)
		}
		if i > 0 && t.MinAccuracy >= c.Tiers[i-1].MinAccuracy {
			return fmt.Errorf("%w: tier %q floor %d not below %d", ErrInvalidInput, t.Level, t.MinAccuracy, c.Tiers[i-1].MinAccuracy)
		}
	}
	if c.WeakThreshold < 0 || c.WeakThreshold > 100 {
		return fmt.Errorf("%w: weak threshold %d out of range", ErrInvalidInput, c.WeakThreshold)
	}
	return nil
}

// Engine scores answer sets against a catalog.
type Engine struct {
	cfg Config
}

// New creates an Engine after validating cfg.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

var defaultEngine = &Engine{cfg: DefaultConfig()}

// Score grades answers with the default configuration.
func Score(catalog Catalog, answers []model.AnswerRecord) (model.ResultReport, error) {
	return defaultEngine.Score(catalog, answers)
}

// Score produces the result report for one completed session.
func (e *Engine) Score(catalog Catalog, answers []model.AnswerRecord) (model.ResultReport, error) {
	if len(answers) == 0 {
		return model.ResultReport{}, fmt.Errorf("%w: no answers to score", ErrInvalidInput)
	}

	correct := 0
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
	}
	accuracy := Accuracy(correct, len(answers))

	perf, unknown := CategoryPerformance(catalog, answers)
	if e.cfg.Strict && len(unknown) > 0 {
		return model.ResultReport{}, &UnknownQuestionError{IDs: unknown}
	}

	level, lessons := e.LevelFor(accuracy)

	return model.ResultReport{
		Level:               level,
		Accuracy:            accuracy,
		CorrectAnswers:      correct,
		TotalQuestions:      len(answers),
		RecommendedLessons:  lessons,
		CategoryPerformance: perf,
		WeakAreas:           WeakAreas(perf, e.cfg.WeakThreshold),
		UnknownQuestions:    unknown,
	}, nil
}

// LevelFor returns the tier for an accuracy and a copy of its lesson set.
func (e *Engine) LevelFor(accuracy int) (model.Level, []int64) {
	tier := e.cfg.Tiers[len(e.cfg.Tiers)-1]
	for _, t := range e.cfg.Tiers {
		if accuracy >= t.MinAccuracy {
			tier = t
			break
		}
	}
	lessons := slices.Clone(tier.Lessons)
	if lessons == nil {
		lessons = []int64{}
	}
	return tier.Level, lessons
}

// LevelFor maps accuracy to a level with the default tiers.
func LevelFor(accuracy int) model.Level {
	level, _ := defaultEngine.LevelFor(accuracy)
	return level
}

// Accuracy returns round(100*correct/total) with halves rounded up.
// total must be positive.
func Accuracy(correct, total int) int {
	return (200*correct + total) / (2 * total)
}

// Grade builds the answer record for a selection on a question.
func Grade(q model.Question, selected int) model.AnswerRecord {
	return model.AnswerRecord{
		QuestionID:     q.ID,
		SelectedAnswer: selected,
		IsCorrect:      selected == q.CorrectAnswer,
	}
}

// GradeSubmissions turns client selections into answer records. Questions in
// the catalog are graded here; for the rest the client's own verdict is
// kept (false when absent) so the engine can apply its unknown-question policy.
func GradeSubmissions(catalog Catalog, subs []model.Submission) []model.AnswerRecord {
	answers := make([]model.AnswerRecord, 0, len(subs))
	for _, sub := range subs {
		if q, ok := catalog.Lookup(sub.QuestionID); ok {
			answers = append(answers, Grade(q, sub.SelectedAnswer))
			continue
		}
		answers = append(answers, model.AnswerRecord{
			QuestionID:     sub.QuestionID,
			SelectedAnswer: sub.SelectedAnswer,
			IsCorrect:      sub.IsCorrect != nil && *sub.IsCorrect,
		})
	}
	return answers
}

// Mistakes returns the wrong answers on catalog questions, in answer order.
// Answers to unknown questions are skipped since their category and key are unknown.
func Mistakes(catalog Catalog, answers []model.AnswerRecord) []model.Mistake {
	var out []model.Mistake
	for _, a := range answers {
		if a.IsCorrect {
			continue
		}
		q, ok := catalog.Lookup(a.QuestionID)
		if !ok {
			continue
		}
		out = append(out, model.Mistake{
			QuestionID:     q.ID,
			Category:       q.Category,
			SelectedAnswer: a.SelectedAnswer,
			CorrectAnswer:  q.CorrectAnswer,
		})
	}
	return out
}

type categoryCount struct {
	correct int
	total   int
}

// CategoryPerformance groups answers by their question's category, in the
// order categories first appear. It also returns the distinct IDs of answers
// whose question is not in the catalog; those answers are left out.
func CategoryPerformance(catalog Catalog, answers []model.AnswerRecord) ([]model.CategoryStat, []int64) {
	var order []string
	counts := make(map[string]*categoryCount)
	var unknown []int64

	for _, a := range answers {
		q, ok := catalog.Lookup(a.QuestionID)
		if !ok {
			if !slices.Contains(unknown, a.QuestionID) {
				unknown = append(unknown, a.QuestionID)
			}
			continue
		}
		c, ok := counts[q.Category]
		if !ok {
			c = &categoryCount{}
			counts[q.Category] = c
			order = append(order, q.Category)
		}
		c.total++
		if a.IsCorrect {
			c.correct++
		}
	}

	stats := make([]model.CategoryStat, 0, len(order))
	for _, name := range order {
		c := counts[name]
		stats = append(stats, model.CategoryStat{
			Category:          name,
			Accuracy:          Accuracy(c.correct, c.total),
			QuestionsAnswered: c.total,
		})
	}
	return stats, unknown
}

// WeakAreas returns the categories whose accuracy is below threshold.
func WeakAreas(perf []model.CategoryStat, threshold int) []model.CategoryStat {
	weak := make([]model.CategoryStat, 0)
	for _, s := range perf {
		if s.Accuracy < threshold {
			weak = append(weak, s)
		}
	}
	return weak
}
