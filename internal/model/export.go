package model

import "time"

// ResultsExport is the top-level JSON structure for placement result export.
type ResultsExport struct {
	ExportedAt time.Time         `json:"exported_at"`
	Count      int               `json:"count"`
	Levels     map[Level]int     `json:"levels"`
	Results    []PlacementResult `json:"results"`
}

// NewResultsExport wraps results with per-level counts.
func NewResultsExport(results []PlacementResult, at time.Time) ResultsExport {
	levels := make(map[Level]int)
	for _, r := range results {
		levels[r.Report.Level]++
	}
	if results == nil {
		results = []PlacementResult{}
	}
	return ResultsExport{
		ExportedAt: at,
		Count:      len(results),
		Levels:     levels,
		Results:    results,
	}
}

// QuestionImport is used for loading questions from JSON.
type QuestionImport struct {
	ID            int64    `json:"id"`
	QuizID        int64    `json:"quiz_id"`
	Category      string   `json:"category"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// LessonImport is used for loading lessons from JSON.
type LessonImport struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Category        string `json:"category"`
	Difficulty      int    `json:"difficulty"`
	DurationMinutes int    `json:"duration_minutes"`
}

// QuizImport is used for loading quizzes from JSON.
type QuizImport struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Category         string `json:"category"`
	Difficulty       int    `json:"difficulty"`
	IsDaily          bool   `json:"is_daily"`
	EstimatedMinutes int    `json:"estimated_minutes"`
}
