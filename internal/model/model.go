package model

import "time"

// Level is a proficiency tier assigned from placement accuracy.
type Level string

const (
	LevelBeginner     Level = "Beginner"
	LevelIntermediate Level = "Intermediate"
	LevelAdvanced     Level = "Advanced"
)

// Rank orders levels from lowest (0) to highest. Unknown levels rank -1.
func (l Level) Rank() int {
	switch l {
	case LevelBeginner:
		return 0
	case LevelIntermediate:
		return 1
	case LevelAdvanced:
		return 2
	default:
		return -1
	}
}

// Question is one catalog entry. QuizID 0 marks the placement pool.
type Question struct {
	ID            int64    `json:"id"`
	QuizID        int64    `json:"quiz_id"`
	Category      string   `json:"category"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// PublicQuestion is a Question with the answer key stripped, safe to send to clients.
type PublicQuestion struct {
	ID       int64    `json:"id"`
	QuizID   int64    `json:"quiz_id"`
	Category string   `json:"category"`
	Text     string   `json:"text"`
	Options  []string `json:"options"`
}

// Public strips the answer key and explanation.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:       q.ID,
		QuizID:   q.QuizID,
		Category: q.Category,
		Text:     q.Text,
		Options:  q.Options,
	}
}

// AnswerRecord is one user response with correctness already evaluated.
type AnswerRecord struct {
	QuestionID     int64 `json:"question_id"`
	SelectedAnswer int   `json:"selected_answer"`
	IsCorrect      bool  `json:"is_correct"`
}

// Submission is a selection sent by a client. IsCorrect is only consulted for
// questions that cannot be graded because they are not in the catalog.
type Submission struct {
	QuestionID     int64 `json:"question_id"`
	SelectedAnswer int   `json:"selected_answer"`
	IsCorrect      *bool `json:"is_correct,omitempty"`
}

// CategoryStat is the aggregated accuracy of one question category.
type CategoryStat struct {
	Category          string `json:"category"`
	Accuracy          int    `json:"accuracy"`
	QuestionsAnswered int    `json:"questions_answered"`
}

// ResultReport is the outcome of scoring one completed test or quiz.
type ResultReport struct {
	Level               Level          `json:"level"`
	Accuracy            int            `json:"accuracy"`
	CorrectAnswers      int            `json:"correct_answers"`
	TotalQuestions      int            `json:"total_questions"`
	RecommendedLessons  []int64        `json:"recommended_lessons"`
	CategoryPerformance []CategoryStat `json:"category_performance"`
	WeakAreas           []CategoryStat `json:"weak_areas"`
	// UnknownQuestions lists answered question IDs missing from the catalog.
	UnknownQuestions []int64 `json:"unknown_questions,omitempty"`
}

// Lesson is a unit of study that a report can recommend.
type Lesson struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Category        string `json:"category"`
	Difficulty      int    `json:"difficulty"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Quiz is a practice quiz. Its questions carry its ID as QuizID.
type Quiz struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Category         string `json:"category"`
	Difficulty       int    `json:"difficulty"`
	IsDaily          bool   `json:"is_daily"`
	EstimatedMinutes int    `json:"estimated_minutes"`
	QuestionCount    int    `json:"question_count"`
}

// Mistake is a wrong answer on a catalog question. Question and Explanation
// are filled from the catalog when read back.
type Mistake struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	QuestionID     int64     `json:"question_id"`
	Category       string    `json:"category"`
	SelectedAnswer int       `json:"selected_answer"`
	CorrectAnswer  int       `json:"correct_answer"`
	Question       string    `json:"question,omitempty"`
	Explanation    string    `json:"explanation,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// PracticeSession is one recorded practice run, the input of progress analytics.
type PracticeSession struct {
	ID                int64     `json:"id"`
	UserID            int64     `json:"user_id"`
	Category          string    `json:"category"`
	Accuracy          int       `json:"accuracy"`
	QuestionsAnswered int       `json:"questions_answered"`
	PracticedAt       time.Time `json:"practiced_at"`
}

// PlacementResult is a stored ResultReport.
type PlacementResult struct {
	ID        int64        `json:"id"`
	UserID    int64        `json:"user_id"`
	Report    ResultReport `json:"report"`
	CreatedAt time.Time    `json:"created_at"`
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	DefaultLang string // fallback UI language
	TipsEnabled bool   // ask the LLM for study tips on weak areas
}
