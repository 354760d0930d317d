package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/lingo/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY,
		quiz_id INTEGER NOT NULL DEFAULT 0,
		category TEXT NOT NULL,
		text TEXT NOT NULL,
		options TEXT NOT NULL DEFAULT '[]',
		correct_answer INTEGER NOT NULL,
		explanation TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS lessons (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		category TEXT NOT NULL,
		difficulty INTEGER NOT NULL DEFAULT 1,
		duration_minutes INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS placement_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		report TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS practice_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		category TEXT NOT NULL,
		accuracy INTEGER NOT NULL CHECK (accuracy BETWEEN 0 AND 100),
		questions_answered INTEGER NOT NULL,
		practiced_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS quizzes (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		difficulty INTEGER NOT NULL DEFAULT 1,
		is_daily INTEGER NOT NULL DEFAULT 0,
		estimated_minutes INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS mistakes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		question_id INTEGER NOT NULL,
		category TEXT NOT NULL,
		selected_answer INTEGER NOT NULL,
		correct_answer INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_mistakes_user ON mistakes(user_id);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const questionColumns = `id, quiz_id, category, text, options, correct_answer, explanation`

type rowScanner interface {
	Scan(dest ...any) error
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// withTx runs fn in a transaction, rolling back on error.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func scanQuestion(row rowScanner) (model.Question, error) {
	var q model.Question
	var options string
	if err := row.Scan(&q.ID, &q.QuizID, &q.Category, &q.Text, &options, &q.CorrectAnswer, &q.Explanation); err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
		return q, fmt.Errorf("decode options of question %d: %w", q.ID, err)
	}
	return q, nil
}

func (s *Store) queryQuestions(query string, args ...any) ([]model.Question, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// InsertQuestion stores a question under its own ID, replacing any previous version.
func (s *Store) InsertQuestion(q model.Question) error {
	return insertQuestion(s.db, q)
}

// InsertQuestions stores all questions or none.
func (s *Store) InsertQuestions(questions []model.Question) error {
	return s.withTx(func(tx *sql.Tx) error {
		for _, q := range questions {
			if err := insertQuestion(tx, q); err != nil {
				return fmt.Errorf("insert question %d: %w", q.ID, err)
			}
		}
		return nil
	})
}

func insertQuestion(ex execer, q model.Question) error {
	if q.Options == nil {
		q.Options = []string{}
	}
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	_, err = ex.Exec(
		`INSERT OR REPLACE INTO questions (`+questionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.QuizID, q.Category, q.Text, string(options), q.CorrectAnswer, q.Explanation,
	)
	return err
}

// ListQuestions returns all questions ordered by ID.
func (s *Store) ListQuestions() ([]model.Question, error) {
	return s.queryQuestions(`SELECT ` + questionColumns + ` FROM questions ORDER BY id`)
}

// ListQuestionsByQuiz returns the questions of one quiz. Quiz 0 is the placement pool.
func (s *Store) ListQuestionsByQuiz(quizID int64) ([]model.Question, error) {
	return s.queryQuestions(`SELECT `+questionColumns+` FROM questions WHERE quiz_id = ? ORDER BY id`, quizID)
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(id int64) (model.Question, error) {
	return scanQuestion(s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id))
}

// QuestionCount returns the number of questions in the database.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// InsertLesson stores a lesson under its own ID, replacing any previous version.
func (s *Store) InsertLesson(l model.Lesson) error {
	return insertLesson(s.db, l)
}

// InsertLessons stores all lessons or none.
func (s *Store) InsertLessons(lessons []model.Lesson) error {
	return s.withTx(func(tx *sql.Tx) error {
		for _, l := range lessons {
			if err := insertLesson(tx, l); err != nil {
				return fmt.Errorf("insert lesson %d: %w", l.ID, err)
			}
		}
		return nil
	})
}

func insertLesson(ex execer, l model.Lesson) error {
	_, err := ex.Exec(
		`INSERT OR REPLACE INTO lessons (id, title, category, difficulty, duration_minutes) VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.Title, l.Category, l.Difficulty, l.DurationMinutes,
	)
	return err
}

func (s *Store) queryLessons(query string, args ...any) ([]model.Lesson, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lessons []model.Lesson
	for rows.Next() {
		var l model.Lesson
		if err := rows.Scan(&l.ID, &l.Title, &l.Category, &l.Difficulty, &l.DurationMinutes); err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

const lessonColumns = `id, title, category, difficulty, duration_minutes`

// ListLessons returns all lessons ordered by ID.
func (s *Store) ListLessons() ([]model.Lesson, error) {
	return s.queryLessons(`SELECT ` + lessonColumns + ` FROM lessons ORDER BY id`)
}

// ListLessonsByCategory returns the lessons of one category ordered by ID.
func (s *Store) ListLessonsByCategory(category string) ([]model.Lesson, error) {
	return s.queryLessons(`SELECT `+lessonColumns+` FROM lessons WHERE category = ? ORDER BY id`, category)
}

// GetLesson returns a lesson by ID.
func (s *Store) GetLesson(id int64) (model.Lesson, error) {
	var l model.Lesson
	err := s.db.QueryRow(`SELECT `+lessonColumns+` FROM lessons WHERE id = ?`, id).
		Scan(&l.ID, &l.Title, &l.Category, &l.Difficulty, &l.DurationMinutes)
	return l, err
}

// RecommendedLessons returns up to limit lessons no harder than maxDifficulty,
// easiest first.
func (s *Store) RecommendedLessons(maxDifficulty, limit int) ([]model.Lesson, error) {
	return s.queryLessons(
		`SELECT `+lessonColumns+` FROM lessons WHERE difficulty <= ? ORDER BY difficulty, id LIMIT ?`,
		maxDifficulty, limit,
	)
}

// LessonsByIDs returns the lessons with the given IDs in the order requested.
// IDs without a stored lesson are skipped.
func (s *Store) LessonsByIDs(ids []int64) ([]model.Lesson, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	found, err := s.queryLessons(
		`SELECT `+lessonColumns+` FROM lessons WHERE id IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]model.Lesson, len(found))
	for _, l := range found {
		byID[l.ID] = l
	}
	var lessons []model.Lesson
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			lessons = append(lessons, l)
		}
	}
	return lessons, nil
}

// SavePlacementResult stores a scored report for a user together with the
// mistakes made in it.
func (s *Store) SavePlacementResult(userID int64, report model.ResultReport, mistakes ...model.Mistake) (int64, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("encode report: %w", err)
	}

	var resultID int64
	err = s.withTx(func(tx *sql.Tx) error {
		now := time.Now().UTC()
		res, err := tx.Exec(
			`INSERT INTO placement_results (user_id, report, created_at) VALUES (?, ?, ?)`,
			userID, string(data), now,
		)
		if err != nil {
			return err
		}
		if resultID, err = res.LastInsertId(); err != nil {
			return err
		}
		return insertMistakes(tx, mistakes, now)
	})
	if err != nil {
		return 0, err
	}
	return resultID, nil
}

func scanPlacementResult(row rowScanner) (model.PlacementResult, error) {
	var r model.PlacementResult
	var data string
	if err := row.Scan(&r.ID, &r.UserID, &data, &r.CreatedAt); err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(data), &r.Report); err != nil {
		return r, fmt.Errorf("decode report %d: %w", r.ID, err)
	}
	return r, nil
}

// GetPlacementResult returns a stored result by ID.
func (s *Store) GetPlacementResult(id int64) (model.PlacementResult, error) {
	return scanPlacementResult(s.db.QueryRow(
		`SELECT id, user_id, report, created_at FROM placement_results WHERE id = ?`, id,
	))
}

// ListPlacementResults returns all stored results, oldest first.
func (s *Store) ListPlacementResults() ([]model.PlacementResult, error) {
	rows, err := s.db.Query(`SELECT id, user_id, report, created_at FROM placement_results ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.PlacementResult
	for rows.Next() {
		r, err := scanPlacementResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// AddPracticeSession records a practice run. A zero PracticedAt means now.
func (s *Store) AddPracticeSession(p model.PracticeSession) (int64, error) {
	return insertPracticeSession(s.db, p)
}

// SaveQuizAttempt records the practice sessions and mistakes of one scored
// quiz. Either everything is stored or nothing is.
func (s *Store) SaveQuizAttempt(sessions []model.PracticeSession, mistakes []model.Mistake) error {
	return s.withTx(func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for _, p := range sessions {
			if p.PracticedAt.IsZero() {
				p.PracticedAt = now
			}
			if _, err := insertPracticeSession(tx, p); err != nil {
				return fmt.Errorf("insert practice session %q: %w", p.Category, err)
			}
		}
		return insertMistakes(tx, mistakes, now)
	})
}

func insertPracticeSession(ex execer, p model.PracticeSession) (int64, error) {
	if p.PracticedAt.IsZero() {
		p.PracticedAt = time.Now()
	}
	res, err := ex.Exec(
		`INSERT INTO practice_sessions (user_id, category, accuracy, questions_answered, practiced_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.UserID, p.Category, p.Accuracy, p.QuestionsAnswered, p.PracticedAt.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListPracticeSessions returns a user's sessions in chronological order.
func (s *Store) ListPracticeSessions(userID int64) ([]model.PracticeSession, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, category, accuracy, questions_answered, practiced_at
		 FROM practice_sessions WHERE user_id = ? ORDER BY practiced_at, id`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []model.PracticeSession
	for rows.Next() {
		var p model.PracticeSession
		if err := rows.Scan(&p.ID, &p.UserID, &p.Category, &p.Accuracy, &p.QuestionsAnswered, &p.PracticedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, p)
	}
	return sessions, rows.Err()
}

// ListCategories returns the distinct question categories in alphabetical order.
func (s *Store) ListCategories() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT category FROM questions ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
