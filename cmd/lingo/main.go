package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/lingo/internal/catalog"
	"github.com/pavelanni/lingo/internal/handler"
	appI18n "github.com/pavelanni/lingo/internal/i18n"
	"github.com/pavelanni/lingo/internal/llm"
	"github.com/pavelanni/lingo/internal/model"
	"github.com/pavelanni/lingo/internal/scoring"
	"github.com/pavelanni/lingo/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lingo",
		Short: "Placement scoring and progress analytics for language learners",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), scoreCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `lingo --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func addScoringFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("strict", false, "Reject answers that reference questions missing from the catalog")
	f.Int("advanced-floor", 80, "Minimum accuracy for the Advanced level")
	f.Int("intermediate-floor", 60, "Minimum accuracy for the Intermediate level")
	f.IntSlice("advanced-lessons", []int{6, 7, 9}, "Lessons recommended at the Advanced level")
	f.IntSlice("intermediate-lessons", []int{3, 4, 6}, "Lessons recommended at the Intermediate level")
	f.IntSlice("beginner-lessons", []int{1, 2, 5}, "Lessons recommended at the Beginner level")
	f.Int("weak-threshold", scoring.DefaultWeakThreshold, "Category accuracy below which a category is a weak area")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "lingo.db", "SQLite database path")
	f.StringSliceP("questions", "q", nil, "Paths to question JSON files to import on start (repeatable)")
	f.StringSlice("lessons", nil, "Paths to lesson JSON files to import on start (repeatable)")
	f.StringSlice("quizzes", nil, "Paths to quiz JSON files to import on start (repeatable)")
	f.StringP("lang", "l", "en", "Default UI language (en, ru)")
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty disables study tips)")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	addScoringFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import question and lesson JSON files into the database",
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.String("db", "lingo.db", "SQLite database path")
	f.StringSliceP("questions", "q", nil, "Paths to question JSON files (repeatable)")
	f.StringSlice("lessons", nil, "Paths to lesson JSON files (repeatable)")
	f.StringSlice("quizzes", nil, "Paths to quiz JSON files (repeatable)")
	addLogFlags(cmd)
	return cmd
}

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a JSON list of answers against the stored catalog",
		RunE:  runScore,
	}
	f := cmd.Flags()
	f.String("db", "lingo.db", "SQLite database path")
	f.String("answers", "-", "Answers JSON file (- for stdin)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addScoringFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export placement results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "lingo.db", "SQLite database path")
	f.Int64("user-id", 0, "Only export results of this user (0 = all)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("LINGO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("lingo")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/lingo")
	v.AddConfigPath("/etc/lingo")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// lessonIDs reads a lesson list. Flags and config files yield a list, while
// environment variables yield a raw string such as "6,7,9" or "6 7 9".
func lessonIDs(v *viper.Viper, key string) ([]int64, error) {
	if raw, ok := v.Get(key).(string); ok {
		fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
		ids := make([]int64, 0, len(fields))
		for _, f := range fields {
			id, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid lesson ID %q", key, f)
			}
			ids = append(ids, id)
		}
		return ids, nil
	}
	ints := v.GetIntSlice(key)
	ids := make([]int64, len(ints))
	for i, n := range ints {
		ids[i] = int64(n)
	}
	return ids, nil
}

// engineFromConfig builds the scoring engine from tier and threshold settings.
func engineFromConfig(v *viper.Viper) (*scoring.Engine, error) {
	tiers := []scoring.Tier{
		{Level: model.LevelAdvanced, MinAccuracy: v.GetInt("advanced-floor")},
		{Level: model.LevelIntermediate, MinAccuracy: v.GetInt("intermediate-floor")},
		{Level: model.LevelBeginner, MinAccuracy: 0},
	}
	keys := []string{"advanced-lessons", "intermediate-lessons", "beginner-lessons"}
	for i, key := range keys {
		ids, err := lessonIDs(v, key)
		if err != nil {
			return nil, err
		}
		tiers[i].Lessons = ids
	}
	return scoring.New(scoring.Config{
		Tiers:         tiers,
		WeakThreshold: v.GetInt("weak-threshold"),
		Strict:        v.GetBool("strict"),
	})
}

func openAndImport(v *viper.Viper) (*store.Store, error) {
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := catalog.ImportQuestions(db, v.GetStringSlice("questions")); err != nil {
		db.Close()
		return nil, fmt.Errorf("import questions: %w", err)
	}
	if _, err := catalog.ImportLessons(db, v.GetStringSlice("lessons")); err != nil {
		db.Close()
		return nil, fmt.Errorf("import lessons: %w", err)
	}
	if _, err := catalog.ImportQuizzes(db, v.GetStringSlice("quizzes")); err != nil {
		db.Close()
		return nil, fmt.Errorf("import quizzes: %w", err)
	}
	return db, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openAndImport(v)
	if err != nil {
		return err
	}
	defer db.Close()

	count, err := db.QuestionCount()
	if err != nil {
		return fmt.Errorf("count questions: %w", err)
	}
	if count == 0 {
		slog.Warn("question catalog is empty; import questions with --questions")
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	engine, err := engineFromConfig(v)
	if err != nil {
		return fmt.Errorf("scoring config: %w", err)
	}

	cfg := model.ServerConfig{DefaultLang: lang}
	var tips handler.TipsProvider
	if url := v.GetString("llm-url"); url != "" {
		llmClient := llm.New(url, v.GetString("llm-key"), v.GetString("llm-model"))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := llmClient.Ping(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", url, "model", v.GetString("llm-model"))
		tips = llmClient
		cfg.TipsEnabled = true
	}

	h := handler.New(db, engine, tips, cfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(cfg.DefaultLang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"questions", count,
		"strict", v.GetBool("strict"),
		"tips", cfg.TipsEnabled,
	)
	return http.ListenAndServe(addr, r)
}

func runImport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	qres, err := catalog.ImportQuestions(db, v.GetStringSlice("questions"))
	if err != nil {
		return fmt.Errorf("import questions: %w", err)
	}
	lres, err := catalog.ImportLessons(db, v.GetStringSlice("lessons"))
	if err != nil {
		return fmt.Errorf("import lessons: %w", err)
	}
	zres, err := catalog.ImportQuizzes(db, v.GetStringSlice("quizzes"))
	if err != nil {
		return fmt.Errorf("import quizzes: %w", err)
	}
	slog.Info("import finished",
		"questions", qres.Records,
		"lessons", lres.Records,
		"quizzes", zres.Records,
		"skipped_files", qres.Skipped+lres.Skipped+zres.Skipped,
	)
	return nil
}

func runScore(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	engine, err := engineFromConfig(v)
	if err != nil {
		return fmt.Errorf("scoring config: %w", err)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	questions, err := db.ListQuestions()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	cat := scoring.NewCatalog(questions)

	data, err := readInput(cmd, v.GetString("answers"))
	if err != nil {
		return err
	}
	var subs []model.Submission
	if err := json.Unmarshal(data, &subs); err != nil {
		return fmt.Errorf("parse answers: %w", err)
	}

	report, err := engine.Score(cat, scoring.GradeSubmissions(cat, subs))
	if err != nil {
		return fmt.Errorf("score: %w", err)
	}
	if len(report.UnknownQuestions) > 0 {
		slog.Warn("answers reference unknown questions; left out of category breakdown",
			"question_ids", report.UnknownQuestions)
	}
	return writeOutput(cmd, v.GetString("output"), report)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportResults(v.GetInt64("user-id"))
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}
	return writeOutput(cmd, v.GetString("output"), export)
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func writeOutput(cmd *cobra.Command, outPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}
