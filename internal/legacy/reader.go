// Package legacy reads the pre-migration SQLite database. The file is
// opened read-only and is never written to.
package legacy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/p-n-ai/pai-quiz-import/internal/content"
	"github.com/p-n-ai/pai-quiz-import/internal/platform/database"
)

// ErrNoCourses is returned by Open when the file has no courses table.
var ErrNoCourses = errors.New("legacy database has no courses table")

// Table names, snake_case first, then the Prisma model name.
var tableNames = map[string][]string{
	"courses":       {"courses", "Course"},
	"modules":       {"modules", "Module"},
	"quizzes":       {"quizzes", "Quiz"},
	"questions":     {"questions", "Question"},
	"answers":       {"answers", "Answer"},
	"users":         {"users", "User"},
	"quiz_attempts": {"quiz_attempts", "QuizAttempt"},
}

// Reader streams rows out of a legacy database.
type Reader struct {
	db *sql.DB
}

// Open opens the legacy file read-only and checks that it holds courses.
func Open(ctx context.Context, path string) (*Reader, error) {
	db, err := database.OpenSQLiteReadOnly(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open legacy database: %w", err)
	}
	r := &Reader{db: db}
	ok, err := r.HasTable(ctx, "courses")
	if err != nil {
		db.Close()
		return nil, err
	}
	if !ok {
		db.Close()
		return nil, ErrNoCourses
	}
	return r, nil
}

// Close closes the underlying handle.
func (r *Reader) Close() error {
	return r.db.Close()
}

// HasTable reports whether the logical table exists under any of its names.
func (r *Reader) HasTable(ctx context.Context, logical string) (bool, error) {
	name, err := r.resolve(ctx, logical)
	if err != nil {
		return false, err
	}
	return name != "", nil
}

func (r *Reader) resolve(ctx context.Context, logical string) (string, error) {
	candidates, ok := tableNames[logical]
	if !ok {
		candidates = []string{logical}
	}
	for _, name := range candidates {
		var found string
		err := r.db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
		).Scan(&found)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("look up table %s: %w", name, err)
		}
		return found, nil
	}
	return "", nil
}

// rows reads a whole table in insertion order. A missing table yields no rows.
func (r *Reader) rows(ctx context.Context, logical string) ([]row, error) {
	table, err := r.resolve(ctx, logical)
	if err != nil || table == "" {
		return nil, err
	}

	rs, err := r.db.QueryContext(ctx, `SELECT * FROM "`+strings.ReplaceAll(table, `"`, `""`)+`" ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rs.Close()

	cols, err := rs.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}

	var out []row
	for rs.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		rec := make(row, len(cols))
		for i, c := range cols {
			rec[c] = vals[i]
		}
		out = append(out, rec)
	}
	return out, rs.Err()
}

// Course is a legacy course with its legacy ID.
type Course struct {
	LegacyID string
	content.Course
}

// Module is a legacy module with legacy references.
type Module struct {
	LegacyID       string
	CourseLegacyID string
	content.Module
}

// Quiz is a legacy quiz. ModuleLegacyID is empty for orphan quizzes.
type Quiz struct {
	LegacyID       string
	ModuleLegacyID string
	content.Quiz
}

// Question is a legacy question.
type Question struct {
	LegacyID     string
	QuizLegacyID string
	content.Question
}

// Answer is a legacy answer.
type Answer struct {
	LegacyID         string
	QuestionLegacyID string
	content.Answer
}

// User is a legacy user account.
type User struct {
	LegacyID string
	content.User
}

// Attempt is a legacy quiz attempt.
type Attempt struct {
	LegacyID     string
	UserLegacyID string
	QuizLegacyID string
	content.Attempt
}

// Courses reads every course.
func (r *Reader) Courses(ctx context.Context) ([]Course, error) {
	rows, err := r.rows(ctx, "courses")
	if err != nil {
		return nil, err
	}
	out := make([]Course, 0, len(rows))
	for _, rec := range rows {
		status := content.StatusDraft
		if strings.EqualFold(rec.str("status"), string(content.StatusPublished)) || rec.boolean("published", "isPublished") {
			status = content.StatusPublished
		}
		out = append(out, Course{
			LegacyID: rec.str("id"),
			Course: content.Course{
				Title:       rec.str("title"),
				Slug:        rec.str("slug"),
				Description: rec.str("description"),
				Status:      status,
			},
		})
	}
	return out, nil
}

// Modules reads every module.
func (r *Reader) Modules(ctx context.Context) ([]Module, error) {
	rows, err := r.rows(ctx, "modules")
	if err != nil {
		return nil, err
	}
	out := make([]Module, 0, len(rows))
	for _, rec := range rows {
		order, _ := rec.integer("order", "position")
		out = append(out, Module{
			LegacyID:       rec.str("id"),
			CourseLegacyID: rec.str("course_id", "courseId"),
			Module: content.Module{
				Title:       rec.str("title"),
				Slug:        rec.str("slug"),
				Description: rec.str("description"),
				Order:       order,
			},
		})
	}
	return out, nil
}

// Quizzes reads every quiz.
func (r *Reader) Quizzes(ctx context.Context) ([]Quiz, error) {
	rows, err := r.rows(ctx, "quizzes")
	if err != nil {
		return nil, err
	}
	out := make([]Quiz, 0, len(rows))
	for _, rec := range rows {
		q := content.Quiz{
			Title:            rec.str("title"),
			Slug:             rec.str("slug"),
			Description:      rec.str("description"),
			Excerpt:          rec.str("excerpt"),
			Difficulty:       legacyDifficulty(rec.str("difficulty")),
			PassingGrade:     content.DefaultPassingGrade,
			RandomizeOrder:   rec.boolean("randomize_order", "randomizeOrder"),
			FeaturedImageURL: rec.str("featured_image_url", "featuredImageUrl", "featuredImage"),
		}
		if n, ok := rec.integer("duration"); ok && n > 0 {
			q.Duration = content.IntPtr(n)
		}
		if n, ok := rec.integer("passing_grade", "passingGrade"); ok && n >= 0 && n <= 100 {
			q.PassingGrade = n
		}
		if n, ok := rec.integer("max_questions", "maxQuestions"); ok && n > 0 {
			q.MaxQuestions = content.IntPtr(n)
		}
		out = append(out, Quiz{
			LegacyID:       rec.str("id"),
			ModuleLegacyID: rec.str("module_id", "moduleId"),
			Quiz:           q,
		})
	}
	return out, nil
}

// legacyDifficulty maps stored difficulty values. The legacy system wrote
// "Moyen" when no difficulty was chosen and hid the badge for it, so it
// carries over as unset.
func legacyDifficulty(s string) content.Difficulty {
	switch content.Difficulty(strings.TrimSpace(s)) {
	case content.DifficultyEasy:
		return content.DifficultyEasy
	case content.DifficultyHard:
		return content.DifficultyHard
	default:
		return content.DifficultyUnset
	}
}

// Questions reads every question.
func (r *Reader) Questions(ctx context.Context) ([]Question, error) {
	rows, err := r.rows(ctx, "questions")
	if err != nil {
		return nil, err
	}
	out := make([]Question, 0, len(rows))
	for _, rec := range rows {
		typ := content.QuestionType(strings.ToUpper(rec.str("type")))
		if !typ.Valid() {
			typ = content.MultipleChoice
		}
		q := content.Question{
			Text:        rec.str("text", "question"),
			Type:        typ,
			Points:      1,
			Explanation: rec.str("explanation"),
		}
		if n, ok := rec.integer("points"); ok && n >= 1 {
			q.Points = n
		}
		if n, ok := rec.integer("time_limit", "timeLimit"); ok && n > 0 {
			q.TimeLimit = content.IntPtr(n)
		}
		q.Order, _ = rec.integer("order", "position")
		out = append(out, Question{
			LegacyID:     rec.str("id"),
			QuizLegacyID: rec.str("quiz_id", "quizId"),
			Question:     q,
		})
	}
	return out, nil
}

// Answers reads every answer.
func (r *Reader) Answers(ctx context.Context) ([]Answer, error) {
	rows, err := r.rows(ctx, "answers")
	if err != nil {
		return nil, err
	}
	out := make([]Answer, 0, len(rows))
	for _, rec := range rows {
		order, _ := rec.integer("order", "position")
		out = append(out, Answer{
			LegacyID:         rec.str("id"),
			QuestionLegacyID: rec.str("question_id", "questionId"),
			Answer: content.Answer{
				Text:        rec.str("text", "answer"),
				IsCorrect:   rec.boolean("is_correct", "isCorrect"),
				Explanation: rec.str("explanation"),
				Order:       order,
			},
		})
	}
	return out, nil
}

// Users reads every user. The table is optional.
func (r *Reader) Users(ctx context.Context) ([]User, error) {
	rows, err := r.rows(ctx, "users")
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(rows))
	for _, rec := range rows {
		u := content.User{
			Email:        strings.ToLower(rec.str("email")),
			Name:         rec.str("name"),
			PasswordHash: rec.str("password_hash", "passwordHash", "password"),
			Role:         rec.str("role"),
		}
		if u.Role == "" {
			u.Role = "STUDENT"
		}
		if t, ok := rec.time("created_at", "createdAt"); ok {
			u.CreatedAt = t
		}
		out = append(out, User{LegacyID: rec.str("id"), User: u})
	}
	return out, nil
}

// Attempts reads every quiz attempt. The table is optional.
func (r *Reader) Attempts(ctx context.Context) ([]Attempt, error) {
	rows, err := r.rows(ctx, "quiz_attempts")
	if err != nil {
		return nil, err
	}
	out := make([]Attempt, 0, len(rows))
	for _, rec := range rows {
		a := content.Attempt{
			Answers: rec.str("answers"),
		}
		a.Score, _ = rec.integer("score")
		a.TotalQuestions, _ = rec.integer("total_questions", "totalQuestions")
		if t, ok := rec.time("started_at", "startedAt", "created_at", "createdAt"); ok {
			a.StartedAt = t
		}
		if t, ok := rec.time("completed_at", "completedAt"); ok {
			a.CompletedAt = &t
		}
		out = append(out, Attempt{
			LegacyID:     rec.str("id"),
			UserLegacyID: rec.str("user_id", "userId"),
			QuizLegacyID: rec.str("quiz_id", "quizId"),
			Attempt:      a,
		})
	}
	return out, nil
}
