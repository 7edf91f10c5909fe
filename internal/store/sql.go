package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/p-n-ai/pai-quiz-import/internal/content"
)

const dbTimeout = 10 * time.Second

// querier hides the differences between pgx and database/sql.
type querier interface {
	exec(ctx context.Context, q string, args ...any) error
	queryRow(ctx context.Context, q string, args ...any) rowScanner
	query(ctx context.Context, q string, args ...any) (rowsScanner, error)
	isNoRows(err error) bool
	isConflict(err error) bool
	close() error
}

type rowScanner interface {
	Scan(dest ...any) error
}

type rowsScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// SQLStore is a Store backed by PostgreSQL or SQLite.
type SQLStore struct {
	db querier
}

func newSQLStore(ctx context.Context, db querier) (*SQLStore, error) {
	s := &SQLStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := s.db.exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.close()
}

func (s *SQLStore) notFound(err error, what string) error {
	if s.db.isNoRows(err) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (s *SQLStore) createErr(err error, what, key string) error {
	if s.db.isConflict(err) {
		return fmt.Errorf("%s %q: %w", what, key, ErrConflict)
	}
	return fmt.Errorf("create %s: %w", what, err)
}

// Courses

const courseCols = `id, title, slug, description, status`

func scanCourse(row rowScanner) (content.Course, error) {
	var c content.Course
	var status string
	err := row.Scan(&c.ID, &c.Title, &c.Slug, &c.Description, &status)
	c.Status = content.CourseStatus(status)
	return c, err
}

func (s *SQLStore) CourseBySlug(ctx context.Context, slug string) (content.Course, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	c, err := scanCourse(s.db.queryRow(ctx, `SELECT `+courseCols+` FROM courses WHERE slug = $1`, slug))
	if err != nil {
		return content.Course{}, s.notFound(err, "course by slug")
	}
	return c, nil
}

func (s *SQLStore) CourseByID(ctx context.Context, id string) (content.Course, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	c, err := scanCourse(s.db.queryRow(ctx, `SELECT `+courseCols+` FROM courses WHERE id = $1`, id))
	if err != nil {
		return content.Course{}, s.notFound(err, "course by id")
	}
	return c, nil
}

func (s *SQLStore) CreateCourse(ctx context.Context, c *content.Course) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	id := newID(c.ID)
	now := time.Now().UnixMilli()
	err := s.db.exec(ctx,
		`INSERT INTO courses (id, title, slug, description, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, c.Title, c.Slug, c.Description, string(c.Status), now, now,
	)
	if err != nil {
		return s.createErr(err, "course", c.Slug)
	}
	c.ID = id
	return nil
}

func (s *SQLStore) UpdateCourse(ctx context.Context, c content.Course) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	err := s.db.exec(ctx,
		`UPDATE courses SET title = $2, description = $3, status = $4, updated_at = $5 WHERE id = $1`,
		c.ID, c.Title, c.Description, string(c.Status), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Modules

const moduleCols = `id, course_id, title, slug, description, "order"`

func scanModule(row rowScanner) (content.Module, error) {
	var m content.Module
	err := row.Scan(&m.ID, &m.CourseID, &m.Title, &m.Slug, &m.Description, &m.Order)
	return m, err
}

func (s *SQLStore) ModuleBySlug(ctx context.Context, courseID, slug string) (content.Module, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	m, err := scanModule(s.db.queryRow(ctx,
		`SELECT `+moduleCols+` FROM modules WHERE course_id = $1 AND slug = $2`, courseID, slug))
	if err != nil {
		return content.Module{}, s.notFound(err, "module by slug")
	}
	return m, nil
}

func (s *SQLStore) ModuleByID(ctx context.Context, id string) (content.Module, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	m, err := scanModule(s.db.queryRow(ctx, `SELECT `+moduleCols+` FROM modules WHERE id = $1`, id))
	if err != nil {
		return content.Module{}, s.notFound(err, "module by id")
	}
	return m, nil
}

func (s *SQLStore) CreateModule(ctx context.Context, m *content.Module) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	id := newID(m.ID)
	now := time.Now().UnixMilli()
	err := s.db.exec(ctx,
		`INSERT INTO modules (id, course_id, title, slug, description, "order", created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, m.CourseID, m.Title, m.Slug, m.Description, m.Order, now, now,
	)
	if err != nil {
		return s.createErr(err, "module", m.Slug)
	}
	m.ID = id
	return nil
}

func (s *SQLStore) UpdateModule(ctx context.Context, m content.Module) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	err := s.db.exec(ctx,
		`UPDATE modules SET title = $2, description = $3, "order" = $4, updated_at = $5 WHERE id = $1`,
		m.ID, m.Title, m.Description, m.Order, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("update module: %w", err)
	}
	return nil
}

// Quizzes

const quizCols = `id, module_id, title, slug, description, excerpt, duration, difficulty,
	passing_grade, randomize_order, max_questions, featured_image_url`

func scanQuiz(row rowScanner) (content.Quiz, error) {
	var (
		q            content.Quiz
		moduleID     sql.NullString
		difficulty   sql.NullString
		duration     sql.NullInt64
		maxQuestions sql.NullInt64
	)
	err := row.Scan(&q.ID, &moduleID, &q.Title, &q.Slug, &q.Description, &q.Excerpt,
		&duration, &difficulty, &q.PassingGrade, &q.RandomizeOrder, &maxQuestions, &q.FeaturedImageURL)
	if err != nil {
		return q, err
	}
	if moduleID.Valid {
		q.ModuleID = content.StrPtr(moduleID.String)
	}
	if duration.Valid {
		q.Duration = content.IntPtr(int(duration.Int64))
	}
	if maxQuestions.Valid {
		q.MaxQuestions = content.IntPtr(int(maxQuestions.Int64))
	}
	q.Difficulty = content.Difficulty(difficulty.String)
	return q, nil
}

func (s *SQLStore) QuizBySlug(ctx context.Context, slug string) (content.Quiz, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	q, err := scanQuiz(s.db.queryRow(ctx, `SELECT `+quizCols+` FROM quizzes WHERE slug = $1`, slug))
	if err != nil {
		return content.Quiz{}, s.notFound(err, "quiz by slug")
	}
	return q, nil
}

func (s *SQLStore) QuizByID(ctx context.Context, id string) (content.Quiz, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	q, err := scanQuiz(s.db.queryRow(ctx, `SELECT `+quizCols+` FROM quizzes WHERE id = $1`, id))
	if err != nil {
		return content.Quiz{}, s.notFound(err, "quiz by id")
	}
	return q, nil
}

func (s *SQLStore) CreateQuiz(ctx context.Context, q *content.Quiz) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	id := newID(q.ID)
	now := time.Now().UnixMilli()
	err := s.db.exec(ctx,
		`INSERT INTO quizzes (id, module_id, title, slug, description, excerpt, duration, difficulty,
			passing_grade, randomize_order, max_questions, featured_image_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id, nullIfNilStr(q.ModuleID), q.Title, q.Slug, q.Description, q.Excerpt,
		nullIfNilInt(q.Duration), nullIfEmpty(string(q.Difficulty)), q.PassingGrade,
		q.RandomizeOrder, nullIfNilInt(q.MaxQuestions), q.FeaturedImageURL, now, now,
	)
	if err != nil {
		return s.createErr(err, "quiz", q.Slug)
	}
	q.ID = id
	return nil
}

func (s *SQLStore) SetQuizModule(ctx context.Context, quizID string, moduleID *string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	err := s.db.exec(ctx,
		`UPDATE quizzes SET module_id = $2, updated_at = $3 WHERE id = $1`,
		quizID, nullIfNilStr(moduleID), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set quiz module: %w", err)
	}
	return nil
}

// Questions

const questionCols = `id, quiz_id, text, type, points, explanation, time_limit, "order"`

func scanQuestion(row rowScanner) (content.Question, error) {
	var (
		q         content.Question
		typ       string
		timeLimit sql.NullInt64
	)
	err := row.Scan(&q.ID, &q.QuizID, &q.Text, &typ, &q.Points, &q.Explanation, &timeLimit, &q.Order)
	q.Type = content.QuestionType(typ)
	if timeLimit.Valid {
		q.TimeLimit = content.IntPtr(int(timeLimit.Int64))
	}
	return q, err
}

func (s *SQLStore) QuestionByText(ctx context.Context, quizID, text string) (content.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	q, err := scanQuestion(s.db.queryRow(ctx,
		`SELECT `+questionCols+` FROM questions WHERE quiz_id = $1 AND text = $2
		 ORDER BY created_at LIMIT 1`, quizID, text))
	if err != nil {
		return content.Question{}, s.notFound(err, "question by text")
	}
	return q, nil
}

func (s *SQLStore) QuestionByID(ctx context.Context, id string) (content.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	q, err := scanQuestion(s.db.queryRow(ctx, `SELECT `+questionCols+` FROM questions WHERE id = $1`, id))
	if err != nil {
		return content.Question{}, s.notFound(err, "question by id")
	}
	return q, nil
}

func (s *SQLStore) QuestionsByQuiz(ctx context.Context, quizID string) ([]content.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	rows, err := s.db.query(ctx,
		`SELECT `+questionCols+` FROM questions WHERE quiz_id = $1 ORDER BY "order", created_at`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []content.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateQuestion(ctx context.Context, q *content.Question) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	id := newID(q.ID)
	err := s.db.exec(ctx,
		`INSERT INTO questions (id, quiz_id, text, type, points, explanation, time_limit, "order", created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, q.QuizID, q.Text, string(q.Type), q.Points, q.Explanation,
		nullIfNilInt(q.TimeLimit), q.Order, time.Now().UnixMilli(),
	)
	if err != nil {
		return s.createErr(err, "question", q.Text)
	}
	q.ID = id
	return nil
}

// Answers

const answerCols = `id, question_id, text, is_correct, explanation, "order"`

func scanAnswer(row rowScanner) (content.Answer, error) {
	var a content.Answer
	err := row.Scan(&a.ID, &a.QuestionID, &a.Text, &a.IsCorrect, &a.Explanation, &a.Order)
	return a, err
}

func (s *SQLStore) AnswerByText(ctx context.Context, questionID, text string) (content.Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	a, err := scanAnswer(s.db.queryRow(ctx,
		`SELECT `+answerCols+` FROM answers WHERE question_id = $1 AND text = $2
		 ORDER BY created_at LIMIT 1`, questionID, text))
	if err != nil {
		return content.Answer{}, s.notFound(err, "answer by text")
	}
	return a, nil
}

func (s *SQLStore) AnswersByQuestion(ctx context.Context, questionID string) ([]content.Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	rows, err := s.db.query(ctx,
		`SELECT `+answerCols+` FROM answers WHERE question_id = $1 ORDER BY "order", created_at`, questionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var out []content.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateAnswer(ctx context.Context, a *content.Answer) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	id := newID(a.ID)
	err := s.db.exec(ctx,
		`INSERT INTO answers (id, question_id, text, is_correct, explanation, "order", created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, a.QuestionID, a.Text, a.IsCorrect, a.Explanation, a.Order, time.Now().UnixMilli(),
	)
	if err != nil {
		return s.createErr(err, "answer", a.Text)
	}
	a.ID = id
	return nil
}

// Users

const userCols = `id, email, name, password_hash, role, created_at`

func scanUser(row rowScanner) (content.User, error) {
	var (
		u         content.User
		createdAt int64
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &createdAt)
	u.CreatedAt = time.UnixMilli(createdAt)
	return u, err
}

func (s *SQLStore) UserByEmail(ctx context.Context, email string) (content.User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	u, err := scanUser(s.db.queryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email))
	if err != nil {
		return content.User{}, s.notFound(err, "user by email")
	}
	return u, nil
}

func (s *SQLStore) UserByID(ctx context.Context, id string) (content.User, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	u, err := scanUser(s.db.queryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
	if err != nil {
		return content.User{}, s.notFound(err, "user by id")
	}
	return u, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, u *content.User) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	id := newID(u.ID)
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	err := s.db.exec(ctx,
		`INSERT INTO users (id, email, name, password_hash, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, u.Email, u.Name, u.PasswordHash, u.Role, createdAt.UnixMilli(),
	)
	if err != nil {
		return s.createErr(err, "user", u.Email)
	}
	u.ID = id
	u.CreatedAt = createdAt
	return nil
}

// Attempts

func (s *SQLStore) AttemptByKey(ctx context.Context, userID, quizID string, startedAt time.Time) (content.Attempt, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	var (
		a           content.Attempt
		started     int64
		completedAt sql.NullInt64
	)
	err := s.db.queryRow(ctx,
		`SELECT id, user_id, quiz_id, score, total_questions, answers, started_at, completed_at
		 FROM quiz_attempts WHERE user_id = $1 AND quiz_id = $2 AND started_at = $3`,
		userID, quizID, startedAt.UnixMilli(),
	).Scan(&a.ID, &a.UserID, &a.QuizID, &a.Score, &a.TotalQuestions, &a.Answers, &started, &completedAt)
	if err != nil {
		return content.Attempt{}, s.notFound(err, "attempt by key")
	}
	a.StartedAt = time.UnixMilli(started)
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64)
		a.CompletedAt = &t
	}
	return a, nil
}

func (s *SQLStore) CreateAttempt(ctx context.Context, a *content.Attempt) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	id := newID(a.ID)
	var completed any
	if a.CompletedAt != nil {
		completed = a.CompletedAt.UnixMilli()
	}
	answers := a.Answers
	if answers == "" {
		answers = "[]"
	}
	err := s.db.exec(ctx,
		`INSERT INTO quiz_attempts (id, user_id, quiz_id, score, total_questions, answers, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, a.UserID, a.QuizID, a.Score, a.TotalQuestions, answers, a.StartedAt.UnixMilli(), completed,
	)
	if err != nil {
		return s.createErr(err, "attempt", a.UserID+"/"+a.QuizID)
	}
	a.ID = id
	a.Answers = answers
	return nil
}

func (s *SQLStore) Counts(ctx context.Context) (Counts, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	var c Counts
	targets := []struct {
		table string
		dest  *int
	}{
		{"courses", &c.Courses},
		{"modules", &c.Modules},
		{"quizzes", &c.Quizzes},
		{"questions", &c.Questions},
		{"answers", &c.Answers},
		{"users", &c.Users},
		{"quiz_attempts", &c.Attempts},
	}
	for _, t := range targets {
		if err := s.db.queryRow(ctx, `SELECT COUNT(*) FROM `+t.table).Scan(t.dest); err != nil {
			return Counts{}, fmt.Errorf("count %s: %w", t.table, err)
		}
	}
	return c, nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullIfNilInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullIfNilStr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
