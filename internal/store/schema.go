package store

// schema is applied statement by statement on open. It is valid for both
// PostgreSQL and SQLite; timestamps are unix milliseconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS courses (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		slug        TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'DRAFT',
		created_at  BIGINT NOT NULL,
		updated_at  BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS modules (
		id          TEXT PRIMARY KEY,
		course_id   TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
		title       TEXT NOT NULL,
		slug        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		"order"     INTEGER NOT NULL DEFAULT 0,
		created_at  BIGINT NOT NULL,
		updated_at  BIGINT NOT NULL,
		UNIQUE (course_id, slug)
	)`,
	`CREATE TABLE IF NOT EXISTS quizzes (
		id                 TEXT PRIMARY KEY,
		module_id          TEXT REFERENCES modules(id) ON DELETE SET NULL,
		title              TEXT NOT NULL,
		slug               TEXT NOT NULL UNIQUE,
		description        TEXT NOT NULL DEFAULT '',
		excerpt            TEXT NOT NULL DEFAULT '',
		duration           INTEGER,
		difficulty         TEXT,
		passing_grade      INTEGER NOT NULL DEFAULT 70,
		randomize_order    BOOLEAN NOT NULL DEFAULT FALSE,
		max_questions      INTEGER,
		featured_image_url TEXT NOT NULL DEFAULT '',
		created_at         BIGINT NOT NULL,
		updated_at         BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quizzes_module ON quizzes(module_id)`,
	`CREATE TABLE IF NOT EXISTS questions (
		id          TEXT PRIMARY KEY,
		quiz_id     TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
		text        TEXT NOT NULL,
		type        TEXT NOT NULL DEFAULT 'MULTIPLE_CHOICE',
		points      INTEGER NOT NULL DEFAULT 1,
		explanation TEXT NOT NULL DEFAULT '',
		time_limit  INTEGER,
		"order"     INTEGER NOT NULL DEFAULT 0,
		created_at  BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_quiz ON questions(quiz_id)`,
	`CREATE TABLE IF NOT EXISTS answers (
		id          TEXT PRIMARY KEY,
		question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
		text        TEXT NOT NULL,
		is_correct  BOOLEAN NOT NULL DEFAULT FALSE,
		explanation TEXT NOT NULL DEFAULT '',
		"order"     INTEGER NOT NULL DEFAULT 0,
		created_at  BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_answers_question ON answers(question_id)`,
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		role          TEXT NOT NULL DEFAULT 'STUDENT',
		created_at    BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS quiz_attempts (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		quiz_id         TEXT NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
		score           INTEGER NOT NULL DEFAULT 0,
		total_questions INTEGER NOT NULL DEFAULT 0,
		answers         TEXT NOT NULL DEFAULT '[]',
		started_at      BIGINT NOT NULL,
		completed_at    BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attempts_key ON quiz_attempts(user_id, quiz_id, started_at)`,
}
