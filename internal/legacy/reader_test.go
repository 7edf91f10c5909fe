package legacy_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/p-n-ai/pai-quiz-import/internal/content"
	"github.com/p-n-ai/pai-quiz-import/internal/legacy"
	"github.com/p-n-ai/pai-quiz-import/internal/platform/database"
)

func seed(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dev.db")
	db, err := database.OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer db.Close()
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("seed %q: %v", s, err)
		}
	}
	return path
}

func TestReader_SnakeCase(t *testing.T) {
	path := seed(t,
		`CREATE TABLE courses (id TEXT PRIMARY KEY, title TEXT, slug TEXT, description TEXT, status TEXT)`,
		`CREATE TABLE modules (id TEXT PRIMARY KEY, course_id TEXT, title TEXT, slug TEXT, description TEXT, "order" INTEGER)`,
		`CREATE TABLE quizzes (id TEXT PRIMARY KEY, module_id TEXT, title TEXT, slug TEXT, duration INTEGER,
			difficulty TEXT, passing_grade INTEGER, randomize_order INTEGER, max_questions INTEGER)`,
		`CREATE TABLE questions (id TEXT PRIMARY KEY, quiz_id TEXT, text TEXT, type TEXT, points INTEGER, time_limit INTEGER, "order" INTEGER)`,
		`CREATE TABLE answers (id TEXT PRIMARY KEY, question_id TEXT, text TEXT, is_correct INTEGER, "order" INTEGER)`,
		`INSERT INTO courses VALUES ('c1', 'Algebra', 'algebra', 'Basics', 'PUBLISHED')`,
		`INSERT INTO modules VALUES ('m1', 'c1', 'Equations', 'equations', NULL, 2)`,
		`INSERT INTO quizzes VALUES ('q1', 'm1', 'Linear', 'linear', NULL, 'Moyen', 80, 1, NULL)`,
		`INSERT INTO quizzes VALUES ('q2', NULL, 'Orphan', 'orphan', 15, 'Difficile', NULL, 0, 5)`,
		`INSERT INTO questions VALUES ('x1', 'q1', 'Solve x+1=2', 'TRUE_FALSE', 2, 30, 1)`,
		`INSERT INTO questions VALUES ('x2', 'q1', 'Odd type', 'ESSAY', 0, 0, 2)`,
		`INSERT INTO answers VALUES ('a1', 'x1', '1', 1, 1)`,
		`INSERT INTO answers VALUES ('a2', 'x1', '2', 0, 2)`,
	)

	ctx := context.Background()
	r, err := legacy.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	courses, err := r.Courses(ctx)
	if err != nil {
		t.Fatalf("Courses() error = %v", err)
	}
	if len(courses) != 1 || courses[0].LegacyID != "c1" || courses[0].Status != content.StatusPublished {
		t.Errorf("Courses() = %+v", courses)
	}

	modules, err := r.Modules(ctx)
	if err != nil {
		t.Fatalf("Modules() error = %v", err)
	}
	if len(modules) != 1 || modules[0].CourseLegacyID != "c1" || modules[0].Order != 2 {
		t.Errorf("Modules() = %+v", modules)
	}

	quizzes, err := r.Quizzes(ctx)
	if err != nil {
		t.Fatalf("Quizzes() error = %v", err)
	}
	if len(quizzes) != 2 {
		t.Fatalf("Quizzes() = %d, want 2", len(quizzes))
	}
	q1, q2 := quizzes[0], quizzes[1]
	if q1.ModuleLegacyID != "m1" || q1.Duration != nil || q1.PassingGrade != 80 || !q1.RandomizeOrder {
		t.Errorf("q1 = %+v", q1)
	}
	if q1.Difficulty != content.DifficultyUnset {
		t.Errorf("q1 difficulty = %q, want unset", q1.Difficulty)
	}
	if q2.ModuleLegacyID != "" || q2.Duration == nil || *q2.Duration != 15 || q2.PassingGrade != 70 {
		t.Errorf("q2 = %+v", q2)
	}
	if q2.Difficulty != content.DifficultyHard || q2.MaxQuestions == nil || *q2.MaxQuestions != 5 {
		t.Errorf("q2 = %+v", q2)
	}

	questions, err := r.Questions(ctx)
	if err != nil {
		t.Fatalf("Questions() error = %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("Questions() = %d, want 2", len(questions))
	}
	if questions[0].Type != content.TrueFalse || questions[0].Points != 2 || *questions[0].TimeLimit != 30 {
		t.Errorf("questions[0] = %+v", questions[0])
	}
	if questions[1].Type != content.MultipleChoice || questions[1].Points != 1 || questions[1].TimeLimit != nil {
		t.Errorf("questions[1] = %+v", questions[1])
	}

	answers, err := r.Answers(ctx)
	if err != nil {
		t.Fatalf("Answers() error = %v", err)
	}
	if len(answers) != 2 || !answers[0].IsCorrect || answers[1].IsCorrect || answers[0].QuestionLegacyID != "x1" {
		t.Errorf("Answers() = %+v", answers)
	}

	for _, table := range []string{"users", "quiz_attempts"} {
		ok, err := r.HasTable(ctx, table)
		if err != nil || ok {
			t.Errorf("HasTable(%s) = %v, %v; want false", table, ok, err)
		}
	}
	users, err := r.Users(ctx)
	if err != nil || len(users) != 0 {
		t.Errorf("Users() without table = %v, %v", users, err)
	}
}

func TestReader_PrismaNames(t *testing.T) {
	path := seed(t,
		`CREATE TABLE "Course" (id TEXT PRIMARY KEY, title TEXT, slug TEXT, published BOOLEAN)`,
		`CREATE TABLE "User" (id TEXT PRIMARY KEY, email TEXT, name TEXT, password TEXT, role TEXT, createdAt INTEGER)`,
		`CREATE TABLE "QuizAttempt" (id TEXT PRIMARY KEY, userId TEXT, quizId TEXT, score INTEGER,
			totalQuestions INTEGER, answers TEXT, startedAt INTEGER, completedAt INTEGER)`,
		`INSERT INTO "Course" VALUES ('c1', 'Geometry', 'geometry', 1)`,
		`INSERT INTO "User" VALUES ('u1', 'Ana@Example.com', 'Ana', '$2a$10$abc', 'ADMIN', 1700000000000)`,
		`INSERT INTO "QuizAttempt" VALUES ('t1', 'u1', 'q1', 4, 5, '[{"q":1}]', 1700000000000, NULL)`,
	)

	ctx := context.Background()
	r, err := legacy.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	courses, err := r.Courses(ctx)
	if err != nil || len(courses) != 1 || courses[0].Status != content.StatusPublished {
		t.Errorf("Courses() = %+v, %v", courses, err)
	}

	users, err := r.Users(ctx)
	if err != nil {
		t.Fatalf("Users() error = %v", err)
	}
	if len(users) != 1 || users[0].Email != "ana@example.com" || users[0].Role != "ADMIN" {
		t.Errorf("Users() = %+v", users)
	}
	if users[0].CreatedAt.UnixMilli() != 1700000000000 {
		t.Errorf("CreatedAt = %v", users[0].CreatedAt)
	}

	attempts, err := r.Attempts(ctx)
	if err != nil {
		t.Fatalf("Attempts() error = %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("Attempts() = %d, want 1", len(attempts))
	}
	a := attempts[0]
	if a.UserLegacyID != "u1" || a.QuizLegacyID != "q1" || a.Score != 4 || a.TotalQuestions != 5 {
		t.Errorf("attempt = %+v", a)
	}
	if a.StartedAt.UnixMilli() != 1700000000000 || a.CompletedAt != nil || a.Answers != `[{"q":1}]` {
		t.Errorf("attempt times/answers = %+v", a)
	}
}

func TestOpen_NoCoursesTable(t *testing.T) {
	path := seed(t, `CREATE TABLE other (id TEXT)`)
	_, err := legacy.Open(context.Background(), path)
	if !errors.Is(err, legacy.ErrNoCourses) {
		t.Errorf("Open() error = %v, want ErrNoCourses", err)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	if _, err := legacy.Open(context.Background(), filepath.Join(t.TempDir(), "none.db")); err == nil {
		t.Error("Open() should fail for a missing file")
	}
}
