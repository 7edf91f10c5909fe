package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/p-n-ai/pai-quiz-import/internal/content"
	"github.com/p-n-ai/pai-quiz-import/internal/store"
)

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) store.Store { return store.NewMemoryStore() })
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) store.Store {
		s, err := store.Open(t.Context(), "file:"+filepath.Join(t.TempDir(), "quiz.db"), 1, 1)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLiteStore_SchemaIsReapplied(t *testing.T) {
	ctx := t.Context()
	path := "file:" + filepath.Join(t.TempDir(), "quiz.db")

	s, err := store.Open(ctx, path, 1, 1)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	c := &content.Course{Title: "Go", Slug: "go", Status: content.StatusDraft}
	if err := s.CreateCourse(ctx, c); err != nil {
		t.Fatalf("CreateCourse() error = %v", err)
	}
	s.Close()

	s, err = store.Open(ctx, path, 1, 1)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	if _, err := s.CourseBySlug(ctx, "go"); err != nil {
		t.Errorf("course lost across reopen: %v", err)
	}
}

func runStoreSuite(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("course natural key", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		c := &content.Course{Title: "Algebra", Slug: "algebra", Status: content.StatusPublished}
		if err := s.CreateCourse(ctx, c); err != nil {
			t.Fatalf("CreateCourse() error = %v", err)
		}
		if c.ID == "" {
			t.Fatal("CreateCourse() did not assign an ID")
		}

		dup := &content.Course{Title: "Other", Slug: "algebra"}
		if err := s.CreateCourse(ctx, dup); !errors.Is(err, store.ErrConflict) {
			t.Errorf("duplicate slug error = %v, want ErrConflict", err)
		}

		c.Title = "Algebra I"
		if err := s.UpdateCourse(ctx, *c); err != nil {
			t.Fatalf("UpdateCourse() error = %v", err)
		}
		got, err := s.CourseBySlug(ctx, "algebra")
		if err != nil {
			t.Fatalf("CourseBySlug() error = %v", err)
		}
		if got.Title != "Algebra I" || got.Status != content.StatusPublished {
			t.Errorf("CourseBySlug() = %+v", got)
		}

		if _, err := s.CourseBySlug(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("missing slug error = %v, want ErrNotFound", err)
		}
	})

	t.Run("module slug scoped by course", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		a := mustCourse(t, s, "a")
		b := mustCourse(t, s, "b")
		for _, courseID := range []string{a.ID, b.ID} {
			m := &content.Module{CourseID: courseID, Title: "Intro", Slug: "intro", Order: 1}
			if err := s.CreateModule(ctx, m); err != nil {
				t.Fatalf("CreateModule() error = %v", err)
			}
		}
		dup := &content.Module{CourseID: a.ID, Title: "Intro again", Slug: "intro"}
		if err := s.CreateModule(ctx, dup); !errors.Is(err, store.ErrConflict) {
			t.Errorf("duplicate module error = %v, want ErrConflict", err)
		}

		m, err := s.ModuleBySlug(ctx, b.ID, "intro")
		if err != nil {
			t.Fatalf("ModuleBySlug() error = %v", err)
		}
		if m.CourseID != b.ID || m.Order != 1 {
			t.Errorf("ModuleBySlug() = %+v", m)
		}
	})

	t.Run("quiz round trip", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		c := mustCourse(t, s, "c")
		m := &content.Module{CourseID: c.ID, Title: "M", Slug: "m"}
		if err := s.CreateModule(ctx, m); err != nil {
			t.Fatalf("CreateModule() error = %v", err)
		}

		q := &content.Quiz{
			ModuleID:       &m.ID,
			Title:          "Fractions",
			Slug:           "fractions",
			Duration:       content.IntPtr(10),
			Difficulty:     content.DifficultyMedium,
			PassingGrade:   80,
			RandomizeOrder: true,
		}
		if err := s.CreateQuiz(ctx, q); err != nil {
			t.Fatalf("CreateQuiz() error = %v", err)
		}
		orphan := &content.Quiz{Title: "Orphan", Slug: "orphan", PassingGrade: content.DefaultPassingGrade}
		if err := s.CreateQuiz(ctx, orphan); err != nil {
			t.Fatalf("CreateQuiz(orphan) error = %v", err)
		}

		got, err := s.QuizBySlug(ctx, "fractions")
		if err != nil {
			t.Fatalf("QuizBySlug() error = %v", err)
		}
		if got.ModuleID == nil || *got.ModuleID != m.ID {
			t.Errorf("ModuleID = %v, want %s", got.ModuleID, m.ID)
		}
		if got.Duration == nil || *got.Duration != 10 {
			t.Errorf("Duration = %v, want 10", got.Duration)
		}
		if got.Difficulty != content.DifficultyMedium || got.PassingGrade != 80 || !got.RandomizeOrder {
			t.Errorf("QuizBySlug() = %+v", got)
		}
		if got.MaxQuestions != nil {
			t.Errorf("MaxQuestions = %v, want nil", got.MaxQuestions)
		}

		o, err := s.QuizByID(ctx, orphan.ID)
		if err != nil {
			t.Fatalf("QuizByID() error = %v", err)
		}
		if o.ModuleID != nil || o.Duration != nil || o.Difficulty != content.DifficultyUnset {
			t.Errorf("orphan quiz = %+v", o)
		}

		if err := s.SetQuizModule(ctx, orphan.ID, &m.ID); err != nil {
			t.Fatalf("SetQuizModule() error = %v", err)
		}
		o, _ = s.QuizByID(ctx, orphan.ID)
		if o.ModuleID == nil || *o.ModuleID != m.ID {
			t.Errorf("after SetQuizModule ModuleID = %v", o.ModuleID)
		}
	})

	t.Run("questions and answers keep order", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		quiz := &content.Quiz{Title: "Q", Slug: "q", PassingGrade: 70}
		if err := s.CreateQuiz(ctx, quiz); err != nil {
			t.Fatalf("CreateQuiz() error = %v", err)
		}
		for i, text := range []string{"First?", "Second?"} {
			qu := &content.Question{QuizID: quiz.ID, Text: text, Type: content.MultipleChoice, Points: 1, Order: i + 1}
			if err := s.CreateQuestion(ctx, qu); err != nil {
				t.Fatalf("CreateQuestion() error = %v", err)
			}
			for j, at := range []string{"yes", "no"} {
				a := &content.Answer{QuestionID: qu.ID, Text: at, IsCorrect: j == 0, Order: j + 1}
				if err := s.CreateAnswer(ctx, a); err != nil {
					t.Fatalf("CreateAnswer() error = %v", err)
				}
			}
		}

		qs, err := s.QuestionsByQuiz(ctx, quiz.ID)
		if err != nil {
			t.Fatalf("QuestionsByQuiz() error = %v", err)
		}
		if len(qs) != 2 || qs[0].Text != "First?" || qs[1].Text != "Second?" {
			t.Fatalf("QuestionsByQuiz() = %+v", qs)
		}

		byText, err := s.QuestionByText(ctx, quiz.ID, "Second?")
		if err != nil || byText.ID != qs[1].ID {
			t.Errorf("QuestionByText() = %+v, %v", byText, err)
		}

		as, err := s.AnswersByQuestion(ctx, qs[0].ID)
		if err != nil {
			t.Fatalf("AnswersByQuestion() error = %v", err)
		}
		if len(as) != 2 || !as[0].IsCorrect || as[1].IsCorrect {
			t.Errorf("AnswersByQuestion() = %+v", as)
		}
		if _, err := s.AnswerByText(ctx, qs[0].ID, "maybe"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("AnswerByText(missing) error = %v, want ErrNotFound", err)
		}

		view, err := store.LoadQuizView(ctx, s, "q")
		if err != nil {
			t.Fatalf("LoadQuizView() error = %v", err)
		}
		if len(view.Questions) != 2 || len(view.Questions[0].Answers) != 2 {
			t.Errorf("LoadQuizView() = %+v", view)
		}
	})

	t.Run("users and attempts", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()

		u := &content.User{Email: "ana@example.com", Name: "Ana", Role: "STUDENT"}
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser() error = %v", err)
		}
		if err := s.CreateUser(ctx, &content.User{Email: "ana@example.com"}); !errors.Is(err, store.ErrConflict) {
			t.Errorf("duplicate email error = %v, want ErrConflict", err)
		}

		quiz := &content.Quiz{Title: "Q", Slug: "q", PassingGrade: 70}
		if err := s.CreateQuiz(ctx, quiz); err != nil {
			t.Fatalf("CreateQuiz() error = %v", err)
		}

		started := time.UnixMilli(1_700_000_000_000)
		a := &content.Attempt{UserID: u.ID, QuizID: quiz.ID, Score: 3, TotalQuestions: 4, Answers: `[1,2]`, StartedAt: started}
		if err := s.CreateAttempt(ctx, a); err != nil {
			t.Fatalf("CreateAttempt() error = %v", err)
		}

		got, err := s.AttemptByKey(ctx, u.ID, quiz.ID, started)
		if err != nil {
			t.Fatalf("AttemptByKey() error = %v", err)
		}
		if got.Score != 3 || got.Answers != `[1,2]` || got.CompletedAt != nil {
			t.Errorf("AttemptByKey() = %+v", got)
		}
		if _, err := s.AttemptByKey(ctx, u.ID, quiz.ID, started.Add(time.Second)); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("AttemptByKey(other time) error = %v, want ErrNotFound", err)
		}

		counts, err := s.Counts(ctx)
		if err != nil {
			t.Fatalf("Counts() error = %v", err)
		}
		if counts.Users != 1 || counts.Quizzes != 1 || counts.Attempts != 1 {
			t.Errorf("Counts() = %+v", counts)
		}
	})
}

func mustCourse(t *testing.T, s store.Store, slug string) content.Course {
	t.Helper()
	c := &content.Course{Title: slug, Slug: slug, Status: content.StatusDraft}
	if err := s.CreateCourse(context.Background(), c); err != nil {
		t.Fatalf("CreateCourse(%s) error = %v", slug, err)
	}
	return *c
}
