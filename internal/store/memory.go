package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-quiz-import/internal/content"
)

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu        sync.RWMutex
	courses   []content.Course
	modules   []content.Module
	quizzes   []content.Quiz
	questions []content.Question
	answers   []content.Answer
	users     []content.User
	attempts  []content.Attempt
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *MemoryStore) CourseBySlug(_ context.Context, slug string) (content.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.courses {
		if c.Slug == slug {
			return c, nil
		}
	}
	return content.Course{}, ErrNotFound
}

func (s *MemoryStore) CourseByID(_ context.Context, id string) (content.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.courses {
		if c.ID == id {
			return c, nil
		}
	}
	return content.Course{}, ErrNotFound
}

func (s *MemoryStore) CreateCourse(_ context.Context, c *content.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.courses {
		if existing.Slug == c.Slug {
			return fmt.Errorf("course %q: %w", c.Slug, ErrConflict)
		}
	}
	c.ID = newID(c.ID)
	s.courses = append(s.courses, *c)
	return nil
}

func (s *MemoryStore) UpdateCourse(_ context.Context, c content.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.courses {
		if s.courses[i].ID == c.ID {
			s.courses[i] = c
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) ModuleBySlug(_ context.Context, courseID, slug string) (content.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.modules {
		if m.CourseID == courseID && m.Slug == slug {
			return m, nil
		}
	}
	return content.Module{}, ErrNotFound
}

func (s *MemoryStore) ModuleByID(_ context.Context, id string) (content.Module, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.modules {
		if m.ID == id {
			return m, nil
		}
	}
	return content.Module{}, ErrNotFound
}

func (s *MemoryStore) CreateModule(_ context.Context, m *content.Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.modules {
		if existing.CourseID == m.CourseID && existing.Slug == m.Slug {
			return fmt.Errorf("module %q: %w", m.Slug, ErrConflict)
		}
	}
	m.ID = newID(m.ID)
	s.modules = append(s.modules, *m)
	return nil
}

func (s *MemoryStore) UpdateModule(_ context.Context, m content.Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.modules {
		if s.modules[i].ID == m.ID {
			s.modules[i] = m
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) QuizBySlug(_ context.Context, slug string) (content.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.quizzes {
		if q.Slug == slug {
			return q, nil
		}
	}
	return content.Quiz{}, ErrNotFound
}

func (s *MemoryStore) QuizByID(_ context.Context, id string) (content.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.quizzes {
		if q.ID == id {
			return q, nil
		}
	}
	return content.Quiz{}, ErrNotFound
}

func (s *MemoryStore) CreateQuiz(_ context.Context, q *content.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.quizzes {
		if existing.Slug == q.Slug {
			return fmt.Errorf("quiz %q: %w", q.Slug, ErrConflict)
		}
	}
	q.ID = newID(q.ID)
	s.quizzes = append(s.quizzes, *q)
	return nil
}

func (s *MemoryStore) SetQuizModule(_ context.Context, quizID string, moduleID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.quizzes {
		if s.quizzes[i].ID == quizID {
			s.quizzes[i].ModuleID = moduleID
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) QuestionByText(_ context.Context, quizID, text string) (content.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.questions {
		if q.QuizID == quizID && q.Text == text {
			return q, nil
		}
	}
	return content.Question{}, ErrNotFound
}

func (s *MemoryStore) QuestionByID(_ context.Context, id string) (content.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.questions {
		if q.ID == id {
			return q, nil
		}
	}
	return content.Question{}, ErrNotFound
}

func (s *MemoryStore) QuestionsByQuiz(_ context.Context, quizID string) ([]content.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []content.Question
	for _, q := range s.questions {
		if q.QuizID == quizID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateQuestion(_ context.Context, q *content.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.ID = newID(q.ID)
	s.questions = append(s.questions, *q)
	return nil
}

func (s *MemoryStore) AnswerByText(_ context.Context, questionID, text string) (content.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.answers {
		if a.QuestionID == questionID && a.Text == text {
			return a, nil
		}
	}
	return content.Answer{}, ErrNotFound
}

func (s *MemoryStore) AnswersByQuestion(_ context.Context, questionID string) ([]content.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []content.Answer
	for _, a := range s.answers {
		if a.QuestionID == questionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateAnswer(_ context.Context, a *content.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = newID(a.ID)
	s.answers = append(s.answers, *a)
	return nil
}

func (s *MemoryStore) UserByEmail(_ context.Context, email string) (content.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return content.User{}, ErrNotFound
}

func (s *MemoryStore) UserByID(_ context.Context, id string) (content.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return content.User{}, ErrNotFound
}

func (s *MemoryStore) CreateUser(_ context.Context, u *content.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return fmt.Errorf("user %q: %w", u.Email, ErrConflict)
		}
	}
	u.ID = newID(u.ID)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	s.users = append(s.users, *u)
	return nil
}

func (s *MemoryStore) AttemptByKey(_ context.Context, userID, quizID string, startedAt time.Time) (content.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.attempts {
		if a.UserID == userID && a.QuizID == quizID && a.StartedAt.Equal(startedAt) {
			return a, nil
		}
	}
	return content.Attempt{}, ErrNotFound
}

func (s *MemoryStore) CreateAttempt(_ context.Context, a *content.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = newID(a.ID)
	s.attempts = append(s.attempts, *a)
	return nil
}

func (s *MemoryStore) Counts(_ context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Courses:   len(s.courses),
		Modules:   len(s.modules),
		Quizzes:   len(s.quizzes),
		Questions: len(s.questions),
		Answers:   len(s.answers),
		Users:     len(s.users),
		Attempts:  len(s.attempts),
	}, nil
}

func (s *MemoryStore) Close() error { return nil }
