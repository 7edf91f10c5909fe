// Package store is the destination relational store for canonical content.
// Lookups by natural key return ErrNotFound when no row matches.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/p-n-ai/pai-quiz-import/internal/content"
)

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a create would violate a natural key.
	ErrConflict = errors.New("natural key already exists")
)

// Store persists the content tree plus users and attempts.
// Create methods assign an ID when the entity has none.
type Store interface {
	CourseBySlug(ctx context.Context, slug string) (content.Course, error)
	CourseByID(ctx context.Context, id string) (content.Course, error)
	CreateCourse(ctx context.Context, c *content.Course) error
	UpdateCourse(ctx context.Context, c content.Course) error

	ModuleBySlug(ctx context.Context, courseID, slug string) (content.Module, error)
	ModuleByID(ctx context.Context, id string) (content.Module, error)
	CreateModule(ctx context.Context, m *content.Module) error
	UpdateModule(ctx context.Context, m content.Module) error

	QuizBySlug(ctx context.Context, slug string) (content.Quiz, error)
	QuizByID(ctx context.Context, id string) (content.Quiz, error)
	CreateQuiz(ctx context.Context, q *content.Quiz) error
	SetQuizModule(ctx context.Context, quizID string, moduleID *string) error

	QuestionByText(ctx context.Context, quizID, text string) (content.Question, error)
	QuestionByID(ctx context.Context, id string) (content.Question, error)
	QuestionsByQuiz(ctx context.Context, quizID string) ([]content.Question, error)
	CreateQuestion(ctx context.Context, q *content.Question) error

	AnswerByText(ctx context.Context, questionID, text string) (content.Answer, error)
	AnswersByQuestion(ctx context.Context, questionID string) ([]content.Answer, error)
	CreateAnswer(ctx context.Context, a *content.Answer) error

	UserByEmail(ctx context.Context, email string) (content.User, error)
	UserByID(ctx context.Context, id string) (content.User, error)
	CreateUser(ctx context.Context, u *content.User) error

	AttemptByKey(ctx context.Context, userID, quizID string, startedAt time.Time) (content.Attempt, error)
	CreateAttempt(ctx context.Context, a *content.Attempt) error

	Counts(ctx context.Context) (Counts, error)
	Close() error
}

// Counts holds row counts per table.
type Counts struct {
	Courses   int
	Modules   int
	Quizzes   int
	Questions int
	Answers   int
	Users     int
	Attempts  int
}

// LoadQuizView reads a quiz and its questions and answers into the UI view model.
func LoadQuizView(ctx context.Context, s Store, slug string) (content.QuizView, error) {
	quiz, err := s.QuizBySlug(ctx, slug)
	if err != nil {
		return content.QuizView{}, err
	}
	questions, err := s.QuestionsByQuiz(ctx, quiz.ID)
	if err != nil {
		return content.QuizView{}, err
	}
	answers := make(map[string][]content.Answer, len(questions))
	for _, q := range questions {
		as, err := s.AnswersByQuestion(ctx, q.ID)
		if err != nil {
			return content.QuizView{}, err
		}
		answers[q.ID] = as
	}
	return content.BuildQuizView(quiz, questions, answers), nil
}
