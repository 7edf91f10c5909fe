// Package reconcile decides, per canonical entity, whether the destination
// already holds it and creates, updates or skips accordingly.
//
// Courses and modules follow update-if-changed. Quizzes, questions and
// answers are never rewritten once present, except for a quiz's module
// placement which follows Policy.QuizPlacement. A child whose parent is
// missing is skipped with ErrParentNotFound and no row is written.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/p-n-ai/pai-quiz-import/internal/content"
	"github.com/p-n-ai/pai-quiz-import/internal/store"
)

// ErrParentNotFound is returned with a Skipped result when a child
// references a parent absent from the destination.
var ErrParentNotFound = errors.New("parent not found")

// Outcome is the decision taken for one entity.
type Outcome int

const (
	Created Outcome = iota
	Updated
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return "skipped"
	}
}

// Result is the outcome and destination ID of one upsert. ID is empty when
// the entity was skipped for a missing parent.
type Result struct {
	Outcome Outcome
	ID      string
}

// Placement is the policy for an existing quiz whose module differs.
type Placement string

const (
	// PlacementUpdate moves the quiz to the module it was found under.
	PlacementUpdate Placement = "update"
	// PlacementKeep leaves the quiz where it is.
	PlacementKeep Placement = "keep"
)

// Policy configures reconciliation.
type Policy struct {
	QuizPlacement Placement
}

// Engine reconciles entities against a store. It is safe for concurrent
// use; check-then-write is serialized per natural key.
type Engine struct {
	store  store.Store
	policy Policy
	locks  *keyedMutex
}

// New creates an engine. An empty placement policy means update.
func New(s store.Store, p Policy) *Engine {
	if p.QuizPlacement == "" {
		p.QuizPlacement = PlacementUpdate
	}
	return &Engine{store: s, policy: p, locks: newKeyedMutex()}
}

func skippedParent(what, key, parent, parentID string) (Result, error) {
	return Result{Outcome: Skipped}, fmt.Errorf("%s %q: %s %s: %w", what, key, parent, parentID, ErrParentNotFound)
}

// UpsertCourse reconciles a course by slug.
func (e *Engine) UpsertCourse(ctx context.Context, c content.Course) (Result, error) {
	unlock := e.locks.lock("course:" + c.Slug)
	defer unlock()

	existing, err := e.store.CourseBySlug(ctx, c.Slug)
	if errors.Is(err, store.ErrNotFound) {
		if err := e.store.CreateCourse(ctx, &c); err != nil {
			return e.afterConflict(ctx, err, func() (string, error) {
				found, err := e.store.CourseBySlug(ctx, c.Slug)
				return found.ID, err
			})
		}
		return Result{Outcome: Created, ID: c.ID}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("find course %q: %w", c.Slug, err)
	}

	if existing.Title == c.Title && existing.Description == c.Description {
		return Result{Outcome: Skipped, ID: existing.ID}, nil
	}
	existing.Title = c.Title
	existing.Description = c.Description
	if err := e.store.UpdateCourse(ctx, existing); err != nil {
		return Result{}, err
	}
	return Result{Outcome: Updated, ID: existing.ID}, nil
}

// UpsertModule reconciles a module by (course, slug).
func (e *Engine) UpsertModule(ctx context.Context, m content.Module) (Result, error) {
	unlock := e.locks.lock("module:" + m.CourseID + ":" + m.Slug)
	defer unlock()

	if _, err := e.store.CourseByID(ctx, m.CourseID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return skippedParent("module", m.Slug, "course", m.CourseID)
		}
		return Result{}, fmt.Errorf("find course %s: %w", m.CourseID, err)
	}

	existing, err := e.store.ModuleBySlug(ctx, m.CourseID, m.Slug)
	if errors.Is(err, store.ErrNotFound) {
		if err := e.store.CreateModule(ctx, &m); err != nil {
			return e.afterConflict(ctx, err, func() (string, error) {
				found, err := e.store.ModuleBySlug(ctx, m.CourseID, m.Slug)
				return found.ID, err
			})
		}
		return Result{Outcome: Created, ID: m.ID}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("find module %q: %w", m.Slug, err)
	}

	if existing.Title == m.Title && existing.Description == m.Description && existing.Order == m.Order {
		return Result{Outcome: Skipped, ID: existing.ID}, nil
	}
	existing.Title = m.Title
	existing.Description = m.Description
	existing.Order = m.Order
	if err := e.store.UpdateModule(ctx, existing); err != nil {
		return Result{}, err
	}
	return Result{Outcome: Updated, ID: existing.ID}, nil
}

// UpsertQuiz reconciles a quiz by slug. Only the module placement of an
// existing quiz is ever changed.
func (e *Engine) UpsertQuiz(ctx context.Context, q content.Quiz) (Result, error) {
	unlock := e.locks.lock("quiz:" + q.Slug)
	defer unlock()

	if q.ModuleID != nil {
		if _, err := e.store.ModuleByID(ctx, *q.ModuleID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return skippedParent("quiz", q.Slug, "module", *q.ModuleID)
			}
			return Result{}, fmt.Errorf("find module %s: %w", *q.ModuleID, err)
		}
	}

	existing, err := e.store.QuizBySlug(ctx, q.Slug)
	if errors.Is(err, store.ErrNotFound) {
		if err := e.store.CreateQuiz(ctx, &q); err != nil {
			return e.afterConflict(ctx, err, func() (string, error) {
				found, err := e.store.QuizBySlug(ctx, q.Slug)
				return found.ID, err
			})
		}
		return Result{Outcome: Created, ID: q.ID}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("find quiz %q: %w", q.Slug, err)
	}

	if e.policy.QuizPlacement == PlacementUpdate && q.ModuleID != nil &&
		(existing.ModuleID == nil || *existing.ModuleID != *q.ModuleID) {
		if err := e.store.SetQuizModule(ctx, existing.ID, q.ModuleID); err != nil {
			return Result{}, err
		}
		return Result{Outcome: Updated, ID: existing.ID}, nil
	}
	return Result{Outcome: Skipped, ID: existing.ID}, nil
}

// UpsertQuestion reconciles a question by (quiz, text).
func (e *Engine) UpsertQuestion(ctx context.Context, q content.Question) (Result, error) {
	unlock := e.locks.lock("question:" + q.QuizID + ":" + q.Text)
	defer unlock()

	if _, err := e.store.QuizByID(ctx, q.QuizID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return skippedParent("question", truncate(q.Text), "quiz", q.QuizID)
		}
		return Result{}, fmt.Errorf("find quiz %s: %w", q.QuizID, err)
	}

	existing, err := e.store.QuestionByText(ctx, q.QuizID, q.Text)
	if err == nil {
		return Result{Outcome: Skipped, ID: existing.ID}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return Result{}, fmt.Errorf("find question: %w", err)
	}
	if err := e.store.CreateQuestion(ctx, &q); err != nil {
		return Result{}, err
	}
	return Result{Outcome: Created, ID: q.ID}, nil
}

// UpsertAnswer reconciles an answer by (question, text).
func (e *Engine) UpsertAnswer(ctx context.Context, a content.Answer) (Result, error) {
	unlock := e.locks.lock("answer:" + a.QuestionID + ":" + a.Text)
	defer unlock()

	if _, err := e.store.QuestionByID(ctx, a.QuestionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return skippedParent("answer", truncate(a.Text), "question", a.QuestionID)
		}
		return Result{}, fmt.Errorf("find question %s: %w", a.QuestionID, err)
	}

	existing, err := e.store.AnswerByText(ctx, a.QuestionID, a.Text)
	if err == nil {
		return Result{Outcome: Skipped, ID: existing.ID}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return Result{}, fmt.Errorf("find answer: %w", err)
	}
	if err := e.store.CreateAnswer(ctx, &a); err != nil {
		return Result{}, err
	}
	return Result{Outcome: Created, ID: a.ID}, nil
}

// UpsertUser reconciles a user by email. Existing users are never changed.
func (e *Engine) UpsertUser(ctx context.Context, u content.User) (Result, error) {
	unlock := e.locks.lock("user:" + u.Email)
	defer unlock()

	existing, err := e.store.UserByEmail(ctx, u.Email)
	if err == nil {
		return Result{Outcome: Skipped, ID: existing.ID}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return Result{}, fmt.Errorf("find user: %w", err)
	}
	if err := e.store.CreateUser(ctx, &u); err != nil {
		return e.afterConflict(ctx, err, func() (string, error) {
			found, err := e.store.UserByEmail(ctx, u.Email)
			return found.ID, err
		})
	}
	return Result{Outcome: Created, ID: u.ID}, nil
}

// UpsertAttempt reconciles an attempt by (user, quiz, start time).
func (e *Engine) UpsertAttempt(ctx context.Context, a content.Attempt) (Result, error) {
	key := fmt.Sprintf("attempt:%s:%s:%d", a.UserID, a.QuizID, a.StartedAt.UnixMilli())
	unlock := e.locks.lock(key)
	defer unlock()

	if _, err := e.store.UserByID(ctx, a.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return skippedParent("attempt", a.QuizID, "user", a.UserID)
		}
		return Result{}, fmt.Errorf("find user %s: %w", a.UserID, err)
	}
	if _, err := e.store.QuizByID(ctx, a.QuizID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return skippedParent("attempt", a.UserID, "quiz", a.QuizID)
		}
		return Result{}, fmt.Errorf("find quiz %s: %w", a.QuizID, err)
	}

	existing, err := e.store.AttemptByKey(ctx, a.UserID, a.QuizID, a.StartedAt)
	if err == nil {
		return Result{Outcome: Skipped, ID: existing.ID}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return Result{}, fmt.Errorf("find attempt: %w", err)
	}
	if err := e.store.CreateAttempt(ctx, &a); err != nil {
		return Result{}, err
	}
	return Result{Outcome: Created, ID: a.ID}, nil
}

// afterConflict turns a unique violation raised by a writer outside this
// engine into a skip of the row that won.
func (e *Engine) afterConflict(ctx context.Context, err error, refetch func() (string, error)) (Result, error) {
	if !errors.Is(err, store.ErrConflict) {
		return Result{}, err
	}
	id, ferr := refetch()
	if ferr != nil {
		return Result{}, fmt.Errorf("%w (refetch: %v)", err, ferr)
	}
	return Result{Outcome: Skipped, ID: id}, nil
}

func truncate(s string) string {
	const maxRunes = 40
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes]) + "…"
}
