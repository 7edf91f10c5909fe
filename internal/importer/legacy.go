package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/p-n-ai/pai-quiz-import/internal/legacy"
	"github.com/p-n-ai/pai-quiz-import/internal/normalize"
	"github.com/p-n-ai/pai-quiz-import/internal/reconcile"
)

// LegacySource is the read side of the pre-migration database.
type LegacySource interface {
	Courses(ctx context.Context) ([]legacy.Course, error)
	Modules(ctx context.Context) ([]legacy.Module, error)
	Quizzes(ctx context.Context) ([]legacy.Quiz, error)
	Questions(ctx context.Context) ([]legacy.Question, error)
	Answers(ctx context.Context) ([]legacy.Answer, error)
	Users(ctx context.Context) ([]legacy.User, error)
	Attempts(ctx context.Context) ([]legacy.Attempt, error)
}

// Legacy copies a legacy database into the destination, mapping legacy IDs
// to destination IDs as parents are reconciled.
type Legacy struct {
	source     LegacySource
	engine     *reconcile.Engine
	batchSize  int
	batchPause time.Duration
	processed  int
	report     *Report
}

// LegacyOption configures a Legacy pipeline.
type LegacyOption func(*Legacy)

// WithThrottle pauses for pause after every size records.
func WithThrottle(size int, pause time.Duration) LegacyOption {
	return func(l *Legacy) {
		l.batchSize = size
		l.batchPause = pause
	}
}

// NewLegacy creates the SQLite migration pipeline.
func NewLegacy(source LegacySource, engine *reconcile.Engine, opts ...LegacyOption) *Legacy {
	l := &Legacy{source: source, engine: engine}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run migrates every table. Read failures are structural and end the run;
// per-row failures are counted.
func (l *Legacy) Run(ctx context.Context) (*Report, error) {
	l.report = NewReport("legacy-sqlite",
		EntityCourse, EntityModule, EntityQuiz, EntityQuestion, EntityAnswer, EntityUser, EntityAttempt)
	l.processed = 0
	defer l.report.Finish()

	courses, err := l.source.Courses(ctx)
	if err != nil {
		return l.report, fmt.Errorf("read courses: %w", err)
	}
	courseIDs := make(map[string]string, len(courses))
	for _, c := range courses {
		if c.Slug == "" {
			c.Slug = fallbackSlug("course", c.LegacyID, c.Title)
		}
		res, err := l.engine.UpsertCourse(ctx, c.Course)
		record(l.report, EntityCourse, res, err, "legacy_id", c.LegacyID, "title", fragment(c.Title))
		if err == nil {
			courseIDs[c.LegacyID] = res.ID
		}
		if err := l.throttle(ctx); err != nil {
			return l.report, err
		}
	}

	modules, err := l.source.Modules(ctx)
	if err != nil {
		return l.report, fmt.Errorf("read modules: %w", err)
	}
	moduleIDs := make(map[string]string, len(modules))
	for _, m := range modules {
		if m.Slug == "" {
			m.Slug = fallbackSlug("module", m.LegacyID, m.Title)
		}
		m.CourseID = courseIDs[m.CourseLegacyID]
		res, err := l.upsertChild(EntityModule, m.LegacyID, "course", m.CourseLegacyID, m.CourseID, func() (reconcile.Result, error) {
			return l.engine.UpsertModule(ctx, m.Module)
		})
		if err == nil {
			moduleIDs[m.LegacyID] = res.ID
		}
		if err := l.throttle(ctx); err != nil {
			return l.report, err
		}
	}

	quizzes, err := l.source.Quizzes(ctx)
	if err != nil {
		return l.report, fmt.Errorf("read quizzes: %w", err)
	}
	quizIDs := make(map[string]string, len(quizzes))
	for _, q := range quizzes {
		if q.Slug == "" {
			q.Slug = fallbackSlug("quiz", q.LegacyID, q.Title)
		}
		var res reconcile.Result
		var err error
		if q.ModuleLegacyID == "" {
			q.ModuleID = nil
			res, err = l.engine.UpsertQuiz(ctx, q.Quiz)
			record(l.report, EntityQuiz, res, err, "legacy_id", q.LegacyID, "title", fragment(q.Title))
		} else {
			moduleID := moduleIDs[q.ModuleLegacyID]
			q.ModuleID = &moduleID
			res, err = l.upsertChild(EntityQuiz, q.LegacyID, "module", q.ModuleLegacyID, moduleID, func() (reconcile.Result, error) {
				return l.engine.UpsertQuiz(ctx, q.Quiz)
			})
		}
		if err == nil {
			quizIDs[q.LegacyID] = res.ID
		}
		if err := l.throttle(ctx); err != nil {
			return l.report, err
		}
	}

	questions, err := l.source.Questions(ctx)
	if err != nil {
		return l.report, fmt.Errorf("read questions: %w", err)
	}
	questionIDs := make(map[string]string, len(questions))
	imported := make(map[string]bool, len(questions))
	duplicates := make(map[string]bool)
	for _, q := range questions {
		q.QuizID = quizIDs[q.QuizLegacyID]
		res, err := l.upsertChild(EntityQuestion, q.LegacyID, "quiz", q.QuizLegacyID, q.QuizID, func() (reconcile.Result, error) {
			res, err := l.engine.UpsertQuestion(ctx, q.Question)
			if err == nil && imported[res.ID] {
				return reconcile.Result{Outcome: reconcile.Skipped, ID: res.ID}, fmt.Errorf("question %s: %w", q.LegacyID, ErrDuplicateQuestion)
			}
			return res, err
		})
		switch {
		case err == nil:
			questionIDs[q.LegacyID] = res.ID
			imported[res.ID] = true
		case errors.Is(err, ErrDuplicateQuestion):
			duplicates[q.LegacyID] = true
		}
		if err := l.throttle(ctx); err != nil {
			return l.report, err
		}
	}

	answers, err := l.source.Answers(ctx)
	if err != nil {
		return l.report, fmt.Errorf("read answers: %w", err)
	}
	for _, a := range answers {
		if duplicates[a.QuestionLegacyID] {
			err := fmt.Errorf("answer %s: question %s: %w", a.LegacyID, a.QuestionLegacyID, ErrDuplicateQuestion)
			record(l.report, EntityAnswer, reconcile.Result{Outcome: reconcile.Skipped}, err, "legacy_id", a.LegacyID)
		} else {
			a.QuestionID = questionIDs[a.QuestionLegacyID]
			_, _ = l.upsertChild(EntityAnswer, a.LegacyID, "question", a.QuestionLegacyID, a.QuestionID, func() (reconcile.Result, error) {
				return l.engine.UpsertAnswer(ctx, a.Answer)
			})
		}
		if err := l.throttle(ctx); err != nil {
			return l.report, err
		}
	}

	users, err := l.source.Users(ctx)
	if err != nil {
		return l.report, fmt.Errorf("read users: %w", err)
	}
	userIDs := make(map[string]string, len(users))
	for _, u := range users {
		if u.Email == "" {
			record(l.report, EntityUser, reconcile.Result{Outcome: reconcile.Skipped}, fmt.Errorf("user %s has no email", u.LegacyID), "legacy_id", u.LegacyID)
			continue
		}
		if u.PasswordHash != "" {
			if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
				slog.Warn("dropping non-bcrypt password, user must reset it", "legacy_id", u.LegacyID)
				u.PasswordHash = ""
			}
		}
		res, err := l.engine.UpsertUser(ctx, u.User)
		record(l.report, EntityUser, res, err, "legacy_id", u.LegacyID)
		if err == nil {
			userIDs[u.LegacyID] = res.ID
		}
		if err := l.throttle(ctx); err != nil {
			return l.report, err
		}
	}

	attempts, err := l.source.Attempts(ctx)
	if err != nil {
		return l.report, fmt.Errorf("read attempts: %w", err)
	}
	for _, a := range attempts {
		a.UserID = userIDs[a.UserLegacyID]
		a.QuizID = quizIDs[a.QuizLegacyID]
		var res reconcile.Result
		var err error
		switch {
		case a.UserID == "":
			res, err = reconcile.Result{Outcome: reconcile.Skipped}, fmt.Errorf("attempt %s: user %s: %w", a.LegacyID, a.UserLegacyID, reconcile.ErrParentNotFound)
		case a.QuizID == "":
			res, err = reconcile.Result{Outcome: reconcile.Skipped}, fmt.Errorf("attempt %s: quiz %s: %w", a.LegacyID, a.QuizLegacyID, reconcile.ErrParentNotFound)
		default:
			res, err = l.engine.UpsertAttempt(ctx, a.Attempt)
		}
		record(l.report, EntityAttempt, res, err, "legacy_id", a.LegacyID)
		if err := l.throttle(ctx); err != nil {
			return l.report, err
		}
	}

	return l.report, nil
}

// upsertChild skips a row whose legacy parent was not migrated, then runs
// upsert and records the outcome.
func (l *Legacy) upsertChild(entity, legacyID, parent, parentLegacyID, parentID string, upsert func() (reconcile.Result, error)) (reconcile.Result, error) {
	var (
		res reconcile.Result
		err error
	)
	if parentID == "" {
		res = reconcile.Result{Outcome: reconcile.Skipped}
		err = fmt.Errorf("%s %s: %s %s: %w", entity, legacyID, parent, parentLegacyID, reconcile.ErrParentNotFound)
	} else {
		res, err = upsert()
	}
	record(l.report, entity, res, err, "legacy_id", legacyID)
	return res, err
}

// throttle pauses after every batchSize records to spare the destination.
func (l *Legacy) throttle(ctx context.Context) error {
	l.processed++
	if l.batchSize <= 0 || l.batchPause <= 0 || l.processed%l.batchSize != 0 {
		return nil
	}
	t := time.NewTimer(l.batchPause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// fallbackSlug derives a slug for a row that has none. The legacy ID keeps
// rows that share a title apart.
func fallbackSlug(prefix, legacyID, title string) string {
	base := normalize.Slugify(title)
	if base == "" {
		base = prefix
	}
	if id := normalize.Slugify(legacyID); id != "" {
		return base + "-" + id
	}
	return base
}
