package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pai-quiz-import/internal/content"
	"github.com/p-n-ai/pai-quiz-import/internal/normalize"
	"github.com/p-n-ai/pai-quiz-import/internal/reconcile"
	"github.com/p-n-ai/pai-quiz-import/internal/scavenge"
	"github.com/p-n-ai/pai-quiz-import/internal/wordpress"
)

// Fallback hierarchy used when the source exposes quizzes but no courses.
const (
	FallbackCourseSlug  = "imported-quizzes"
	FallbackCourseTitle = "Imported Quizzes"
	FallbackModuleSlug  = "all-quizzes"
	FallbackModuleTitle = "All Quizzes"
)

// Source is the read side of a WordPress / Tutor LMS installation.
type Source interface {
	Ping(ctx context.Context) error
	Courses(ctx context.Context) ([]scavenge.Record, error)
	Topics(ctx context.Context, courseID string) ([]scavenge.Record, error)
	Quizzes(ctx context.Context, scope wordpress.Scope) ([]scavenge.Record, error)
	AllQuizzes(ctx context.Context) ([]scavenge.Record, error)
	Questions(ctx context.Context, quizID string) ([]scavenge.Record, error)
	Answers(ctx context.Context, question scavenge.Record) ([]scavenge.Record, error)
}

// WordPress imports a WordPress / Tutor LMS installation.
type WordPress struct {
	source Source
	engine *reconcile.Engine
	report *Report
}

// NewWordPress creates the HTTP source pipeline.
func NewWordPress(source Source, engine *reconcile.Engine) *WordPress {
	return &WordPress{source: source, engine: engine}
}

// Run imports everything reachable from the source. The returned report is
// non-nil even when err is set.
func (w *WordPress) Run(ctx context.Context) (*Report, error) {
	w.report = NewReport("wordpress", EntityCourse, EntityModule, EntityQuiz, EntityQuestion, EntityAnswer)
	defer w.report.Finish()

	if err := w.source.Ping(ctx); err != nil {
		return w.report, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}

	courses, err := w.source.Courses(ctx)
	if err != nil {
		return w.report, fmt.Errorf("list courses: %w", err)
	}

	if len(courses) == 0 {
		slog.Info("source has no courses, importing quizzes into a fallback course")
		return w.report, w.runFlat(ctx)
	}

	slog.Info("importing courses", "count", len(courses))
	for _, rec := range courses {
		if err := ctx.Err(); err != nil {
			return w.report, err
		}
		w.importCourse(ctx, rec)
	}
	return w.report, nil
}

// runFlat handles installations with a flat quiz list and no hierarchy.
func (w *WordPress) runFlat(ctx context.Context) error {
	quizzes, err := w.source.AllQuizzes(ctx)
	if err != nil {
		return fmt.Errorf("list quizzes: %w", err)
	}
	if len(quizzes) == 0 {
		return ErrNothingToImport
	}

	course, err := w.engine.UpsertCourse(ctx, content.Course{
		Title:  FallbackCourseTitle,
		Slug:   FallbackCourseSlug,
		Status: content.StatusPublished,
	})
	record(w.report, EntityCourse, course, err, "slug", FallbackCourseSlug)
	if err != nil {
		return fmt.Errorf("create fallback course: %w", err)
	}

	module, err := w.engine.UpsertModule(ctx, content.Module{
		CourseID: course.ID,
		Title:    FallbackModuleTitle,
		Slug:     FallbackModuleSlug,
		Order:    1,
	})
	record(w.report, EntityModule, module, err, "slug", FallbackModuleSlug)
	if err != nil {
		return fmt.Errorf("create fallback module: %w", err)
	}

	w.importQuizzes(ctx, module.ID, quizzes)
	return nil
}

func (w *WordPress) importCourse(ctx context.Context, rec scavenge.Record) {
	sourceID := normalize.SourceID(rec, "course_id")
	c := normalize.Course(rec)
	res, err := w.engine.UpsertCourse(ctx, c)
	record(w.report, EntityCourse, res, err, "source_id", sourceID, "title", fragment(c.Title))
	if err != nil {
		return
	}

	topics, err := w.source.Topics(ctx, sourceID)
	if err != nil {
		w.report.Fail(EntityModule)
		slog.Error("list topics failed", "course_source_id", sourceID, "error", err)
		return
	}

	if len(topics) == 0 {
		w.importCourseQuizzes(ctx, res.ID, c, sourceID)
		return
	}

	for i, t := range topics {
		topicID := normalize.SourceID(t, "topic_id")
		m := normalize.Module(t)
		m.CourseID = res.ID
		if m.Order == 0 {
			m.Order = i + 1
		}
		mres, err := w.engine.UpsertModule(ctx, m)
		record(w.report, EntityModule, mres, err, "source_id", topicID, "title", fragment(m.Title))
		if err != nil {
			continue
		}

		quizzes, err := w.source.Quizzes(ctx, wordpress.Scope{TopicID: topicID})
		if err != nil {
			w.report.Fail(EntityQuiz)
			slog.Error("list topic quizzes failed", "topic_source_id", topicID, "error", err)
			continue
		}
		w.importQuizzes(ctx, mres.ID, quizzes)
	}
}

// importCourseQuizzes attaches the quizzes of a topic-less course to a
// per-course catch-all module.
func (w *WordPress) importCourseQuizzes(ctx context.Context, courseID string, c content.Course, sourceID string) {
	quizzes, err := w.source.Quizzes(ctx, wordpress.Scope{CourseID: sourceID})
	if err != nil {
		w.report.Fail(EntityQuiz)
		slog.Error("list course quizzes failed", "course_source_id", sourceID, "error", err)
		return
	}
	if len(quizzes) == 0 {
		return
	}

	m := content.Module{
		CourseID: courseID,
		Title:    c.Title + " (General)",
		Slug:     c.Slug + "-general",
		Order:    1,
	}
	mres, err := w.engine.UpsertModule(ctx, m)
	record(w.report, EntityModule, mres, err, "slug", m.Slug)
	if err != nil {
		return
	}
	w.importQuizzes(ctx, mres.ID, quizzes)
}

func (w *WordPress) importQuizzes(ctx context.Context, moduleID string, recs []scavenge.Record) {
	for _, rec := range recs {
		if ctx.Err() != nil {
			return
		}
		sourceID := normalize.SourceID(rec, "quiz_id")
		q := normalize.Quiz(rec)
		q.ModuleID = &moduleID
		res, err := w.engine.UpsertQuiz(ctx, q)
		record(w.report, EntityQuiz, res, err, "source_id", sourceID, "title", fragment(q.Title))
		if err != nil {
			continue
		}
		// Existing quizzes are descended into so a previously interrupted
		// run gets its missing questions.
		w.importQuestions(ctx, res.ID, sourceID, rec)
	}
}

// embeddedQuestionKeys hold questions inside a quiz payload.
var embeddedQuestionKeys = []string{"questions", "quiz_questions"}

func (w *WordPress) importQuestions(ctx context.Context, quizID, sourceQuizID string, quizRec scavenge.Record) {
	var recs []scavenge.Record
	for _, k := range embeddedQuestionKeys {
		if children, ok := wordpress.Children(quizRec[k]); ok && len(children) > 0 {
			recs = children
			break
		}
	}
	if recs == nil && sourceQuizID != "" {
		var err error
		recs, err = w.source.Questions(ctx, sourceQuizID)
		if err != nil {
			w.report.Fail(EntityQuestion)
			slog.Error("list questions failed", "quiz_source_id", sourceQuizID, "error", err)
			return
		}
	}
	if len(recs) == 0 {
		slog.Info("quiz has no questions", "quiz_source_id", sourceQuizID)
		return
	}

	imported := make(map[string]bool, len(recs))
	for i, rec := range recs {
		sourceID := normalize.SourceID(rec, "question_id")
		if _, ok := scavenge.Locate(rec, scavenge.QuestionText); !ok {
			slog.Warn("question text not found, using placeholder", "source_id", sourceID, "quiz_source_id", sourceQuizID)
		}
		q := normalize.Question(rec)
		q.QuizID = quizID
		if q.Order == 0 {
			q.Order = i + 1
		}
		res, err := w.engine.UpsertQuestion(ctx, q)
		if err == nil && imported[res.ID] {
			res = reconcile.Result{Outcome: reconcile.Skipped, ID: res.ID}
			err = fmt.Errorf("question %s: %w", sourceID, ErrDuplicateQuestion)
		}
		record(w.report, EntityQuestion, res, err, "source_id", sourceID, "text", fragment(q.Text))
		if err != nil {
			continue
		}
		imported[res.ID] = true
		w.importAnswers(ctx, res.ID, sourceID, rec)
	}
}

func (w *WordPress) importAnswers(ctx context.Context, questionID, sourceQuestionID string, questionRec scavenge.Record) {
	recs, err := w.source.Answers(ctx, questionRec)
	if err != nil {
		w.report.Fail(EntityAnswer)
		slog.Error("list answers failed", "question_source_id", sourceQuestionID, "error", err)
		return
	}

	for i, rec := range recs {
		sourceID := normalize.SourceID(rec, "answer_id")
		if _, ok := scavenge.Locate(rec, scavenge.AnswerText); !ok {
			slog.Warn("answer text not found, using placeholder", "source_id", sourceID, "question_source_id", sourceQuestionID)
		}
		a := normalize.Answer(rec)
		a.QuestionID = questionID
		if a.Order == 0 {
			a.Order = i + 1
		}
		res, err := w.engine.UpsertAnswer(ctx, a)
		record(w.report, EntityAnswer, res, err, "source_id", sourceID, "text", fragment(a.Text))
	}
}
