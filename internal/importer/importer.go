// Package importer drives the content tree through the reconciliation engine
// top-down (courses, modules, quizzes, questions, answers) and tallies every
// outcome in a Report. A failing leaf is logged and counted; only structural
// failures end a run early.
package importer

import (
	"errors"
	"log/slog"

	"github.com/p-n-ai/pai-quiz-import/internal/reconcile"
)

var (
	// ErrSourceUnreachable is returned when the source cannot be contacted.
	ErrSourceUnreachable = errors.New("source unreachable")
	// ErrNothingToImport is returned when the source has neither courses nor quizzes.
	ErrNothingToImport = errors.New("source has no courses and no quizzes")
	// ErrDuplicateQuestion marks a source question that resolved to a question
	// already imported into the same quiz during this run. Its answers are
	// not imported.
	ErrDuplicateQuestion = errors.New("duplicate question text in quiz")
)

// record tallies res and logs it at a level matching the outcome.
func record(r *Report, entity string, res reconcile.Result, err error, attrs ...any) {
	r.Record(entity, res, err)
	attrs = append([]any{"entity", entity}, attrs...)
	switch {
	case err != nil && errParent(err):
		slog.Warn("skipped, parent missing", append(attrs, "error", err)...)
	case errors.Is(err, ErrDuplicateQuestion):
		slog.Warn("skipped, duplicate question", append(attrs, "error", err)...)
	case err != nil:
		slog.Error("import failed", append(attrs, "error", err)...)
	case res.Outcome == reconcile.Skipped:
		slog.Debug("already present", append(attrs, "id", res.ID)...)
	default:
		slog.Info(res.Outcome.String(), append(attrs, "id", res.ID)...)
	}
}

func fragment(s string) string {
	const maxRunes = 40
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes]) + "…"
}
