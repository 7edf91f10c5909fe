// Package normalize maps raw source records (Tutor LMS posts, WordPress REST
// objects, plugin-specific shapes) onto the canonical content entities.
// Normalization never fails: every output field has a defined default.
package normalize

import (
	"fmt"
	"math"
	"strings"

	"github.com/p-n-ai/pai-quiz-import/internal/content"
	"github.com/p-n-ai/pai-quiz-import/internal/scavenge"
)

// SourceID returns the source identifier of rec, probing the given keys
// before the generic ID/id.
func SourceID(rec scavenge.Record, keys ...string) string {
	v, ok := first(append(keys, "ID", "id"), rec)
	if !ok {
		return ""
	}
	return asString(v)
}

func slugFor(rec scavenge.Record, prefix, id, title string) string {
	if v, ok := first([]string{"post_name", "slug"}, rec); ok {
		if s := sourceSlug(asString(v)); s != "" {
			return s
		}
	}
	if id != "" {
		return prefix + "-" + id
	}
	if s := Slugify(title); s != "" {
		return prefix + "-" + s
	}
	return prefix
}

// text returns the located value of field. Titles are flattened to plain
// text; bodies keep their markup since the UI renders them as rich text.
// A body with no text and no image counts as empty.
func text(rec scavenge.Record, field scavenge.Field) string {
	s, ok := scavenge.Locate(rec, field)
	if !ok {
		return ""
	}
	if field == scavenge.Title {
		return CleanText(s)
	}
	if CleanText(s) == "" && !strings.Contains(strings.ToLower(s), "<img") {
		return ""
	}
	return strings.TrimSpace(s)
}

func titleOr(rec scavenge.Record, fallback string) string {
	if t := text(rec, scavenge.Title); t != "" {
		return t
	}
	return fallback
}

// Course normalizes a course record.
func Course(rec scavenge.Record) content.Course {
	id := SourceID(rec)
	title := titleOr(rec, fmt.Sprintf("Course %s", id))

	status := content.StatusDraft
	if v, ok := first([]string{"post_status", "status"}, rec); ok && strings.EqualFold(asString(v), "publish") {
		status = content.StatusPublished
	}

	return content.Course{
		Title:       title,
		Slug:        slugFor(rec, "course", id, title),
		Description: text(rec, scavenge.Description),
		Status:      status,
	}
}

// Module normalizes a topic record. Order is 0 when the source carries none;
// the importer assigns one.
func Module(rec scavenge.Record) content.Module {
	id := SourceID(rec, "topic_id")
	title := titleOr(rec, fmt.Sprintf("Module %s", id))

	order := 0
	if v, ok := first([]string{"menu_order", "topic_order", "order"}, rec); ok {
		if n, ok := asInt(v); ok && n > 0 {
			order = n
		}
	}

	return content.Module{
		Title:       title,
		Slug:        slugFor(rec, "topic", id, title),
		Description: text(rec, scavenge.Description),
		Order:       order,
	}
}

// settingsKeys are the containers quiz settings have been nested under.
var settingsKeys = []string{"quiz_option", "quiz_options", "quiz_settings", "settings", "_tutor_quiz_option", "meta"}

func quizSettings(rec scavenge.Record) scavenge.Record {
	for _, k := range settingsKeys {
		if m, ok := rec[k].(map[string]any); ok {
			return m
		}
	}
	return nil
}

// Quiz normalizes a quiz record, flattening its settings sub-object.
func Quiz(rec scavenge.Record) content.Quiz {
	id := SourceID(rec, "quiz_id")
	title := titleOr(rec, fmt.Sprintf("Quiz %s", id))
	settings := quizSettings(rec)

	q := content.Quiz{
		Title:        title,
		Slug:         slugFor(rec, "quiz", id, title),
		Description:  text(rec, scavenge.Description),
		Duration:     quizDuration(rec, settings),
		PassingGrade: content.DefaultPassingGrade,
	}

	if v, ok := first([]string{"post_excerpt", "excerpt"}, rec); ok {
		q.Excerpt = CleanText(asString(v))
	} else if v, ok := scavenge.Dig(rec, "excerpt", "rendered"); ok {
		q.Excerpt = CleanText(asString(v))
	}

	if v, ok := first([]string{"passing_grade", "pass_mark", "passing_score"}, settings, rec); ok {
		if n, ok := asInt(v); ok {
			q.PassingGrade = min(max(n, 0), 100)
		}
	}

	if v, ok := first([]string{"question_order"}, settings); ok && asFlag(v) {
		q.RandomizeOrder = true
	} else if v, ok := first([]string{"randomize", "randomize_order", "randomize_question", "random_questions"}, settings, rec); ok {
		q.RandomizeOrder = asFlag(v)
	}

	if v, ok := first([]string{"max_questions_for_answer", "max_questions", "max_questions_allowed"}, settings, rec); ok {
		if n, ok := asInt(v); ok && n > 0 {
			q.MaxQuestions = content.IntPtr(n)
		}
	}

	if v, ok := first([]string{"difficulty", "quiz_difficulty", "difficulty_level"}, settings, rec); ok {
		q.Difficulty = Difficulty(asString(v))
	}

	q.FeaturedImageURL = featuredImage(rec)
	return q
}

func quizDuration(rec, settings scavenge.Record) *int {
	if tl, ok := first([]string{"time_limit"}, settings, rec); ok {
		if m, isMap := tl.(map[string]any); isMap {
			unit, _ := first([]string{"time_type", "time_unit", "unit"}, m)
			v, _ := first([]string{"time_value", "value"}, m)
			return DurationMinutes(v, asString(unit))
		}
		unit, _ := first([]string{"time_type", "time_unit"}, settings, rec)
		return DurationMinutes(tl, asString(unit))
	}
	if v, ok := first([]string{"time_value"}, settings, rec); ok {
		unit, _ := first([]string{"time_type", "time_unit"}, settings, rec)
		return DurationMinutes(v, asString(unit))
	}
	if v, ok := first([]string{"duration"}, rec, settings); ok {
		unit, _ := first([]string{"duration_unit"}, rec, settings)
		return DurationMinutes(v, asString(unit))
	}
	return nil
}

// DurationMinutes converts a time limit to whole minutes, rounding up.
// A zero, negative or unparsable value means untimed and yields nil.
// An empty or unknown unit is read as minutes.
func DurationMinutes(value any, unit string) *int {
	v, ok := asFloat(value)
	if !ok || v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}

	var minutes float64
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(unit)), "s") {
	case "second", "sec":
		minutes = v / 60
	case "hour", "hr":
		minutes = v * 60
	case "day":
		minutes = v * 60 * 24
	case "week":
		minutes = v * 60 * 24 * 7
	default:
		minutes = v
	}
	return content.IntPtr(int(math.Ceil(minutes)))
}

// Difficulty maps a source difficulty label onto the canonical set.
// Unknown or empty labels are DifficultyUnset, never a default level.
func Difficulty(s string) content.Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy", "beginner", "facile", "debutant", "débutant":
		return content.DifficultyEasy
	case "medium", "intermediate", "moyen", "intermediaire", "intermédiaire":
		return content.DifficultyMedium
	case "hard", "advanced", "expert", "difficile", "avance", "avancé":
		return content.DifficultyHard
	}
	return content.DifficultyUnset
}

func featuredImage(rec scavenge.Record) string {
	if v, ok := first([]string{"featured_image_url", "featured_image", "thumbnail_url", "thumbnail"}, rec); ok {
		if s, isStr := v.(string); isStr && strings.HasPrefix(s, "http") {
			return s
		}
	}
	media, ok := scavenge.Dig(rec, "_embedded", "wp:featuredmedia")
	if !ok {
		return ""
	}
	if list, ok := media.([]any); ok && len(list) > 0 {
		if m, ok := list[0].(map[string]any); ok {
			if s, ok := m["source_url"].(string); ok {
				return s
			}
		}
	}
	return ""
}

// Question normalizes a question record. Text falls back to a visible
// "Question {id}" placeholder when scavenging fails.
func Question(rec scavenge.Record) content.Question {
	id := SourceID(rec, "question_id")
	q := content.Question{
		Text:        text(rec, scavenge.QuestionText),
		Type:        content.MultipleChoice,
		Points:      1,
		Explanation: text(rec, scavenge.Explanation),
	}
	if q.Text == "" {
		q.Text = fmt.Sprintf("Question %s", id)
	}

	if v, ok := first([]string{"question_type", "type"}, rec); ok && strings.EqualFold(asString(v), "true_false") {
		q.Type = content.TrueFalse
	}

	if v, ok := first([]string{"question_mark", "points", "mark", "question_point"}, rec); ok {
		if f, ok := asFloat(v); ok && f >= 1 {
			q.Points = int(math.Ceil(f))
		}
	}

	if v, ok := first([]string{"time_limit", "question_time_limit"}, rec); ok {
		if n, ok := asInt(v); ok && n > 0 {
			q.TimeLimit = content.IntPtr(n)
		}
	}

	if v, ok := first([]string{"question_order", "order", "menu_order"}, rec); ok {
		if n, ok := asInt(v); ok && n > 0 {
			q.Order = n
		}
	}
	return q
}

// Answer normalizes an answer record.
func Answer(rec scavenge.Record) content.Answer {
	id := SourceID(rec, "answer_id")
	a := content.Answer{
		Text:        text(rec, scavenge.AnswerText),
		IsCorrect:   IsCorrect(rec),
		Explanation: text(rec, scavenge.Explanation),
	}
	if a.Text == "" {
		a.Text = fmt.Sprintf("Answer %s", id)
	}
	if v, ok := first([]string{"answer_order", "order"}, rec); ok {
		if n, ok := asInt(v); ok && n > 0 {
			a.Order = n
		}
	}
	return a
}
