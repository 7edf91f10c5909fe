// Package scavenge locates the real value of a logical field inside a loosely
// typed source record. The source API has shipped several field names for the
// same thing across plugin versions and sometimes leaks PHP-serialized data
// into text fields; Locate probes known names in order and rejects anything
// that looks serialized.
package scavenge

import (
	"regexp"
	"sort"
	"strings"
)

// Record is one decoded JSON object from the source.
type Record = map[string]any

// Field identifies a logical field to locate.
type Field int

const (
	QuestionText Field = iota
	AnswerText
	Explanation
	Title
	Description
)

func (f Field) String() string {
	switch f {
	case QuestionText:
		return "question_text"
	case AnswerText:
		return "answer_text"
	case Explanation:
		return "explanation"
	case Title:
		return "title"
	case Description:
		return "description"
	default:
		return "unknown"
	}
}

// maxDepth bounds the fallback scan of the whole record.
const maxDepth = 4

// Accessor extracts a candidate value from a record.
type Accessor func(Record) (any, bool)

// Key reads a top-level property.
func Key(name string) Accessor {
	return func(r Record) (any, bool) {
		v, ok := r[name]
		return v, ok
	}
}

// Path reads a nested property through object keys.
func Path(names ...string) Accessor {
	return func(r Record) (any, bool) {
		return Dig(r, names...)
	}
}

// Dig follows names through nested objects.
func Dig(r Record, names ...string) (any, bool) {
	var cur any = r
	for _, n := range names {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[n]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// candidates lists, per field, the accessors in the order they are probed.
var candidates = map[Field][]Accessor{
	QuestionText: {
		Key("question_title"),
		Key("question"),
		Key("title"),
		Path("title", "rendered"),
		Key("question_name"),
		Key("question_text"),
		Key("post_title"),
		Path("content", "rendered"),
	},
	AnswerText: {
		Key("answer_title"),
		Key("answer"),
		Key("answer_text"),
		Key("title"),
		Path("title", "rendered"),
		Key("text"),
		Key("answer_name"),
		Key("post_title"),
		Path("content", "rendered"),
	},
	Explanation: {
		Key("answer_explanation"),
		Key("question_explanation"),
		Key("explanation"),
		Key("question_description"),
		Key("description"),
	},
	Title: {
		Key("post_title"),
		Path("title", "rendered"),
		Key("title"),
		Key("name"),
		Key("topic_title"),
		Key("course_title"),
	},
	Description: {
		Key("post_content"),
		Path("content", "rendered"),
		Key("description"),
		Key("summary"),
		Key("topic_summary"),
	},
}

// debugContainers are nested bags some plugin builds attach with raw fields.
var debugContainers = [][]string{
	{"_debug", "all_fields"},
	{"_debug"},
	{"debug", "all_fields"},
	{"raw"},
}

// scanSkip lists keys the whole-record scan never takes text from.
var scanSkip = map[string]bool{
	"id": true, "ID": true, "slug": true, "post_name": true, "status": true,
	"post_status": true, "type": true, "post_type": true, "date": true,
	"modified": true, "post_date": true, "post_modified": true, "link": true,
	"guid": true, "_links": true, "question_type": true, "is_correct": true,
	"correct": true, "answer_order": true, "question_order": true,
	"question_id": true, "answer_id": true, "quiz_id": true, "topic_id": true,
	"course_id": true, "post_parent": true, "menu_order": true, "question_mark": true,
	"belongs_question_id": true, "belongs_question_type": true, "answer_view_format": true,
}

// Locate returns the first valid string for field in rec. It never invents a
// value: callers supply their own fallback when ok is false.
func Locate(rec Record, field Field) (string, bool) {
	if rec == nil {
		return "", false
	}
	accs := candidates[field]

	if s, ok := probe(rec, accs); ok {
		return s, true
	}
	for _, path := range debugContainers {
		v, ok := Dig(rec, path...)
		if !ok {
			continue
		}
		if bag, ok := v.(map[string]any); ok {
			if s, ok := probe(bag, accs); ok {
				return s, true
			}
		}
	}
	// Only question and answer text fall back to scanning the whole record;
	// the other fields are optional and a scan would pick up unrelated text.
	if field != QuestionText && field != AnswerText {
		return "", false
	}
	return scan(rec, 0)
}

func probe(rec Record, accs []Accessor) (string, bool) {
	for _, acc := range accs {
		v, ok := acc(rec)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && Valid(s) {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

func scan(v any, depth int) (string, bool) {
	if depth > maxDepth {
		return "", false
	}
	switch t := v.(type) {
	case string:
		if Valid(t) {
			return strings.TrimSpace(t), true
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			if !scanSkip[k] {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s, ok := scan(t[k], depth+1); ok {
				return s, true
			}
		}
	case []any:
		for _, item := range t {
			if s, ok := scan(item, depth+1); ok {
				return s, true
			}
		}
	}
	return "", false
}

var (
	serializedPrefix = regexp.MustCompile(`^(a:\d+:\{|s:\d+:|O:\d+:|i:\d+|b:[01]|d:|N;)`)
	serializedToken  = regexp.MustCompile(`[A-Za-z]:\d+:`)
)

// LooksSerialized reports whether s carries a PHP serialize() signature.
func LooksSerialized(s string) bool {
	s = strings.TrimSpace(s)
	if serializedPrefix.MatchString(s) {
		return true
	}
	return len(serializedToken.FindAllStringIndex(s, -1)) > 3
}

// Valid reports whether s is usable text: non-blank and not serialized.
func Valid(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	return !LooksSerialized(s)
}
