package normalize

import (
	"encoding/json"
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/p-n-ai/pai-quiz-import/internal/scavenge"
)

// first returns the first present, non-nil value among keys in the given records.
func first(keys []string, recs ...scavenge.Record) (any, bool) {
	for _, r := range recs {
		if r == nil {
			continue
		}
		for _, k := range keys {
			if v, ok := r[k]; ok && v != nil {
				if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
					continue
				}
				return v, true
			}
		}
	}
	return nil, false
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// asFlag is the lenient boolean used for settings such as randomization.
func asFlag(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "yes", "true", "on", "rand", "random":
			return true
		}
	case nil:
		return false
	default:
		if f, ok := asFloat(t); ok {
			return f != 0
		}
	}
	return false
}

// correctAliases are the field names the source has used for the
// correctness flag of an answer.
var correctAliases = []string{"is_correct", "correct", "is_correct_answer", "answer_is_correct", "isCorrect"}

// IsCorrect coerces the correctness flag of a raw answer. Boolean true, the
// number 1 and the string "yes" count as correct under any alias; everything
// else, including an absent field and the string "1", is false.
func IsCorrect(rec scavenge.Record) bool {
	for _, k := range correctAliases {
		v, ok := rec[k]
		if !ok {
			continue
		}
		if correctValue(v) {
			return true
		}
	}
	return false
}

func correctValue(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t == 1
	case int:
		return t == 1
	case int64:
		return t == 1
	case json.Number:
		return t.String() == "1"
	case string:
		return t == "yes"
	}
	return false
}

var (
	tagPattern   = regexp.MustCompile(`</?[A-Za-z!][^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// CleanText strips markup, unescapes entities and collapses whitespace. It is
// for plain-text fields such as titles and excerpts.
// A bare "<" that does not open a tag (x < 2) is kept.
func CleanText(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
