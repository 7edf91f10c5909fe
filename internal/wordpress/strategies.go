package wordpress

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed strategies.yaml
var defaultStrategiesYAML []byte

//go:embed strategies.schema.json
var strategiesSchema string

// ErrNoStrategies is returned when an entity has no configured strategies.
var ErrNoStrategies = errors.New("no endpoint strategies configured")

// Entity keys in the strategy table.
const (
	EntityCourses         = "courses"
	EntityTopics          = "topics"
	EntityQuizzesByTopic  = "quizzes_by_topic"
	EntityQuizzesByCourse = "quizzes_by_course"
	EntityQuizzes         = "quizzes"
	EntityQuestions       = "questions"
	EntityAnswers         = "answers"
)

// Strategy is one way of fetching an entity collection from the source.
type Strategy struct {
	Name  string            `yaml:"name"`
	Path  string            `yaml:"path"`
	Query map[string]string `yaml:"query"`
	// Embed names the key holding the children when the response is the
	// parent object rather than a collection.
	Embed string `yaml:"embed"`
	// Slow strategies get the longer per-call timeout.
	Slow bool `yaml:"slow"`
}

// Strategies maps an entity key to its ordered strategy list.
type Strategies map[string][]Strategy

type strategiesDoc struct {
	Version  int        `yaml:"version"`
	Entities Strategies `yaml:"entities"`
}

// DefaultStrategies returns the built-in strategy table.
func DefaultStrategies() Strategies {
	s, err := ParseStrategies(defaultStrategiesYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in strategies are invalid: %v", err))
	}
	return s
}

// LoadStrategies reads a strategy table from a YAML file.
func LoadStrategies(path string) (Strategies, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategies %s: %w", path, err)
	}
	s, err := ParseStrategies(data)
	if err != nil {
		return nil, fmt.Errorf("strategies %s: %w", path, err)
	}
	return s, nil
}

// ParseStrategies validates a YAML strategy document against the schema and
// decodes it.
func ParseStrategies(data []byte) (Strategies, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(strategiesSchema),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("invalid strategies: %s", strings.Join(msgs, "; "))
	}

	var doc strategiesDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode strategies: %w", err)
	}
	return doc.Entities, nil
}

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// expand fills {name} placeholders from params, passing each value through
// esc. ok is false when a placeholder has no value.
func expand(s string, params map[string]string, esc func(string) string) (string, bool) {
	ok := true
	out := placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		v := params[m[1:len(m)-1]]
		if v == "" {
			ok = false
		}
		return esc(v)
	})
	return out, ok
}
