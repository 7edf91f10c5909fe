// Package wordpress reads courses, topics, quizzes, questions and answers
// from a WordPress / Tutor LMS installation. Each collection is fetched by
// trying an ordered list of endpoint strategies until one returns records.
package wordpress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/p-n-ai/pai-quiz-import/internal/scavenge"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultSlowTimeout = 20 * time.Second
	defaultPerPage     = 100
	maxBodyBytes       = 32 << 20
)

// ResponseCache memoizes accepted response bodies by request URL.
type ResponseCache interface {
	Get(ctx context.Context, requestURL string) ([]byte, bool, error)
	Set(ctx context.Context, requestURL string, body []byte) error
}

// Connector fetches raw records from the source. It never writes to it.
type Connector struct {
	baseURL     string
	client      *http.Client
	username    string
	password    string
	strategies  Strategies
	timeout     time.Duration
	slowTimeout time.Duration
	perPage     int
	cache       ResponseCache
}

// Option configures a Connector.
type Option func(*Connector)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Connector) {
		c.client = client
	}
}

// WithBasicAuth authenticates with a WordPress application password.
func WithBasicAuth(username, password string) Option {
	return func(c *Connector) {
		c.username = username
		c.password = password
	}
}

// WithStrategies replaces the built-in strategy table.
func WithStrategies(s Strategies) Option {
	return func(c *Connector) {
		c.strategies = s
	}
}

// WithTimeouts sets the per-call timeouts for normal and slow strategies.
func WithTimeouts(normal, slow time.Duration) Option {
	return func(c *Connector) {
		if normal > 0 {
			c.timeout = normal
		}
		if slow > 0 {
			c.slowTimeout = slow
		}
	}
}

// WithPerPage sets the per_page query value.
func WithPerPage(n int) Option {
	return func(c *Connector) {
		if n > 0 {
			c.perPage = n
		}
	}
}

// WithCache enables response caching.
func WithCache(cache ResponseCache) Option {
	return func(c *Connector) {
		c.cache = cache
	}
}

// New creates a connector for the installation at baseURL.
func New(baseURL string, opts ...Option) *Connector {
	c := &Connector{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      http.DefaultClient,
		timeout:     defaultTimeout,
		slowTimeout: defaultSlowTimeout,
		perPage:     defaultPerPage,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.strategies == nil {
		c.strategies = DefaultStrategies()
	}
	return c
}

// Ping checks that the REST API index answers.
func (c *Connector) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := c.get(ctx, c.baseURL+"/wp-json/"); err != nil {
		return fmt.Errorf("ping source: %w", err)
	}
	return nil
}

// Courses lists all courses.
func (c *Connector) Courses(ctx context.Context) ([]scavenge.Record, error) {
	return c.fetch(ctx, EntityCourses, nil)
}

// Topics lists the topics of one course.
func (c *Connector) Topics(ctx context.Context, courseID string) ([]scavenge.Record, error) {
	return c.fetch(ctx, EntityTopics, map[string]string{"course_id": courseID})
}

// Scope narrows a quiz listing. The zero Scope lists every quiz.
type Scope struct {
	TopicID  string
	CourseID string
}

// Quizzes lists quizzes under a topic, under a course, or all of them.
func (c *Connector) Quizzes(ctx context.Context, scope Scope) ([]scavenge.Record, error) {
	switch {
	case scope.TopicID != "":
		return c.fetch(ctx, EntityQuizzesByTopic, map[string]string{"topic_id": scope.TopicID})
	case scope.CourseID != "":
		return c.fetch(ctx, EntityQuizzesByCourse, map[string]string{"course_id": scope.CourseID})
	default:
		return c.fetch(ctx, EntityQuizzes, nil)
	}
}

// AllQuizzes lists every quiz regardless of hierarchy.
func (c *Connector) AllQuizzes(ctx context.Context) ([]scavenge.Record, error) {
	return c.Quizzes(ctx, Scope{})
}

// Questions lists the questions of one quiz.
func (c *Connector) Questions(ctx context.Context, quizID string) ([]scavenge.Record, error) {
	return c.fetch(ctx, EntityQuestions, map[string]string{"quiz_id": quizID})
}

// embeddedAnswerKeys hold answers inside a question payload.
var embeddedAnswerKeys = []string{"answers", "question_answers"}

// Answers returns the answers of a question, preferring those embedded in
// the question payload over a request per question.
func (c *Connector) Answers(ctx context.Context, question scavenge.Record) ([]scavenge.Record, error) {
	for _, k := range embeddedAnswerKeys {
		if v, ok := question[k]; ok {
			if recs, ok := Children(v); ok && len(recs) > 0 {
				return recs, nil
			}
		}
	}
	id := questionID(question)
	if id == "" {
		return nil, nil
	}
	return c.fetch(ctx, EntityAnswers, map[string]string{"question_id": id})
}

func questionID(rec scavenge.Record) string {
	for _, k := range []string{"question_id", "ID", "id"} {
		switch v := rec[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}

// fetch runs the strategies for entity in order and returns the records of
// the first one that yields any. Exhausting every strategy is not an error.
func (c *Connector) fetch(ctx context.Context, entity string, params map[string]string) ([]scavenge.Record, error) {
	strategies := c.strategies[entity]
	if len(strategies) == 0 {
		return nil, fmt.Errorf("%s: %w", entity, ErrNoStrategies)
	}

	vars := map[string]string{"per_page": strconv.Itoa(c.perPage)}
	for k, v := range params {
		vars[k] = v
	}

	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		reqURL, ok := c.buildURL(s, vars)
		if !ok {
			slog.Debug("source strategy not applicable", "entity", entity, "strategy", s.Name)
			continue
		}

		recs, err := c.attempt(ctx, s, reqURL)
		if err != nil {
			slog.Warn("source strategy failed, trying next",
				"entity", entity,
				"strategy", s.Name,
				"error", err,
			)
			continue
		}
		if len(recs) == 0 {
			slog.Debug("source strategy returned no records", "entity", entity, "strategy", s.Name)
			continue
		}

		slog.Debug("source strategy succeeded",
			"entity", entity,
			"strategy", s.Name,
			"records", len(recs),
		)
		return recs, nil
	}

	slog.Info("no source strategy returned records", "entity", entity, "params", params)
	return nil, nil
}

func (c *Connector) attempt(ctx context.Context, s Strategy, reqURL string) ([]scavenge.Record, error) {
	if c.cache != nil {
		body, hit, err := c.cache.Get(ctx, reqURL)
		if err != nil {
			slog.Warn("response cache read failed", "error", err)
		} else if hit {
			if recs, err := Unwrap(body, s.Embed); err == nil && len(recs) > 0 {
				return recs, nil
			}
		}
	}

	timeout := c.timeout
	if s.Slow {
		timeout = c.slowTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := c.get(callCtx, reqURL)
	if err != nil {
		return nil, err
	}
	recs, err := Unwrap(body, s.Embed)
	if err != nil {
		return nil, err
	}

	if c.cache != nil && len(recs) > 0 {
		if err := c.cache.Set(ctx, reqURL, body); err != nil {
			slog.Warn("response cache write failed", "error", err)
		}
	}
	return recs, nil
}

func (c *Connector) buildURL(s Strategy, vars map[string]string) (string, bool) {
	path, ok := expand(s.Path, vars, url.PathEscape)
	if !ok {
		return "", false
	}
	q := url.Values{}
	for k, v := range s.Query {
		val, ok := expand(v, vars, func(s string) string { return s })
		if !ok {
			return "", false
		}
		q.Set(k, val)
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u, true
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
}

func (c *Connector) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("GET %s: timed out: %w", reqURL, err)
		}
		return nil, fmt.Errorf("GET %s: %w", reqURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{URL: reqURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
