package wordpress

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestConnector_FallsBackToNextStrategy(t *testing.T) {
	var paths []string
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("GET /wp-json/wp/v2/courses", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path+"?"+r.URL.RawQuery)
		mu.Unlock()
		if r.URL.Query().Get("status") == "any" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":"rest_invalid_param","message":"bad status","data":{"status":400}}`))
			return
		}
		w.Write([]byte(`{"code":"success","message":"","data":[{"id":7,"title":{"rendered":"Algebra"}}]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL)
	recs, err := c.Courses(context.Background())
	if err != nil {
		t.Fatalf("Courses() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Courses() returned %d records, want 1", len(recs))
	}
	if len(paths) != 2 {
		t.Errorf("wp strategies tried %d times, want 2: %v", len(paths), paths)
	}
}

func TestConnector_AllStrategiesExhausted(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	c := New(server.URL)
	recs, err := c.AllQuizzes(context.Background())
	if err != nil {
		t.Fatalf("AllQuizzes() error = %v, want nil for exhausted strategies", err)
	}
	if len(recs) != 0 {
		t.Errorf("AllQuizzes() = %d records, want 0", len(recs))
	}
}

func TestConnector_EmptyResultTriesNext(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /wp-json/tutor/v1/quizzes", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("GET /wp-json/wp/v2/tutor_quiz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"slug":"q1"},{"id":2,"slug":"q2"}]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	recs, err := New(server.URL).AllQuizzes(context.Background())
	if err != nil {
		t.Fatalf("AllQuizzes() error = %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("AllQuizzes() = %d records, want 2", len(recs))
	}
}

func TestConnector_TimeoutAdvances(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /wp-json/tutor/v1/quiz-questions", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("GET /wp-json/tutor/v1/quizzes/9/questions", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"question_id":"31","question_title":"Solve x+1=2"}]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL, WithTimeouts(50*time.Millisecond, 100*time.Millisecond))
	start := time.Now()
	recs, err := c.Questions(context.Background(), "9")
	if err != nil {
		t.Fatalf("Questions() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Questions() = %d records, want 1", len(recs))
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Questions() took %v, timeout not applied", elapsed)
	}
}

func TestConnector_QuestionsEmbeddedInQuiz(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /wp-json/tutor/v1/quizzes/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "5" {
			t.Errorf("quiz id = %q, want 5", r.PathValue("id"))
		}
		w.Write([]byte(`{"id":5,"post_title":"Quiz","questions":[{"question_id":1},{"question_id":2}]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	recs, err := New(server.URL).Questions(context.Background(), "5")
	if err != nil {
		t.Fatalf("Questions() error = %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("Questions() = %d records, want 2", len(recs))
	}
}

func TestConnector_AnswersEmbeddedInQuestion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request: %s", r.URL)
	}))
	defer server.Close()

	question := map[string]any{
		"question_id": "31",
		"question_answers": []any{
			map[string]any{"answer_title": "1", "is_correct": "1"},
			map[string]any{"answer_title": "2", "is_correct": "0"},
		},
	}
	recs, err := New(server.URL).Answers(context.Background(), question)
	if err != nil {
		t.Fatalf("Answers() error = %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("Answers() = %d records, want 2", len(recs))
	}
}

func TestConnector_AnswersFetchedByQuestionID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /wp-json/tutor/v1/question-answers", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("question_id"); got != "31" {
			t.Errorf("question_id = %q, want 31", got)
		}
		w.Write([]byte(`{"data":[{"answer_title":"1"}]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	recs, err := New(server.URL).Answers(context.Background(), map[string]any{"question_id": float64(31), "answers": []any{}})
	if err != nil {
		t.Fatalf("Answers() error = %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("Answers() = %d records, want 1", len(recs))
	}
}

func TestConnector_UnscopedStrategiesSkipped(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	recs, err := New(server.URL).Topics(context.Background(), "")
	if err != nil || len(recs) != 0 {
		t.Fatalf("Topics(\"\") = %v, %v", recs, err)
	}
	if hits.Load() != 0 {
		t.Errorf("made %d requests for an unscoped topic listing, want 0", hits.Load())
	}
}

func TestConnector_NoStrategies(t *testing.T) {
	c := New("http://example.invalid", WithStrategies(Strategies{}))
	_, err := c.Courses(context.Background())
	if !errors.Is(err, ErrNoStrategies) {
		t.Errorf("Courses() error = %v, want ErrNoStrategies", err)
	}
}

func TestConnector_BasicAuthAndPerPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /wp-json/tutor/v1/courses", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "app pass" {
			t.Errorf("basic auth = %q/%q/%v", user, pass, ok)
		}
		if got := r.URL.Query().Get("per_page"); got != "25" {
			t.Errorf("per_page = %q, want 25", got)
		}
		w.Write([]byte(`[{"ID":1}]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := New(server.URL+"/", WithBasicAuth("admin", "app pass"), WithPerPage(25))
	if _, err := c.Courses(context.Background()); err != nil {
		t.Fatalf("Courses() error = %v", err)
	}
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (m *memoryCache) Get(_ context.Context, u string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.entries[u]
	return b, ok, nil
}

func (m *memoryCache) Set(_ context.Context, u string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[u] = body
	return nil
}

func TestConnector_Cache(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /wp-json/tutor/v1/courses", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`[{"ID":1}]`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cache := &memoryCache{entries: map[string][]byte{}}
	c := New(server.URL, WithCache(cache))
	for i := 0; i < 3; i++ {
		recs, err := c.Courses(context.Background())
		if err != nil || len(recs) != 1 {
			t.Fatalf("Courses() = %v, %v", recs, err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("source hit %d times, want 1", hits.Load())
	}
}

func TestConnector_Ping(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /wp-json/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"LMS","namespaces":["wp/v2","tutor/v1"]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	if err := New(server.URL).Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	err := New(down.URL).Ping(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Ping() error = %v, want StatusError 503", err)
	}
}
