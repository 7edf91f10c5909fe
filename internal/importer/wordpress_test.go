package importer_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/p-n-ai/pai-quiz-import/internal/content"
	"github.com/p-n-ai/pai-quiz-import/internal/importer"
	"github.com/p-n-ai/pai-quiz-import/internal/reconcile"
	"github.com/p-n-ai/pai-quiz-import/internal/scavenge"
	"github.com/p-n-ai/pai-quiz-import/internal/store"
	"github.com/p-n-ai/pai-quiz-import/internal/wordpress"
)

// tutorSite serves a one-course Tutor LMS installation.
func tutorSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /wp-json/{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"Test site"}`))
	})
	mux.HandleFunc("GET /wp-json/tutor/v1/courses", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"success","message":"","data":[
			{"ID":10,"post_title":"Algebra","post_name":"algebra","post_status":"publish"}
		]}`))
	})
	mux.HandleFunc("GET /wp-json/tutor/v1/topics", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("course_id") != "10" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{"ID":20,"post_title":"Equations","post_name":"equations"}]`))
	})
	mux.HandleFunc("GET /wp-json/tutor/v1/quizzes", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("topic_id") != "20" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{"ID":42,"post_title":"Basic Algebra","post_name":"basic-algebra","passing_grade":80}]`))
	})
	mux.HandleFunc("GET /wp-json/tutor/v1/quiz-questions", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("quiz_id") != "42" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{"question_id":100,"question_title":"Solve x+1=2","question_type":"single_choice","question_mark":"1"}]`))
	})
	mux.HandleFunc("GET /wp-json/tutor/v1/question-answers", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("question_id") != "100" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[
			{"answer_id":1,"answer_title":"1","is_correct":1,"answer_order":1},
			{"answer_id":2,"answer_title":"2","is_correct":0,"answer_order":2}
		]`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestWordPress_EndToEnd(t *testing.T) {
	server := tutorSite(t)
	s := store.NewMemoryStore()
	ctx := context.Background()

	run := func() *importer.Report {
		t.Helper()
		pipeline := importer.NewWordPress(wordpress.New(server.URL), reconcile.New(s, reconcile.Policy{}))
		report, err := pipeline.Run(ctx)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return report
	}

	first := run()
	if tot := first.Totals(); tot.Created != 6 || tot.Errors != 0 {
		t.Errorf("first run totals = %+v, want 6 created and no errors", tot)
	}

	view, err := store.LoadQuizView(ctx, s, "basic-algebra")
	if err != nil {
		t.Fatalf("LoadQuizView() error = %v", err)
	}
	if view.Title != "Basic Algebra" || view.PassingGrade != 80 || view.Duration != nil {
		t.Errorf("quiz = %+v", view)
	}
	if view.Difficulty != nil {
		t.Errorf("Difficulty = %q, want hidden", *view.Difficulty)
	}
	if len(view.Questions) != 1 || view.Questions[0].Text != "Solve x+1=2" {
		t.Fatalf("questions = %+v", view.Questions)
	}
	if view.Questions[0].Type != content.MultipleChoice {
		t.Errorf("question type = %q, want %q", view.Questions[0].Type, content.MultipleChoice)
	}
	answers := view.Questions[0].Answers
	if len(answers) != 2 || !answers[0].IsCorrect || answers[1].IsCorrect {
		t.Errorf("answers = %+v, want first correct only", answers)
	}

	second := run()
	if tot := second.Totals(); tot.Created != 0 || tot.Updated != 0 || tot.Skipped != 6 {
		t.Errorf("second run totals = %+v, want everything skipped", tot)
	}
	counts, _ := s.Counts(ctx)
	want := store.Counts{Courses: 1, Modules: 1, Quizzes: 1, Questions: 1, Answers: 2}
	if counts != want {
		t.Errorf("Counts() = %+v, want %+v", counts, want)
	}
}

// fakeSource is an in-memory Source keyed by source ID.
type fakeSource struct {
	pingErr      error
	courses      []scavenge.Record
	topics       map[string][]scavenge.Record
	byTopic      map[string][]scavenge.Record
	byCourse     map[string][]scavenge.Record
	all          []scavenge.Record
	questions    map[string][]scavenge.Record
	questionErrs map[string]error
	answers      map[string][]scavenge.Record
}

func (f *fakeSource) Ping(context.Context) error { return f.pingErr }

func (f *fakeSource) Courses(context.Context) ([]scavenge.Record, error) { return f.courses, nil }

func (f *fakeSource) Topics(_ context.Context, courseID string) ([]scavenge.Record, error) {
	return f.topics[courseID], nil
}

func (f *fakeSource) Quizzes(_ context.Context, scope wordpress.Scope) ([]scavenge.Record, error) {
	switch {
	case scope.TopicID != "":
		return f.byTopic[scope.TopicID], nil
	case scope.CourseID != "":
		return f.byCourse[scope.CourseID], nil
	}
	return f.all, nil
}

func (f *fakeSource) AllQuizzes(ctx context.Context) ([]scavenge.Record, error) {
	return f.Quizzes(ctx, wordpress.Scope{})
}

func (f *fakeSource) Questions(_ context.Context, quizID string) ([]scavenge.Record, error) {
	if err := f.questionErrs[quizID]; err != nil {
		return nil, err
	}
	return f.questions[quizID], nil
}

func (f *fakeSource) Answers(_ context.Context, q scavenge.Record) ([]scavenge.Record, error) {
	if recs, ok := wordpress.Children(q["answers"]); ok {
		return recs, nil
	}
	id, _ := q["question_id"].(string)
	return f.answers[id], nil
}

func quiz(id, slug string) scavenge.Record {
	return scavenge.Record{"ID": id, "post_title": "Quiz " + id, "post_name": slug}
}

func TestWordPress_FallbackCourse(t *testing.T) {
	src := &fakeSource{all: []scavenge.Record{quiz("1", "one"), quiz("2", "two"), quiz("3", "three")}}
	s := store.NewMemoryStore()
	ctx := context.Background()

	report, err := importer.NewWordPress(src, reconcile.New(s, reconcile.Policy{})).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if c := report.Counter(importer.EntityQuiz); c.Created != 3 {
		t.Errorf("quiz counter = %+v, want 3 created", c)
	}

	course, err := s.CourseBySlug(ctx, importer.FallbackCourseSlug)
	if err != nil {
		t.Fatalf("fallback course: %v", err)
	}
	module, err := s.ModuleBySlug(ctx, course.ID, importer.FallbackModuleSlug)
	if err != nil {
		t.Fatalf("fallback module: %v", err)
	}
	for _, slug := range []string{"one", "two", "three"} {
		q, err := s.QuizBySlug(ctx, slug)
		if err != nil || q.ModuleID == nil || *q.ModuleID != module.ID {
			t.Errorf("quiz %s = %+v, %v; want attached to fallback module", slug, q, err)
		}
	}

	// A second run reuses the same fallback hierarchy.
	if _, err := importer.NewWordPress(src, reconcile.New(s, reconcile.Policy{})).Run(ctx); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if counts, _ := s.Counts(ctx); counts.Courses != 1 || counts.Modules != 1 || counts.Quizzes != 3 {
		t.Errorf("Counts() = %+v", counts)
	}
}

func TestWordPress_CourseWithoutTopics(t *testing.T) {
	src := &fakeSource{
		courses:  []scavenge.Record{{"ID": "5", "post_title": "Geometry", "post_name": "geometry"}},
		byCourse: map[string][]scavenge.Record{"5": {quiz("9", "angles")}},
	}
	s := store.NewMemoryStore()
	ctx := context.Background()

	if _, err := importer.NewWordPress(src, reconcile.New(s, reconcile.Policy{})).Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	course, _ := s.CourseBySlug(ctx, "geometry")
	m, err := s.ModuleBySlug(ctx, course.ID, "geometry-general")
	if err != nil {
		t.Fatalf("general module: %v", err)
	}
	if m.Title != "Geometry (General)" {
		t.Errorf("module title = %q", m.Title)
	}
	q, _ := s.QuizBySlug(ctx, "angles")
	if q.ModuleID == nil || *q.ModuleID != m.ID {
		t.Errorf("quiz module = %v, want %s", q.ModuleID, m.ID)
	}
}

func TestWordPress_PartialFailureContinues(t *testing.T) {
	src := &fakeSource{
		all: []scavenge.Record{quiz("1", "broken"), quiz("2", "fine")},
		questionErrs: map[string]error{
			"1": errors.New("boom"),
		},
		questions: map[string][]scavenge.Record{
			"2": {{
				"question_id":    "7",
				"question_title": "2+2?",
				"answers": []any{
					map[string]any{"answer_title": "4", "is_correct": "yes"},
					map[string]any{"answer_title": "5", "is_correct": "no"},
				},
			}},
		},
	}
	s := store.NewMemoryStore()
	ctx := context.Background()

	report, err := importer.NewWordPress(src, reconcile.New(s, reconcile.Policy{})).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if c := report.Counter(importer.EntityQuestion); c.Errors != 1 || c.Created != 1 {
		t.Errorf("question counter = %+v, want 1 error and 1 created", c)
	}
	if c := report.Counter(importer.EntityAnswer); c.Created != 2 {
		t.Errorf("answer counter = %+v, want 2 created", c)
	}
	if !report.HasErrors() {
		t.Error("HasErrors() = false, want true")
	}
	if counts, _ := s.Counts(ctx); counts.Quizzes != 2 {
		t.Errorf("quizzes = %d, want both imported", counts.Quizzes)
	}
}

func TestWordPress_EmbeddedQuestions(t *testing.T) {
	rec := quiz("3", "embedded")
	rec["questions"] = map[string]any{
		"2": map[string]any{"question_title": "Second"},
		"1": map[string]any{"question_title": "First"},
	}
	src := &fakeSource{all: []scavenge.Record{rec}}
	s := store.NewMemoryStore()
	ctx := context.Background()

	if _, err := importer.NewWordPress(src, reconcile.New(s, reconcile.Policy{})).Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	view, err := store.LoadQuizView(ctx, s, "embedded")
	if err != nil {
		t.Fatalf("LoadQuizView() error = %v", err)
	}
	if len(view.Questions) != 2 || view.Questions[0].Text != "First" || view.Questions[1].Text != "Second" {
		t.Errorf("questions = %+v, want First then Second", view.Questions)
	}
}

func TestWordPress_StructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		src  *fakeSource
		want error
	}{
		{"unreachable", &fakeSource{pingErr: errors.New("dial tcp: refused")}, importer.ErrSourceUnreachable},
		{"empty", &fakeSource{}, importer.ErrNothingToImport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore()
			report, err := importer.NewWordPress(tt.src, reconcile.New(s, reconcile.Policy{})).Run(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("Run() error = %v, want %v", err, tt.want)
			}
			if report == nil {
				t.Fatal("Run() report = nil, want partial report")
			}
			if counts, _ := s.Counts(context.Background()); counts != (store.Counts{}) {
				t.Errorf("Counts() = %+v, want nothing written", counts)
			}
		})
	}
}

func TestWordPress_UnreachableServer(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	pipeline := importer.NewWordPress(wordpress.New(server.URL), reconcile.New(store.NewMemoryStore(), reconcile.Policy{}))
	if _, err := pipeline.Run(context.Background()); !errors.Is(err, importer.ErrSourceUnreachable) {
		t.Errorf("Run() error = %v, want ErrSourceUnreachable", err)
	}
}

func graphQuestion(id, text string, answers ...map[string]any) scavenge.Record {
	list := make([]any, 0, len(answers))
	for _, a := range answers {
		list = append(list, a)
	}
	return scavenge.Record{"question_id": id, "question_title": text, "answers": list}
}

func TestWordPress_SameTextQuestions(t *testing.T) {
	tests := []struct {
		name          string
		first, second string
		wantQuestions int
		wantErrors    int
	}{
		{"markup keeps them apart", `Which graph is shown? <img src="a.png">`, `Which graph is shown? <img src="b.png">`, 2, 0},
		{"identical text is a duplicate", "Which graph is shown?", "Which graph is shown?", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{
				all: []scavenge.Record{quiz("1", "graphs")},
				questions: map[string][]scavenge.Record{"1": {
					graphQuestion("10", tt.first,
						map[string]any{"answer_title": "A", "is_correct": true},
						map[string]any{"answer_title": "B", "is_correct": false}),
					graphQuestion("11", tt.second,
						map[string]any{"answer_title": "C", "is_correct": true},
						map[string]any{"answer_title": "D", "is_correct": false}),
				}},
			}
			s := store.NewMemoryStore()
			ctx := context.Background()

			report, err := importer.NewWordPress(src, reconcile.New(s, reconcile.Policy{})).Run(ctx)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if c := report.Counter(importer.EntityQuestion); c.Errors != tt.wantErrors {
				t.Errorf("question counter = %+v, want %d errors", c, tt.wantErrors)
			}

			view, err := store.LoadQuizView(ctx, s, "graphs")
			if err != nil {
				t.Fatalf("LoadQuizView() error = %v", err)
			}
			if len(view.Questions) != tt.wantQuestions {
				t.Fatalf("questions = %d, want %d", len(view.Questions), tt.wantQuestions)
			}
			for _, q := range view.Questions {
				correct := 0
				for _, a := range q.Answers {
					if a.IsCorrect {
						correct++
					}
				}
				if len(q.Answers) != 2 || correct != 1 {
					t.Errorf("question %q has %d answers with %d correct, want 2 with 1", q.Text, len(q.Answers), correct)
				}
			}
		})
	}
}
