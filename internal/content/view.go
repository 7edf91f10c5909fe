package content

import "sort"

// QuizView is the UI-facing shape of a quiz with its questions and answers.
type QuizView struct {
	ID               string         `json:"id"`
	ModuleID         *string        `json:"moduleId"`
	Title            string         `json:"title"`
	Slug             string         `json:"slug"`
	Description      string         `json:"description,omitempty"`
	Excerpt          string         `json:"excerpt,omitempty"`
	Duration         *int           `json:"duration"`
	Difficulty       *string        `json:"difficulty,omitempty"` // nil hides the badge
	PassingGrade     int            `json:"passingGrade"`
	RandomizeOrder   bool           `json:"randomizeOrder"`
	MaxQuestions     *int           `json:"maxQuestions"`
	FeaturedImageURL string         `json:"featuredImageUrl,omitempty"`
	Questions        []QuestionView `json:"questions"`
}

// QuestionView is the UI-facing shape of a question.
type QuestionView struct {
	ID            string       `json:"id"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Points        int          `json:"points"`
	Explanation   string       `json:"explanation,omitempty"`
	TimeLimit     *int         `json:"timeLimit"`
	Answers       []AnswerView `json:"answers"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"` // FreeText reference answer
}

// AnswerView is the UI-facing shape of an answer.
type AnswerView struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	IsCorrect   bool   `json:"isCorrect"`
	Explanation string `json:"explanation,omitempty"`
}

// QuestionTree is a question together with its answers.
type QuestionTree struct {
	Question Question
	Answers  []Answer
}

// BuildQuizView assembles the view model from stored rows. Questions and
// answers are sorted by Order, ties keep their input order.
func BuildQuizView(q Quiz, questions []Question, answers map[string][]Answer) QuizView {
	v := QuizView{
		ID:               q.ID,
		ModuleID:         q.ModuleID,
		Title:            q.Title,
		Slug:             q.Slug,
		Description:      q.Description,
		Excerpt:          q.Excerpt,
		Duration:         q.Duration,
		PassingGrade:     q.PassingGrade,
		RandomizeOrder:   q.RandomizeOrder,
		MaxQuestions:     q.MaxQuestions,
		FeaturedImageURL: q.FeaturedImageURL,
		Questions:        make([]QuestionView, 0, len(questions)),
	}
	if q.Difficulty != DifficultyUnset {
		v.Difficulty = StrPtr(string(q.Difficulty))
	}

	sorted := append([]Question(nil), questions...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	for _, qu := range sorted {
		qa := append([]Answer(nil), answers[qu.ID]...)
		sort.SliceStable(qa, func(i, j int) bool { return qa[i].Order < qa[j].Order })

		qv := QuestionView{
			ID:          qu.ID,
			Text:        qu.Text,
			Type:        qu.Type,
			Points:      qu.Points,
			Explanation: qu.Explanation,
			TimeLimit:   qu.TimeLimit,
			Answers:     make([]AnswerView, 0, len(qa)),
		}
		for _, a := range qa {
			qv.Answers = append(qv.Answers, AnswerView{
				ID:          a.ID,
				Text:        a.Text,
				IsCorrect:   a.IsCorrect,
				Explanation: a.Explanation,
			})
		}
		if qu.Type == FreeText && len(qa) > 0 {
			qv.CorrectAnswer = qa[0].Text
		}
		v.Questions = append(v.Questions, qv)
	}
	return v
}

// FromQuizView converts an authored view model back to canonical entities.
// Orders follow slice position. A FreeText question keeps a single answer
// holding its reference text.
func FromQuizView(v QuizView) (Quiz, []QuestionTree) {
	q := Quiz{
		ID:               v.ID,
		ModuleID:         v.ModuleID,
		Title:            v.Title,
		Slug:             v.Slug,
		Description:      v.Description,
		Excerpt:          v.Excerpt,
		Duration:         v.Duration,
		PassingGrade:     v.PassingGrade,
		RandomizeOrder:   v.RandomizeOrder,
		MaxQuestions:     v.MaxQuestions,
		FeaturedImageURL: v.FeaturedImageURL,
	}
	if v.Difficulty != nil {
		q.Difficulty = Difficulty(*v.Difficulty)
	}
	if q.Duration != nil && *q.Duration <= 0 {
		q.Duration = nil
	}
	if q.PassingGrade <= 0 || q.PassingGrade > 100 {
		q.PassingGrade = DefaultPassingGrade
	}

	trees := make([]QuestionTree, 0, len(v.Questions))
	for i, qv := range v.Questions {
		typ := qv.Type
		if !typ.Valid() {
			typ = MultipleChoice
		}
		points := qv.Points
		if points < 1 {
			points = 1
		}
		t := QuestionTree{Question: Question{
			ID:          qv.ID,
			QuizID:      v.ID,
			Text:        qv.Text,
			Type:        typ,
			Points:      points,
			Explanation: qv.Explanation,
			TimeLimit:   qv.TimeLimit,
			Order:       i + 1,
		}}

		if typ == FreeText {
			ref := qv.CorrectAnswer
			if ref == "" && len(qv.Answers) > 0 {
				ref = qv.Answers[0].Text
			}
			if ref != "" {
				t.Answers = []Answer{{QuestionID: qv.ID, Text: ref, IsCorrect: true, Order: 1}}
			}
			trees = append(trees, t)
			continue
		}

		for j, av := range qv.Answers {
			t.Answers = append(t.Answers, Answer{
				ID:          av.ID,
				QuestionID:  qv.ID,
				Text:        av.Text,
				IsCorrect:   av.IsCorrect,
				Explanation: av.Explanation,
				Order:       j + 1,
			})
		}
		trees = append(trees, t)
	}
	return q, trees
}
