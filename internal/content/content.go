// Package content defines the canonical quiz content tree
// (Course → Module → Quiz → Question → Answer) plus the users and attempts
// carried over by the legacy migration.
package content

import "time"

// DefaultPassingGrade is used when the source does not carry one.
const DefaultPassingGrade = 70

// CourseStatus gates visibility on the public site.
type CourseStatus string

const (
	StatusDraft     CourseStatus = "DRAFT"
	StatusPublished CourseStatus = "PUBLISHED"
)

// QuestionType is the answering mode of a question.
type QuestionType string

const (
	MultipleChoice QuestionType = "MULTIPLE_CHOICE"
	TrueFalse      QuestionType = "TRUE_FALSE"
	FreeText       QuestionType = "FREE_TEXT"
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case MultipleChoice, TrueFalse, FreeText:
		return true
	}
	return false
}

// Difficulty is the author-chosen difficulty badge of a quiz.
// DifficultyUnset means no explicit choice was made and the badge is hidden.
type Difficulty string

const (
	DifficultyUnset  Difficulty = ""
	DifficultyEasy   Difficulty = "Facile"
	DifficultyMedium Difficulty = "Moyen"
	DifficultyHard   Difficulty = "Difficile"
)

// Course is the root of the content tree. Slug is its natural key.
type Course struct {
	ID          string
	Title       string
	Slug        string
	Description string
	Status      CourseStatus
}

// Module (a "topic" in Tutor LMS) belongs to exactly one course.
// Its natural key is (CourseID, Slug).
type Module struct {
	ID          string
	CourseID    string
	Title       string
	Slug        string
	Description string
	Order       int
}

// Quiz is keyed by its globally unique slug. ModuleID is nil for orphan quizzes.
type Quiz struct {
	ID               string
	ModuleID         *string
	Title            string
	Slug             string
	Description      string
	Excerpt          string
	Duration         *int // minutes; nil means untimed
	Difficulty       Difficulty
	PassingGrade     int // percent
	RandomizeOrder   bool
	MaxQuestions     *int
	FeaturedImageURL string
}

// Question is owned by a quiz; deleting the quiz cascades.
type Question struct {
	ID          string
	QuizID      string
	Text        string
	Type        QuestionType
	Points      int
	Explanation string
	TimeLimit   *int // seconds
	Order       int
}

// Answer is owned by a question. For FreeText questions the first answer
// holds the reference answer.
type Answer struct {
	ID          string
	QuestionID  string
	Text        string
	IsCorrect   bool
	Explanation string
	Order       int
}

// User is a platform account. Email is the natural key.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// Attempt is one recorded run of a quiz by a user. Its natural key is
// (UserID, QuizID, StartedAt).
type Attempt struct {
	ID             string
	UserID         string
	QuizID         string
	Score          int
	TotalQuestions int
	Answers        string // JSON document, copied verbatim
	StartedAt      time.Time
	CompletedAt    *time.Time
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// StrPtr returns a pointer to v.
func StrPtr(v string) *string { return &v }
