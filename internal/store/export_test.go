package store

import "context"

// Truncate empties every table so container-backed subtests start clean.
func Truncate(ctx context.Context, s *SQLStore) error {
	for _, table := range []string{"quiz_attempts", "users", "answers", "questions", "quizzes", "modules", "courses"} {
		if err := s.db.exec(ctx, `DELETE FROM `+table); err != nil {
			return err
		}
	}
	return nil
}
