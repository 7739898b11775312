package ledger

import "context"

// RankedStudent - строка рейтинга класса.
type RankedStudent struct {
	Rank      int    `json:"rank"`
	StudentID string `json:"student_id"`
	Points    int    `json:"points"`
}

// Leaderboard - рейтинг учеников внутри класса по заработанным очкам.
// Обновляется после коммита, поэтому может немного отставать от журнала.
type Leaderboard interface {
	// Increment прибавляет очки ученику в рейтинге класса.
	Increment(ctx context.Context, classID, studentID string, points int) error

	// Top возвращает первые limit учеников по убыванию очков.
	// При равенстве очков выше тот, чей ID меньше.
	Top(ctx context.Context, classID string, limit int) ([]RankedStudent, error)
}
