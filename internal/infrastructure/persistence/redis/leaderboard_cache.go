package redis

import (
	"context"
	"fmt"
	"sort"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/ledger"
)

// ClassLeaderboard keeps student points per class in sorted sets:
// "leaderboard:class:{classID}" maps studentID -> points.
type ClassLeaderboard struct {
	cache *Cache
}

// NewClassLeaderboard creates a ClassLeaderboard.
func NewClassLeaderboard(cache *Cache) *ClassLeaderboard {
	return &ClassLeaderboard{cache: cache}
}

// Increment adds points to the student's score.
func (l *ClassLeaderboard) Increment(ctx context.Context, classID, studentID string, points int) error {
	if err := l.cache.Client().ZIncrBy(ctx, LeaderboardKey(classID), float64(points), studentID).Err(); err != nil {
		return fmt.Errorf("failed to increment leaderboard: %w", err)
	}
	return nil
}

// Top returns the class ranking, points descending then student ID ascending.
// Classes are small, so the whole set is read and ordered here: Redis breaks
// score ties by member, descending in reverse ranges.
func (l *ClassLeaderboard) Top(ctx context.Context, classID string, limit int) ([]ledger.RankedStudent, error) {
	members, err := l.cache.Client().ZRangeWithScores(ctx, LeaderboardKey(classID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}

	out := make([]ledger.RankedStudent, 0, len(members))
	for _, m := range members {
		id, ok := m.Member.(string)
		if !ok {
			continue
		}
		out = append(out, ledger.RankedStudent{StudentID: id, Points: int(m.Score)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].StudentID < out[j].StudentID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

var _ ledger.Leaderboard = (*ClassLeaderboard)(nil)
