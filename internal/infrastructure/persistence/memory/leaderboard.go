package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/ledger"
)

// Leaderboard is an in-process ledger.Leaderboard.
type Leaderboard struct {
	mu      sync.RWMutex
	byClass map[string]map[string]int
}

// NewLeaderboard creates an empty leaderboard.
func NewLeaderboard() *Leaderboard {
	return &Leaderboard{byClass: make(map[string]map[string]int)}
}

// Increment implements ledger.Leaderboard.
func (l *Leaderboard) Increment(_ context.Context, classID, studentID string, points int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	scores, ok := l.byClass[classID]
	if !ok {
		scores = make(map[string]int)
		l.byClass[classID] = scores
	}
	scores[studentID] += points
	return nil
}

// Top implements ledger.Leaderboard.
func (l *Leaderboard) Top(_ context.Context, classID string, limit int) ([]ledger.RankedStudent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]ledger.RankedStudent, 0, len(l.byClass[classID]))
	for id, pts := range l.byClass[classID] {
		out = append(out, ledger.RankedStudent{StudentID: id, Points: pts})
	}
	sort.Slice(out, func(i, j int) bool {
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

var _ ledger.Leaderboard = (*Leaderboard)(nil)
