package progress

import (
	"log/slog"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/recommendation"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"
)

// Config contains engine tuning.
type Config struct {
	// WindowDays is how long a QuestProgress row accepts contributions.
	WindowDays int

	// DefaultRecommendations is used when a caller does not ask for a count.
	DefaultRecommendations int
}

// DefaultConfig returns the weekly window and three recommendations.
func DefaultConfig() Config {
	return Config{
		WindowDays:             quest.WindowDays,
		DefaultRecommendations: recommendation.DefaultCount,
	}
}

// Engine bundles the ledger, trackers and recommender sharing one catalog.
type Engine struct {
	Ledger      *PointLedger
	Tasks       *TaskTracker
	Quests      *QuestTracker
	Recommender *Recommender
	Config      Config
}

// NewEngine wires the engine components.
func NewEngine(tasks task.Catalog, quests quest.Catalog, config Config, logger *slog.Logger) *Engine {
	if config.WindowDays <= 0 {
		config.WindowDays = quest.WindowDays
	}
	if config.DefaultRecommendations <= 0 {
		config.DefaultRecommendations = recommendation.DefaultCount
	}

	ledger := NewPointLedger()
	recommender := NewRecommender(quests)

	return &Engine{
		Ledger:      ledger,
		Tasks:       NewTaskTracker(tasks),
		Quests:      NewQuestTracker(quests, recommender, ledger, config.WindowDays, logger),
		Recommender: recommender,
		Config:      config,
	}
}
