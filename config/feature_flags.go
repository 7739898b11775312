package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles of the quest engine.
// Rollout is decided per class, so every student of a class sees the same behaviour.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for testing/debugging)
	classOverrides map[string]map[string]bool // classID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100).
	// Classes are assigned based on hash of their ID.
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	ClassID string
	IsAdmin bool
}

// Predefined feature flag names.
const (
	// === Notifications ===
	FeatureNotifyTaskVerified   = "notify.task_verified"   // tell student and parent about points
	FeatureNotifyTaskRejected   = "notify.task_rejected"   // tell student why a task was rejected
	FeatureNotifyQuestCompleted = "notify.quest_completed" // tell the teacher the class finished a quest

	// === Leaderboard ===
	FeatureClassLeaderboard = "leaderboard.class" // keep the Redis class ranking up to date

	// === Catalog ===
	FeatureCatalogCache = "catalog.cache" // read-through Redis cache for quests and tasks

	// === Scheduler ===
	FeatureScheduledRegeneration = "scheduler.stale_regeneration" // weekly refresh of stale quests
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:       make(map[string]*Feature),
		classOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	defaults := []Feature{
		{Name: FeatureNotifyTaskVerified, Description: "Notify students and parents about verified tasks", Enabled: true, RolloutPercent: 100},
		{Name: FeatureNotifyTaskRejected, Description: "Notify students about rejected tasks", Enabled: true, RolloutPercent: 100},
		{Name: FeatureNotifyQuestCompleted, Description: "Notify teachers about completed class quests", Enabled: true, RolloutPercent: 100},
		{Name: FeatureClassLeaderboard, Description: "Maintain the class leaderboard in Redis", Enabled: true, RolloutPercent: 100},
		{Name: FeatureCatalogCache, Description: "Cache catalog reads in Redis", Enabled: true, RolloutPercent: 100},
		{Name: FeatureScheduledRegeneration, Description: "Refresh stale class quests on a schedule", Enabled: true, RolloutPercent: 100},
	}
	for i := range defaults {
		f := defaults[i]
		ff.features[f.Name] = &f
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_NOTIFY_TASK_REJECTED=false
// Example: FEATURE_LEADERBOARD_CLASS=50 (50% of classes)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		val := os.Getenv(featureNameToEnvKey(name))
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}

		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "notify.task_verified" -> "FEATURE_NOTIFY_TASK_VERIFIED"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
// A nil context asks whether the feature is on at all.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if ctx != nil && ctx.ClassID != "" {
		if overrides, ok := ff.classOverrides[ctx.ClassID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	if ctx != nil && ctx.IsAdmin {
		return true
	}

	if !feature.Enabled {
		return false
	}

	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	if feature.RolloutPercent < 100 && ctx != nil && ctx.ClassID != "" {
		return isInRollout(ctx.ClassID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout puts a class into a stable bucket 0-99 per feature.
func isInRollout(classID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(classID))
	return int(h.Sum32()%100) < percent
}

// SetClassOverride forces a feature on or off for one class.
func (ff *FeatureFlags) SetClassOverride(classID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.classOverrides[classID]; !ok {
		ff.classOverrides[classID] = make(map[string]bool)
	}
	ff.classOverrides[classID][featureName] = enabled
}

// ClearClassOverrides removes all overrides for a class.
func (ff *FeatureFlags) ClearClassOverrides(classID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.classOverrides, classID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// NotificationsEnabled checks if any notification is enabled.
func (ff *FeatureFlags) NotificationsEnabled() bool {
	return ff.IsEnabled(FeatureNotifyTaskVerified, nil) ||
		ff.IsEnabled(FeatureNotifyTaskRejected, nil) ||
		ff.IsEnabled(FeatureNotifyQuestCompleted, nil)
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
