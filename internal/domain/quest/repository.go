package quest

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository работает со строками QuestProgress внутри транзакции.
type ProgressRepository interface {
	// GetLatestForUpdate возвращает самую свежую строку (квест, класс)
	// и блокирует её. Возвращает ErrQuestProgressNotFound, если строк нет.
	GetLatestForUpdate(ctx context.Context, classID, questID string) (*Progress, error)

	// ListByClassSince возвращает строки класса с date_assigned >= since
	// и блокирует их. Порядок: date_assigned, затем quest_id.
	ListByClassSince(ctx context.Context, classID string, since time.Time) ([]*Progress, error)

	// Insert создаёт строку. Дубликат ключа возвращает ошибку AlreadyExists.
	Insert(ctx context.Context, progress *Progress) error

	// Update сохраняет amount_completed и completed по ключу строки.
	Update(ctx context.Context, progress *Progress) error

	// Delete удаляет строку по ключу.
	Delete(ctx context.Context, progress *Progress) error

	// ListStaleClasses возвращает классы, у которых есть незавершённые строки,
	// назначенные раньше before.
	ListStaleClasses(ctx context.Context, before time.Time) ([]ClassAssignment, error)
}

// Catalog - доступ только на чтение к каталогу квестов.
type Catalog interface {
	// GetQuest возвращает квест по ID.
	// Возвращает ErrQuestNotFound, если квеста нет.
	GetQuest(ctx context.Context, questID string) (*Quest, error)

	// ListQuests возвращает квесты, подходящие под фильтр, по возрастанию ID.
	ListQuests(ctx context.Context, filter Filter) ([]Quest, error)
}
