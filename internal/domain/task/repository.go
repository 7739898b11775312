package task

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository работает со строками TaskProgress внутри транзакции.
type ProgressRepository interface {
	// GetReviewableForUpdate блокирует строки (ученик, задание) до конца
	// транзакции и возвращает выбранную PickReviewable.
	// Возвращает ErrTaskProgressNotFound, если строк нет.
	GetReviewableForUpdate(ctx context.Context, studentID, taskID string) (*Progress, error)

	// Save сохраняет флаги и ссылки на изображения по ключу строки.
	// Возвращает ErrTaskProgressNotFound, если строка исчезла.
	Save(ctx context.Context, progress *Progress) error

	// ListPendingByTeacher возвращает строки, ожидающие проверки учителем,
	// от старых к новым.
	ListPendingByTeacher(ctx context.Context, teacherID string) ([]*Progress, error)
}

// Catalog - доступ только на чтение к каталогу заданий.
type Catalog interface {
	// GetTask возвращает задание по ID.
	// Возвращает ErrTaskNotFound, если задания нет.
	GetTask(ctx context.Context, taskID string) (*Task, error)
}

// AssetStore превращает имя загруженного файла в постоянную ссылку,
// которая хранится в ImageURLs.
type AssetStore interface {
	GetFileURL(ctx context.Context, fileName string) (string, error)
}

// EvidenceLinker выдаёт ссылку для просмотра по сохранённой ссылке.
// Вызывается при каждом чтении: подписанные ссылки живут недолго.
type EvidenceLinker interface {
	SignURL(ctx context.Context, storedURL string) (string, error)
}
