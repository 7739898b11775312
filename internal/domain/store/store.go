// Package store описывает транзакционное хранилище движка прогресса.
// Все изменения одной операции (TaskProgress, QuestProgress, записи журнала,
// агрегаты очков) фиксируются вместе или не фиксируются вовсе.
package store

import (
	"context"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/ledger"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"
)

// Repositories - репозитории, привязанные к одной транзакции.
type Repositories struct {
	Tasks  task.ProgressRepository
	Quests quest.ProgressRepository
	Ledger ledger.Repository
}

// TxFunc - тело транзакции.
type TxFunc func(ctx context.Context, repos Repositories) error

// UnitOfWork открывает транзакцию и передаёт в fn репозитории.
//
// Если fn возвращает ошибку или паникует, транзакция откатывается.
// Истёкший дедлайн или отмена контекста возвращаются как ErrStorageUnavailable.
type UnitOfWork interface {
	Do(ctx context.Context, fn TxFunc) error
}
