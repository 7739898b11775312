package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/RecyclifyApp/Backend-sub000/internal/application/progress"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/store"
	"github.com/RecyclifyApp/Backend-sub000/pkg/timeutil"
)

// DefaultOperationTimeout bounds a single command transaction.
const DefaultOperationTimeout = 5 * time.Second

// Dependencies are shared by every progress command handler.
type Dependencies struct {
	// UnitOfWork opens the transaction each command runs in.
	UnitOfWork store.UnitOfWork

	// Engine holds the ledger, trackers and recommender.
	Engine *progress.Engine

	// Publisher receives domain events after commit. Optional.
	Publisher shared.EventPublisher

	// Clock decides what "today" is.
	Clock timeutil.Clock

	// Timeout bounds the transaction. Zero means DefaultOperationTimeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// handlerBase carries the transaction and post-commit plumbing.
type handlerBase struct {
	uow       store.UnitOfWork
	engine    *progress.Engine
	publisher shared.EventPublisher
	clock     timeutil.Clock
	timeout   time.Duration
	logger    *slog.Logger
}

func newHandlerBase(deps Dependencies, name string) handlerBase {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = timeutil.NewSystemClock(time.UTC)
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}
	return handlerBase{
		uow:       deps.UnitOfWork,
		engine:    deps.Engine,
		publisher: deps.Publisher,
		clock:     clock,
		timeout:   timeout,
		logger:    logger.With("handler", name),
	}
}

func (b handlerBase) today() time.Time {
	return timeutil.Today(b.clock)
}

// inTx runs fn in a transaction bounded by the handler timeout.
func (b handlerBase) inTx(ctx context.Context, fn store.TxFunc) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.uow.Do(ctx, fn)
}

// publish fans events out after commit. Failures are logged, never returned.
func (b handlerBase) publish(events []shared.Event) {
	if b.publisher == nil {
		return
	}
	for _, event := range events {
		if err := b.publisher.Publish(event); err != nil {
			b.logger.Warn("failed to publish event",
				"event_type", event.EventType(),
				"aggregate_id", event.AggregateID(),
				"error", err,
			)
		}
	}
}
