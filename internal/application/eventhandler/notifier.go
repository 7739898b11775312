// Package eventhandler содержит обработчики доменных событий.
// Обработчики работают после коммита: их ошибки логируются
// и никогда не откатывают журнал очков.
package eventhandler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/notification"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/pkg/circuitbreaker"
	"github.com/RecyclifyApp/Backend-sub000/pkg/retry"
)

// ═══════════════════════════════════════════════════════════════════════════
// NOTIFIER
// Обёртка над notification.Sender: повторы с backoff + circuit breaker.
// Если провайдер лежит, breaker размыкается и сообщения отбрасываются сразу,
// не задерживая очередь событий.
// ═══════════════════════════════════════════════════════════════════════════

// NotifierConfig - настройки доставки.
type NotifierConfig struct {
	// MaxAttempts - попыток на одного получателя.
	MaxAttempts int

	// SendTimeout - таймаут одной отправки (со всеми повторами).
	SendTimeout time.Duration

	// BreakerFailures - ошибок подряд до размыкания.
	BreakerFailures int

	// BreakerCooldown - сколько breaker остаётся разомкнутым.
	BreakerCooldown time.Duration
}

// DefaultNotifierConfig возвращает настройки по умолчанию.
func DefaultNotifierConfig() NotifierConfig {
	return NotifierConfig{
		MaxAttempts:     3,
		SendTimeout:     10 * time.Second,
		BreakerFailures: 5,
		BreakerCooldown: time.Minute,
	}
}

// Notifier отправляет шаблонные сообщения best-effort.
type Notifier struct {
	sender  notification.Sender
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
	logger  *slog.Logger
}

// NewNotifier создаёт Notifier.
func NewNotifier(sender notification.Sender, config NotifierConfig, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = DefaultNotifierConfig().SendTimeout
	}
	logger = logger.With("component", "notifier")

	return &Notifier{
		sender: sender,
		retrier: retry.NotificationRetrier(config.MaxAttempts, func(attempt int, err error, delay time.Duration) {
			logger.Debug("retrying notification", "attempt", attempt, "delay", delay, "error", err)
		}),
		breaker: circuitbreaker.NotificationBreaker(config.BreakerFailures, config.BreakerCooldown, func(name string, from, to circuitbreaker.State) {
			logger.Warn("notification breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}),
		timeout: config.SendTimeout,
		logger:  logger,
	}
}

// Send доставляет сообщение каждому получателю. Возвращает число успешных отправок.
// Ошибки только логируются.
func (n *Notifier) Send(ctx context.Context, recipients []string, template notification.TemplateKey, vars map[string]string) int {
	sent := 0
	for _, to := range recipients {
		if err := n.sendOne(ctx, to, template, vars); err != nil {
			n.logger.Warn("notification not delivered",
				"template", template.String(),
				"recipient", to,
				"error", err,
			)
			continue
		}
		sent++
	}
	return sent
}

func (n *Notifier) sendOne(ctx context.Context, to string, template notification.TemplateKey, vars map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	return n.breaker.Execute(ctx, func(ctx context.Context) error {
		return n.retrier.Do(ctx, func(ctx context.Context) error {
			result, err := n.sender.SendNotification(ctx, to, template, vars)
			if err != nil {
				if shared.IsRetryable(err) {
					return retry.Retryable(err)
				}
				return err
			}
			if !result.Success {
				return retry.Retryable(errors.New("provider did not accept the message"))
			}
			return nil
		})
	})
}
