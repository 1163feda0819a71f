// Package retry: единая ограниченная повторная попытка с экспоненциальной задержкой
// для поиска, загрузки деталей, публикации и записи истории.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

// Policy описывает поведение повторов.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	CallTimeout  time.Duration // Таймаут одной попытки; 0: без отдельного таймаута
}

// DefaultPolicy: 3 попытки, множитель 2, таймаут вызова 15 секунд.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     10 * time.Second,
		CallTimeout:  15 * time.Second,
	}
}

// Delay возвращает задержку перед попыткой attempt (нумерация с 1).
// Первая попытка выполняется без задержки.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 || p.InitialDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	delay := float64(p.InitialDelay)
	for i := 2; i < attempt; i++ {
		delay *= mult
	}
	if p.MaxDelay > 0 && time.Duration(delay) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// permanentError помечает ошибку как окончательную.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent оборачивает ошибку, повтор которой бесполезен (4xx, ошибка валидации).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// temporaryError помечает ошибку как временную.
type temporaryError struct {
	err error
}

func (e *temporaryError) Error() string   { return e.err.Error() }
func (e *temporaryError) Unwrap() error   { return e.err }
func (e *temporaryError) Temporary() bool { return true }

// Transient оборачивает ошибку, которую стоит повторить, хотя по типу этого не видно
// (сбой хранилища, 5xx из SDK). Permanent внутри цепочки имеет приоритет.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &temporaryError{err: err}
}

// IsPermanent сообщает, что ошибку не нужно повторять. Повторяются только сетевые ошибки,
// ошибки с Temporary() == true и обёрнутые в Transient; всё остальное (валидация,
// разбор ответа, 4xx) окончательно.
func IsPermanent(err error) bool {
	var p *permanentError
	if errors.As(err, &p) {
		return true
	}
	// Сетевые ошибки (в том числе *url.Error от http.Client и таймаут попытки) повторяем всегда
	var ne net.Error
	if errors.As(err, &ne) {
		return false
	}
	var t interface{ Temporary() bool }
	if errors.As(err, &t) {
		return !t.Temporary()
	}
	return true
}

// Do выполняет fn с повторами для временных ошибок (5xx, 429, сеть, таймаут попытки).
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if delay := p.Delay(attempt); delay > 0 {
			log.WithFields(log.Fields{"op": op, "attempt": attempt, "delay": delay}).Debug("Retrying after delay")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := call(ctx, p.CallTimeout, fn)
		if err == nil {
			return nil
		}
		lastErr = err

		// Отмена внешнего контекста: не повод повторять
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if IsPermanent(err) {
			return err
		}
		log.WithFields(log.Fields{"op": op, "attempt": attempt, "max_attempts": attempts}).WithError(err).Warn("Transient failure")
	}

	return fmt.Errorf("%s: max retries exceeded: %w", op, lastErr)
}

func call(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}
