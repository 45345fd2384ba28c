// Package journal records strategy log records: every record goes to the
// structured log, the configured store and an in-memory tail, and errors
// and state changes are forwarded to the notifier.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/tickerbot/internal/domain"
	"github.com/alanyoungcy/tickerbot/internal/notify"
)

// DefaultTail is the number of records kept in memory per strategy.
const DefaultTail = 200

// Journal implements the strategy package's Journal.
type Journal struct {
	store    domain.JournalStore
	notifier *notify.Notifier
	logger   *slog.Logger
	tail     int

	mu     sync.RWMutex
	recent map[string][]domain.LogRecord
}

// New creates a Journal. store and notifier may be nil.
func New(store domain.JournalStore, notifier *notify.Notifier, tail int, logger *slog.Logger) *Journal {
	if tail <= 0 {
		tail = DefaultTail
	}
	return &Journal{
		store:    store,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "journal")),
		tail:     tail,
		recent:   make(map[string][]domain.LogRecord),
	}
}

// Record stores rec. Store and notifier failures are logged, never returned:
// trading continues when the journal backend is down.
func (j *Journal) Record(ctx context.Context, rec domain.LogRecord) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}

	j.logger.LogAttrs(ctx, level(rec.Severity), rec.Message,
		slog.String("strategy", rec.Strategy),
		slog.String("operation", string(rec.Operation)),
		slog.String("price", rec.Price.String()),
		slog.String("amount", rec.Amount.String()),
	)

	j.mu.Lock()
	list := append(j.recent[rec.Strategy], rec)
	if len(list) > j.tail {
		list = list[len(list)-j.tail:]
	}
	j.recent[rec.Strategy] = list
	j.mu.Unlock()

	if j.store != nil {
		if err := j.store.Append(ctx, rec); err != nil {
			j.logger.Warn("journal append failed", slog.String("strategy", rec.Strategy), slog.String("error", err.Error()))
		}
	}

	if msg, ok := notification(rec); ok {
		if err := j.notifier.Notify(ctx, msg); err != nil {
			j.logger.Warn("journal notify failed", slog.String("error", err.Error()))
		}
	}
}

// Recent returns up to limit of the latest records of strategy, oldest
// first. limit <= 0 returns the whole tail.
func (j *Journal) Recent(strategy string, limit int) []domain.LogRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()
	list := j.recent[strategy]
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	out := make([]domain.LogRecord, len(list))
	copy(out, list)
	return out
}

func level(s domain.Severity) slog.Level {
	switch s {
	case domain.SeverityError:
		return slog.LevelError
	case domain.SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func notification(rec domain.LogRecord) (notify.Message, bool) {
	switch {
	case rec.Severity == domain.SeverityError:
		return notify.Message{
			Event: notify.EventStrategyError,
			Key:   rec.Strategy,
			Title: fmt.Sprintf("%s: %s failed", rec.Strategy, rec.Operation),
			Body:  rec.Message,
		}, true
	case rec.Operation == domain.OperationStateChange:
		return notify.Message{
			Event: notify.EventStateChange,
			Key:   rec.Strategy + ":" + rec.Message,
			Title: fmt.Sprintf("%s: state", rec.Strategy),
			Body:  rec.Message,
		}, true
	case rec.Operation == domain.OperationBuy || rec.Operation == domain.OperationSell:
		return notify.Message{
			Event: notify.EventTrade,
			Title: fmt.Sprintf("%s: %s", rec.Strategy, rec.Operation),
			Body:  fmt.Sprintf("%s @ %s (%s)", rec.Amount, rec.Price, rec.Message),
		}, true
	}
	return notify.Message{}, false
}
