package journal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tickerbot/internal/domain"
	"github.com/alanyoungcy/tickerbot/internal/notify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memStore struct {
	domain.JournalStore
	mu   sync.Mutex
	err  error
	recs []domain.LogRecord
}

func (s *memStore) Append(_ context.Context, rec domain.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.recs = append(s.recs, rec)
	return nil
}

type recSender struct {
	mu     sync.Mutex
	titles []string
}

func (s *recSender) Send(_ context.Context, title, _ string) error {
	s.mu.Lock()
	s.titles = append(s.titles, title)
	s.mu.Unlock()
	return nil
}

func (s *recSender) Name() string { return "rec" }

func TestRecordFillsIDAndTime(t *testing.T) {
	store := &memStore{}
	j := New(store, nil, 0, testLogger())
	j.Record(context.Background(), domain.LogRecord{Strategy: "s", Severity: domain.SeverityInfo, Message: "hi"})

	require.Len(t, store.recs, 1)
	assert.NotEmpty(t, store.recs[0].ID)
	assert.WithinDuration(t, time.Now(), store.recs[0].Time, time.Minute)
}

func TestRecordSurvivesStoreFailure(t *testing.T) {
	j := New(&memStore{err: errors.New("db down")}, nil, 0, testLogger())
	j.Record(context.Background(), domain.LogRecord{Strategy: "s", Message: "hi"})
	assert.Len(t, j.Recent("s", 0), 1)
}

func TestRecentIsBounded(t *testing.T) {
	j := New(nil, nil, 3, testLogger())
	for i := range 5 {
		j.Record(context.Background(), domain.LogRecord{Strategy: "s", Message: fmt.Sprint(i)})
	}
	j.Record(context.Background(), domain.LogRecord{Strategy: "other", Message: "x"})

	recs := j.Recent("s", 0)
	require.Len(t, recs, 3)
	assert.Equal(t, "2", recs[0].Message)
	assert.Equal(t, "4", recs[2].Message)

	recs = j.Recent("s", 1)
	require.Len(t, recs, 1)
	assert.Equal(t, "4", recs[0].Message)
	assert.Empty(t, j.Recent("missing", 0))
}

func TestRecordNotifies(t *testing.T) {
	s := &recSender{}
	n := notify.NewNotifier([]notify.Sender{s}, []string{notify.EventStrategyError, notify.EventStateChange}, 0, testLogger())
	j := New(nil, n, 0, testLogger())
	ctx := context.Background()

	j.Record(ctx, domain.LogRecord{Strategy: "s", Severity: domain.SeverityInfo, Operation: domain.OperationLifecycle, Message: "started"})
	j.Record(ctx, domain.LogRecord{Strategy: "s", Severity: domain.SeverityInfo, Operation: domain.OperationBuy, Price: decimal.NewFromInt(1), Amount: decimal.NewFromInt(1)})
	j.Record(ctx, domain.LogRecord{Strategy: "s", Severity: domain.SeverityError, Operation: domain.OperationBuy, Message: "rejected"})
	j.Record(ctx, domain.LogRecord{Strategy: "s", Severity: domain.SeverityInfo, Operation: domain.OperationStateChange, Message: "waiting_for_buy -> waiting_for_sell"})

	assert.Equal(t, []string{"s: buy failed", "s: state"}, s.titles)
}
