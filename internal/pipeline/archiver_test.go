package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArchiver struct {
	execBefore    time.Time
	journalBefore time.Time
	execErr       error
	journalCalls  int
}

func (f *fakeArchiver) ArchiveExecutions(_ context.Context, before time.Time) (int64, error) {
	f.execBefore = before
	return 3, f.execErr
}

func (f *fakeArchiver) ArchiveJournal(_ context.Context, before time.Time) (int64, error) {
	f.journalBefore = before
	f.journalCalls++
	return 7, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunUsesRetentionCutoff(t *testing.T) {
	fa := &fakeArchiver{}
	a := NewArchiver(fa, 48*time.Hour, discardLogger())
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	require.NoError(t, a.Run(context.Background()))
	assert.Equal(t, now.Add(-48*time.Hour), fa.execBefore)
	assert.Equal(t, fa.execBefore, fa.journalBefore)
}

func TestRunContinuesAfterExecutionFailure(t *testing.T) {
	boom := errors.New("boom")
	fa := &fakeArchiver{execErr: boom}
	a := NewArchiver(fa, time.Hour, discardLogger())

	err := a.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, fa.journalCalls)
}

func TestParseCron(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 3 * * *", false},
		{"*/15 * * * *", false},
		{"0 0 1,15 * 0", false},
		{"0 3 * *", true},
		{"60 * * * *", true},
		{"*/0 * * * *", true},
		{"x * * * *", true},
		{"0 0 0 * *", true},
		{"0 9 * * 1-5", false},
		{"0-30/10 * * * *", false},
		{"5-1 * * * *", true},
		{"0 0 * 13 *", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := parseCron(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCronNext(t *testing.T) {
	base := time.Date(2024, 5, 10, 12, 7, 30, 0, time.UTC)

	daily, err := parseCron("0 3 * * *")
	require.NoError(t, err)
	next, err := daily.next(base)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 11, 3, 0, 0, 0, time.UTC), next)

	quarter, err := parseCron("*/15 * * * *")
	require.NoError(t, err)
	next, err = quarter.next(base)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 10, 12, 15, 0, 0, time.UTC), next)

	// 2024-05-12 is a Sunday.
	sunday, err := parseCron("30 1 * * 0")
	require.NoError(t, err)
	next, err = sunday.next(base)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 12, 1, 30, 0, 0, time.UTC), next)
}

func TestCronNextRangesAndDayUnion(t *testing.T) {
	base := time.Date(2024, 5, 10, 12, 7, 30, 0, time.UTC) // Friday

	stepped, err := parseCron("0-30/10 * * * *")
	require.NoError(t, err)
	next, err := stepped.next(base)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 10, 12, 10, 0, 0, time.UTC), next)

	weekdays, err := parseCron("0 9 * * 1-5")
	require.NoError(t, err)
	next, err = weekdays.next(base)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 13, 9, 0, 0, 0, time.UTC), next)

	// the 13th or any Friday, whichever comes first
	either, err := parseCron("0 0 13 * 5")
	require.NoError(t, err)
	next, err = either.next(base)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC), next)
}

func TestCronNextNeverMatches(t *testing.T) {
	c, err := parseCron("0 0 31 2 *")
	require.NoError(t, err)
	_, err = c.next(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, errNoCronMatch)
}

func TestRunCronStopsOnCancel(t *testing.T) {
	a := NewArchiver(&fakeArchiver{}, time.Hour, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := a.RunCron(ctx, "0 3 * * *")
	assert.ErrorIs(t, err, context.Canceled)

	err = a.RunCron(context.Background(), "bad")
	assert.Error(t, err)
}
