package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pause = 20 * time.Millisecond

func TestCollectPausesBetweenBatches(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.BatchDelay = pause
	c := &HistoryCollector{Log: discardLogger(), Config: cfg, Platform: &fakeHistory{msgs: messageRange(1, 250)}}

	start := time.Now()
	msgs, err := c.Collect(context.Background(), aula, false)
	require.NoError(t, err)

	assert.Len(t, msgs, 250)
	// three pages, the last one is short and ends the walk
	assert.GreaterOrEqual(t, time.Since(start), 2*pause)
}

func TestCollectPausesBeforeRetry(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.RetryDelay = 2 * pause
	platform := &fakeHistory{
		msgs: messageRange(1, 150),
		errs: map[int]error{2: errors.New("internal server error")},
	}
	c := &HistoryCollector{Log: discardLogger(), Config: cfg, Platform: platform}

	start := time.Now()
	msgs, err := c.Collect(context.Background(), aula, false)
	require.NoError(t, err)

	assert.Len(t, msgs, 150)
	assert.GreaterOrEqual(t, time.Since(start), 2*pause)
}

func TestCollectRetryPauseStopsOnCancel(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.RetryDelay = time.Hour
	c := &HistoryCollector{
		Log:      discardLogger(),
		Config:   cfg,
		Platform: &fakeHistory{always: errors.New("internal server error")},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(pause, cancel)

	start := time.Now()
	_, err := c.Collect(ctx, aula, false)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCollectBatchPauseStopsOnCancel(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.BatchDelay = time.Hour
	c := &HistoryCollector{Log: discardLogger(), Config: cfg, Platform: &fakeHistory{msgs: messageRange(1, 250)}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(pause, cancel)

	start := time.Now()
	_, err := c.Collect(ctx, aula, false)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDownloadPausesAfterFailure(t *testing.T) {
	d, _ := newDownloader(t, &fakeMedia{fail: map[string]bool{"doc1": true}})
	d.Config.ErrorDelay = 2 * pause

	start := time.Now()
	report, err := d.Run(context.Background(), aula, scenarioMessages())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Downloaded)
	assert.GreaterOrEqual(t, time.Since(start), 2*pause)
}

func TestDownloadFailurePauseStopsOnCancel(t *testing.T) {
	platform := &fakeMedia{fail: map[string]bool{"doc1": true}}
	d, _ := newDownloader(t, platform)
	d.Config.ErrorDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(pause, cancel)

	start := time.Now()
	report, err := d.Run(ctx, aula, scenarioMessages())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, platform.downloaded)
}

func TestDefaultDelays(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, time.Second, cfg.BatchDelay)
	assert.Equal(t, 5*time.Second, cfg.RetryDelay)
	assert.Equal(t, time.Second, cfg.ErrorDelay)
}

func TestSleep(t *testing.T) {
	start := time.Now()
	require.NoError(t, sleep(context.Background(), pause))
	assert.GreaterOrEqual(t, time.Since(start), pause)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, sleep(ctx, 0), context.Canceled)
}
