package retention

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shutter-control-backend/internal/model"
	"shutter-control-backend/internal/store"
)

func newTestDB(t *testing.T) *gorm.DB {
	name := strings.ReplaceAll(t.Name(), "/", "_")
	testDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, testDB.AutoMigrate(&model.LogEntry{}))
	return testDB
}

func TestSweepOnce_KeepsEntriesInsideHorizon(t *testing.T) {
	testDB := newTestDB(t)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	entries := []model.LogEntry{
		{Status: "up", Message: "ten days old", Timestamp: now.Add(-10 * 24 * time.Hour)},
		{Status: "down", Message: "eight days old", Timestamp: now.Add(-8 * 24 * time.Hour)},
		{Status: "stop", Message: "just past the horizon", Timestamp: now.Add(-7*24*time.Hour - time.Minute)},
		{Status: "lock", Message: "six days old", Timestamp: now.Add(-6 * 24 * time.Hour)},
		{Status: "open", Message: "an hour old", Timestamp: now.Add(-time.Hour)},
	}
	require.NoError(t, testDB.Create(&entries).Error)

	sweeper := NewSweeper(store.NewGormStore(testDB), 7*24*time.Hour, time.Hour)
	deleted, err := sweeper.SweepOnce(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	var remaining []model.LogEntry
	require.NoError(t, testDB.Order("timestamp").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	assert.Equal(t, "six days old", remaining[0].Message)
	assert.Equal(t, "an hour old", remaining[1].Message)
}

type countingStore struct {
	calls atomic.Int32
	err   error
}

func (c *countingStore) DeleteLogsBefore(context.Context, time.Time) (int64, error) {
	c.calls.Add(1)
	return 0, c.err
}

func TestRun_SweepsImmediatelyAndOnInterval(t *testing.T) {
	s := &countingStore{err: errors.New("database is locked")}
	sweeper := NewSweeper(s, time.Hour, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond,
		"errors must not stop the sweeper")
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the sweeper to stop")
	}
}
