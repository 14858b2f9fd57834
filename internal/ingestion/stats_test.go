package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsSnapshotComputesSuccessRate(t *testing.T) {
	s := NewStatsAggregator(&fakeStore{}, time.Minute)

	for i := 0; i < 10; i++ {
		s.MarkProcessed("dev-1")
	}
	s.MarkFailed()
	s.MarkFailed()

	snap := s.Snapshot(time.Now())
	assert.Equal(t, int64(10), snap.Processed)
	assert.Equal(t, int64(2), snap.Failed)
	assert.Equal(t, 1, snap.ActiveDevices)
	assert.InDelta(t, 10.0/12.0, snap.SuccessRate, 1e-9)
}

func TestStatsWindowsDoNotAccumulate(t *testing.T) {
	s := NewStatsAggregator(&fakeStore{}, time.Minute)

	for i := 0; i < 10; i++ {
		s.MarkProcessed("dev-1")
	}
	s.MarkFailed()
	s.MarkFailed()
	first := s.Snapshot(time.Now())
	require.Equal(t, int64(10), first.Processed)

	// Second window sees no traffic: everything starts from zero.
	second := s.Snapshot(time.Now())
	assert.Equal(t, int64(0), second.Processed)
	assert.Equal(t, int64(0), second.Failed)
	assert.Equal(t, 0, second.ActiveDevices, "active-device set resets with the window")
	assert.Equal(t, 0.0, second.SuccessRate, "zero denominator yields zero rate")
}

func TestStatsCountsDistinctDevices(t *testing.T) {
	s := NewStatsAggregator(&fakeStore{}, time.Minute)

	s.MarkProcessed("dev-1")
	s.MarkProcessed("dev-2")
	s.MarkProcessed("dev-1")

	snap := s.Snapshot(time.Now())
	assert.Equal(t, int64(3), snap.Processed)
	assert.Equal(t, 2, snap.ActiveDevices)
}

func TestStatsWindowStartAdvances(t *testing.T) {
	s := NewStatsAggregator(&fakeStore{}, time.Minute)

	t1 := time.Now().UTC().Add(time.Minute)
	t2 := t1.Add(time.Minute)

	first := s.Snapshot(t1)
	second := s.Snapshot(t2)

	assert.True(t, first.WindowStart.Before(t1), "first window opened at construction time")
	assert.Equal(t, t1, second.WindowStart, "next window starts where the snapshot was cut")
}

func TestStatsRunPublishesPeriodically(t *testing.T) {
	pub := &fakeStore{}
	s := NewStatsAggregator(pub, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.MarkProcessed("dev-1")

	require.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.stats) >= 2
	}, time.Second, 5*time.Millisecond)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, int64(1), pub.stats[0].Processed)
	assert.Equal(t, int64(0), pub.stats[1].Processed, "published windows reset")
}
