package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ph-monitor/internal/models"
	"ph-monitor/internal/oscillation"
)

func TestSensorService_PersistsAndRoutes(t *testing.T) {
	r := NewRegistry()
	s, _ := newTestSession(oscillation.ModeStreaming, nil)
	require.NoError(t, r.Add(s))
	store := &fakeHistory{}
	svc := NewSensorService(store, r, DefaultSensorServiceConfig())
	ctx := context.Background()

	svc.process(ctx, state("8.05", 0))
	svc.process(ctx, state("unavailable", 1))
	svc.process(ctx, models.StateChange{New: &models.RawState{Source: "sensor.other", Timestamp: t0, Value: "7.0"}})

	require.Len(t, store.saved, 2)
	require.Equal(t, models.Reading{Source: tank, Timestamp: t0, Value: 8.05}, store.saved[0])
	require.Equal(t, "sensor.other", store.saved[1].Source)

	// the unavailable state still reaches the session, which logs and skips it
	require.Len(t, s.queue, 2)
}

func TestSensorService_Start(t *testing.T) {
	r := NewRegistry()
	s, _ := newTestSession(oscillation.ModeStreaming, nil)
	require.NoError(t, r.Add(s))
	svc := NewSensorService(nil, r, DefaultSensorServiceConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	svc.ChangeChan <- state("8.0", 0)
	require.Eventually(t, func() bool { return len(s.queue) == 1 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sensor service did not stop")
	}
}
