package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"ph-monitor/internal/models"
)

const tank = "sensor.tank_ph"

func TestKeys(t *testing.T) {
	require.Equal(t, "ph:report:sensor.tank_ph", ReportKey(tank))
	require.Equal(t, "pub:ph:sensor.tank_ph", ReportChannel(tank))
}

func TestNew_Unreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("dials a closed port")
	}
	start := time.Now()
	_, err := New(Config{Addr: "127.0.0.1:1"})
	require.ErrorContains(t, err, "failed to ping Redis")
	require.Less(t, time.Since(start), 10*time.Second)
}

func TestDeliver_StoresAndPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(Config{Addr: mr.Addr(), TTL: time.Hour})
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := c.Client().Subscribe(ctx, ReportChannel(tank))
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)
	messages := sub.Channel()

	ph := 8.05
	report := models.Report{Source: tank, State: "high", CurrentPH: &ph, Oscillations: 3}
	require.NoError(t, c.Deliver(ctx, report))

	stored, err := mr.Get(ReportKey(tank))
	require.NoError(t, err)
	var decoded models.Report
	require.NoError(t, json.Unmarshal([]byte(stored), &decoded))
	require.Equal(t, tank, decoded.Source)
	require.Equal(t, 3, decoded.Oscillations)
	require.Equal(t, time.Hour, mr.TTL(ReportKey(tank)))

	select {
	case msg := <-messages:
		require.Equal(t, ReportChannel(tank), msg.Channel)
		require.JSONEq(t, stored, msg.Payload)
	case <-ctx.Done():
		t.Fatal("report was not published")
	}
}

func TestDeliver_DefaultTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(Config{Addr: mr.Addr()})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Deliver(context.Background(), models.Report{Source: tank}))
	require.Equal(t, defaultReportTTL, mr.TTL(ReportKey(tank)))
}

func TestDeliver_ServerGone(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(Config{Addr: mr.Addr()})
	require.NoError(t, err)
	defer c.Close()

	mr.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = c.Deliver(ctx, models.Report{Source: tank})
	require.ErrorContains(t, err, "failed to write report to Redis")
}
