package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ph-monitor/internal/models"
)

var received = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		value   string
		ts      time.Time
	}{
		{"plain", " 8.12\n", "8.12", received},
		{"unavailable", "unavailable", "unavailable", received},
		{"empty", "", "", received},
		{"json number", `{"value": 7.95}`, "7.95", received},
		{"json string", `{"value": "unknown"}`, "unknown", received},
		{"json null", `{"value": null}`, "", received},
		{
			"json timestamp",
			`{"value": 8.01, "timestamp": "2026-03-01T09:30:00+01:00"}`,
			"8.01",
			time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			value, ts, err := ParsePayload([]byte(test.payload), received)
			require.NoError(t, err)
			require.Equal(t, test.value, value)
			require.True(t, test.ts.Equal(ts), "got %v", ts)
		})
	}
}

func TestParsePayload_Errors(t *testing.T) {
	_, _, err := ParsePayload([]byte(`{"value": 8.0`), received)
	require.ErrorContains(t, err, "failed to decode")

	_, _, err = ParsePayload([]byte(`{"value": 8.0, "timestamp": "yesterday"}`), received)
	require.ErrorContains(t, err, "timestamp")

	_, _, err = ParsePayload([]byte(`{"value": true}`), received)
	require.Error(t, err)
}

func TestSubscriber_HandlePH(t *testing.T) {
	changes := make(chan models.StateChange, 4)
	s := NewSubscriber(&fakeClient{}, SubscriberConfig{PHTopic: "sensor/+/ph"}, changes)
	s.now = func() time.Time { return received }

	s.handlePH(nil, fakeMessage{topic: "sensor/sensor.tank_ph/ph", payload: []byte("8.10")})
	s.handlePH(nil, fakeMessage{topic: "sensor/sensor.sump_ph/ph", payload: []byte("7.90")})
	s.handlePH(nil, fakeMessage{topic: "sensor/sensor.tank_ph/ph", payload: []byte("unavailable")})
	s.handlePH(nil, fakeMessage{topic: "nosource", payload: []byte("8.0")})
	s.handlePH(nil, fakeMessage{topic: "sensor/sensor.tank_ph/ph", payload: []byte("{broken")})

	require.Len(t, changes, 3)

	first := <-changes
	require.Nil(t, first.Old)
	require.Equal(t, "sensor.tank_ph", first.New.Source)
	require.Equal(t, "8.10", first.New.Value)
	require.Equal(t, received, first.New.Timestamp)

	second := <-changes
	require.Nil(t, second.Old)
	require.Equal(t, "sensor.sump_ph", second.New.Source)

	third := <-changes
	require.NotNil(t, third.Old)
	require.Equal(t, "8.10", third.Old.Value)
	require.Equal(t, "unavailable", third.New.Value)
}

func TestSubscriber_DropsWhenFull(t *testing.T) {
	changes := make(chan models.StateChange)
	s := NewSubscriber(&fakeClient{}, SubscriberConfig{PHTopic: "sensor/+/ph", SendTimeout: 10 * time.Millisecond}, changes)

	s.handlePH(nil, fakeMessage{topic: "sensor/a/ph", payload: []byte("8.0")})
	require.Empty(t, changes)
}

func TestSubscriber_SubscribeAll(t *testing.T) {
	client := &fakeClient{}
	s := NewSubscriber(client, SubscriberConfig{PHTopic: "sensor/+/ph"}, nil)
	require.NoError(t, s.SubscribeAll())
	require.Equal(t, []string{"sensor/+/ph"}, client.subscribed)

	client.err = errors.New("not authorized")
	require.ErrorContains(t, s.SubscribeAll(), "not authorized")

	require.Error(t, NewSubscriber(client, SubscriberConfig{}, nil).SubscribeAll())
}

func TestPublisher_Deliver(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, PublisherConfig{ReportTopic: "ph/{source}/report"})

	ph := 8.02
	report := models.Report{Source: "sensor.tank_ph", State: "stable", CurrentPH: &ph}
	require.NoError(t, p.Deliver(context.Background(), report))

	require.Len(t, client.published, 1)
	msg := client.published[0]
	require.Equal(t, "ph/sensor.tank_ph/report", msg.topic)
	require.True(t, msg.retained)

	var decoded models.Report
	require.NoError(t, json.Unmarshal(msg.payload, &decoded))
	require.Equal(t, "stable", decoded.State)
	require.Equal(t, 8.02, *decoded.CurrentPH)

	client.err = errors.New("broker gone")
	require.ErrorContains(t, p.Deliver(context.Background(), report), "broker gone")
}
