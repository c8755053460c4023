package survey

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublisher_Defaults(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")
	p := NewPublisher(nil, "")
	assert.Equal(t, "mobsurvey", p.publishPrefix)
	assert.Equal(t, byte(1), p.qos)
	assert.True(t, p.retain)
	assert.Equal(t, "mobsurvey/sessions/S1", p.SessionTopic("S1"))
	assert.Equal(t, "mobsurvey/batch", p.BatchTopic())
}

func TestNewPublisher_PrefixPrecedence(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")
	assert.Equal(t, "field", NewPublisher(nil, "field").publishPrefix)

	t.Setenv("MQTT_PUBLISH_PREFIX", "env")
	assert.Equal(t, "env", NewPublisher(nil, "field").publishPrefix)
}

func TestPublisher_PublishSession(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")
	mock := newMockClient()
	mock.SetConnected(true)
	p := NewPublisher(mock, "survey")

	ref := 42.5
	sum := Summary{ID: "007_A", Sensor: "007", Points: 10, MeasPoints: 8, Lines: 2, RefAngle: &ref}
	require.NoError(t, p.PublishSession(sum))

	msgs := mock.Published()
	require.Len(t, msgs, 1)
	assert.Equal(t, "survey/sessions/007_A", msgs[0].Topic)
	assert.Equal(t, byte(1), msgs[0].QoS)
	assert.True(t, msgs[0].Retain)

	var got Summary
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &got))
	assert.Equal(t, sum.ID, got.ID)
	assert.Equal(t, 2, got.Lines)
	require.NotNil(t, got.RefAngle)
	assert.InDelta(t, 42.5, *got.RefAngle, 1e-9)
}

func TestPublisher_NotConnected(t *testing.T) {
	mock := newMockClient()
	p := NewPublisher(mock, "survey")

	err := p.PublishSession(Summary{ID: "x"})
	assert.Error(t, err)
	assert.Empty(t, mock.Published())

	assert.Error(t, NewPublisher(nil, "").PublishBatch(BatchSummary{}))
}

func TestPublisher_PublishError(t *testing.T) {
	mock := newMockClient()
	mock.SetConnected(true)
	mock.SetPublishError(errors.New("broker full"))
	p := NewPublisher(mock, "survey")

	err := p.PublishSession(Summary{ID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker full")
}

func TestPublisher_PublishBatch(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")
	mock := newMockClient()
	mock.SetConnected(true)
	p := NewPublisher(mock, "survey")
	p.SetQoS(0)
	p.SetRetain(false)
	p.SetQoS(7) // ignored

	batch := BatchSummary{RunID: "run-1", Files: 3, Processed: 2, Failed: []string{"bad.csv"}, Sessions: []string{"a", "b"}}
	require.NoError(t, p.PublishBatch(batch))

	msgs := mock.Published()
	require.Len(t, msgs, 1)
	assert.Equal(t, "survey/batch", msgs[0].Topic)
	assert.Equal(t, byte(0), msgs[0].QoS)
	assert.False(t, msgs[0].Retain)

	var got BatchSummary
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, []string{"bad.csv"}, got.Failed)
	assert.NotZero(t, got.Timestamp)
}

func TestNewPublisherFromConfig(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")
	mock := newMockClient()
	mock.SetConnected(true)

	cfg := DefaultConfig().MQTT
	p := NewPublisherFromConfig(mock, cfg)
	assert.Equal(t, "mobsurvey", p.publishPrefix)
	assert.Equal(t, byte(1), p.qos)
	assert.True(t, p.retain)

	cfg.PublishPrefix = "field"
	cfg.QoS = 2
	cfg.Retain = false
	p = NewPublisherFromConfig(mock, cfg)
	require.NoError(t, p.PublishSession(Summary{ID: "S1"}))

	msgs := mock.Published()
	require.Len(t, msgs, 1)
	assert.Equal(t, "field/sessions/S1", msgs[0].Topic)
	assert.Equal(t, byte(2), msgs[0].QoS)
	assert.False(t, msgs[0].Retain)
}
