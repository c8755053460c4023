package survey

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// BatchSummary describes one processing run
type BatchSummary struct {
	RunID     string   `json:"runId"`
	Files     int      `json:"files"`
	Processed int      `json:"processed"`
	Failed    []string `json:"failed,omitempty"`
	Sessions  []string `json:"sessions"`
	Timestamp int64    `json:"timestamp"`
}

// Publisher announces processed sessions on MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
}

// NewPublisher creates a session publisher. The prefix comes from
// MQTT_PUBLISH_PREFIX, then prefix, then "mobsurvey". If client is nil,
// publishing fails with an error.
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
		prefix = env
	}
	if prefix == "" {
		prefix = "mobsurvey"
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           1,
		retain:        true,
	}
}

// NewPublisherFromConfig creates a publisher with the prefix, QoS and retain
// flag of the MQTT configuration
func NewPublisherFromConfig(client mqtt.Client, cfg MQTTConfig) *Publisher {
	p := NewPublisher(client, cfg.PublishPrefix)
	p.SetQoS(cfg.QoS)
	p.SetRetain(cfg.Retain)
	return p
}

// SessionTopic returns the topic a session summary is published on
func (p *Publisher) SessionTopic(id string) string {
	return fmt.Sprintf("%s/sessions/%s", p.publishPrefix, id)
}

// BatchTopic returns the topic of the batch summary
func (p *Publisher) BatchTopic() string {
	return fmt.Sprintf("%s/batch", p.publishPrefix)
}

// PublishSession publishes a retained JSON summary of one session
func (p *Publisher) PublishSession(sum Summary) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	payload, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshaling session summary: %w", err)
	}
	if err := p.publish(p.SessionTopic(sum.ID), payload); err != nil {
		return err
	}
	log.Printf("Published summary for %s (%d points, %d lines)", sum.ID, sum.Points, sum.Lines)
	return nil
}

// PublishBatch publishes the run summary
func (p *Publisher) PublishBatch(batch BatchSummary) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}
	if batch.Timestamp == 0 {
		batch.Timestamp = time.Now().Unix()
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshaling batch summary: %w", err)
	}
	return p.publish(p.BatchTopic(), payload)
}

func (p *Publisher) publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
