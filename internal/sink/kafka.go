package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	jsoniter "github.com/json-iterator/go"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/report"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EnvelopeType tags report messages on the topic.
const EnvelopeType = "analysis_report"

// Envelope wraps every message published to Kafka.
type Envelope struct {
	Type string          `json:"type"`
	TS   int64           `json:"ts"`
	Data jsoniter.RawMessage `json:"data"`
}

// KafkaSink publishes reports to a topic, keyed by run id.
type KafkaSink struct {
	topic string
	p     sarama.SyncProducer
	now   func() time.Time
}

// NewKafkaSink connects a synchronous producer to brokers.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 200 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.MaxMessageBytes = 8 << 20

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaSinkWithProducer(p, topic), nil
}

// NewKafkaSinkWithProducer wraps an existing producer.
func NewKafkaSinkWithProducer(p sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{topic: topic, p: p, now: time.Now}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Publish(ctx context.Context, doc report.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := report.Marshal(doc)
	if err != nil {
		return err
	}
	b, err := json.Marshal(Envelope{Type: EnvelopeType, TS: s.now().UnixMilli(), Data: data})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(doc.RunID),
		Value: sarama.ByteEncoder(b),
	}
	if _, _, err := s.p.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka publish failed: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	if s.p != nil {
		return s.p.Close()
	}
	return nil
}
