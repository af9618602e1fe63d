// Package kafka appends bucket rows to topics with a synchronous producer.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// MessageIDHeader carries a unique ID on every produced record.
const MessageIDHeader = "message-id"

// Sink implements bucket.Sink over a sarama.SyncProducer.
type Sink struct {
	producer sarama.SyncProducer
}

// NewSink wraps an existing producer.
func NewSink(producer sarama.SyncProducer) *Sink {
	return &Sink{producer: producer}
}

// NewConfig returns the producer configuration used for bucket rows: wait for
// all in-sync replicas, idempotent writes, hash partitioning on the row key.
func NewConfig(clientID string, timeout time.Duration) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Idempotent = true
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Timeout = timeout
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

// Dial connects a sync producer to brokers.
func Dial(brokers []string, cfg *sarama.Config) (*Sink, error) {
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	slog.Info("[KafkaSink] Producer connected", "brokers", brokers)
	return NewSink(producer), nil
}

// Send produces one record and waits for the broker acknowledgement.
func (s *Sink) Send(ctx context.Context, topic string, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte(MessageIDHeader), Value: []byte(uuid.NewString())},
		},
	}
	partition, offset, err := s.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}

	slog.Debug("[KafkaSink] Record produced",
		"topic", topic,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

// Close flushes and closes the producer.
func (s *Sink) Close() error {
	return s.producer.Close()
}
