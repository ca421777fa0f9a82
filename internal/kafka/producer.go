package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/stockpipe/stock-etl/internal/models"
)

// Run event type constants
const (
	EventRunStarted   = "RUN_STARTED"
	EventRunCompleted = "RUN_COMPLETED"
)

// Producer publishes pipeline run lifecycle events to Kafka
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishRunStarted publishes a run started event
func (p *Producer) PublishRunStarted(ctx context.Context, run *models.ExecutionRun) error {
	return p.publish(ctx, run.RunID, models.RunEvent{
		EventType: EventRunStarted,
		RunID:     run.RunID,
		Status:    run.Status,
		Run:       run,
		Timestamp: time.Now(),
	})
}

// PublishRunCompleted publishes a run completed event carrying the
// final counters and terminal status
func (p *Producer) PublishRunCompleted(ctx context.Context, run *models.ExecutionRun) error {
	return p.publish(ctx, run.RunID, models.RunEvent{
		EventType: EventRunCompleted,
		RunID:     run.RunID,
		Status:    run.Status,
		Run:       run,
		Timestamp: time.Now(),
	})
}

func (p *Producer) publish(ctx context.Context, key string, event models.RunEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
