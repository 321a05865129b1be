package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	segkafka "github.com/segmentio/kafka-go"

	"LegalMind/internal/database/kafka"
	"LegalMind/internal/rag/interfaces"
	"LegalMind/internal/rag/schema"
	"LegalMind/pkg/logger"
)

// StageEvent is the message published for each completed query turn.
type StageEvent struct {
	SessionID  string                   `json:"session_id"`
	Stages     []schema.ProcessingStage `json:"stages"`
	ObservedAt time.Time                `json:"observed_at"`
}

// KafkaObserver publishes stage logs to the stage topic. Publishing is
// fire-and-forget: failures are logged and never surfaced to the request.
type KafkaObserver struct {
	writer *segkafka.Writer
	log    *logger.Logger
}

// NewKafkaObserver wraps the shared Kafka client as a StageObserver.
func NewKafkaObserver(client *kafka.KafkaClient, log *logger.Logger) *KafkaObserver {
	return &KafkaObserver{writer: client.Writer, log: log}
}

// ObserveStages publishes the stage log of one turn, keyed by session id.
func (o *KafkaObserver) ObserveStages(ctx context.Context, sessionID string, stages []schema.ProcessingStage) {
	if o == nil || o.writer == nil || len(stages) == 0 {
		return
	}

	event := StageEvent{
		SessionID:  sessionID,
		Stages:     stages,
		ObservedAt: time.Now().UTC(),
	}
	jsonData, err := json.Marshal(event)
	if err != nil {
		o.log.Warn(fmt.Sprintf("failed to marshal stage event: %v", err))
		return
	}

	err = o.writer.WriteMessages(ctx, segkafka.Message{
		Key:   []byte(sessionID),
		Value: jsonData,
	})
	if err != nil {
		o.log.Warn(fmt.Sprintf("failed to publish stage event: %v", err))
	}
}

// NopObserver discards stage logs. Used when Kafka is disabled.
type NopObserver struct{}

// ObserveStages does nothing.
func (NopObserver) ObserveStages(context.Context, string, []schema.ProcessingStage) {}

var (
	_ interfaces.StageObserver = (*KafkaObserver)(nil)
	_ interfaces.StageObserver = NopObserver{}
)
