package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"tryon-web/internal/config"
	"tryon-web/internal/domain"

	wbkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
)

type ProducerClient struct {
	producer *wbkafka.Producer
	topic    string
	strategy retry.Strategy
}

func NewProducerClient(cfg *config.Config) *ProducerClient {
	topic := cfg.Kafka.EventsTopic
	if topic == "" {
		topic = domain.KafkaTopicEvents
	}

	return &ProducerClient{
		producer: wbkafka.NewProducer(cfg.Kafka.Brokers, topic),
		topic:    topic,
		strategy: cfg.DefaultRetryStrategy(),
	}
}

func (p *ProducerClient) Publish(ctx context.Context, event domain.TryOnEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.producer.SendWithRetry(ctx, p.strategy, []byte(event.SessionID), value); err != nil {
		return fmt.Errorf("failed to send event to %s: %w", p.topic, err)
	}
	return nil
}

func (p *ProducerClient) Close() error {
	return p.producer.Close()
}
