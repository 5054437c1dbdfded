package kafka

import (
	"context"
	log "log/slog"

	"Bazaar/internal/api/config"

	"github.com/IBM/sarama"
)

// ConsumerManager 管理审核请求消费者
type ConsumerManager struct {
	topic    string
	consumer sarama.ConsumerGroup
	handler  sarama.ConsumerGroupHandler
}

// NewConsumerManager 构造函数
func NewConsumerManager(cfg config.KafkaConfig, scheduler ModerationScheduler) (*ConsumerManager, error) {
	consumer, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.RequestGroupID, newSaramaConfig(cfg))
	if err != nil {
		return nil, err
	}
	return &ConsumerManager{
		topic:    cfg.Topics.Requested,
		consumer: consumer,
		handler:  NewModerationRequestsHandler(scheduler),
	}, nil
}

// Start 阻塞消费直到 ctx 结束
func (m *ConsumerManager) Start(ctx context.Context) error {
	go func() {
		for err := range m.consumer.Errors() {
			log.Error("Error from consumer group", "err", err)
		}
	}()

	go func() {
		log.Info("Moderation request consumer started", "topic", m.topic)
		for {
			if err := m.consumer.Consume(ctx, []string{m.topic}, m.handler); err != nil {
				log.Error("Error from consumer", "err", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	<-ctx.Done()
	log.Info("Kafka Manager shutting down...")

	if err := m.consumer.Close(); err != nil {
		log.Error("Failed to close moderation request consumer", "err", err)
	}
	return nil
}
