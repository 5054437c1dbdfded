package kafka

import (
	"context"
	log "log/slog"

	"Bazaar/internal/api/config"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Publisher 发布审核事件与审核请求，消息 key 为帖子 id 以保证同一帖子有序
type Publisher struct {
	producer       sarama.SyncProducer
	moderatedTopic string
	requestedTopic string
}

// NewPublisher 连接 broker 并创建同步生产者
func NewPublisher(cfg config.KafkaConfig) (*Publisher, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, newSaramaConfig(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}
	return newPublisher(producer, cfg.Topics), nil
}

func newPublisher(producer sarama.SyncProducer, topics config.KafkaTopics) *Publisher {
	return &Publisher{
		producer:       producer,
		moderatedTopic: topics.Moderated,
		requestedTopic: topics.Requested,
	}
}

// PublishDecision 发布审核结论
func (p *Publisher) PublishDecision(ctx context.Context, evt ModerationEvent) error {
	return p.send(ctx, p.moderatedTopic, evt.PostID, evt)
}

// PublishRequest 发布审核请求，由任意实例的消费者执行
func (p *Publisher) PublishRequest(ctx context.Context, req ModerationRequest) error {
	return p.send(ctx, p.requestedTopic, req.PostID, req)
}

func (p *Publisher) send(ctx context.Context, topic, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal kafka payload")
	}
	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return errors.Wrapf(err, "send to %s", topic)
	}
	log.DebugContext(ctx, "kafka message sent", "topic", topic, "key", key, "partition", partition, "offset", offset)
	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}
