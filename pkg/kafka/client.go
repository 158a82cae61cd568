// Package kafka 提供了向 Kafka 消息队列投递 JSON 消息的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ahsan-gpt-go/internal/config"
	"ahsan-gpt-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer 把任意值以 JSON 形式写入一个固定的 topic。
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer 初始化 Kafka 生产者。brokers 以逗号分隔。
func NewProducer(cfg config.KafkaConfig) *Producer {
	brokers := strings.Split(cfg.Brokers, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	log.Infof("Kafka 生产者初始化成功, topic: %s", cfg.Topic)
	return &Producer{writer: w, topic: cfg.Topic}
}

// Publish 以 key 分区写入一条 JSON 消息。
func (p *Producer) Publish(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal kafka message: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: payload}); err != nil {
		return fmt.Errorf("write kafka message to %s: %w", p.topic, err)
	}
	return nil
}

// Close 关闭底层 writer。
func (p *Producer) Close() error {
	return p.writer.Close()
}
