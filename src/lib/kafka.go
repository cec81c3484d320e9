package lib

import (
	"context"
	"encoding/json"
	"eventix/src/types"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/zap"
)

func GetKafkaProducerConfig(broker string, clientId string) kafka.ConfigMap {
	return kafka.ConfigMap{
		"bootstrap.servers": broker,
		"client.id":         clientId,
		"acks":              "all",
	}
}

func NewKafkaMessage(topic string, key string, payload types.JSONB) (*kafka.Message, error) {
	value, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          value,
	}, nil
}

// KafkaPublisher produces lifecycle events keyed by transaction id so every
// event of one transaction lands on the same partition.
type KafkaPublisher struct {
	producer *kafka.Producer
}

func NewKafkaPublisher(broker string, clientId string) (*KafkaPublisher, error) {
	cfg := GetKafkaProducerConfig(broker, clientId)
	p, err := kafka.NewProducer(&cfg)
	if err != nil {
		zap.L().Error("error on producer", zap.Error(err))
		return nil, err
	}
	return &KafkaPublisher{producer: p}, nil
}

func (k *KafkaPublisher) Publish(ctx context.Context, topic string, payload types.JSONB) error {
	key, _ := payload["id"].(string)
	msg, err := NewKafkaMessage(topic, key, payload)
	if err != nil {
		return err
	}
	delivery := make(chan kafka.Event, 1)
	if err := k.producer.Produce(msg, delivery); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ev := <-delivery:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %v", ev)
		}
		return m.TopicPartition.Error
	}
}

func (k *KafkaPublisher) Close() {
	k.producer.Flush(5000)
	k.producer.Close()
}

// LogPublisher writes lifecycle events to the process log.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (l *LogPublisher) Publish(ctx context.Context, topic string, payload types.JSONB) error {
	l.logger.Info("lifecycle event", zap.String("topic", topic), zap.Any("payload", payload))
	return nil
}
