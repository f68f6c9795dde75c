package queue

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/segmentio/kafka-go"
)

var validTopic = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,249}$`)

// KafkaQueue publishes to and consumes from a single topic. The message
// type travels in a header; the body is the record value.
type KafkaQueue struct {
	brokers []string
	topic   string
	groupID string
	writer  *kafka.Writer
	reader  *kafka.Reader
}

// NewKafkaQueue builds a writer for the topic. The reader is created on the
// first Consume call so API processes never join the consumer group.
func NewKafkaQueue(brokers []string, topic, groupID string) (*KafkaQueue, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if topic == "" {
		return nil, errors.New("kafka: topic required")
	}
	if !validTopic.MatchString(topic) {
		return nil, fmt.Errorf("kafka: invalid topic %q, use letters, digits, '.', '_' or '-'", topic)
	}
	return &KafkaQueue{
		brokers: brokers,
		topic:   topic,
		groupID: groupID,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

// Publish writes one record synchronously.
func (q *KafkaQueue) Publish(ctx context.Context, msg Message) error {
	return q.writer.WriteMessages(ctx, kafka.Message{
		Value:   msg.Body,
		Headers: []kafka.Header{{Key: "type", Value: []byte(msg.Type)}},
		Time:    time.Now(),
	})
}

// Consume reads the topic as part of the configured consumer group.
func (q *KafkaQueue) Consume(ctx context.Context) (<-chan Message, error) {
	if q.reader == nil {
		q.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  q.brokers,
			Topic:    q.topic,
			GroupID:  q.groupID,
			MinBytes: 1,
			MaxBytes: 1 << 20,
		})
	}
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			rec, err := q.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				time.Sleep(time.Second)
				continue
			}
			msg := Message{Body: rec.Value}
			for _, h := range rec.Headers {
				if h.Key == "type" {
					msg.Type = string(h.Value)
				}
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close flushes the writer and leaves the consumer group.
func (q *KafkaQueue) Close() error {
	err := q.writer.Close()
	if q.reader != nil {
		if rerr := q.reader.Close(); err == nil {
			err = rerr
		}
	}
	return err
}
