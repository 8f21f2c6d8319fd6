package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	kgo "github.com/segmentio/kafka-go"
)

// KafkaPublisher writes events to a topic keyed by post id, so all events
// for one post land on the same partition in order.
type KafkaPublisher struct {
	w *kgo.Writer
}

// NewKafkaPublisher creates a writer; connections are opened lazily.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kgo.Writer{
		Addr:                   kgo.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kgo.Hash{},
		RequiredAcks:           kgo.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) (err error) {
	defer func() { record("kafka", err) }()

	msg, err := message(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

func message(ev Event) (kgo.Message, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return kgo.Message{}, err
	}
	return kgo.Message{
		Key:   []byte(strconv.FormatUint(uint64(ev.PostID), 10)),
		Value: b,
		Time:  ev.At,
		Headers: []kgo.Header{
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	}, nil
}
