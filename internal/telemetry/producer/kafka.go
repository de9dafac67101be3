package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"parkncharge/registration/internal/telemetry/domain"
)

var _ Producer = (*KafkaProducer)(nil)

// KafkaProducer implements Producer using franz-go.
type KafkaProducer struct {
	client *kgo.Client
	topic  string
}

// NewKafkaProducer creates a Kafka producer that writes registration events to the given topic.
// Returns nil, nil when brokers or topic are empty so callers can treat events as disabled.
func NewKafkaProducer(brokers []string, topic string, opts ...kgo.Opt) (*KafkaProducer, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, nil
	}
	opts = append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(50 * time.Millisecond),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}, opts...)
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return &KafkaProducer{client: client, topic: topic}, nil
}

// Emit serializes the event as JSON and produces it synchronously, keyed by user id.
// The context bounds the produce; EmitAsync supplies a short timeout.
func (p *KafkaProducer) Emit(ctx context.Context, event *domain.Event) error {
	if p == nil || p.client == nil || event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   event.Key(),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	return p.client.ProduceSync(ctx, rec).FirstErr()
}

// Close flushes buffered records and closes the client. Safe to call multiple times.
func (p *KafkaProducer) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := p.client.Flush(ctx)
	p.client.Close()
	p.client = nil
	return err
}
