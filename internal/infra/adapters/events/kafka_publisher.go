package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"okpay-settlement/internal/domain/model"
)

// messageWriter is the part of *kafka.Writer we use.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DepositMessage is the wire form of a payment event.
type DepositMessage struct {
	Event           string    `json:"event"`
	Plugin          string    `json:"plugin"`
	TransactionID   string    `json:"transaction_id"`
	InstructionID   string    `json:"instruction_id"`
	ReferenceNumber string    `json:"reference_number"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	State           string    `json:"state"`
	OccurredAt      time.Time `json:"occurred_at"`
}

var _ Listener = (*KafkaPublisher)(nil)

// KafkaPublisher forwards payment events to a topic, keyed by instruction id
// so every event of one instruction lands on the same partition.
type KafkaPublisher struct {
	w messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 10 * time.Second,
	}}
}

func (p *KafkaPublisher) HandleEvent(ctx context.Context, name string, evt model.PaymentEvent) error {
	t := evt.Transaction
	if t == nil {
		return fmt.Errorf("event %s has no transaction", name)
	}
	payload, err := json.Marshal(DepositMessage{
		Event:           name,
		Plugin:          evt.PluginName,
		TransactionID:   t.ID,
		InstructionID:   t.InstructionID,
		ReferenceNumber: t.ReferenceNumber,
		Amount:          t.ProcessedAmount.String(),
		Currency:        t.Currency(),
		State:           string(t.State),
		OccurredAt:      evt.OccurredAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", name, err)
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(t.InstructionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(name)},
		},
	})
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }
