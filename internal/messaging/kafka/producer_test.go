package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/vladislavdragonenkov/comptoirs/internal/domain"
)

func domainOutboxMessage() domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            "b3a0e6c2-7d1f-4f7a-9f57-2f5a7f9f1d20",
		AggregateType: "order",
		AggregateID:   "100042",
		EventType:     "order.shipped",
		Payload:       []byte(`{"order_number":100042}`),
	}
}

func TestProducer_PublishEvent(t *testing.T) {
	mockClient := mocks.NewSyncProducer(t, nil)
	producer := NewProducerWithClient(mockClient)

	mockClient.ExpectSendMessageAndSucceed()

	event := NewOrderEvent(
		EventTypeOrderCreated,
		100042,
		"ALFKI",
		map[string]interface{}{
			"discount": "0.15",
		},
	)

	if err := producer.PublishEvent(TopicOrderEvents, "100042", event); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockClient.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockClient := mocks.NewSyncProducer(t, nil)
	producer := NewProducerWithClient(mockClient)

	mockClient.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	event := NewOrderEvent(EventTypeOrderCreated, 100042, "ALFKI", nil)

	if err := producer.PublishEvent(TopicOrderEvents, "100042", event); err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockClient.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisherEnvelope(t *testing.T) {
	mockClient := mocks.NewSyncProducer(t, nil)
	producer := NewProducerWithClient(mockClient)
	publisher := NewOutboxPublisher(producer, "")

	mockClient.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var envelope outboxEnvelope
		if err := json.Unmarshal(value, &envelope); err != nil {
			return err
		}
		if envelope.AggregateID != "100042" {
			t.Errorf("expected aggregate_id 100042, got %s", envelope.AggregateID)
		}
		if envelope.EventType != "order.shipped" {
			t.Errorf("expected event_type order.shipped, got %s", envelope.EventType)
		}
		if string(envelope.Payload) != `{"order_number":100042}` {
			t.Errorf("unexpected payload: %s", envelope.Payload)
		}
		if envelope.PublishedAt.IsZero() {
			t.Error("published_at should be set")
		}
		return nil
	})

	err := publisher.Publish(domainOutboxMessage())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockClient.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestPartitionKeyFallsBackToMessageID(t *testing.T) {
	msg := domainOutboxMessage()
	if got := partitionKey(msg); got != "100042" {
		t.Errorf("expected key 100042, got %s", got)
	}

	msg.AggregateID = ""
	if got := partitionKey(msg); got != msg.ID {
		t.Errorf("expected fallback to message ID %s, got %s", msg.ID, got)
	}
}

func TestNewOrderEvent(t *testing.T) {
	metadata := map[string]interface{}{
		"product_ref": int64(93),
		"quantity":    int32(10),
	}

	event := NewOrderEvent(EventTypeLineAdded, 100042, "BONAP", metadata)

	if event.EventType != EventTypeLineAdded {
		t.Errorf("expected event type %s, got %s", EventTypeLineAdded, event.EventType)
	}

	if event.OrderNumber != 100042 {
		t.Errorf("expected order number 100042, got %d", event.OrderNumber)
	}

	if event.CustomerCode != "BONAP" {
		t.Errorf("expected customer code BONAP, got %s", event.CustomerCode)
	}

	if event.Metadata["quantity"] != int32(10) {
		t.Error("metadata not set correctly")
	}

	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}

	if time.Since(event.Timestamp) > time.Second {
		t.Error("timestamp should be close to current time")
	}
}
