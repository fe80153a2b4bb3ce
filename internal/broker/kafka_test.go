package appkafka

import (
	"context"
	"testing"
	"time"

	"example.com/socialapi/internal/models"
	"github.com/segmentio/kafka-go"
)

func TestKafkaPublisher_EncodesEventKeyedByType(t *testing.T) {
	mock := &MockKafka{}
	p := NewKafkaPublisher(mock)

	ev := models.Event{ID: "e1", Type: models.EventLike, ActorID: "a", RecipientID: "b", TargetID: "p1", Created: time.Now().UTC()}
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	written := mock.Written()
	if len(written) != 1 {
		t.Fatalf("expected 1 message, got %d", len(written))
	}
	if string(written[0].Key) != models.EventLike {
		t.Fatalf("expected key %q, got %q", models.EventLike, written[0].Key)
	}

	got, err := DecodeEvent(written[0])
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.ID != "e1" || got.RecipientID != "b" || got.TargetID != "p1" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := NewKafkaPublisher(&MockKafkaFail{})
	if err := p.Publish(context.Background(), models.Event{Type: models.EventFollow}); err == nil {
		t.Fatalf("expected error from MockKafkaFail")
	}
}

func TestKafkaPublisher_CanceledContext(t *testing.T) {
	mock := &MockKafka{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewKafkaPublisher(mock).Publish(ctx, models.Event{Type: models.EventFollow}); err == nil {
		t.Fatalf("expected context error")
	}
	if len(mock.Written()) != 0 {
		t.Fatalf("nothing should be written after cancel")
	}
}

func TestDecodeEvent_Invalid(t *testing.T) {
	if _, err := DecodeEvent(kafka.Message{Value: []byte("{invalid-json}")}); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
	if _, err := DecodeEvent(kafka.Message{Value: []byte(`{"type":"follow"}`)}); err == nil {
		t.Fatalf("expected error for missing recipient")
	}
}
