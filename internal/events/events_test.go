package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   int
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed++
	return nil
}

func TestKafkaPublisherWritesKeyedMessage(t *testing.T) {
	writer := &fakeWriter{}
	publisher := newKafkaPublisherWithWriter(writer, "student-events")

	event, err := NewEvent(TypeCheckInRecorded, "STU001", map[string]int{"mood": 4})
	if err != nil {
		t.Fatalf("NewEvent returned error: %v", err)
	}
	if err := publisher.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	if len(writer.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(writer.messages))
	}
	msg := writer.messages[0]
	if string(msg.Key) != "STU001" {
		t.Fatalf("unexpected key: %s", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != TypeCheckInRecorded {
		t.Fatalf("unexpected headers: %+v", msg.Headers)
	}

	var decoded Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	if decoded.Type != TypeCheckInRecorded || string(decoded.Payload) != `{"mood":4}` {
		t.Fatalf("unexpected event: %+v", decoded)
	}
}

func TestKafkaPublisherClose(t *testing.T) {
	writer := &fakeWriter{}
	publisher := newKafkaPublisherWithWriter(writer, "student-events")

	if err := publisher.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := publisher.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
	if writer.closed != 1 {
		t.Fatalf("expected writer closed once, got %d", writer.closed)
	}
	if err := publisher.Publish(context.Background(), Event{Type: TypeRiskAssessed}); !errors.Is(err, ErrPublisherClosed) {
		t.Fatalf("expected ErrPublisherClosed, got %v", err)
	}
}

func TestNewKafkaPublisherValidates(t *testing.T) {
	if _, err := NewKafkaPublisher([]string{" "}, "topic"); err == nil {
		t.Fatal("expected error without brokers")
	}
	if _, err := NewKafkaPublisher([]string{"localhost:9092"}, ""); err == nil {
		t.Fatal("expected error without topic")
	}
}

func TestPublishBestEffortSwallowsErrors(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker down")}
	publisher := newKafkaPublisherWithWriter(writer, "student-events")

	PublishBestEffort(context.Background(), publisher, TypeRiskAssessed, "STU001", nil)
	PublishBestEffort(context.Background(), nil, TypeRiskAssessed, "STU001", nil)
	PublishBestEffort(context.Background(), NopPublisher{}, TypeRiskAssessed, "STU001", nil)
}

// blockingWriter 模拟不可达的 broker：一直等到 context 结束。
type blockingWriter struct {
	deadlineSet bool
}

func (w *blockingWriter) WriteMessages(ctx context.Context, _ ...kafka.Message) error {
	_, w.deadlineSet = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

func (w *blockingWriter) Close() error { return nil }

func TestPublishBestEffortIsBounded(t *testing.T) {
	previous := bestEffortTimeout
	bestEffortTimeout = 50 * time.Millisecond
	t.Cleanup(func() { bestEffortTimeout = previous })

	writer := &blockingWriter{}
	publisher := newKafkaPublisherWithWriter(writer, "student-events")

	start := time.Now()
	PublishBestEffort(context.Background(), publisher, TypeCheckInRecorded, "STU001", map[string]int{"mood": 4})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected publish to give up within the bound, took %s", elapsed)
	}
	if !writer.deadlineSet {
		t.Fatal("expected publish context to carry a deadline")
	}
}

func TestPublishBestEffortIgnoresRequestCancellation(t *testing.T) {
	writer := &fakeWriter{}
	publisher := newKafkaPublisherWithWriter(writer, "student-events")

	// 请求已结束时事件仍然发出
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	PublishBestEffort(ctx, publisher, TypeAssignmentToggled, "STU001", nil)
	if len(writer.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(writer.messages))
	}
}
