// Package events 发布学生相关的领域事件。
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// 事件类型。
const (
	TypeCheckInRecorded   = "checkin.recorded"
	TypeAssignmentToggled = "assignment.toggled"
	TypeRiskAssessed      = "risk.assessed"
)

// Event 是一条领域事件，StudentID 同时作为消息键以保证同一学生的事件有序。
type Event struct {
	Type       string          `json:"type"`
	StudentID  string          `json:"studentId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// NewEvent 序列化 payload 并填充时间。
func NewEvent(eventType, studentID string, payload any) (Event, error) {
	event := Event{Type: eventType, StudentID: studentID, OccurredAt: time.Now().UTC()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
		}
		event.Payload = raw
	}
	return event, nil
}

// Publisher 发布领域事件。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher 丢弃所有事件，用于未配置消息队列时。
type NopPublisher struct{}

// Publish 什么也不做。
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close 什么也不做。
func (NopPublisher) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 把事件写入单个 Kafka topic。
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	mu     sync.Mutex
	closed bool
}

// ErrPublisherClosed 表示发布器已关闭。
var ErrPublisherClosed = errors.New("publisher closed")

// NewKafkaPublisher 按 broker 列表与 topic 构造发布器。
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	cleaned := make([]string, 0, len(brokers))
	for _, broker := range brokers {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cleaned...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		MaxAttempts:            3,
		WriteTimeout:           bestEffortTimeout,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisherWithWriter(writer, topic), nil
}

func newKafkaPublisherWithWriter(writer messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic}
}

// Publish 同步写入一条消息。
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPublisherClosed
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.StudentID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Type, p.topic, err)
	}
	return nil
}

// Close 关闭底层 writer，重复调用安全。
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}

// bestEffortTimeout 限制旁路发布占用请求的时间。
var bestEffortTimeout = 2 * time.Second

// PublishBestEffort 发布事件，失败只记录日志。事件是旁路通知，不影响主流程：
// 发布不随请求取消，但最多等待 bestEffortTimeout。
func PublishBestEffort(ctx context.Context, publisher Publisher, eventType, studentID string, payload any) {
	if publisher == nil {
		return
	}
	event, err := NewEvent(eventType, studentID, payload)
	if err != nil {
		log.Printf("[EVENTS] build %s failed: %v", eventType, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bestEffortTimeout)
	defer cancel()
	if err := publisher.Publish(ctx, event); err != nil {
		log.Printf("[EVENTS] publish %s for %s failed: %v", eventType, studentID, err)
	}
}
