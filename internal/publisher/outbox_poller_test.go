package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fjod/era_store/internal/repository"
	"github.com/rs/zerolog"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

type MockRepository struct {
	mu           sync.Mutex
	OutboxEvents []*repository.OutboxEvent
	FetchErr     error
	MarkErr      error
	ProcessedIDs []int64
}

func (m *MockRepository) GetUnprocessedEvents(context.Context, int) ([]*repository.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	ev := m.OutboxEvents
	m.OutboxEvents = nil
	return ev, nil
}

func (m *MockRepository) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.ProcessedIDs = append(m.ProcessedIDs, id)
	return nil
}

func (m *MockRepository) processed() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.ProcessedIDs...)
}

type mockWriter struct {
	messages []kafkaGo.Message
	failOn   string
}

func (w *mockWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	for _, m := range msgs {
		if w.failOn != "" && string(m.Key) == w.failOn {
			return errors.New("broker unavailable")
		}
		w.messages = append(w.messages, m)
	}
	return nil
}

func outboxEvent(id int64, aggregate string) *repository.OutboxEvent {
	return &repository.OutboxEvent{
		ID:          id,
		AggregateID: aggregate,
		EventType:   "OrderPaid",
		Payload:     json.RawMessage(fmt.Sprintf(`{"order_id":%q,"total":17600}`, aggregate)),
		CreatedAt:   time.Now(),
	}
}

func TestProcessUnpublishedEvents(t *testing.T) {
	repo := &MockRepository{OutboxEvents: []*repository.OutboxEvent{outboxEvent(1, "order-1"), outboxEvent(2, "order-2")}}
	writer := &mockWriter{}
	poller := NewOutboxPoller(repo, writer, zerolog.Nop())

	poller.processUnpublishedEvents(context.Background())

	require.Len(t, writer.messages, 2)
	assert.Equal(t, "order-1", string(writer.messages[0].Key))
	assert.Equal(t, "event_type", writer.messages[0].Headers[0].Key)
	assert.Equal(t, "OrderPaid", string(writer.messages[0].Headers[0].Value))
	assert.Equal(t, []int64{1, 2}, repo.processed())
}

func TestProcessUnpublishedEvents_StopsOnPublishFailure(t *testing.T) {
	repo := &MockRepository{OutboxEvents: []*repository.OutboxEvent{
		outboxEvent(1, "order-1"), outboxEvent(2, "order-2"), outboxEvent(3, "order-3"),
	}}
	writer := &mockWriter{failOn: "order-2"}
	poller := NewOutboxPoller(repo, writer, zerolog.Nop())

	poller.processUnpublishedEvents(context.Background())

	assert.Equal(t, []int64{1}, repo.processed())
}

func TestProcessUnpublishedEvents_FetchError(t *testing.T) {
	repo := &MockRepository{FetchErr: errors.New("db down")}
	writer := &mockWriter{}
	poller := NewOutboxPoller(repo, writer, zerolog.Nop())

	poller.processUnpublishedEvents(context.Background())

	assert.Empty(t, writer.messages)
}

func TestRun_StopsOnCancel(t *testing.T) {
	poller := NewOutboxPoller(&MockRepository{}, &mockWriter{}, zerolog.Nop())
	poller.eventTick = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestOutboxPoller_PublishesEventsToKafka(t *testing.T) {
	brokerAddr, cleanup := setupKafka(t)
	defer cleanup()

	createTopic(t, brokerAddr, Topic)
	time.Sleep(5 * time.Second)

	repo := &MockRepository{OutboxEvents: []*repository.OutboxEvent{outboxEvent(1, "order-123")}}

	writer := NewKafkaWriter(brokerAddr)
	writer.WriteTimeout = 10 * time.Second
	writer.ReadTimeout = 10 * time.Second
	defer writer.Close()

	poller := NewOutboxPoller(repo, writer, zerolog.Nop())
	poller.timeout = 10 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	go poller.Run(ctx)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    Topic,
		GroupID:  "test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "order-123", string(msg.Key))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "order-123", payload["order_id"])

	assert.Eventually(t, func() bool { return len(repo.processed()) == 1 }, 5*time.Second, 100*time.Millisecond)
}
