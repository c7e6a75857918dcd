package anomaly

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	messages []kafka.Message
	err      error
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func TestReport_PublishesAndLogs(t *testing.T) {
	var logs bytes.Buffer
	writer := &mockWriter{}
	reporter, err := NewReporter(zerolog.New(&logs), writer)
	require.NoError(t, err)
	reporter.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	reporter.Report(context.Background(), Anomaly{
		Kind:      KindOrderWriteFailed,
		SessionID: "cs_test_1",
		UserID:    "user-1",
		Err:       errors.New("connection reset"),
	})

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "cs_test_1", string(msg.Key))
	assert.Equal(t, "kind", msg.Headers[0].Key)
	assert.Equal(t, string(KindOrderWriteFailed), string(msg.Headers[0].Value))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "order_write_failed", payload["kind"])
	assert.Equal(t, "connection reset", payload["error"])
	assert.Equal(t, "2026-01-02T03:04:05Z", payload["occurred_at"])

	assert.Contains(t, logs.String(), `"kind":"order_write_failed"`)
	assert.Contains(t, logs.String(), `"level":"error"`)
}

func TestReport_WithoutErrorLogsWarning(t *testing.T) {
	var logs bytes.Buffer
	reporter, err := NewReporter(zerolog.New(&logs), nil)
	require.NoError(t, err)

	reporter.Report(context.Background(), Anomaly{Kind: KindPaymentUnmatched, SessionID: "cs_test_2"})

	assert.Contains(t, logs.String(), `"level":"warn"`)
	assert.Contains(t, logs.String(), `"session_id":"cs_test_2"`)
}

func TestReport_PublishFailureIsSwallowed(t *testing.T) {
	var logs bytes.Buffer
	writer := &mockWriter{err: errors.New("broker down")}
	reporter, err := NewReporter(zerolog.New(&logs), writer)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		reporter.Report(context.Background(), Anomaly{Kind: KindPaidUpdateFailed, SessionID: "cs_test_3"})
	})
	assert.Contains(t, logs.String(), "failed to publish anomaly")
}
