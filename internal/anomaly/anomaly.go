// Package anomaly makes swallowed checkout failures observable. Every report is logged,
// counted and published to the checkout-anomalies topic for the reconciliation tooling.
package anomaly

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const Topic = "checkout-anomalies"

type Kind string

const (
	KindOrderWriteFailed Kind = "order_write_failed"
	KindPaymentUnmatched Kind = "payment_unmatched"
	KindPaidUpdateFailed Kind = "paid_update_failed"
	KindStalePending     Kind = "stale_pending"
	KindOrderRecovered   Kind = "order_recovered"
	KindMalformedEvent   Kind = "malformed_event"
	KindReconcileFailed  Kind = "reconcile_failed"
	KindCancelFailed     Kind = "cancel_update_failed"
)

type Anomaly struct {
	Kind      Kind
	SessionID string
	OrderID   string
	UserID    string
	Detail    string
	Err       error
}

type Sink interface {
	Report(ctx context.Context, a Anomaly)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Reporter struct {
	logger  zerolog.Logger
	counter metric.Int64Counter
	writer  MessageWriter
	timeout time.Duration
	now     func() time.Time
}

// NewReporter builds a reporter. A nil writer disables publishing.
func NewReporter(logger zerolog.Logger, writer MessageWriter) (*Reporter, error) {
	counter, err := otel.Meter("github.com/fjod/era_store/anomaly").Int64Counter(
		"checkout.anomalies",
		metric.WithDescription("Checkout failures that were logged and swallowed"),
	)
	if err != nil {
		return nil, err
	}
	return &Reporter{
		logger:  logger.With().Str("component", "anomaly").Logger(),
		counter: counter,
		writer:  writer,
		timeout: 2 * time.Second,
		now:     time.Now,
	}, nil
}

// NewKafkaWriter returns an async writer so reporting never blocks a request on the broker.
func NewKafkaWriter(logger zerolog.Logger, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error().Err(err).Int("messages", len(messages)).Msg("failed to publish anomalies")
			}
		},
	}
}

type message struct {
	Kind       Kind      `json:"kind"`
	SessionID  string    `json:"session_id,omitempty"`
	OrderID    string    `json:"order_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (r *Reporter) Report(ctx context.Context, a Anomaly) {
	var ev *zerolog.Event
	if a.Err != nil {
		ev = r.logger.Error().Err(a.Err)
	} else {
		ev = r.logger.Warn()
	}
	ev.Str("kind", string(a.Kind)).
		Str("session_id", a.SessionID).
		Str("order_id", a.OrderID).
		Str("user_id", a.UserID).
		Str("detail", a.Detail).
		Msg("checkout anomaly")

	r.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(a.Kind))))

	if r.writer == nil {
		return
	}

	m := message{
		Kind:       a.Kind,
		SessionID:  a.SessionID,
		OrderID:    a.OrderID,
		UserID:     a.UserID,
		Detail:     a.Detail,
		OccurredAt: r.now().UTC(),
	}
	if a.Err != nil {
		m.Error = a.Err.Error()
	}
	payload, err := json.Marshal(m)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to marshal anomaly")
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	err = r.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(a.SessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(a.Kind)},
		},
	})
	if err != nil {
		r.logger.Error().Err(err).Str("kind", string(a.Kind)).Msg("failed to publish anomaly")
	}
}
