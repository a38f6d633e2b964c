package sink

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/pipeline"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes routed documents to a Kafka topic
type KafkaSink struct {
	writer messageWriter
	logger *zap.Logger
	topic  string
	now    func() time.Time
}

// NewKafkaSink creates a sink writing to topic on brokers
func NewKafkaSink(brokers []string, topic string, logger *zap.Logger) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return newKafkaSink(writer, topic, logger), nil
}

func newKafkaSink(w messageWriter, topic string, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{writer: w, logger: logger, topic: topic, now: time.Now}
}

// Topic returns the destination topic
func (s *KafkaSink) Topic() string { return s.topic }

// Deliver publishes the document body keyed by document name.
// Verdict diagnostics travel in headers; the body is never altered.
func (s *KafkaSink) Deliver(ctx context.Context, d Delivery) error {
	if d.Doc == nil {
		return errors.New("document cannot be nil")
	}

	msg := kafka.Message{
		Key:     []byte(d.Doc.Name),
		Value:   d.Doc.Body,
		Headers: buildHeaders(d, s.now()),
		Time:    s.now(),
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %q to %s: %w", d.Doc.Name, s.topic, err)
	}

	s.logger.Debug("Document published",
		zap.String("topic", s.topic),
		zap.String("document", d.Doc.Name),
		zap.String("invocationID", d.InvocationID),
	)
	return nil
}

// Close closes the Kafka writer and releases resources
func (s *KafkaSink) Close() error {
	if s.writer != nil {
		s.logger.Info("Closing Kafka sink", zap.String("topic", s.topic))
		return s.writer.Close()
	}
	return nil
}

// buildHeaders renders the delivery metadata as Kafka headers
func buildHeaders(d Delivery, now time.Time) []kafka.Header {
	headers := []kafka.Header{
		{Key: "document_name", Value: []byte(d.Doc.Name)},
		{Key: "invocation_id", Value: []byte(d.InvocationID)},
		{Key: "route", Value: []byte(d.Verdict.Route.String())},
		{Key: "reason_kind", Value: []byte(d.Verdict.ReasonKind())},
		{Key: "record_count", Value: []byte(strconv.Itoa(d.Verdict.RecordCount))},
		{Key: "timestamp", Value: []byte(now.UTC().Format(time.RFC3339))},
	}

	if d.Verdict.Reason != nil {
		headers = append(headers, kafka.Header{Key: "reason", Value: []byte(d.Verdict.Reason.Error())})
	}
	var mf *pipeline.MissingFieldsError
	if errors.As(d.Verdict.Reason, &mf) {
		headers = append(headers,
			kafka.Header{Key: "record_index", Value: []byte(strconv.Itoa(mf.Index))},
			kafka.Header{Key: "missing_fields", Value: []byte(strings.Join(mf.Fields, ","))},
		)
	}

	if meta := d.Doc.Meta; meta != nil && meta.Topic != "" {
		headers = append(headers,
			kafka.Header{Key: "original_topic", Value: []byte(meta.Topic)},
			kafka.Header{Key: "original_partition", Value: []byte(strconv.Itoa(meta.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(strconv.FormatInt(meta.Offset, 10))},
		)
	}

	return headers
}
