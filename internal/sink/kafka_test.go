package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/types"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func headerMap(hs []kafka.Header) map[string]string {
	out := make(map[string]string, len(hs))
	for _, h := range hs {
		out[h.Key] = string(h.Value)
	}
	return out
}

func TestNewKafkaSink_Validation(t *testing.T) {
	logger := zap.NewNop()

	if _, err := NewKafkaSink(nil, "staging", logger); err == nil {
		t.Error("Expected error for empty brokers")
	}
	if _, err := NewKafkaSink([]string{"localhost:9092"}, "", logger); err == nil {
		t.Error("Expected error for empty topic")
	}
	if _, err := NewKafkaSink([]string{"localhost:9092"}, "staging", nil); err == nil {
		t.Error("Expected error for nil logger")
	}

	s, err := NewKafkaSink([]string{"localhost:9092"}, "staging", logger)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer s.Close()
	if s.Topic() != "staging" {
		t.Errorf("Expected topic 'staging', got: %s", s.Topic())
	}
}

func TestKafkaSink_DeliverRejected(t *testing.T) {
	w := &fakeWriter{}
	s := newKafkaSink(w, "rejected", zap.NewNop())
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	body := []byte(`[{"VehicleID":"V1"}]`)
	doc := &types.Document{
		Name: "landing/batch-1.json",
		Body: body,
		Meta: &types.DocumentMeta{Topic: "landing", Partition: 2, Offset: 42},
	}
	verdict := pipeline.NewGate(pipeline.TelemetrySchema()).Evaluate(body)

	if err := s.Deliver(context.Background(), Delivery{InvocationID: "inv-1", Doc: doc, Verdict: verdict}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(w.msgs))
	}

	msg := w.msgs[0]
	if string(msg.Key) != doc.Name {
		t.Errorf("Expected key %q, got %q", doc.Name, msg.Key)
	}
	if string(msg.Value) != string(body) {
		t.Errorf("Body altered: %q", msg.Value)
	}

	h := headerMap(msg.Headers)
	want := map[string]string{
		"document_name":      "landing/batch-1.json",
		"invocation_id":      "inv-1",
		"route":              "rejected",
		"reason_kind":        "missing_fields",
		"record_count":       "1",
		"record_index":       "0",
		"missing_fields":     "latitude,longitude,City,temperature,speed",
		"original_topic":     "landing",
		"original_partition": "2",
		"original_offset":    "42",
		"timestamp":          "2026-01-02T03:04:05Z",
	}
	for k, v := range want {
		if h[k] != v {
			t.Errorf("header %s: expected %q, got %q", k, v, h[k])
		}
	}
	if h["reason"] == "" {
		t.Error("Expected reason header")
	}
}

func TestKafkaSink_DeliverAcceptedHasNoReason(t *testing.T) {
	w := &fakeWriter{}
	s := newKafkaSink(w, "staging", zap.NewNop())

	doc := &types.Document{Name: "ok.json", Body: []byte(`{}`)}
	verdict := pipeline.NewGate(pipeline.NewSchema()).Evaluate(doc.Body)

	if err := s.Deliver(context.Background(), Delivery{Doc: doc, Verdict: verdict}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	h := headerMap(w.msgs[0].Headers)
	if h["route"] != "accepted" || h["reason_kind"] != "valid" {
		t.Errorf("Unexpected headers: %v", h)
	}
	for _, k := range []string{"reason", "record_index", "missing_fields", "original_topic"} {
		if _, ok := h[k]; ok {
			t.Errorf("Unexpected header %s", k)
		}
	}
}

func TestKafkaSink_DeliverErrors(t *testing.T) {
	writeErr := errors.New("broker down")
	w := &fakeWriter{err: writeErr}
	s := newKafkaSink(w, "staging", zap.NewNop())

	if err := s.Deliver(context.Background(), Delivery{}); err == nil {
		t.Error("Expected error for nil document")
	}

	err := s.Deliver(context.Background(), Delivery{Doc: &types.Document{Name: "a"}})
	if !errors.Is(err, writeErr) {
		t.Errorf("Expected wrapped writer error, got: %v", err)
	}

	if err := s.Close(); err != nil || !w.closed {
		t.Errorf("Expected writer closed, got err=%v closed=%v", err, w.closed)
	}
}
