package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/queue"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/types"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KindKafka marks documents fetched from Kafka.
const KindKafka = "kafka"

// fetchErrorPause throttles the fetch loop after a broker error.
var fetchErrorPause = 500 * time.Millisecond

// redeliveryPause delays re-enqueueing an abandoned document.
var redeliveryPause = time.Second

// messageReader is the part of *kafka.Reader the source uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSource consumes storage-change notifications from the landing topic.
// Each message carries one document: key is the document name, value its bytes.
//
// Committing offset N acknowledges every earlier offset of the partition, so
// commits only advance to the highest offset below the oldest unacknowledged
// one. Abandoned documents hold that mark and are re-enqueued until delivered.
type KafkaSource struct {
	reader  messageReader
	logger  *zap.Logger
	queue   *queue.Queue
	brokers []string
	topic   string
	groupID string

	mu         sync.RWMutex
	stopped    bool
	commitChan chan kafka.Message
	commitDone chan struct{}

	ackMu      sync.Mutex
	offsets    *offsetTracker
	redeliverQ chan *types.Document
}

// NewKafkaSource creates a consumer-group reader with manual offset commits
func NewKafkaSource(brokers []string, topic, groupID string, q *queue.Queue, logger *zap.Logger) (*KafkaSource, error) {
	if len(brokers) == 0 || topic == "" || groupID == "" {
		return nil, fmt.Errorf("brokers, topic and group id are required")
	}
	if q == nil || logger == nil {
		return nil, fmt.Errorf("queue and logger cannot be nil")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,    // documents are routed as soon as they land
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,    // Manual commit only
	})

	s := newKafkaSource(reader, q, logger)
	s.brokers, s.topic, s.groupID = brokers, topic, groupID
	return s, nil
}

func newKafkaSource(r messageReader, q *queue.Queue, logger *zap.Logger) *KafkaSource {
	s := &KafkaSource{
		reader:     r,
		logger:     logger,
		queue:      q,
		commitChan: make(chan kafka.Message, 100),
		commitDone: make(chan struct{}),
		offsets:    newOffsetTracker(),
		redeliverQ: make(chan *types.Document, 100),
	}
	go s.commitLoop()
	return s
}

// Start fetches messages and enqueues them as documents until ctx is cancelled.
// Enqueue blocks while the queue is full, which pauses fetching.
func (s *KafkaSource) Start(ctx context.Context) error {
	s.logger.Info("Starting Kafka source",
		zap.Strings("brokers", s.brokers),
		zap.String("topic", s.topic),
		zap.String("groupID", s.groupID),
	)

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.redeliverLoop(ctx)
	}()
	defer wg.Wait()
	defer cancel()

	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("Kafka source stopped due to context cancellation")
				return ctx.Err()
			}
			s.logger.Error("Failed to fetch message from Kafka", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(fetchErrorPause):
			}
			continue
		}

		doc := &types.Document{
			Name: documentName(msg),
			Body: msg.Value,
			Meta: &types.DocumentMeta{
				Source:     KindKafka,
				Topic:      msg.Topic,
				Partition:  msg.Partition,
				Offset:     msg.Offset,
				ReceivedAt: time.Now(),
			},
		}

		s.offsets.track(msg.Topic, msg.Partition, msg.Offset)
		if err := s.queue.Enqueue(ctx, doc); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.logger.Info("Kafka source stopped due to context cancellation during enqueue")
				return err
			}
			// The offset stays uncommitted, so the message is redelivered later.
			s.logger.Error("Failed to enqueue document",
				zap.Error(err),
				zap.String("document", doc.Name),
				zap.Int64("offset", msg.Offset),
			)
			return err
		}

		s.logger.Debug("Enqueued document",
			zap.String("document", doc.Name),
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Int("bodyLength", len(msg.Value)),
			zap.Int("queueDepth", s.queue.Depth()),
		)
	}
}

// Commit acknowledges the document and queues the partition's new commit mark, if any
func (s *KafkaSource) Commit(doc *types.Document) {
	if doc == nil || doc.Meta == nil {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		s.logger.Warn("Source closed, offset not committed",
			zap.String("document", doc.Name),
			zap.Int64("offset", doc.Meta.Offset),
		)
		return
	}

	// Marks reach the commit loop in the order they were computed.
	s.ackMu.Lock()
	defer s.ackMu.Unlock()

	mark, ok := s.offsets.ack(doc.Meta.Topic, doc.Meta.Partition, doc.Meta.Offset)
	if !ok {
		s.logger.Debug("Offset held behind an unacknowledged document",
			zap.String("document", doc.Name),
			zap.Int("partition", doc.Meta.Partition),
			zap.Int64("offset", doc.Meta.Offset),
		)
		return
	}
	msg := kafka.Message{Topic: doc.Meta.Topic, Partition: doc.Meta.Partition, Offset: mark}

	select {
	case s.commitChan <- msg:
	default:
		s.logger.Warn("Commit channel full, document may be re-processed",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
	}
}

// Abandon keeps the offset unacknowledged, which stops the partition's commit
// mark below it, and schedules the document to be enqueued again.
// If the source is stopping, the document is redelivered after a restart.
func (s *KafkaSource) Abandon(doc *types.Document) {
	if doc == nil || doc.Meta == nil {
		return
	}
	s.logger.Warn("Document abandoned, offset held for redelivery",
		zap.String("document", doc.Name),
		zap.String("topic", doc.Meta.Topic),
		zap.Int("partition", doc.Meta.Partition),
		zap.Int64("offset", doc.Meta.Offset),
	)

	select {
	case s.redeliverQ <- doc:
	default:
		s.logger.Warn("Redelivery backlog full, document waits for restart",
			zap.String("document", doc.Name),
			zap.Int64("offset", doc.Meta.Offset),
		)
	}
}

// redeliverLoop re-enqueues abandoned documents until ctx is cancelled
func (s *KafkaSource) redeliverLoop(ctx context.Context) {
	for {
		var doc *types.Document
		select {
		case <-ctx.Done():
			return
		case doc = <-s.redeliverQ:
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(redeliveryPause):
		}

		if err := s.queue.Enqueue(ctx, doc); err != nil {
			s.logger.Warn("Failed to re-enqueue abandoned document",
				zap.Error(err),
				zap.String("document", doc.Name),
			)
			return
		}
		s.logger.Info("Re-enqueued abandoned document",
			zap.String("document", doc.Name),
			zap.Int64("offset", doc.Meta.Offset),
		)
	}
}

// commitLoop commits offsets as they arrive until the commit channel is closed
func (s *KafkaSource) commitLoop() {
	defer close(s.commitDone)

	// Commits use their own context so the channel drains during shutdown.
	commitCtx := context.Background()

	for msg := range s.commitChan {
		if err := s.reader.CommitMessages(commitCtx, msg); err != nil {
			s.logger.Error("Failed to commit offset",
				zap.Error(err),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			continue
		}
		s.logger.Debug("Committed offset",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
	}
}

// Close drains pending commits and closes the Kafka reader.
// Call it after the workers have stopped so their commits are not lost.
func (s *KafkaSource) Close() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.commitChan)
	s.mu.Unlock()

	<-s.commitDone

	s.logger.Info("Closing Kafka source")
	if err := s.reader.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka reader: %w", err)
	}
	return nil
}

// documentName prefers the message key and falls back to the message position.
func documentName(msg kafka.Message) string {
	if len(msg.Key) > 0 {
		return string(msg.Key)
	}
	return fmt.Sprintf("%s-%d-%d.json", msg.Topic, msg.Partition, msg.Offset)
}
