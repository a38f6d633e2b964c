// Command producer publishes telemetry documents to the landing topic, the way
// the storage-change notifier would, to exercise the gate under load.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var (
	brokers   string
	topic     string
	httpPort  string
	batchSize int
	rate      int
	duration  time.Duration
	payloads  []string
)

func init() {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	flag.StringVar(&brokers, "brokers", getEnv("KAFKA_BROKERS", "localhost:9092"), "Kafka broker addresses (comma-separated)")
	flag.StringVar(&topic, "topic", getEnv("KAFKA_LANDING_TOPIC", "landing"), "Landing topic name")
	flag.StringVar(&httpPort, "http", "", "HTTP server address (e.g., :8081). If set, POST /<name> publishes the body as document <name>")
	flag.IntVar(&batchSize, "batch", 0, "Number of documents to produce (0 = infinite)")
	flag.IntVar(&rate, "rate", 0, "Documents per second (0 = as fast as possible)")
	flag.DurationVar(&duration, "duration", 0, "Duration to run (e.g., 30s, 5m). If set, overrides batch")
	flag.Parse()

	payloads = flag.Args()
	if len(payloads) == 0 {
		payloads = []string{
			"payloads/valid.json",
			"payloads/missing-city.json",
			"payloads/empty.json",
			"payloads/malformed.json",
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// document is one payload file ready to publish
type document struct {
	base string
	body []byte
}

// landingName gives every published copy its own document name
func (d document) landingName() string {
	ext := filepath.Ext(d.base)
	return fmt.Sprintf("%s-%s%s", strings.TrimSuffix(d.base, ext), uuid.NewString(), ext)
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerList...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
	defer writer.Close()

	logger.Info("Landing producer initialized",
		zap.Strings("brokers", brokerList),
		zap.String("topic", topic),
	)

	if httpPort != "" {
		runHTTPProducer(writer, logger)
		return
	}
	runCLIProducer(writer, logger)
}

func runHTTPProducer(writer *kafka.Writer, logger *zap.Logger) {
	logger.Info("Starting HTTP producer server",
		zap.String("address", httpPort),
		zap.String("topic", topic),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		defer r.Body.Close()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			logger.Error("Failed to read request body", zap.Error(err))
			http.Error(w, "Failed to read body", http.StatusBadRequest)
			return
		}

		name := strings.TrimPrefix(r.URL.Path, "/")
		if name == "" {
			name = uuid.NewString() + ".json"
		}

		msg := kafka.Message{Key: []byte(name), Value: body, Time: time.Now()}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		if err := writer.WriteMessages(ctx, msg); err != nil {
			logger.Error("Failed to produce document", zap.Error(err), zap.String("document", name))
			http.Error(w, "Failed to produce document", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(name))
	})

	server := &http.Server{
		Addr:    httpPort,
		Handler: mux,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down HTTP producer server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("HTTP server error", zap.Error(err))
	}
}

func runCLIProducer(writer *kafka.Writer, logger *zap.Logger) {
	var docs []document
	for _, file := range payloads {
		data, err := os.ReadFile(file)
		if err != nil {
			// Try relative to the loadtest directory
			data, err = os.ReadFile(filepath.Join("..", "..", file))
		}
		if err != nil {
			logger.Warn("Failed to read payload file, skipping",
				zap.String("file", file),
				zap.Error(err),
			)
			continue
		}
		docs = append(docs, document{base: filepath.Base(file), body: data})
	}

	if len(docs) == 0 {
		logger.Fatal("No valid payload files found")
	}

	logger.Info("Starting CLI producer",
		zap.Int("batch_size", batchSize),
		zap.Int("rate", rate),
		zap.Duration("duration", duration),
		zap.Int("payload_files", len(docs)),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if duration > 0 {
		var stopDuration context.CancelFunc
		ctx, stopDuration = context.WithTimeout(ctx, duration)
		defer stopDuration()
	}

	var ticker *time.Ticker
	if rate > 0 {
		ticker = time.NewTicker(time.Second / time.Duration(rate))
		defer ticker.Stop()
	}

	var (
		wg       sync.WaitGroup
		produced atomic.Int64
		sent     int64
	)

	for ctx.Err() == nil {
		if batchSize > 0 && sent >= int64(batchSize) {
			logger.Info("Batch limit reached", zap.Int64("sent", sent))
			break
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
				continue
			case <-ticker.C:
			}
		}

		doc := docs[sent%int64(len(docs))]
		sent++

		wg.Add(1)
		go func(doc document) {
			defer wg.Done()

			msg := kafka.Message{Key: []byte(doc.landingName()), Value: doc.body, Time: time.Now()}

			writeCtx, writeCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer writeCancel()

			if err := writer.WriteMessages(writeCtx, msg); err != nil {
				logger.Error("Failed to produce document", zap.Error(err))
				return
			}

			if current := produced.Add(1); current%100 == 0 {
				logger.Info("Produced documents", zap.Int64("count", current))
			}
		}(doc)
	}

	wg.Wait()
	logger.Info("Producer stopped", zap.Int64("total_produced", produced.Load()))
}
