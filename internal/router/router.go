// Package router runs one gate invocation per landing document and writes the
// document to exactly one destination.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/retry"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/sink"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Router evaluates documents and delivers them to staging or rejected
type Router struct {
	gate     *pipeline.Gate
	staging  sink.Sink
	rejected sink.Sink
	retryCfg config.RetryConfig
	metrics  *obs.Metrics
	logger   *zap.Logger
	newID    func() string
}

// New creates a router. metrics may be nil.
func New(gate *pipeline.Gate, staging, rejected sink.Sink, retryCfg config.RetryConfig, metrics *obs.Metrics, logger *zap.Logger) (*Router, error) {
	if gate == nil {
		return nil, fmt.Errorf("gate cannot be nil")
	}
	if staging == nil || rejected == nil {
		return nil, fmt.Errorf("staging and rejected sinks are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &Router{
		gate:     gate,
		staging:  staging,
		rejected: rejected,
		retryCfg: retryCfg,
		metrics:  metrics,
		logger:   logger,
		newID:    uuid.NewString,
	}, nil
}

// Route evaluates doc and writes its unmodified body to the destination the
// verdict selects. A rejected document is a normal outcome, not an error; the
// returned error reports only a destination write that failed after all retries.
func (r *Router) Route(ctx context.Context, doc *types.Document) (pipeline.Verdict, error) {
	if doc == nil {
		return pipeline.Verdict{}, errors.New("document cannot be nil")
	}

	invocationID := r.newID()
	logger := r.logger.With(
		zap.String("invocationID", invocationID),
		zap.String("document", doc.Name),
	)

	verdict := r.gate.Evaluate(doc.Body)
	r.logVerdict(logger, verdict)

	dest := r.rejected
	if verdict.Accepted() {
		dest = r.staging
	}

	delivery := sink.Delivery{InvocationID: invocationID, Doc: doc, Verdict: verdict}
	err := retry.DoWithRetry(ctx, &r.retryCfg, func(attempt int) error {
		if attempt > 0 && r.metrics != nil {
			r.metrics.IncrementDeliveryRetries()
		}
		err := dest.Deliver(ctx, delivery)
		if err != nil {
			logger.Warn("Destination write failed",
				zap.String("route", verdict.Route.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
		}
		return err
	})
	if err != nil {
		if r.metrics != nil {
			r.metrics.IncrementDeliveryFailures()
		}
		logger.Error("Failed to deliver document",
			zap.String("route", verdict.Route.String()),
			zap.Error(err),
		)
		return verdict, fmt.Errorf("deliver %q to %s: %w", doc.Name, verdict.Route, err)
	}

	if r.metrics != nil {
		if verdict.Accepted() {
			r.metrics.ObserveAccepted(verdict.RecordCount)
		} else {
			r.metrics.ObserveRejected(verdict.ReasonKind())
		}
	}

	logger.Info("Document routed", zap.String("route", verdict.Route.String()))
	return verdict, nil
}

// logVerdict records the validation outcome with its diagnostics
func (r *Router) logVerdict(logger *zap.Logger, v pipeline.Verdict) {
	if v.Accepted() {
		logger.Info("Validation passed",
			zap.Int("records", v.RecordCount),
			zap.Any("sampleVehicleID", v.Sample["VehicleID"]),
			zap.Any("sampleCity", v.Sample["City"]),
		)
		return
	}

	fields := []zap.Field{zap.String("reason", v.ReasonKind())}
	var (
		pe *pipeline.ParseError
		mf *pipeline.MissingFieldsError
	)
	switch {
	case errors.As(v.Reason, &mf):
		fields = append(fields,
			zap.Int("recordIndex", mf.Index),
			zap.Strings("missingFields", mf.Fields),
		)
	case errors.As(v.Reason, &pe):
		fields = append(fields, zap.NamedError("parseError", pe.Err))
	}
	logger.Warn("Validation failed", fields...)
}
