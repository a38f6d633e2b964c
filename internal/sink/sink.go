// Package sink writes routed documents to the staging and rejected destinations.
package sink

import (
	"context"

	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/types"
)

// Delivery is one routed document on its way to a destination.
type Delivery struct {
	InvocationID string
	Doc          *types.Document
	Verdict      pipeline.Verdict
}

// Sink is a destination for routed documents.
// Deliver writes the document body unmodified and must be safe to repeat.
type Sink interface {
	Deliver(ctx context.Context, d Delivery) error
	Close() error
}
