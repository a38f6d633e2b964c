// Package source detects new landing documents and feeds them to the queue.
package source

import (
	"context"

	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/types"
)

// Source delivers landing documents at least once.
// Commit acknowledges a routed document; Abandon hands it back for redelivery.
type Source interface {
	Start(ctx context.Context) error
	Commit(doc *types.Document)
	Abandon(doc *types.Document)
	Close() error
}
