package pipeline

// Route selects the destination of a document.
type Route int

const (
	RouteRejected Route = iota
	RouteAccepted
)

func (r Route) String() string {
	if r == RouteAccepted {
		return "accepted"
	}
	return "rejected"
}

// Verdict is the routing outcome of one document.
// Reason is nil when the document is accepted.
type Verdict struct {
	Route       Route
	Reason      error
	RecordCount int
	// Sample is the first record of an accepted batch.
	Sample Record
}

// Accepted reports whether the document goes to staging.
func (v Verdict) Accepted() bool { return v.Route == RouteAccepted }

// ReasonKind classifies the verdict reason, "valid" for accepted documents.
func (v Verdict) ReasonKind() string { return Kind(v.Reason) }

// Decide turns the parse and validation outcomes into a verdict.
// A parse error wins over any validation result. Decide never fails.
func Decide(batch Batch, parseErr, validateErr error) Verdict {
	if parseErr != nil {
		return Verdict{Route: RouteRejected, Reason: parseErr}
	}
	if validateErr != nil {
		return Verdict{Route: RouteRejected, Reason: validateErr, RecordCount: len(batch)}
	}

	v := Verdict{Route: RouteAccepted, RecordCount: len(batch)}
	if len(batch) > 0 {
		v.Sample = batch[0]
	}
	return v
}

// Gate evaluates documents against a fixed schema.
// It holds no mutable state and is safe for concurrent use.
type Gate struct {
	schema Schema
}

// NewGate returns a gate enforcing schema.
func NewGate(schema Schema) *Gate {
	return &Gate{schema: schema}
}

// Schema returns the schema the gate enforces.
func (g *Gate) Schema() Schema { return g.schema }

// Evaluate parses raw, validates the batch when parsing succeeded and decides
// the route. Identical input always yields an identical verdict.
func (g *Gate) Evaluate(raw []byte) Verdict {
	batch, err := Parse(raw)
	if err != nil {
		return Decide(nil, err, nil)
	}
	return Decide(batch, nil, Validate(batch, g.schema))
}
