package pipeline

import (
	"errors"
	"reflect"
	"slices"
	"testing"
)

const validDoc = `{"VehicleID":"V1","latitude":1,"longitude":2,"City":"X","temperature":20,"speed":30}`

func TestGateEvaluate(t *testing.T) {
	t.Parallel()

	gate := NewGate(TelemetrySchema())

	tests := []struct {
		name        string
		value       []byte
		wantRoute   Route
		wantKind    string
		wantCount   int
		wantIndex   int
		wantMissing []string
	}{
		{
			name:      "single_valid_object_accepted",
			value:     []byte(validDoc),
			wantRoute: RouteAccepted,
			wantKind:  KindValid,
			wantCount: 1,
		},
		{
			name:      "bom_prefixed_valid_object_accepted",
			value:     []byte("\ufeff" + validDoc),
			wantRoute: RouteAccepted,
			wantKind:  KindValid,
			wantCount: 1,
		},
		{
			name:      "valid_array_accepted",
			value:     []byte("[\n" + validDoc + ",\n" + validDoc + "\n]\n"),
			wantRoute: RouteAccepted,
			wantKind:  KindValid,
			wantCount: 2,
		},
		{
			name:        "second_record_missing_four_fields",
			value:       []byte(`[` + validDoc + `, {"VehicleID":"V2","latitude":1}]`),
			wantRoute:   RouteRejected,
			wantKind:    KindMissingFields,
			wantCount:   2,
			wantIndex:   1,
			wantMissing: []string{"longitude", "City", "temperature", "speed"},
		},
		{
			name:      "empty_string_rejected_as_parse_failure",
			value:     []byte(""),
			wantRoute: RouteRejected,
			wantKind:  KindParseFailure,
		},
		{
			name:      "empty_array_rejected_as_empty_batch",
			value:     []byte(`[]`),
			wantRoute: RouteRejected,
			wantKind:  KindEmptyBatch,
		},
		{
			name:        "missing_only_city",
			value:       []byte(`{"VehicleID":"V1","latitude":1,"longitude":2,"temperature":20,"speed":30}`),
			wantRoute:   RouteRejected,
			wantKind:    KindMissingFields,
			wantCount:   1,
			wantIndex:   0,
			wantMissing: []string{"City"},
		},
		{
			name:      "malformed_text_rejected",
			value:     []byte(`{not json`),
			wantRoute: RouteRejected,
			wantKind:  KindParseFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := gate.Evaluate(tt.value)
			if v.Route != tt.wantRoute {
				t.Fatalf("expected route %v, got %v (reason %v)", tt.wantRoute, v.Route, v.Reason)
			}
			if v.ReasonKind() != tt.wantKind {
				t.Fatalf("expected kind %q, got %q", tt.wantKind, v.ReasonKind())
			}
			if v.RecordCount != tt.wantCount {
				t.Fatalf("expected record count %d, got %d", tt.wantCount, v.RecordCount)
			}
			if v.Accepted() {
				if v.Reason != nil {
					t.Fatalf("accepted verdict carries reason %v", v.Reason)
				}
				if v.Sample["VehicleID"] != "V1" {
					t.Fatalf("expected sample VehicleID V1, got %v", v.Sample["VehicleID"])
				}
			}
			if tt.wantMissing != nil {
				var mf *MissingFieldsError
				if !errors.As(v.Reason, &mf) {
					t.Fatalf("expected *MissingFieldsError, got %T (%v)", v.Reason, v.Reason)
				}
				if mf.Index != tt.wantIndex || !slices.Equal(mf.Fields, tt.wantMissing) {
					t.Fatalf("expected (%d, %v), got (%d, %v)", tt.wantIndex, tt.wantMissing, mf.Index, mf.Fields)
				}
			}
		})
	}
}

func TestGateEvaluate_Idempotent(t *testing.T) {
	t.Parallel()

	gate := NewGate(TelemetrySchema())
	inputs := [][]byte{
		[]byte(validDoc),
		[]byte(`[]`),
		[]byte(`{not json`),
		[]byte(`[` + validDoc + `, {"VehicleID":"V2"}]`),
	}

	for _, in := range inputs {
		first := gate.Evaluate(in)
		second := gate.Evaluate(in)
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("verdicts differ for %q: %+v vs %+v", in, first, second)
		}
	}
}

func TestGateEvaluate_IgnoresRecordsAfterFirstFailure(t *testing.T) {
	t.Parallel()

	gate := NewGate(TelemetrySchema())
	head := `[` + validDoc + `, {"VehicleID":"V2"}`

	tails := []string{`]`, `, ` + validDoc + `]`, `, {}]`, `, {"speed":1}, {"City":"Y"}]`}
	for _, tail := range tails {
		v := gate.Evaluate([]byte(head + tail))
		var mf *MissingFieldsError
		if !errors.As(v.Reason, &mf) || mf.Index != 1 {
			t.Fatalf("tail %q: expected missing fields at index 1, got %v", tail, v.Reason)
		}
	}
}

func TestGateEvaluate_InjectedSchema(t *testing.T) {
	t.Parallel()

	gate := NewGate(NewSchema("id"))
	if v := gate.Evaluate([]byte(`[{"id":1},{"id":2}]`)); !v.Accepted() {
		t.Fatalf("expected accepted, got %v", v.Reason)
	}
	if v := gate.Evaluate([]byte(validDoc)); v.Accepted() {
		t.Fatalf("expected rejected for record without id")
	}
	if got := gate.Schema().Fields(); !slices.Equal(got, []string{"id"}) {
		t.Fatalf("unexpected schema %v", got)
	}
}

func TestDecide(t *testing.T) {
	t.Parallel()

	batch := Batch{{"VehicleID": "V1"}}
	parseErr := &ParseError{Err: errors.New("bad")}
	missing := &MissingFieldsError{Index: 0, Fields: []string{"City"}}

	tests := []struct {
		name        string
		batch       Batch
		parseErr    error
		validateErr error
		wantRoute   Route
		wantReason  error
	}{
		{name: "valid", batch: batch, wantRoute: RouteAccepted},
		{name: "parse_failure", parseErr: parseErr, wantRoute: RouteRejected, wantReason: parseErr},
		{name: "parse_failure_wins", parseErr: parseErr, validateErr: missing, wantRoute: RouteRejected, wantReason: parseErr},
		{name: "empty_batch", batch: Batch{}, validateErr: ErrEmptyBatch, wantRoute: RouteRejected, wantReason: ErrEmptyBatch},
		{name: "missing_fields", batch: batch, validateErr: missing, wantRoute: RouteRejected, wantReason: missing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := Decide(tt.batch, tt.parseErr, tt.validateErr)
			if v.Route != tt.wantRoute {
				t.Fatalf("expected route %v, got %v", tt.wantRoute, v.Route)
			}
			if v.Reason != tt.wantReason {
				t.Fatalf("expected reason %v, got %v", tt.wantReason, v.Reason)
			}
		})
	}
}

func TestRouteString(t *testing.T) {
	if RouteAccepted.String() != "accepted" || RouteRejected.String() != "rejected" {
		t.Fatalf("unexpected route names %q %q", RouteAccepted, RouteRejected)
	}
}
