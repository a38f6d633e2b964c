package pipeline

import "slices"

// Schema is an ordered set of field names every record must carry.
// The zero value requires nothing.
type Schema struct {
	fields []string
}

// NewSchema builds a schema from the given field names.
// Duplicates are dropped; the first occurrence fixes the order.
func NewSchema(fields ...string) Schema {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return Schema{fields: out}
}

// TelemetrySchema returns the vehicle telemetry schema.
func TelemetrySchema() Schema {
	return NewSchema("VehicleID", "latitude", "longitude", "City", "temperature", "speed")
}

// LegacyTelemetrySchema returns the telemetry schema with the field spellings
// emitted by older producers ("latitiude", "temeprature").
func LegacyTelemetrySchema() Schema {
	return NewSchema("VehicleID", "latitiude", "longitude", "City", "temeprature", "speed")
}

// Fields returns a copy of the required field names in declaration order.
func (s Schema) Fields() []string {
	return slices.Clone(s.fields)
}

// Len returns the number of required fields.
func (s Schema) Len() int { return len(s.fields) }

// missing returns the schema fields absent from rec, in declaration order.
func (s Schema) missing(rec Record) []string {
	var out []string
	for _, f := range s.fields {
		if _, ok := rec[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}
