package pipeline

// Validate checks that every record in batch carries all schema fields.
// An empty batch fails with ErrEmptyBatch. Scanning stops at the first record
// with missing fields, reported as a typed *MissingFieldsError.
// A key counts as present whatever its value.
func Validate(batch Batch, schema Schema) error {
	if len(batch) == 0 {
		return ErrEmptyBatch
	}

	for i, rec := range batch {
		if missing := schema.missing(rec); len(missing) > 0 {
			return &MissingFieldsError{Index: i, Fields: missing}
		}
	}

	return nil
}
