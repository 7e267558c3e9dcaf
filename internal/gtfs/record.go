package gtfs

// Record is one raw feed row, keyed by column name as it appears in the
// file's header.
type Record map[string]string

// Normalize returns a copy of rec with every empty-string field removed.
// Downstream mapping treats "field absent" and "field empty" identically,
// and absent keys keep optional-field handling to a simple zero-value check.
func Normalize(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
