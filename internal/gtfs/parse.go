package gtfs

import (
	"fmt"
	"strconv"
	"time"
)

const feedDateLayout = "20060102"

// triState decodes the GTFS three-state boolean domain: absent means
// unknown (nil), "1" means yes, "2" means no. Any other value is treated as
// unknown rather than an error, the same reading feeds give an empty field.
func triState(rec Record, field string) *bool {
	switch rec[field] {
	case "1":
		v := true
		return &v
	case "2":
		v := false
		return &v
	default:
		return nil
	}
}

// strictBool decodes flags where unknown is not a valid state, such as the
// calendar day-of-week columns: "1" is true, anything else is false.
func strictBool(rec Record, field string) bool {
	return rec[field] == "1"
}

// optInt parses an optional integer column. Absent or malformed values map
// to nil; the row is not rejected on a bad numeric, the field is simply
// stored as null.
func optInt(rec Record, field string) *int {
	raw, ok := rec[field]
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}

// optFloat parses an optional float column with the same null-on-invalid
// policy as optInt.
func optFloat(rec Record, field string) *float64 {
	raw, ok := rec[field]
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &f
}

// isoDate re-emits a feed date column (YYYYMMDD) as an ISO calendar date.
// An absent column yields the empty string; a malformed value fails the
// whole row.
func isoDate(rec Record, field string) (string, error) {
	raw, ok := rec[field]
	if !ok {
		return "", nil
	}
	t, err := time.Parse(feedDateLayout, raw)
	if err != nil {
		return "", fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	return t.Format(time.DateOnly), nil
}

// hexColor normalizes a bare RRGGBB triplet to "#RRGGBB". Absent columns
// stay empty.
func hexColor(rec Record, field string) string {
	raw, ok := rec[field]
	if !ok {
		return ""
	}
	return "#" + raw
}
