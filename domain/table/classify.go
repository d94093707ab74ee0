package table

import "strconv"

// Kind is the derived class of a column. Classification is total and
// exclusive: every column is exactly one of the two kinds.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
)

// Classify re-derives the kind of every column from the current rows.
// A column is numeric only when every value is non-nil and parses as a
// number; anything else (nulls included) makes it categorical. The
// result is computed fresh on every call, never cached.
func Classify(t Table) map[string]Kind {
	kinds := make(map[string]Kind, len(t.Headers))
	for _, h := range t.Headers {
		kinds[h] = classifyColumn(t.Column(h))
	}
	return kinds
}

// NumericColumns returns the numeric column names in header order.
func NumericColumns(t Table) []string {
	return columnsOfKind(t, KindNumeric)
}

// CategoricalColumns returns the non-numeric column names in header order.
func CategoricalColumns(t Table) []string {
	return columnsOfKind(t, KindCategorical)
}

func columnsOfKind(t Table, want Kind) []string {
	kinds := Classify(t)
	var names []string
	for _, h := range t.Headers {
		if kinds[h] == want {
			names = append(names, h)
		}
	}
	return names
}

func classifyColumn(values []interface{}) Kind {
	for _, v := range values {
		if !IsNumeric(v) {
			return KindCategorical
		}
	}
	return KindNumeric
}

// IsNumeric reports whether a single cell value is a usable number.
func IsNumeric(v interface{}) bool {
	switch n := v.(type) {
	case float64, float32, int, int64:
		return true
	case string:
		_, err := strconv.ParseFloat(n, 64)
		return err == nil
	default:
		return false
	}
}

// AsFloat converts a numeric cell to float64. The second return is
// false for nulls and non-numeric values.
func AsFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
