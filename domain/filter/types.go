package filter

// NumericRange is the inclusive min/max pair offered for numeric
// filter columns.
type NumericRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Selection is the user-owned filter choice: a target column plus
// either a discrete value set or a numeric range, depending on the
// column's inferred kind. It survives dataset replacement until the
// user changes the column or applies a new filter.
type Selection struct {
	Column string        `json:"column"`
	Values []interface{} `json:"values,omitempty"`
	Range  *NumericRange `json:"range,omitempty"`
}

// Active reports whether the selection carries anything to filter by.
func (s Selection) Active() bool {
	return s.Column != "" && (len(s.Values) > 0 || s.Range != nil)
}

// Arguments flattens the selection into the wire form of
// filter_by_value: a discrete set as-is, a range as a [min, max] pair.
func (s Selection) Arguments() []interface{} {
	if s.Range != nil {
		return []interface{}{s.Range.Min, s.Range.Max}
	}
	return s.Values
}

// ColumnValues is the picker payload fetched when the filter column
// changes: the distinct values of a categorical column, or the min/max
// range of a numeric one.
type ColumnValues struct {
	Column  string        `json:"column"`
	Numeric bool          `json:"numeric"`
	Values  []interface{} `json:"values,omitempty"`
	Range   *NumericRange `json:"range,omitempty"`
}
