package dataservice

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"datalens/domain/filter"
	"datalens/domain/plot"
	"datalens/domain/table"
	"datalens/internal/errors"
)

// decodeTablePayload decodes a four-field table response. Absent
// fields decode to nil slices, which the state store rejects; the
// explicit checks here fail fast with the missing field named so the
// error surfaces before any state is touched.
func decodeTablePayload(raw []byte) (*table.Payload, error) {
	var payload table.Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errors.Wrap(errors.StructuralError("response is not a table payload"), err.Error())
	}
	for _, field := range []struct {
		name    string
		present bool
	}{
		{"headers", payload.Headers != nil},
		{"data", payload.Rows != nil},
		{"headers_described", payload.DescribedHeaders != nil},
		{"data_described", payload.DescribedRows != nil},
	} {
		if !field.present {
			return nil, errors.Structuralf("response is missing %s", field.name)
		}
	}
	return &payload, nil
}

// decodeColumnValues decodes the `{values: [...]}` picker payload. The
// range interpretation of a two-value list is gated on the column's
// classified kind, not the payload shape: a categorical column whose
// two distinct values happen to look numeric stays a discrete set.
func decodeColumnValues(column string, numeric bool, raw []byte) (*filter.ColumnValues, error) {
	var wire struct {
		Values []interface{} `json:"values"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, errors.Wrap(errors.StructuralError("response is not a column values payload"), err.Error())
	}
	if wire.Values == nil {
		return nil, errors.StructuralError("response is missing values")
	}

	cv := &filter.ColumnValues{Column: column, Numeric: numeric, Values: wire.Values}
	if numeric && len(wire.Values) == 2 {
		lo, okLo := table.AsFloat(wire.Values[0])
		hi, okHi := table.AsFloat(wire.Values[1])
		if okLo && okHi && lo <= hi {
			cv.Range = &filter.NumericRange{Min: lo, Max: hi}
		}
	}
	return cv, nil
}

// decodeFigure parses the plot_scatter payload. The service returns a
// JSON string holding the serialized figure; the string is unwrapped,
// probed for the data and layout members, then decoded.
func decodeFigure(raw []byte) (*plot.Figure, error) {
	figureJSON := raw
	var wrapped string
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		figureJSON = []byte(wrapped)
	}

	if !gjson.ValidBytes(figureJSON) {
		return nil, errors.StructuralError("figure payload is not valid JSON")
	}
	probe := gjson.GetManyBytes(figureJSON, "data", "layout")
	if !probe[0].Exists() {
		return nil, errors.StructuralError("figure payload is missing data")
	}
	if !probe[1].Exists() {
		return nil, errors.StructuralError("figure payload is missing layout")
	}

	var fig plot.Figure
	if err := json.Unmarshal(figureJSON, &fig); err != nil {
		return nil, errors.Wrap(errors.StructuralError("figure payload does not decode"), err.Error())
	}
	return &fig, nil
}
