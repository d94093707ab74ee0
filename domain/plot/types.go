package plot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Default rendering parameters restored by Reset.
const (
	DefaultMarkerSize = 6.0
	DefaultOpacity    = 0.8
	DefaultPalette    = "Viridis"
)

// Config maps encoding roles to column names plus the scalar rendering
// parameters of a scatter request. Only X and Y are mandatory.
type Config struct {
	X        string  `json:"x"`
	Y        string  `json:"y"`
	Color    string  `json:"color,omitempty"`
	FacetCol string  `json:"facet_col,omitempty"`
	FacetRow string  `json:"facet_row,omitempty"`
	Symbol   string  `json:"symbol,omitempty"`
	Size     float64 `json:"size"`
	Opacity  float64 `json:"opacity"`
	Palette  string  `json:"palette"`
}

// DefaultConfig returns the documented defaults: empty encodings,
// default marker size, opacity and palette.
func DefaultConfig() Config {
	return Config{
		Size:    DefaultMarkerSize,
		Opacity: DefaultOpacity,
		Palette: DefaultPalette,
	}
}

// Validate enforces the one precondition checked before any network
// call: both axis encodings must be chosen.
func (c Config) Validate() error {
	if strings.TrimSpace(c.X) == "" || strings.TrimSpace(c.Y) == "" {
		return fmt.Errorf("both x and y columns must be selected")
	}
	return nil
}

// Form is a plot configuration as it arrives from form controls, with
// numeric fields still in their string representation.
type Form struct {
	X        string `json:"x" form:"x"`
	Y        string `json:"y" form:"y"`
	Color    string `json:"color" form:"color"`
	FacetCol string `json:"facet_col" form:"facet_col"`
	FacetRow string `json:"facet_row" form:"facet_row"`
	Symbol   string `json:"symbol" form:"symbol"`
	Size     string `json:"size" form:"size"`
	Opacity  string `json:"opacity" form:"opacity"`
	Palette  string `json:"palette" form:"palette"`
}

// Coerce converts the form's string fields into a Config, falling back
// to the defaults when a numeric field is empty or unparseable.
func (f Form) Coerce() Config {
	cfg := DefaultConfig()
	cfg.X = strings.TrimSpace(f.X)
	cfg.Y = strings.TrimSpace(f.Y)
	cfg.Color = strings.TrimSpace(f.Color)
	cfg.FacetCol = strings.TrimSpace(f.FacetCol)
	cfg.FacetRow = strings.TrimSpace(f.FacetRow)
	cfg.Symbol = strings.TrimSpace(f.Symbol)
	if v, err := strconv.ParseFloat(strings.TrimSpace(f.Size), 64); err == nil && v > 0 {
		cfg.Size = v
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(f.Opacity), 64); err == nil && v > 0 && v <= 1 {
		cfg.Opacity = v
	}
	if p := strings.TrimSpace(f.Palette); p != "" {
		cfg.Palette = p
	}
	return cfg
}

// Figure is the backend-returned trace/layout payload. Traces and
// layout stay opaque; the chart renderer is their only consumer.
type Figure struct {
	Data   []json.RawMessage `json:"data"`
	Layout json.RawMessage   `json:"layout"`
}
