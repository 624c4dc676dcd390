package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"clientlookup/internal/dataset"
)

// FieldSpec maps a dataset column to an output field name.
type FieldSpec struct {
	Name    string `yaml:"name"`
	Column  string `yaml:"column"`
	Default string `yaml:"default,omitempty"` // Used when the cell is empty
}

// Schema describes the dataset columns and how lookups present them.
// It lives in a YAML file because it is hierarchical and rarely changes.
type Schema struct {
	KeyColumn       string      `yaml:"key_column"`
	RequiredColumns []string    `yaml:"required_columns"`
	Summary         []FieldSpec `yaml:"summary"`    // Client summary, taken from the first matching record
	Items           []FieldSpec `yaml:"items"`      // One item per matching record
	Suggestion      []FieldSpec `yaml:"suggestion"` // Descriptive fields shown with each suggestion
	PublishColumns  []string    `yaml:"publish_columns,omitempty"`
	MaskColumns     []string    `yaml:"mask_columns,omitempty"`
}

// DefaultSchema returns the schema of the client portfolio export.
func DefaultSchema() *Schema {
	const (
		id        = "NRO_IDENTIFICACION"
		holder    = "NOMBRE_TITULAR"
		collector = "NOMBRE_RECUPERADOR_JURIDICO"
		product   = "NRO_PRODUCTO"
	)
	return &Schema{
		KeyColumn:       id,
		RequiredColumns: []string{id, holder, collector},
		Summary: []FieldSpec{
			{Name: "id", Column: id},
			{Name: "holder_name", Column: holder},
			{Name: "collector", Column: collector},
		},
		Items: []FieldSpec{
			{Name: "product_number", Column: product},
			{Name: "holder_name", Column: holder},
			{Name: "id", Column: id},
			{Name: "collector", Column: collector},
			{Name: "days_past_due", Column: "CANT_DIAS_MORA_ACTUAL", Default: "0"},
			{Name: "billed_payment", Column: "MONTO_PAGO_FACTURACION", Default: "0"},
			{Name: "minimum_payment", Column: "MONTO_PAGO_MINIMO_ACTUAL", Default: "0"},
			{Name: "past_due_amount", Column: "MONTO_MORA_PESOS", Default: "0"},
			{Name: "total_balance", Column: "MONTO_TOTAL_CLIENTE", Default: "0"},
			{Name: "payment_date", Column: "FECHA_PAGO_ACTUAL"},
		},
		Suggestion: []FieldSpec{
			{Name: "holder_name", Column: holder},
		},
		PublishColumns: []string{
			product, holder, id, collector,
			"CANT_DIAS_MORA_ACTUAL",
			"MONTO_PAGO_FACTURACION",
			"MONTO_PAGO_MINIMO_ACTUAL",
			"MONTO_MORA_PESOS",
			"MONTO_TOTAL_CLIENTE",
			"FECHA_PAGO_ACTUAL",
		},
		MaskColumns: []string{product},
	}
}

// LoadSchema loads the dataset schema from path. A missing file yields
// DefaultSchema. Sections absent from the file keep their defaults.
func LoadSchema(path string) (*Schema, error) {
	s := DefaultSchema()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Schema file is optional
			return s, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("invalid schema file %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema file %s: %w", path, err)
	}
	return s, nil
}

// Validate checks the schema and puts the key column first in RequiredColumns.
func (s *Schema) Validate() error {
	if s.KeyColumn == "" {
		return errors.New("key_column is required")
	}
	cols := []string{s.KeyColumn}
	for _, c := range s.RequiredColumns {
		if c != "" && !slices.Contains(cols, c) {
			cols = append(cols, c)
		}
	}
	if len(cols) < 2 {
		return errors.New("required_columns needs at least one descriptive column besides the key")
	}
	s.RequiredColumns = cols

	for _, group := range [][]FieldSpec{s.Summary, s.Items, s.Suggestion} {
		for _, f := range group {
			if f.Name == "" || f.Column == "" {
				return fmt.Errorf("field %+v needs both name and column", f)
			}
		}
	}
	return nil
}

// ParseOptions builds dataset parse options from the schema and cfg.
func (s *Schema) ParseOptions(cfg *Config) dataset.ParseOptions {
	opts := dataset.ParseOptions{
		KeyColumn:       s.KeyColumn,
		RequiredColumns: s.RequiredColumns,
	}
	if cfg != nil {
		opts.SortCheckLimit = cfg.SortCheckLimit
		opts.Strict = cfg.StrictSort
		opts.BatchSizeHint = cfg.BatchSizeHint
	}
	return opts
}

// SuggestColumns lists the columns projected into suggestions.
func (s *Schema) SuggestColumns() []string {
	cols := make([]string, len(s.Suggestion))
	for i, f := range s.Suggestion {
		cols[i] = f.Column
	}
	return cols
}

// PrepareOptions builds the options cmd/publish uses to prepare an export.
func (s *Schema) PrepareOptions() dataset.PrepareOptions {
	return dataset.PrepareOptions{
		KeyColumn:   s.KeyColumn,
		Columns:     s.PublishColumns,
		MaskColumns: s.MaskColumns,
	}
}
