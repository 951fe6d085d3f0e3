// Package mapping turns a placeholder mapping configuration and a data row
// into the string that replaces the placeholder in a rendered document.
package mapping

import (
	"fmt"
	"strings"
)

type Type string

const (
	TypeDataColumn Type = "data_column"
	TypeCustomText Type = "custom_text"
	TypeCombined   Type = "combined"

	// typeCSVColumn is the name older clients send for data_column.
	typeCSVColumn Type = "csv_column"
)

type Modifier string

const (
	ModifierNone      Modifier = ""
	ModifierUppercase Modifier = "uppercase"
	ModifierLowercase Modifier = "lowercase"
)

// Config binds one placeholder to its value source. Value holds the column
// name for data_column/combined and the literal text for custom_text.
type Config struct {
	Type     Type     `json:"type"`
	Value    string   `json:"value"`
	Prefix   string   `json:"prefix,omitempty"`
	Suffix   string   `json:"suffix,omitempty"`
	Modifier Modifier `json:"modifier,omitempty"`
	Fallback string   `json:"fallback,omitempty"`
}

// Set maps placeholder names to their configuration.
type Set map[string]Config

// Row is one dataset record keyed by column name.
type Row map[string]string

// Validate normalises legacy type names and rejects unknown types or modifiers.
func (s Set) Validate() error {
	for placeholder, cfg := range s {
		if cfg.Type == typeCSVColumn {
			cfg.Type = TypeDataColumn
			s[placeholder] = cfg
		}
		switch cfg.Type {
		case TypeDataColumn, TypeCustomText, TypeCombined:
		default:
			return fmt.Errorf("placeholder %s: unknown mapping type %q", placeholder, cfg.Type)
		}
		switch cfg.Modifier {
		case ModifierNone, ModifierUppercase, ModifierLowercase:
		default:
			return fmt.Errorf("placeholder %s: unknown modifier %q", placeholder, cfg.Modifier)
		}
	}
	return nil
}

// Resolve computes the replacement text for one placeholder and one row.
// It never fails: a missing column resolves to the empty string.
//
// For data_column the modifier is applied to the column value and the
// fallback, when used, is inserted as typed (it is not case-modified).
// combined ignores modifier and fallback and always wraps the value in
// prefix/suffix, even when the value is empty.
func Resolve(cfg Config, row Row) string {
	switch cfg.Type {
	case TypeCustomText:
		return cfg.Value
	case TypeDataColumn, typeCSVColumn:
		value := row[cfg.Value]
		switch cfg.Modifier {
		case ModifierUppercase:
			value = strings.ToUpper(value)
		case ModifierLowercase:
			value = strings.ToLower(value)
		}
		if value == "" && cfg.Fallback != "" {
			value = cfg.Fallback
		}
		return cfg.Prefix + value + cfg.Suffix
	case TypeCombined:
		return cfg.Prefix + row[cfg.Value] + cfg.Suffix
	default:
		return ""
	}
}

// ResolveRow resolves every placeholder for a row. Placeholders without a
// mapping entry resolve to "".
func (s Set) ResolveRow(placeholders []string, row Row) map[string]string {
	values := make(map[string]string, len(placeholders))
	for _, p := range placeholders {
		cfg, ok := s[p]
		if !ok {
			values[p] = ""
			continue
		}
		values[p] = Resolve(cfg, row)
	}
	return values
}
