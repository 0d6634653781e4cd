// Package schema declares the expected shape of method parameters and checks
// raw JSON against it before anything is decoded or stored.
//
// Checks are deterministic and stop at the first violation, visiting fields in
// the order they were declared.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
)

// Violation describes the first part of a payload that failed its schema.
type Violation struct {
	Path   string
	Reason string
}

func (v *Violation) Error() string {
	if v.Path == "" {
		return v.Reason
	}
	return v.Path + " " + v.Reason
}

// Schema checks a decoded JSON value found at path.
// Numbers are json.Number, objects map[string]any and arrays []any.
type Schema func(path string, v any) *Violation

func violation(path, format string, args ...any) *Violation {
	return &Violation{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Any accepts every value, including null.
func Any() Schema {
	return func(string, any) *Violation { return nil }
}

// String accepts any JSON string.
func String() Schema {
	return func(path string, v any) *Violation {
		if _, ok := v.(string); !ok {
			return violation(path, "must be a string")
		}
		return nil
	}
}

// OneOf accepts a string equal to one of values.
func OneOf(values ...string) Schema {
	return func(path string, v any) *Violation {
		s, ok := v.(string)
		if !ok {
			return violation(path, "must be a string")
		}
		if !slices.Contains(values, s) {
			return violation(path, "must be one of %s", strings.Join(values, ", "))
		}
		return nil
	}
}

// Bool accepts true or false.
func Bool() Schema {
	return func(path string, v any) *Violation {
		if _, ok := v.(bool); !ok {
			return violation(path, "must be a boolean")
		}
		return nil
	}
}

func number(v any) (float64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Number accepts any finite number.
func Number() Schema {
	return func(path string, v any) *Violation {
		if _, ok := number(v); !ok {
			return violation(path, "must be a number")
		}
		return nil
	}
}

// Range accepts a number in [min, max].
func Range(min, max float64) Schema {
	return func(path string, v any) *Violation {
		f, ok := number(v)
		if !ok {
			return violation(path, "must be a number")
		}
		if f < min || f > max {
			return violation(path, "must be between %g and %g", min, max)
		}
		return nil
	}
}

// Integer accepts a number with no fractional part.
func Integer() Schema {
	return func(path string, v any) *Violation {
		f, ok := number(v)
		if !ok || f != math.Trunc(f) {
			return violation(path, "must be an integer")
		}
		return nil
	}
}

// Array accepts a list of between min and max elements (max <= 0 means no
// upper bound), each accepted by elem.
func Array(elem Schema, min, max int) Schema {
	return func(path string, v any) *Violation {
		list, ok := v.([]any)
		if !ok {
			return violation(path, "must be an array")
		}
		if len(list) < min {
			return violation(path, "must have at least %d elements", min)
		}
		if max > 0 && len(list) > max {
			return violation(path, "must have at most %d elements", max)
		}
		for i, e := range list {
			if bad := elem(fmt.Sprintf("%s[%d]", path, i), e); bad != nil {
				return bad
			}
		}
		return nil
	}
}

// Field is one declared member of an Object.
type Field struct {
	Name     string
	Schema   Schema
	Optional bool
}

// Object accepts a JSON object whose members match fields. Members that are not
// declared are rejected.
func Object(fields ...Field) Schema {
	declared := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		declared[f.Name] = struct{}{}
	}
	return func(path string, v any) *Violation {
		obj, ok := v.(map[string]any)
		if !ok {
			return violation(path, "must be an object")
		}
		for _, f := range fields {
			fp := f.Name
			if path != "" {
				fp = path + "." + f.Name
			}
			val, present := obj[f.Name]
			if !present {
				if f.Optional {
					continue
				}
				return violation(fp, "is required")
			}
			if bad := f.Schema(fp, val); bad != nil {
				return bad
			}
		}
		var unknown []string
		for k := range obj {
			if _, ok := declared[k]; !ok {
				unknown = append(unknown, k)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			return violation(path, "has unknown field %q", unknown[0])
		}
		return nil
	}
}

// GridBounds limits a rectangular two-dimensional integer grid.
type GridBounds struct {
	MaxRows  int
	MaxCols  int
	MinValue int
	MaxValue int
}

// Grid accepts a non-empty rectangular array of integer rows within b. Every
// cell is type checked before the grid's dimensions and values are.
func Grid(b GridBounds) Schema {
	return func(path string, v any) *Violation {
		rows, ok := v.([]any)
		if !ok {
			return violation(path, "must be an array of rows")
		}
		cells := make([][]float64, len(rows))
		for i, r := range rows {
			row, ok := r.([]any)
			if !ok {
				return violation(path, "rows must be arrays")
			}
			cells[i] = make([]float64, len(row))
			for j, cell := range row {
				f, ok := number(cell)
				if !ok || f != math.Trunc(f) {
					return violation(path, "values must be integers")
				}
				cells[i][j] = f
			}
		}

		if len(cells) == 0 {
			return violation(path, "must have at least one row")
		}
		if len(cells) > b.MaxRows {
			return violation(path, "must have at most %d rows", b.MaxRows)
		}
		width := len(cells[0])
		if width == 0 {
			return violation(path, "must have at least one column")
		}
		if width > b.MaxCols {
			return violation(path, "must have at most %d columns", b.MaxCols)
		}
		for _, row := range cells {
			if len(row) != width {
				return violation(path, "rows must be the same length")
			}
			for _, f := range row {
				if f < float64(b.MinValue) || f > float64(b.MaxValue) {
					return violation(path, "values must be between %d and %d", b.MinValue, b.MaxValue)
				}
			}
		}
		return nil
	}
}

// Decode parses raw JSON into the generic form checked by a Schema.
func Decode(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

// Check validates raw against s, reporting violations under name.
func Check(s Schema, name string, raw json.RawMessage) error {
	v, err := Decode(raw)
	if err != nil {
		return violation(name, "must be valid JSON")
	}
	if bad := s(name, v); bad != nil {
		return bad
	}
	return nil
}

// Arg is one positional method parameter: its name for error messages, its
// schema, and where to decode it once every parameter has passed.
type Arg struct {
	Name   string
	Schema Schema
	Into   any
}

// Bind checks params against args in order and, only when all of them pass,
// decodes each parameter into its Into target.
func Bind(params []json.RawMessage, args ...Arg) error {
	if len(params) > len(args) {
		return &Violation{Reason: fmt.Sprintf("expected %d parameters, got %d", len(args), len(params))}
	}
	for i, a := range args {
		if i >= len(params) {
			return violation(a.Name, "is required")
		}
		if err := Check(a.Schema, a.Name, params[i]); err != nil {
			return err
		}
	}
	for i, a := range args {
		if a.Into == nil {
			continue
		}
		if err := json.Unmarshal(params[i], a.Into); err != nil {
			return violation(a.Name, "could not be decoded: %v", err)
		}
	}
	return nil
}
