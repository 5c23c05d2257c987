package mbean

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// MarshalText encodes a shape by name.
func (s Shape) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a shape by name.
func (s *Shape) UnmarshalText(b []byte) error {
	*s = ParseShape(string(b))
	return nil
}

// MarshalText encodes the canonical name form.
func (n ObjectName) MarshalText() ([]byte, error) { return []byte(n.String()), nil }

// UnmarshalText parses the canonical name form.
func (n *ObjectName) UnmarshalText(b []byte) error {
	parsed, err := ParseObjectName(string(b))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// wireValue is the JSON form of a Value used by the registry protocol.
type wireValue struct {
	Kind   string        `json:"kind"`
	Number *wireNumber   `json:"number,omitempty"`
	Bool   *bool         `json:"bool,omitempty"`
	Text   *string       `json:"text,omitempty"`
	Fields []wireField   `json:"fields,omitempty"`
	Index  []string      `json:"index,omitempty"`
	Rows   [][]wireField `json:"rows,omitempty"`
}

// wireNumber carries NaN and the infinities as the strings "NaN", "+Inf"
// and "-Inf", which JSON numbers cannot hold.
type wireNumber float64

func (n wireNumber) MarshalJSON() ([]byte, error) {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

func (n *wireNumber) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		switch s {
		case "NaN":
			*n = wireNumber(math.NaN())
		case "+Inf", "Inf":
			*n = wireNumber(math.Inf(1))
		case "-Inf":
			*n = wireNumber(math.Inf(-1))
		default:
			return fmt.Errorf("mbean: invalid number %q", s)
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = wireNumber(f)
	return nil
}

type wireField struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

func toWireFields(fields []Field) []wireField {
	if fields == nil {
		return nil
	}
	out := make([]wireField, len(fields))
	for i, f := range fields {
		out[i] = wireField{Name: f.Name, Value: f.Value}
	}
	return out
}

func fromWireFields(fields []wireField) []Field {
	if fields == nil {
		return nil
	}
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = Field{Name: f.Name, Value: f.Value}
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{Kind: v.Kind.String()}
	switch v.Kind {
	case KindNumber:
		n := wireNumber(v.Number)
		w.Number = &n
	case KindBool:
		w.Bool = &v.Bool
	case KindString:
		w.Text = &v.Text
	case KindComposite:
		w.Fields = toWireFields(v.Fields)
		if w.Fields == nil {
			w.Fields = []wireField{}
		}
	case KindTabular:
		if v.Table != nil {
			w.Index = v.Table.Index
			w.Rows = make([][]wireField, len(v.Table.Rows))
			for i, row := range v.Table.Rows {
				w.Rows[i] = toWireFields(row)
			}
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(b []byte) error {
	var w wireValue
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Kind {
	case "number":
		if w.Number == nil {
			return fmt.Errorf("mbean: number value without payload")
		}
		*v = Number(float64(*w.Number))
	case "bool":
		if w.Bool == nil {
			return fmt.Errorf("mbean: bool value without payload")
		}
		*v = Bool(*w.Bool)
	case "string":
		var s string
		if w.Text != nil {
			s = *w.Text
		}
		*v = String(s)
	case "composite":
		*v = Composite(fromWireFields(w.Fields)...)
	case "tabular":
		rows := make([][]Field, len(w.Rows))
		for i, row := range w.Rows {
			rows[i] = fromWireFields(row)
		}
		*v = Tabular(w.Index, rows...)
	case "unsupported":
		*v = Unsupported()
	default:
		return fmt.Errorf("mbean: unknown value kind %q", w.Kind)
	}
	return nil
}
