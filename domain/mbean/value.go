package mbean

// Kind tags the variant held by a Value.
type Kind int

const (
	KindUnsupported Kind = iota
	KindNumber
	KindBool
	KindString
	KindComposite
	KindTabular
)

var kindNames = map[Kind]string{
	KindUnsupported: "unsupported",
	KindNumber:      "number",
	KindBool:        "bool",
	KindString:      "string",
	KindComposite:   "composite",
	KindTabular:     "tabular",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Field is a named member of a composite value or of a table row.
type Field struct {
	Name  string
	Value Value
}

// Table is the payload of a tabular value. Index names the key columns; every
// row is an ordered list of fields.
type Table struct {
	Index []string
	Rows  [][]Field
}

// Value is an attribute value resolved once at read time. Exactly one payload
// is meaningful, selected by Kind.
type Value struct {
	Kind   Kind
	Number float64
	Bool   bool
	Text   string
	Fields []Field
	Table  *Table
}

// Number returns a numeric scalar.
func Number(f float64) Value { return Value{Kind: KindNumber, Number: f} }

// Bool returns a boolean scalar.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// String returns a textual scalar. Strings are never exported as samples but
// serve as tabular key columns.
func String(s string) Value { return Value{Kind: KindString, Text: s} }

// Composite returns a record value with fields in the given order.
func Composite(fields ...Field) Value { return Value{Kind: KindComposite, Fields: fields} }

// Tabular returns a table value.
func Tabular(index []string, rows ...[]Field) Value {
	return Value{Kind: KindTabular, Table: &Table{Index: index, Rows: rows}}
}

// Unsupported returns a value whose type cannot be represented.
func Unsupported() Value { return Value{Kind: KindUnsupported} }

// F is shorthand for building a Field.
func F(name string, v Value) Field { return Field{Name: name, Value: v} }

// Numeric returns the gauge representation of a scalar. Booleans map to 1/0.
func (v Value) Numeric() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Number, true
	case KindBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Field returns the named member of a composite value.
func (v Value) Field(name string) (Value, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Shape reports the declared shape matching this value's kind.
func (v Value) Shape() Shape {
	switch v.Kind {
	case KindComposite:
		return ShapeComposite
	case KindTabular:
		return ShapeTabular
	}
	return ShapeScalar
}
