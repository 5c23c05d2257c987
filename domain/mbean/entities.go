package mbean

import "errors"

// ErrNotFound is returned by registries for unknown objects or attributes.
var ErrNotFound = errors.New("not found")

// DefaultDocstring is used when an attribute carries no description.
const DefaultDocstring = "Attribute exposed for management"

// GaugeType is the only metric type the bridge emits.
const GaugeType = "gauge"

// --- Registry side ---

// Shape is the declared shape of an attribute.
type Shape int

const (
	ShapeScalar Shape = iota
	ShapeComposite
	ShapeTabular
)

func (s Shape) String() string {
	switch s {
	case ShapeComposite:
		return "composite"
	case ShapeTabular:
		return "tabular"
	default:
		return "scalar"
	}
}

// ParseShape is the inverse of Shape.String. Unknown input yields scalar.
func ParseShape(s string) Shape {
	switch s {
	case "composite":
		return ShapeComposite
	case "tabular":
		return ShapeTabular
	default:
		return ShapeScalar
	}
}

// AttributeDescriptor describes one attribute of a managed object.
type AttributeDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Shape       Shape  `json:"shape"`
}

// ManagedObject is a read-only view of one registry entry.
type ManagedObject struct {
	Name       ObjectName            `json:"name"`
	Attributes []AttributeDescriptor `json:"attributes"`
}

// --- Metric side ---

// MetricName is a flat metric identifier, valid as a grouping key.
type MetricName string

// Labels maps label names to values.
type Labels map[string]string

// Sample is one value within a metric group.
type Sample struct {
	Value  float64
	Labels Labels
}

// MetricGroup collects every sample sharing one MetricName.
type MetricGroup struct {
	Name      MetricName
	Docstring string
	Type      string
	Samples   []Sample
}
