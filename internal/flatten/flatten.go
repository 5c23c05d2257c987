// Package flatten converts one attribute value into independent named
// samples, recursing through composite and tabular shapes.
package flatten

import (
	"strconv"

	"github.com/fllarpy/mbean-bridge/domain/mbean"
	"github.com/fllarpy/mbean-bridge/internal/naming"
)

// DefaultMaxDepth bounds recursion into nested composite and tabular values.
const DefaultMaxDepth = 8

// Triple is one flattened leaf: a metric name, its value and its labels.
type Triple struct {
	Name   mbean.MetricName
	Value  float64
	Labels mbean.Labels
}

// Flattener is immutable and safe for concurrent use.
type Flattener struct {
	namer    *naming.Namer
	maxDepth int
}

// New returns a Flattener. A nil namer selects naming.ModeProperties and a
// non-positive maxDepth selects DefaultMaxDepth.
func New(namer *naming.Namer, maxDepth int) *Flattener {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Flattener{namer: namer, maxDepth: maxDepth}
}

// Flatten returns the samples contributed by one attribute. Values that carry
// no numeric leaf yield nothing.
func (f *Flattener) Flatten(object mbean.ObjectName, attr mbean.AttributeDescriptor, value mbean.Value) []Triple {
	w := walker{
		f:      f,
		object: object,
	}
	w.walk([]string{attr.Name}, f.namer.ObjectLabels(object), value, 0)
	return w.out
}

type walker struct {
	f      *Flattener
	object mbean.ObjectName
	out    []Triple
}

func (w *walker) walk(path []string, labels mbean.Labels, v mbean.Value, depth int) {
	if depth > w.f.maxDepth {
		return
	}

	switch v.Kind {
	case mbean.KindNumber, mbean.KindBool:
		n, _ := v.Numeric()
		w.out = append(w.out, Triple{
			Name:   w.f.namer.Name(w.object, path...),
			Value:  n,
			Labels: cloneLabels(labels),
		})

	case mbean.KindComposite:
		for _, field := range v.Fields {
			w.walk(extend(path, field.Name), labels, field.Value, depth+1)
		}

	case mbean.KindTabular:
		if v.Table == nil {
			return
		}
		for _, row := range v.Table.Rows {
			w.walkRow(path, labels, v.Table.Index, row, depth)
		}
	}
	// Strings and unsupported values are not representable as gauges.
}

// walkRow emits one table row. Index columns become labels. A single value
// column adds no name segment; several value columns each add their name.
func (w *walker) walkRow(path []string, labels mbean.Labels, index []string, row []mbean.Field, depth int) {
	rowLabels := cloneLabels(labels)
	var values []mbean.Field
	for _, field := range row {
		if !contains(index, field.Name) {
			values = append(values, field)
			continue
		}
		if s, ok := labelValue(field.Value); ok {
			if rowLabels == nil {
				rowLabels = mbean.Labels{}
			}
			rowLabels[naming.SanitizeSegment(field.Name)] = s
		}
	}

	if len(values) == 1 {
		w.walk(path, rowLabels, values[0].Value, depth+1)
		return
	}
	for _, field := range values {
		w.walk(extend(path, field.Name), rowLabels, field.Value, depth+1)
	}
}

func labelValue(v mbean.Value) (string, bool) {
	switch v.Kind {
	case mbean.KindString:
		return v.Text, true
	case mbean.KindNumber:
		return strconv.FormatFloat(v.Number, 'g', -1, 64), true
	case mbean.KindBool:
		return strconv.FormatBool(v.Bool), true
	}
	return "", false
}

func extend(path []string, segment string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = segment
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func cloneLabels(labels mbean.Labels) mbean.Labels {
	if len(labels) == 0 {
		return nil
	}
	out := make(mbean.Labels, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}
