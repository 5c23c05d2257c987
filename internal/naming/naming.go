// Package naming turns object names and attribute paths into flat metric
// names. Every function here is pure: the same input always produces the same
// output, so nothing in the bridge caches names across objects.
package naming

import (
	"fmt"
	"strings"

	"github.com/fllarpy/mbean-bridge/domain/mbean"
)

// Mode selects how object properties contribute to names and labels.
type Mode string

const (
	// ModeProperties puts every property value into the metric name, in
	// declared order. Object properties never become labels.
	ModeProperties Mode = "properties"

	// ModeTypeLabels puts only the first property value into the name and
	// exports the remaining properties, except "type", as labels.
	ModeTypeLabels Mode = "type-labels"
)

// ParseMode validates a configured mode. The empty string selects
// ModeProperties.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeProperties:
		return ModeProperties, nil
	case ModeTypeLabels:
		return ModeTypeLabels, nil
	}
	return "", fmt.Errorf("unknown naming mode %q", s)
}

// Sanitize builds the metric name for an attribute path on an object: the
// domain, each property value in declared order, then the path segments,
// joined with '_'. Characters outside [A-Za-z0-9_] become '_' one for one.
func Sanitize(object mbean.ObjectName, path ...string) mbean.MetricName {
	segments := make([]string, 0, 1+len(object.Properties)+len(path))
	segments = append(segments, object.Domain)
	for _, p := range object.Properties {
		segments = append(segments, p.Value)
	}
	segments = append(segments, path...)
	return join(segments)
}

// SanitizeSegment applies the character rule to a single string. A
// multi-byte character still becomes a single '_'.
func SanitizeSegment(s string) string {
	return strings.Map(func(r rune) rune {
		if isNameChar(r) {
			return r
		}
		return '_'
	}, s)
}

func join(segments []string) mbean.MetricName {
	return mbean.MetricName(SanitizeSegment(strings.Join(segments, "_")))
}

func isNameChar(c rune) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// Namer applies one Mode. The zero value behaves as ModeProperties.
type Namer struct {
	mode Mode
}

// NewNamer returns a Namer for the given mode.
func NewNamer(mode Mode) *Namer {
	return &Namer{mode: mode}
}

// Mode reports the mode in use.
func (n *Namer) Mode() Mode {
	if n == nil || n.mode == "" {
		return ModeProperties
	}
	return n.mode
}

// Name returns the metric name for path on object.
func (n *Namer) Name(object mbean.ObjectName, path ...string) mbean.MetricName {
	if n.Mode() != ModeTypeLabels {
		return Sanitize(object, path...)
	}
	segments := make([]string, 0, 2+len(path))
	segments = append(segments, object.Domain)
	if len(object.Properties) > 0 {
		segments = append(segments, object.Properties[0].Value)
	}
	segments = append(segments, path...)
	return join(segments)
}

// ObjectLabels returns the labels contributed by the object itself. It is
// empty in ModeProperties.
func (n *Namer) ObjectLabels(object mbean.ObjectName) mbean.Labels {
	if n.Mode() != ModeTypeLabels {
		return nil
	}
	var labels mbean.Labels
	for _, p := range object.Properties {
		if p.Key == "type" {
			continue
		}
		if labels == nil {
			labels = mbean.Labels{}
		}
		labels[SanitizeSegment(p.Key)] = p.Value
	}
	return labels
}
