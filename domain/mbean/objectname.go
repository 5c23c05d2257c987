package mbean

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedName is returned when an object name cannot be parsed.
var ErrMalformedName = errors.New("malformed object name")

// Property is one key=value pair of an object name.
type Property struct {
	Key   string
	Value string
}

// ObjectName identifies a managed object: a domain plus an ordered list of
// key properties. The order is the declared order and is significant for
// naming, so ObjectName never sorts its properties.
type ObjectName struct {
	Domain     string
	Properties []Property
}

// ParseObjectName parses the canonical "domain:k1=v1,k2=v2" form.
// Values may be quoted; commas inside quotes do not split properties.
func ParseObjectName(s string) (ObjectName, error) {
	domain, rest, ok := strings.Cut(s, ":")
	if !ok || domain == "" {
		return ObjectName{}, fmt.Errorf("%w: %q: missing domain", ErrMalformedName, s)
	}
	if rest == "" {
		return ObjectName{}, fmt.Errorf("%w: %q: no key properties", ErrMalformedName, s)
	}

	name := ObjectName{Domain: domain}
	for _, pair := range splitProperties(rest) {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return ObjectName{}, fmt.Errorf("%w: %q: bad property %q", ErrMalformedName, s, pair)
		}
		if _, dup := name.Property(key); dup {
			return ObjectName{}, fmt.Errorf("%w: %q: duplicate key %q", ErrMalformedName, s, key)
		}
		name.Properties = append(name.Properties, Property{Key: key, Value: value})
	}
	return name, nil
}

// MustParseObjectName is like ParseObjectName but panics on error. It is meant
// for names known at compile time.
func MustParseObjectName(s string) ObjectName {
	name, err := ParseObjectName(s)
	if err != nil {
		panic(err)
	}
	return name
}

func splitProperties(s string) []string {
	var (
		parts  []string
		start  int
		quoted bool
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case '\\':
			if quoted {
				i++
			}
		case ',':
			if !quoted {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// Property returns the value of the given key.
func (n ObjectName) Property(key string) (string, bool) {
	for _, p := range n.Properties {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// String renders the canonical form with properties in declared order.
func (n ObjectName) String() string {
	var b strings.Builder
	b.WriteString(n.Domain)
	b.WriteByte(':')
	for i, p := range n.Properties {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(p.Value)
	}
	return b.String()
}

// Equal reports whether both names have the same domain and the same
// properties in the same order.
func (n ObjectName) Equal(o ObjectName) bool {
	if n.Domain != o.Domain || len(n.Properties) != len(o.Properties) {
		return false
	}
	for i := range n.Properties {
		if n.Properties[i] != o.Properties[i] {
			return false
		}
	}
	return true
}
