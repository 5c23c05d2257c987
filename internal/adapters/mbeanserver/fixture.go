package mbeanserver

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fllarpy/mbean-bridge/domain/mbean"
)

// Fixture files describe static beans:
//
//	beans:
//	  - name: "org.apache.cassandra.concurrent:type=CONSISTENCY-MANAGER"
//	    attributes:
//	      - name: ActiveCount
//	        value: 100
//	      - name: Broken
//	        value: !error "read timed out"
//	      - name: LastGcInfo
//	        value:
//	          duration: 12
//	          memoryUsageAfterGc: !table
//	            index: [key]
//	            rows:
//	              - {key: "PS Eden Space", value: {committed: 1024, used: 0}}
//
// Mappings become composites with their key order preserved, the !table tag
// marks a tabular value and !error makes every read of the attribute fail.
const (
	tableTag = "!table"
	errorTag = "!error"
)

type fixtureFile struct {
	Beans []fixtureBean `yaml:"beans"`
}

type fixtureBean struct {
	Name       string             `yaml:"name"`
	Attributes []fixtureAttribute `yaml:"attributes"`
}

type fixtureAttribute struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Value       yaml.Node `yaml:"value"`
}

type fixtureTable struct {
	Index []string    `yaml:"index"`
	Rows  []yaml.Node `yaml:"rows"`
}

// LoadFixtureFile registers the beans described by the YAML file at path.
func LoadFixtureFile(s *Server, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	if err := LoadFixture(s, f); err != nil {
		return fmt.Errorf("fixture %s: %w", path, err)
	}
	return nil
}

// LoadFixture registers the beans described by the YAML document in r.
func LoadFixture(s *Server, r io.Reader) error {
	var file fixtureFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode: %w", err)
	}

	for _, b := range file.Beans {
		name, err := mbean.ParseObjectName(b.Name)
		if err != nil {
			return err
		}
		attrs := make([]Attribute, 0, len(b.Attributes))
		for _, a := range b.Attributes {
			attr, err := fixtureAttr(a)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", b.Name, a.Name, err)
			}
			attrs = append(attrs, attr)
		}
		if err := s.Register(name, attrs...); err != nil {
			return err
		}
	}
	return nil
}

func fixtureAttr(a fixtureAttribute) (Attribute, error) {
	attr := Attribute{Name: a.Name, Description: a.Description}
	if a.Value.Tag == errorTag {
		attr.Get = Failing(errors.New(a.Value.Value))
		return attr, nil
	}

	v, err := decodeValue(&a.Value)
	if err != nil {
		return Attribute{}, err
	}
	attr.Shape = v.Shape()
	attr.Get = Constant(v)
	return attr, nil
}

func decodeValue(node *yaml.Node) (mbean.Value, error) {
	switch node.Kind {
	case 0:
		return mbean.Unsupported(), nil

	case yaml.AliasNode:
		return decodeValue(node.Alias)

	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!int", "!!float":
			var f float64
			if err := node.Decode(&f); err != nil {
				return mbean.Value{}, fmt.Errorf("line %d: %w", node.Line, err)
			}
			return mbean.Number(f), nil
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return mbean.Value{}, fmt.Errorf("line %d: %w", node.Line, err)
			}
			return mbean.Bool(b), nil
		case "!!str":
			return mbean.String(node.Value), nil
		case errorTag:
			return mbean.Value{}, fmt.Errorf("line %d: %s is only allowed on attribute values", node.Line, errorTag)
		}
		return mbean.Unsupported(), nil

	case yaml.MappingNode:
		if node.Tag == tableTag {
			return decodeTable(node)
		}
		fields, err := decodeFields(node)
		if err != nil {
			return mbean.Value{}, err
		}
		return mbean.Composite(fields...), nil
	}

	// Sequences and documents have no gauge representation.
	return mbean.Unsupported(), nil
}

func decodeFields(node *yaml.Node) ([]mbean.Field, error) {
	fields := make([]mbean.Field, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		v, err := decodeValue(node.Content[i+1])
		if err != nil {
			return nil, err
		}
		fields = append(fields, mbean.F(node.Content[i].Value, v))
	}
	return fields, nil
}

func decodeTable(node *yaml.Node) (mbean.Value, error) {
	var t fixtureTable
	plain := *node
	plain.Tag = "!!map"
	if err := plain.Decode(&t); err != nil {
		return mbean.Value{}, fmt.Errorf("line %d: table: %w", node.Line, err)
	}
	rows := make([][]mbean.Field, 0, len(t.Rows))
	for i := range t.Rows {
		row := &t.Rows[i]
		if row.Kind != yaml.MappingNode {
			return mbean.Value{}, fmt.Errorf("line %d: table rows must be mappings", row.Line)
		}
		fields, err := decodeFields(row)
		if err != nil {
			return mbean.Value{}, err
		}
		rows = append(rows, fields)
	}
	return mbean.Tabular(t.Index, rows...), nil
}
