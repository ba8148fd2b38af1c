package node

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadYAMLFile reads and decodes a single YAML document from path. It
// is the one place file I/O enters the node package, used both for a
// Config's primary layers and for macro `%FILE::ID` targets.
func LoadYAMLFile(path string, strictKeys bool) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("node: reading %s: %w", path, err)
	}
	n, err := FromYAML(data, strictKeys)
	if err != nil {
		return nil, fmt.Errorf("node: %s: %w", path, err)
	}
	return n, nil
}

// FromYAML decodes a single YAML document into a Node tree. strictKeys
// rejects duplicate mapping keys within the document (spec §6
// "strict-keys" toggle); otherwise the later key wins.
func FromYAML(data []byte, strictKeys bool) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("node: parsing yaml: %w", err)
	}
	if doc.Kind == 0 {
		return NewMapping(), nil
	}
	root := &doc
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return NewMapping(), nil
		}
		root = doc.Content[0]
	}
	return fromYAMLNode(root, strictKeys)
}

func fromYAMLNode(n *yaml.Node, strictKeys bool) (*Node, error) {
	switch n.Kind {
	case yaml.MappingNode:
		return mappingFromYAML(n, strictKeys)
	case yaml.SequenceNode:
		seq := make([]*Node, 0, len(n.Content))
		for _, c := range n.Content {
			child, err := fromYAMLNode(c, strictKeys)
			if err != nil {
				return nil, err
			}
			seq = append(seq, child)
		}
		return &Node{Kind: KindSequence, Seq: seq}, nil
	case yaml.ScalarNode:
		return scalarFromYAML(n)
	case yaml.AliasNode:
		return fromYAMLNode(n.Alias, strictKeys)
	default:
		return nil, fmt.Errorf("node: unsupported yaml node kind %d at line %d", n.Kind, n.Line)
	}
}

func mappingFromYAML(n *yaml.Node, strictKeys bool) (*Node, error) {
	m := NewMapping()
	seen := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		rawKey := n.Content[i].Value
		clean, op := ParseKeyPrefix(rawKey)
		if strictKeys {
			if seen[clean] {
				return nil, fmt.Errorf("node: duplicate key %q at line %d", clean, n.Content[i].Line)
			}
			seen[clean] = true
		}
		child, err := fromYAMLNode(n.Content[i+1], strictKeys)
		if err != nil {
			return nil, err
		}
		m.Set(clean, op, child)
	}
	return m, nil
}

func scalarFromYAML(n *yaml.Node) (*Node, error) {
	switch n.Tag {
	case "!!null":
		return NewScalar(nil), nil
	case "!!bool":
		var v bool
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("node: decoding bool at line %d: %w", n.Line, err)
		}
		return NewScalar(v), nil
	case "!!int":
		var v int64
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("node: decoding int at line %d: %w", n.Line, err)
		}
		return NewScalar(v), nil
	case "!!float":
		var v float64
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("node: decoding float at line %d: %w", n.Line, err)
		}
		return NewScalar(v), nil
	default:
		return NewScalar(n.Value), nil
	}
}
