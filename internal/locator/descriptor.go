// Package locator turns locator descriptors into queryable handles.
//
// A descriptor is either a raw selector string, passed through untouched, or a
// typed query (role, text, label, test id, css) that is compiled into a
// deterministic element lookup the browser driver can evaluate.
package locator

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind identifies the descriptor variant.
type Kind string

const (
	KindRaw    Kind = "raw"
	KindRole   Kind = "role"
	KindText   Kind = "text"
	KindLabel  Kind = "label"
	KindTestID Kind = "testId"
	KindCSS    Kind = "css"
)

// Descriptor identifies a UI element. The zero value is invalid.
type Descriptor struct {
	Kind  Kind
	Value string
	// Role is only used by KindRole; Value then holds the accessible name.
	Role  string
	Exact bool
}

// Raw wraps a selector string (CSS or XPath) that is passed through unmodified.
func Raw(selector string) Descriptor {
	return Descriptor{Kind: KindRaw, Value: selector}
}

// Role matches elements by ARIA role and, when name is non-empty, accessible name.
func Role(role, name string) Descriptor {
	return Descriptor{Kind: KindRole, Role: role, Value: name}
}

func Text(text string) Descriptor {
	return Descriptor{Kind: KindText, Value: text}
}

func Label(label string) Descriptor {
	return Descriptor{Kind: KindLabel, Value: label}
}

func TestID(id string) Descriptor {
	return Descriptor{Kind: KindTestID, Value: id}
}

func CSS(selector string) Descriptor {
	return Descriptor{Kind: KindCSS, Value: selector}
}

// WithExact returns a copy that requires exact (whitespace-normalised) matches.
func (d Descriptor) WithExact() Descriptor {
	d.Exact = true
	return d
}

// String renders the descriptor the way step titles and logs show it.
func (d Descriptor) String() string {
	return Describe(d)
}

// Describe renders a human-readable description of d.
func Describe(d Descriptor) string {
	switch d.Kind {
	case KindRaw:
		return d.Value
	case KindRole:
		if d.Value != "" {
			return fmt.Sprintf("role=%s name=%q", d.Role, d.Value)
		}
		return "role=" + d.Role
	case "":
		return "<empty descriptor>"
	default:
		return fmt.Sprintf("%s:%s", d.Kind, d.Value)
	}
}

// ParseKind accepts the spellings used in locator catalogs. "locator" is an
// alias for css.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raw":
		return KindRaw, true
	case "role":
		return KindRole, true
	case "text":
		return KindText, true
	case "label":
		return KindLabel, true
	case "testid", "test-id", "test_id":
		return KindTestID, true
	case "css", "locator", "":
		return KindCSS, true
	}
	return "", false
}

// yamlDescriptor is the mapping form used in catalog files.
type yamlDescriptor struct {
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
	Role  string `yaml:"role"`
	Name  string `yaml:"name"`
	Exact bool   `yaml:"exact"`
}

// UnmarshalYAML accepts either a plain scalar (raw selector) or a mapping
// {type, value, role, name, exact}.
func (d *Descriptor) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*d = Raw(node.Value)
		return nil
	}
	var yd yamlDescriptor
	if err := node.Decode(&yd); err != nil {
		return err
	}
	kind, ok := ParseKind(yd.Type)
	if !ok {
		return fmt.Errorf("%w: unknown locator type %q (line %d)", ErrInvalidDescriptor, yd.Type, node.Line)
	}
	value := yd.Value
	if value == "" {
		value = yd.Name
	}
	*d = Descriptor{Kind: kind, Value: value, Role: yd.Role, Exact: yd.Exact}
	return nil
}
