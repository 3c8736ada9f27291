package ontology

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleKind discriminates the two rule shapes.
type RuleKind uint8

const (
	// RuleRoot binds an alias to the bottom proxy: {tag: tag}.
	RuleRoot RuleKind = iota + 1
	// RuleProperty binds an alias to the value of a property on Base keyed
	// by LocalName: {base: local_name}.
	RuleProperty
)

func (k RuleKind) String() string {
	switch k {
	case RuleRoot:
		return "root"
	case RuleProperty:
		return "property"
	default:
		return fmt.Sprintf("RuleKind(%d)", uint8(k))
	}
}

// Rule is one alias definition.
type Rule struct {
	Alias string
	Kind  RuleKind

	// Tag is set for RuleRoot.
	Tag string

	// Base and LocalName are set for RuleProperty.
	Base      string
	LocalName string
	// External is set when Base is not defined by the document and must
	// already be bound in the target subject map.
	External bool

	// Line and Column locate the rule in the source document.
	Line   int
	Column int
}

func (r Rule) String() string {
	if r.Kind == RuleRoot {
		return fmt.Sprintf("%s: {%s: %s}", r.Alias, r.Tag, r.Tag)
	}
	return fmt.Sprintf("%s: {%s: %s}", r.Alias, r.Base, r.LocalName)
}

// Document is a parsed ontology in document order.
type Document struct {
	SubjectMap string
	Rules      []Rule
}

// Aliases returns the defined aliases in document order.
func (d *Document) Aliases() []string {
	out := make([]string, len(d.Rules))
	for i, r := range d.Rules {
		out[i] = r.Alias
	}
	return out
}

// Externals returns the rules whose base the document does not define.
func (d *Document) Externals() []Rule {
	var out []Rule
	for _, r := range d.Rules {
		if r.External {
			out = append(out, r)
		}
	}
	return out
}

// Rule returns the rule defining alias.
func (d *Document) Rule(alias string) (Rule, bool) {
	for _, r := range d.Rules {
		if r.Alias == alias {
			return r, true
		}
	}
	return Rule{}, false
}

// ParseString parses an ontology held in a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Parse reads and validates an ontology document. Every failure is a
// *ParseError; a base referring to an alias defined later in the document
// additionally wraps *UndefinedAliasError. Bases the document never defines
// are marked External and resolved on import.
func Parse(r io.Reader) (*Document, error) {
	name, proxies, err := decodeDocument(r)
	if err != nil {
		return nil, err
	}
	doc := &Document{SubjectMap: name}

	inDoc := make(map[string]bool, len(proxies.Content)/2)
	for i := 0; i+1 < len(proxies.Content); i += 2 {
		inDoc[proxies.Content[i].Value] = true
	}

	defined := make(map[string]bool, len(proxies.Content)/2)
	for i := 0; i+1 < len(proxies.Content); i += 2 {
		rule, err := parseRule(proxies.Content[i], proxies.Content[i+1], defined, inDoc)
		if err != nil {
			return nil, err
		}
		defined[rule.Alias] = true
		doc.Rules = append(doc.Rules, rule)
	}
	return doc, nil
}

func parseRule(k, v *yaml.Node, defined, inDoc map[string]bool) (Rule, error) {
	if k.Kind != yaml.ScalarNode || k.Value == "" {
		return Rule{}, errorAt(k, "alias must be a non-empty string")
	}
	alias := k.Value
	if defined[alias] {
		return Rule{}, errorAt(k, fmt.Sprintf("alias %q defined twice", alias))
	}
	if v.Kind != yaml.MappingNode || len(v.Content) != 2 {
		return Rule{}, errorAt(v, fmt.Sprintf("rule for %q must be a single pair {base: local_name}", alias))
	}

	left, right := v.Content[0], v.Content[1]
	if left.Kind != yaml.ScalarNode || right.Kind != yaml.ScalarNode || left.Value == "" || right.Value == "" {
		return Rule{}, errorAt(v, fmt.Sprintf("rule for %q must map a string to a string", alias))
	}

	r := Rule{Alias: alias, Line: k.Line, Column: k.Column}
	if left.Value == right.Value {
		r.Kind = RuleRoot
		r.Tag = left.Value
		return r, nil
	}

	if !defined[left.Value] && (inDoc[left.Value] || left.Value == alias) {
		return Rule{}, &ParseError{
			Line:   left.Line,
			Column: left.Column,
			Msg:    fmt.Sprintf("rule for %q", alias),
			Err:    &UndefinedAliasError{Alias: left.Value, Line: left.Line},
		}
	}
	r.Kind = RuleProperty
	r.External = !defined[left.Value]
	r.Base = left.Value
	r.LocalName = right.Value
	return r, nil
}

// decodeDocument reads the {subject_map, proxies} envelope shared by
// ontology and graph documents.
func decodeDocument(r io.Reader) (string, *yaml.Node, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return "", nil, &ParseError{Err: ErrEmptyDocument}
		}
		return "", nil, &ParseError{Msg: "invalid yaml", Err: err}
	}

	body := &root
	if body.Kind == yaml.DocumentNode {
		if len(body.Content) == 0 {
			return "", nil, &ParseError{Err: ErrEmptyDocument}
		}
		body = body.Content[0]
	}
	if body.Kind != yaml.MappingNode {
		return "", nil, errorAt(body, "document must be a mapping")
	}

	var (
		name    string
		proxies *yaml.Node
	)
	seen := make(map[string]bool, 2)
	for i := 0; i+1 < len(body.Content); i += 2 {
		k, v := body.Content[i], body.Content[i+1]
		if seen[k.Value] {
			return "", nil, errorAt(k, fmt.Sprintf("duplicate key %q", k.Value))
		}
		seen[k.Value] = true

		switch k.Value {
		case "subject_map":
			if v.Kind != yaml.ScalarNode || v.Value == "" {
				return "", nil, errorAt(v, "subject_map must be a non-empty string")
			}
			name = v.Value
		case "proxies":
			if v.Kind != yaml.MappingNode {
				return "", nil, errorAt(v, "proxies must be a mapping")
			}
			proxies = v
		default:
			return "", nil, errorAt(k, fmt.Sprintf("unknown key %q", k.Value))
		}
	}
	if name == "" {
		return "", nil, errorAt(body, "missing subject_map")
	}
	if proxies == nil {
		return "", nil, errorAt(body, "missing proxies")
	}
	return name, proxies, nil
}

func errorAt(n *yaml.Node, msg string) *ParseError {
	return &ParseError{Line: n.Line, Column: n.Column, Msg: msg}
}
