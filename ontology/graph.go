package ontology

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// GraphProperty is one property of a graph document. Exactly one of Proxy
// and Literal is set, as reported by IsLiteral.
type GraphProperty struct {
	Key string

	Proxy string

	IsLiteral bool
	Literal   string
	// Datatype is empty when the document omits it.
	Datatype string

	Line   int
	Column int
}

// GraphProxy is a named proxy and its properties in document order.
type GraphProxy struct {
	Name       string
	Properties []GraphProperty

	Line   int
	Column int
}

// GraphDocument is a parsed subject map export.
type GraphDocument struct {
	SubjectMap string
	Proxies    []GraphProxy
}

// Names returns every proxy name of the document in order of first
// mention, whether as a source, a key or a value.
func (d *GraphDocument) Names() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, p := range d.Proxies {
		add(p.Name)
		for _, prop := range p.Properties {
			add(prop.Key)
			add(prop.Proxy)
		}
	}
	return out
}

// ParseGraphString parses a graph document held in a string.
func ParseGraphString(s string) (*GraphDocument, error) {
	return ParseGraph(strings.NewReader(s))
}

// ParseGraph reads a graph document in the format written by
// SubjectMap.Export:
//
//	subject_map: people
//	proxies:
//	  Alice:
//	    - {key: member, proxy: _:21}
//	    - {key: item_identifier, literal: Alice, datatype: "http://www.w3.org/2001/XMLSchema#string"}
//	  _:21: []
//
// Names are local to the document. Every failure is a *ParseError.
func ParseGraph(r io.Reader) (*GraphDocument, error) {
	name, proxies, err := decodeDocument(r)
	if err != nil {
		return nil, err
	}
	doc := &GraphDocument{SubjectMap: name}

	seen := make(map[string]bool, len(proxies.Content)/2)
	for i := 0; i+1 < len(proxies.Content); i += 2 {
		k, v := proxies.Content[i], proxies.Content[i+1]
		if k.Kind != yaml.ScalarNode || k.Value == "" {
			return nil, errorAt(k, "proxy name must be a non-empty string")
		}
		if seen[k.Value] {
			return nil, errorAt(k, fmt.Sprintf("proxy %q listed twice", k.Value))
		}
		seen[k.Value] = true

		p := GraphProxy{Name: k.Value, Line: k.Line, Column: k.Column}
		switch {
		case v.Kind == yaml.ScalarNode && v.Tag == "!!null":
		case v.Kind == yaml.SequenceNode:
			for _, entry := range v.Content {
				prop, err := parseGraphProperty(entry)
				if err != nil {
					return nil, err
				}
				p.Properties = append(p.Properties, prop)
			}
		default:
			return nil, errorAt(v, fmt.Sprintf("properties of %q must be a sequence", k.Value))
		}
		doc.Proxies = append(doc.Proxies, p)
	}
	return doc, nil
}

func parseGraphProperty(n *yaml.Node) (GraphProperty, error) {
	if n.Kind != yaml.MappingNode {
		return GraphProperty{}, errorAt(n, "property must be a mapping")
	}

	prop := GraphProperty{Line: n.Line, Column: n.Column}
	var hasProxy, hasDatatype bool
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return GraphProperty{}, errorAt(v, fmt.Sprintf("%s must be a string", k.Value))
		}
		switch k.Value {
		case "key":
			prop.Key = v.Value
		case "proxy":
			prop.Proxy, hasProxy = v.Value, true
		case "literal":
			prop.Literal, prop.IsLiteral = v.Value, true
		case "datatype":
			prop.Datatype, hasDatatype = v.Value, true
		default:
			return GraphProperty{}, errorAt(k, fmt.Sprintf("unknown property field %q", k.Value))
		}
	}

	switch {
	case prop.Key == "":
		return GraphProperty{}, errorAt(n, "property without key")
	case hasProxy == prop.IsLiteral:
		return GraphProperty{}, errorAt(n, "property needs exactly one of proxy and literal")
	case hasProxy && prop.Proxy == "":
		return GraphProperty{}, errorAt(n, "proxy must be a non-empty string")
	case hasProxy && hasDatatype:
		return GraphProperty{}, errorAt(n, "datatype is only valid with literal")
	}
	return prop, nil
}
