package tmrm

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/tmrm/model"
	"github.com/hupe1980/tmrm/ontology"
	"github.com/hupe1980/tmrm/storage"
)

// GraphImportResult summarizes one graph import.
type GraphImportResult struct {
	// SubjectMap is the subject_map value of the document.
	SubjectMap string
	// Created is the number of proxies allocated for document names.
	Created int
	// Added is the number of properties written.
	Added int
	// Skipped counts properties of existing proxies that the map already
	// held.
	Skipped int
}

// ImportGraph reads a document written by Export and adds its proxies and
// properties to m.
//
// Names that are aliases or ontology local names of m resolve to the
// existing proxies; every other name gets a new proxy. Properties of
// existing proxies are added only when m does not hold an equal property
// yet, so exporting a map and importing it into a map bootstrapped with the
// same ontologies reproduces it.
func (m *SubjectMap) ImportGraph(ctx context.Context, r io.Reader) (*GraphImportResult, error) {
	doc, err := ontology.ParseGraph(r)
	if err != nil {
		m.logger.LogGraphImport(ctx, "", 0, 0, 0, err)
		return nil, err
	}
	return m.ImportGraphDocument(ctx, doc)
}

// ImportGraphString is ImportGraph for a document held in a string.
func (m *SubjectMap) ImportGraphString(ctx context.Context, s string) (*GraphImportResult, error) {
	return m.ImportGraph(ctx, strings.NewReader(s))
}

// ImportGraphDocument adds the proxies and properties of a parsed graph
// document. The document is validated before anything is written.
func (m *SubjectMap) ImportGraphDocument(ctx context.Context, doc *ontology.GraphDocument) (*GraphImportResult, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	m.importMu.Lock()
	defer m.importMu.Unlock()

	res := &GraphImportResult{SubjectMap: doc.SubjectMap}
	err := m.importGraph(ctx, doc, res)
	m.logger.LogGraphImport(ctx, doc.SubjectMap, res.Created, res.Added, res.Skipped, err)
	return res, err
}

func (m *SubjectMap) importGraph(ctx context.Context, doc *ontology.GraphDocument, res *GraphImportResult) error {
	for _, p := range doc.Proxies {
		for _, prop := range p.Properties {
			if prop.IsLiteral && (prop.Datatype == AliasDatatype || prop.Datatype == LocalNameDatatype) {
				return &OntologyParseError{
					Line:   prop.Line,
					Column: prop.Column,
					Msg:    fmt.Sprintf("property of %q", p.Name),
					Err:    fmt.Errorf("%w: reserved datatype %s", storage.ErrInvalidValue, prop.Datatype),
				}
			}
		}
	}

	ids := make(map[string]model.ProxyID)
	existing := make(map[model.ProxyID]bool)
	var fresh []string
	for _, name := range doc.Names() {
		if id, ok := m.resolveName(name); ok {
			ids[name] = id
			existing[id] = true
		} else {
			fresh = append(fresh, name)
		}
	}

	for _, name := range fresh {
		id, err := m.allocate(ctx)
		if err != nil {
			return err
		}
		ids[name] = id
		res.Created++
	}

	held := make(map[model.ProxyID][]model.Property)
	for _, p := range doc.Proxies {
		source := ids[p.Name]
		if existing[source] {
			if _, ok := held[source]; !ok {
				props, err := m.properties(ctx, source, model.NoProxy)
				if err != nil {
					return err
				}
				held[source] = props
			}
		}

		for _, prop := range p.Properties {
			v := model.ProxyValue(ids[prop.Proxy])
			if prop.IsLiteral {
				dt := prop.Datatype
				if dt == "" {
					dt = XSDString
				}
				v = model.LiteralValue(model.NewLiteral(prop.Literal, dt))
			}
			key := ids[prop.Key]

			if existing[source] && consume(held, source, key, v) {
				res.Skipped++
				continue
			}
			if err := m.write(ctx, source, key, v); err != nil {
				return err
			}
			res.Added++
		}
	}
	return nil
}

// resolveName maps a document name to an existing proxy of m.
func (m *SubjectMap) resolveName(name string) (model.ProxyID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id, ok := m.aliases[name]; ok {
		return id, true
	}
	if id, ok := m.localNames[name]; ok {
		return id, true
	}
	if local, ok := strings.CutPrefix(name, localKeyPrefix); ok {
		id, ok := m.localNames[local]
		return id, ok
	}
	return model.NoProxy, false
}

// consume removes one property equal to (source, key, v) from held and
// reports whether there was one.
func consume(held map[model.ProxyID][]model.Property, source, key model.ProxyID, v model.Value) bool {
	props := held[source]
	for i, p := range props {
		if p.Key == key && p.Value.Equal(v) {
			held[source] = append(props[:i:i], props[i+1:]...)
			return true
		}
	}
	return false
}
